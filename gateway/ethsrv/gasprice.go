// Copyright 2025 The evm-gateway Authors
// This file is part of the evm-gateway library.
//
// The evm-gateway library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The evm-gateway library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the evm-gateway library. If not, see <http://www.gnu.org/licenses/>.

package ethsrv

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// gasPriceAt computes the network gas price in weibar at a consensus
// timestamp ("" means current). The fee schedule quotes tinybar per
// gas; the configured buffer percentage is applied on top.
func (s *Service) gasPriceAt(ctx context.Context, ts mirror.Timestamp) (*big.Int, error) {
	fees, err := s.mirror.GetNetworkFees(ctx, ts)
	if err != nil {
		return nil, err
	}
	if fees == nil {
		return nil, rpcerr.Internal("network fee schedule unavailable")
	}
	fee := fees.EthereumTransactionFee()
	if fee == nil {
		return nil, rpcerr.Internal("no ethereum transaction fee in schedule")
	}
	price := mirror.TinybarToWeibar(big.NewInt(fee.Gas))
	if pct := s.cfg.GasPriceBufferPercent; pct != 0 {
		buffer := new(big.Int).Mul(price, big.NewInt(pct))
		buffer.Div(buffer, big.NewInt(100))
		price.Add(price, buffer)
	}
	return price, nil
}

// currentGasPriceForBlock resolves the fee schedule in force when the
// block closed.
func (s *Service) currentGasPriceForBlock(ctx context.Context, blockHash string) (*big.Int, error) {
	block, err := s.mirror.GetBlock(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, rpcerr.UnknownBlock()
	}
	return s.gasPriceAt(ctx, block.Timestamp.From)
}

// GasPrice implements eth_gasPrice.
func (s *Service) GasPrice(ctx context.Context, args []any) (any, error) {
	price, err := s.gasPriceAt(ctx, "")
	if err != nil {
		return nil, err
	}
	return bigHex(price), nil
}

// MaxPriorityFeePerGas implements eth_maxPriorityFeePerGas. Fees are
// flat; there is no tip market.
func (s *Service) MaxPriorityFeePerGas(ctx context.Context, args []any) (any, error) {
	return zeroHex, nil
}

// FeeHistory implements eth_feeHistory. Every block quotes the fee
// schedule price; rewards are zero.
func (s *Service) FeeHistory(ctx context.Context, args []any) (any, error) {
	blockCount := args[0].(string)
	newest := args[1].(rpc.BlockNumber)
	var rewardPercentiles []float64
	if len(args) > 2 && args[2] != nil {
		rewardPercentiles, _ = args[2].([]float64)
	}

	latest, err := s.latestBlock(ctx)
	if err != nil {
		return nil, err
	}
	newestBlock, err := s.resolveBlock(ctx, newest)
	if err != nil {
		return nil, err
	}
	if newestBlock == nil {
		return nil, rpcerr.UnknownBlock()
	}
	if newestBlock.Number > latest.Number {
		return nil, rpcerr.RequestBeyondHead(uint64(newestBlock.Number), uint64(latest.Number))
	}

	count := parseBigHex(blockCount)
	if count == nil || count.Sign() <= 0 {
		return nil, rpcerr.InvalidParameter(0, "block count must be a positive quantity")
	}
	n := count.Int64()
	if max := int64(s.cfg.FeeHistoryMaxResults); n > max {
		n = max
	}
	if n > newestBlock.Number+1 {
		n = newestBlock.Number + 1
	}

	price, err := s.gasPriceAt(ctx, "")
	if err != nil {
		return nil, err
	}
	priceHex := bigHex(price)

	oldest := newestBlock.Number - n + 1
	history := &RPCFeeHistory{
		OldestBlock:   numHex(oldest),
		BaseFeePerGas: make([]string, 0, n+1),
		GasUsedRatio:  make([]float64, 0, n),
	}
	for i := int64(0); i < n; i++ {
		history.BaseFeePerGas = append(history.BaseFeePerGas, priceHex)
		history.GasUsedRatio = append(history.GasUsedRatio, 0.5)
	}
	// The next-block entry the schema requires.
	history.BaseFeePerGas = append(history.BaseFeePerGas, priceHex)

	if len(rewardPercentiles) > 0 {
		rewards := make([][]string, 0, n)
		for i := int64(0); i < n; i++ {
			row := make([]string, len(rewardPercentiles))
			for j := range row {
				row[j] = zeroHex
			}
			rewards = append(rewards, row)
		}
		history.Reward = &rewards
	}
	return history, nil
}
