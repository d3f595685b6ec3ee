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
	"bytes"
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// parsedTx is a deserialized raw transaction plus its recovered
// sender, the unit every precheck runs against.
type parsedTx struct {
	raw    []byte
	tx     *types.Transaction
	sender common.Address
}

// parseRawTransaction deserializes and recovers the signer. Broken
// encodings and broken signatures both surface as invalid arguments.
func parseRawTransaction(raw []byte) (*parsedTx, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, rpcerr.InvalidArguments(err.Error())
	}
	var (
		sender common.Address
		err    error
	)
	if tx.Protected() {
		sender, err = types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	} else {
		sender, err = types.Sender(types.HomesteadSigner{}, tx)
	}
	if err != nil {
		return nil, rpcerr.InvalidArguments("cannot recover sender: " + err.Error())
	}
	return &parsedTx{raw: raw, tx: tx, sender: sender}, nil
}

// effectiveGasPrice is the price the sender committed to: the fee cap
// for dynamic-fee transactions, the gas price otherwise.
func (p *parsedTx) effectiveGasPrice() *big.Int {
	if p.tx.Type() == types.DynamicFeeTxType {
		return p.tx.GasFeeCap()
	}
	return p.tx.GasPrice()
}

// isDeterministicDeployment reports whether the raw bytes equal the
// whitelisted deterministic-deployer transaction.
func (s *Service) isDeterministicDeployment(p *parsedTx) bool {
	whitelisted, err := hexutil.Decode(s.cfg.DeterministicDeployer)
	if err != nil {
		return false
	}
	return bytes.Equal(p.raw, whitelisted)
}

// precheck runs the full admission sequence against live mirror state.
// networkPrice is the current network gas price in weibar. It returns
// the sender's mirror account for use by reconciliation.
func (s *Service) precheck(ctx context.Context, p *parsedTx, networkPrice *big.Int) (*mirror.Account, error) {
	tx := p.tx

	if size := len(tx.Data()); size > s.cfg.CallDataSizeLimit {
		return nil, rpcerr.CallDataSizeExceeded(size, s.cfg.CallDataSizeLimit)
	}
	if size := len(p.raw); size > s.cfg.SendRawTxSizeLimit {
		return nil, rpcerr.TransactionSizeExceeded(size, s.cfg.SendRawTxSizeLimit)
	}
	if tx.Type() == types.BlobTxType {
		return nil, rpcerr.UnsupportedTransactionType()
	}

	intrinsic := intrinsicGas(tx.Data())
	if tx.Gas() < intrinsic {
		return nil, rpcerr.GasLimitTooLow(tx.Gas(), intrinsic)
	}
	if tx.Gas() > s.cfg.MaxTransactionFee {
		return nil, rpcerr.GasLimitTooHigh(tx.Gas(), s.cfg.MaxTransactionFee)
	}

	senderHex := strings.ToLower(p.sender.Hex())
	account, err := s.mirror.GetAccount(ctx, senderHex, "")
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, rpcerr.ResourceNotFound("account " + senderHex)
	}
	if account.EthereumNonce != nil && uint64(*account.EthereumNonce) > tx.Nonce() {
		return nil, rpcerr.NonceTooLow(tx.Nonce(), uint64(*account.EthereumNonce))
	}

	if err := s.checkChainID(p); err != nil {
		return nil, err
	}
	if err := checkValueGranularity(tx.Value()); err != nil {
		return nil, err
	}
	if err := s.checkGasPrice(p, networkPrice); err != nil {
		return nil, err
	}

	cost := new(big.Int).Mul(p.effectiveGasPrice(), new(big.Int).SetUint64(tx.Gas()))
	cost.Add(cost, tx.Value())
	balance := mirror.TinybarToWeibar(big.NewInt(account.Balance.Balance))
	if balance.Cmp(cost) < 0 {
		return nil, rpcerr.InsufficientBalance()
	}

	if to := tx.To(); to != nil {
		receiver, err := s.mirror.GetAccount(ctx, strings.ToLower(to.Hex()), "")
		if err != nil {
			return nil, err
		}
		if receiver != nil && receiver.ReceiverSigRequired != nil && *receiver.ReceiverSigRequired {
			return nil, rpcerr.ReceiverSignatureRequired()
		}
	}
	return account, nil
}

// checkChainID admits matching chain ids and unprotected legacy
// transactions (chain id zero, v in {27, 28}).
func (s *Service) checkChainID(p *parsedTx) error {
	txChain := p.tx.ChainId()
	if txChain != nil && txChain.Cmp(s.cfg.ChainID) == 0 {
		return nil
	}
	if !p.tx.Protected() {
		return nil
	}
	provided := "0x0"
	if txChain != nil {
		provided = hexutil.EncodeBig(txChain)
	}
	return rpcerr.UnsupportedChainID(provided, hexutil.EncodeBig(s.cfg.ChainID))
}

// checkValueGranularity rejects values the native sub-unit cannot
// represent: anything strictly between zero and one tinybar.
func checkValueGranularity(value *big.Int) error {
	if value.Sign() > 0 && value.Cmp(big.NewInt(mirror.TinybarToWeibarCoef)) < 0 {
		return rpcerr.ValueTooLow()
	}
	return nil
}

// checkGasPrice enforces the network floor with the configured tinybar
// tolerance; the deterministic-deployer transaction is whitelisted
// past it.
func (s *Service) checkGasPrice(p *parsedTx, networkPrice *big.Int) error {
	tolerance := new(big.Int).Mul(
		big.NewInt(s.cfg.GasPriceToleranceTiny),
		big.NewInt(mirror.TinybarToWeibarCoef))
	floor := new(big.Int).Sub(networkPrice, tolerance)
	if p.effectiveGasPrice().Cmp(floor) >= 0 {
		return nil
	}
	if s.isDeterministicDeployment(p) {
		return nil
	}
	return rpcerr.GasPriceTooLow(bigHex(p.effectiveGasPrice()), bigHex(networkPrice))
}
