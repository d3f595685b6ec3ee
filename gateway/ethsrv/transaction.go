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
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
)

// Transaction type tags per EIP-2718.
const (
	txTypeLegacy     = "0x0"
	txTypeAccessList = "0x1"
	txTypeDynamicFee = "0x2"
)

// buildTransaction dispatches on the contract result's type field and
// assembles the matching transaction variant. Unknown types yield nil.
// from and to override the result's own addresses when non-empty
// (callers resolve them against the mirror where required).
func buildTransaction(result *mirror.ContractResult, from, to string) *RPCTransaction {
	txType := int64(0)
	if result.Type != nil {
		txType = *result.Type
	}
	switch txType {
	case 0, 1, 2:
	default:
		return nil
	}

	if from == "" {
		from = result.From
	}
	if to == "" {
		to = result.To
	}

	tx := &RPCTransaction{
		BlockHash:        hash32(result.BlockHash),
		BlockNumber:      numHex(result.BlockNumber),
		From:             dataHex(from),
		Gas:              numHex(result.GasLimit),
		GasPrice:         quantityHex(result.GasPrice),
		Hash:             hash32(result.Hash),
		Input:            dataHex(result.FunctionParameters),
		Nonce:            numHex(nonceOf(result)),
		TransactionIndex: numHex(result.TransactionIndex),
		Value:            bigHex(mirror.TinybarToWeibar(big.NewInt(result.Amount))),
		V:                vHex(result),
		R:                signatureHex(result.R),
		S:                signatureHex(result.S),
	}
	if to != "" {
		t := dataHex(to)
		tx.To = &t
	}
	// A chain id of "0x" marks a pre-EIP-155 transaction; the field is
	// left unset for tool compatibility.
	if result.ChainID != "" && result.ChainID != "0x" {
		cid := quantityHex(result.ChainID)
		tx.ChainID = &cid
	}

	switch txType {
	case 0:
		tx.Type = txTypeLegacy
	case 1:
		tx.Type = txTypeAccessList
		// The upstream does not persist access lists; force empty.
		empty := []any{}
		tx.AccessList = &empty
	case 2:
		tx.Type = txTypeDynamicFee
		empty := []any{}
		tx.AccessList = &empty
		maxFee := quantityHex(result.MaxFeePerGas)
		maxPriority := quantityHex(result.MaxPriorityFee)
		tx.MaxFeePerGas = &maxFee
		tx.MaxPriorityFeePerGas = &maxPriority
	}
	return tx
}

func nonceOf(result *mirror.ContractResult) int64 {
	if result.Nonce == nil {
		return 0
	}
	return *result.Nonce
}

func vHex(result *mirror.ContractResult) string {
	if result.V == nil {
		return zeroHex
	}
	return numHex(*result.V)
}

// signatureHex trims the leading zero byte strict clients reject;
// empty components render as 0x0.
func signatureHex(s string) string {
	return quantityHex(s)
}

// syntheticTransaction represents an EVM-visible native operation as a
// minimal dynamic-fee transaction; from and to both carry the emitting
// address.
func (s *Service) syntheticTransaction(l *mirror.Log) *RPCTransaction {
	addr := dataHex(l.Address)
	cid := bigHex(s.cfg.ChainID)
	empty := []any{}
	zero := zeroHex
	idx := int64(0)
	if l.TransactionIndex != nil {
		idx = *l.TransactionIndex
	}
	return &RPCTransaction{
		BlockHash:            hash32(l.BlockHash),
		BlockNumber:          numHex(l.BlockNumber),
		ChainID:              &cid,
		From:                 addr,
		Gas:                  zeroHex,
		GasPrice:             zeroHex,
		Hash:                 hash32(l.TransactionHash),
		Input:                "0x",
		Nonce:                zeroHex,
		To:                   &addr,
		TransactionIndex:     numHex(idx),
		Type:                 txTypeDynamicFee,
		Value:                zeroHex,
		V:                    zeroHex,
		R:                    zeroHex,
		S:                    zeroHex,
		AccessList:           &empty,
		MaxFeePerGas:         &zero,
		MaxPriorityFeePerGas: &zero,
	}
}

// GetTransactionByHash implements eth_getTransactionByHash. A hash
// with no contract result is probed against the log stream for a
// synthetic transaction before reporting null.
func (s *Service) GetTransactionByHash(ctx context.Context, args []any) (any, error) {
	hashOrID := args[0].(string)

	result, err := s.mirror.GetContractResult(ctx, hashOrID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		logs, err := s.mirror.GetContractResultsLogs(ctx, url.Values{"transaction.hash": {hashOrID}})
		if err != nil {
			return nil, err
		}
		if len(logs) == 0 {
			return nil, nil
		}
		return s.syntheticTransaction(&logs[0]), nil
	}

	from, to, err := s.resolveAddressPair(ctx, result.From, result.To)
	if err != nil {
		return nil, err
	}
	return buildTransaction(result, from, to), nil
}

// GetTransactionByBlockHashAndIndex implements the block-hash variant.
func (s *Service) GetTransactionByBlockHashAndIndex(ctx context.Context, args []any) (any, error) {
	blockHash := hash32(args[0].(common.Hash).Hex())
	index := args[1].(string)
	return s.transactionByBlockFilter(ctx, url.Values{
		"block.hash":        {blockHash},
		"transaction.index": {indexDecimal(index)},
	})
}

// GetTransactionByBlockNumberAndIndex implements the block-number
// variant.
func (s *Service) GetTransactionByBlockNumberAndIndex(ctx context.Context, args []any) (any, error) {
	bn := args[0].(rpc.BlockNumber)
	index := args[1].(string)

	block, err := s.resolveBlock(ctx, bn)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	return s.transactionByBlockFilter(ctx, url.Values{
		"block.number":      {strconv.FormatInt(block.Number, 10)},
		"transaction.index": {indexDecimal(index)},
	})
}

func (s *Service) transactionByBlockFilter(ctx context.Context, q url.Values) (any, error) {
	q.Set("limit", "1")
	results, err := s.mirror.GetContractResults(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	detail, err := s.mirror.GetContractResult(ctx, results[0].Hash)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, nil
	}
	from, to, err := s.resolveAddressPair(ctx, detail.From, detail.To)
	if err != nil {
		return nil, err
	}
	return buildTransaction(detail, from, to), nil
}

// indexDecimal converts a hex transaction index to the decimal form
// the mirror filters on.
func indexDecimal(hexIndex string) string {
	v, err := strconv.ParseUint(quantityHex(hexIndex)[2:], 16, 64)
	if err != nil {
		return "0"
	}
	return strconv.FormatUint(v, 10)
}
