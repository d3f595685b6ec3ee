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
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// GetTransactionReceipt implements eth_getTransactionReceipt. Hashes
// without a contract result are reconciled as synthetic receipts from
// the log stream.
func (s *Service) GetTransactionReceipt(ctx context.Context, args []any) (any, error) {
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
		price, err := s.gasPriceAt(ctx, logs[0].Timestamp)
		if err != nil {
			return nil, err
		}
		return s.syntheticReceipt(logs, price), nil
	}

	var (
		from, to string
		price    *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var rerr error
		from, to, rerr = s.resolveAddressPair(gctx, result.From, result.To)
		return rerr
	})
	g.Go(func() error {
		var perr error
		price, perr = s.gasPriceAt(gctx, result.Timestamp)
		return perr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if from == "" {
		return nil, rpcerr.Internal("cannot resolve sender of " + hashOrID)
	}
	return s.buildReceipt(result, from, to, result.Logs, price), nil
}

// GetBlockReceipts implements eth_getBlockReceipts.
func (s *Service) GetBlockReceipts(ctx context.Context, args []any) (any, error) {
	bnh := args[0].(rpc.BlockNumberOrHash)
	block, err := s.resolveBlockNumberOrHash(ctx, bnh)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}

	var (
		results []mirror.ContractResult
		logs    []mirror.Log
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var rerr error
		results, rerr = s.mirror.GetContractResultsByRange(gctx, block.Timestamp)
		return rerr
	})
	g.Go(func() error {
		var lerr error
		logs, lerr = s.blockLogs(gctx, block)
		return lerr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	price, err := s.gasPriceAt(ctx, block.Timestamp.From)
	if err != nil {
		return nil, err
	}

	logsByHash := map[string][]mirror.Log{}
	for _, l := range logs {
		key := hash32(l.TransactionHash)
		logsByHash[key] = append(logsByHash[key], l)
	}

	type resolvedResult struct {
		result   *mirror.ContractResult
		from, to string
	}
	entries := make([]*resolvedResult, 0, len(results))
	seen := map[string]struct{}{}
	for i := range results {
		r := &results[i]
		if !includeInBlock(r) {
			continue
		}
		key := hash32(r.Hash)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		entries = append(entries, &resolvedResult{result: r})
	}
	rg, rctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		rg.Go(func() error {
			var rerr error
			e.from, e.to, rerr = s.resolveAddressPair(rctx, e.result.From, e.result.To)
			return rerr
		})
	}
	if err := rg.Wait(); err != nil {
		return nil, err
	}

	receipts := make([]*RPCReceipt, 0, len(results))
	for _, e := range entries {
		key := hash32(e.result.Hash)
		receipts = append(receipts, s.buildReceipt(e.result, e.from, e.to, logsByHash[key], price))
	}
	for _, l := range logs {
		key := hash32(l.TransactionHash)
		if _, present := seen[key]; present {
			continue
		}
		seen[key] = struct{}{}
		receipts = append(receipts, s.syntheticReceipt(logsByHash[key], price))
	}
	return receipts, nil
}

// buildReceipt assembles an Execution API receipt from a contract
// result and its logs.
func (s *Service) buildReceipt(result *mirror.ContractResult, from, to string, logs []mirror.Log, price *big.Int) *RPCReceipt {
	receipt := &RPCReceipt{
		BlockHash:         hash32(result.BlockHash),
		BlockNumber:       numHex(result.BlockNumber),
		From:              dataHex(from),
		CumulativeGasUsed: numHex(result.BlockGasUsed),
		GasUsed:           numHex(result.GasUsed),
		Logs:              formatResultLogs(result, logs),
		LogsBloom:         bloomHex(result.Bloom),
		TransactionHash:   hash32(result.Hash),
		TransactionIndex:  numHex(result.TransactionIndex),
		EffectiveGasPrice: bigHex(price),
		Root:              defaultRootHash,
		Status:            statusHex(result),
	}
	if to != "" {
		t := dataHex(to)
		receipt.To = &t
	}
	if result.Type != nil {
		tt := numHex(*result.Type)
		receipt.Type = &tt
	}
	if created := s.createdContractAddress(result); created != "" {
		receipt.ContractAddress = &created
	}
	return receipt
}

// createdContractAddress derives the created-contract address. System
// contract creations encode the new address in the call result; plain
// creations report it in the result's address field.
func (s *Service) createdContractAddress(result *mirror.ContractResult) string {
	params := dataHex(result.FunctionParameters)
	if len(params) >= 10 {
		selector := params[:10]
		for _, sys := range s.cfg.SystemCreateSelectors {
			if strings.EqualFold(selector, sys) {
				callResult := dataHex(result.CallResult)
				if len(callResult) >= 42 {
					return "0x" + callResult[len(callResult)-40:]
				}
			}
		}
	}
	if result.Address == "" {
		return ""
	}
	return dataHex(result.Address)
}

// syntheticReceipt builds a receipt for a native-operation log group.
// All logs in the group share a transaction hash.
func (s *Service) syntheticReceipt(logs []mirror.Log, price *big.Int) *RPCReceipt {
	first := logs[0]
	addr := dataHex(first.Address)
	idx := int64(0)
	if first.TransactionIndex != nil {
		idx = *first.TransactionIndex
	}
	txType := txTypeDynamicFee
	wire := make([]RPCLog, 0, len(logs))
	for _, l := range logs {
		wire = append(wire, formatLog(&l, hash32(l.TransactionHash), l.TransactionIndex, l.Index))
	}
	return &RPCReceipt{
		BlockHash:         hash32(first.BlockHash),
		BlockNumber:       numHex(first.BlockNumber),
		From:              addr,
		To:                &addr,
		CumulativeGasUsed: zeroHex,
		GasUsed:           zeroHex,
		Logs:              wire,
		LogsBloom:         bloomHex(first.Bloom),
		TransactionHash:   hash32(first.TransactionHash),
		TransactionIndex:  numHex(idx),
		EffectiveGasPrice: bigHex(price),
		Root:              defaultRootHash,
		Status:            "0x1",
		Type:              &txType,
	}
}

func statusHex(result *mirror.ContractResult) string {
	if result.Succeeded() {
		return "0x1"
	}
	return zeroHex
}

// formatResultLogs renders receipt logs, preferring the detail
// response's embedded logs and falling back to the block-scope fetch.
func formatResultLogs(result *mirror.ContractResult, fallback []mirror.Log) []RPCLog {
	source := result.Logs
	if len(source) == 0 {
		source = fallback
	}
	txHash := hash32(result.Hash)
	wire := make([]RPCLog, 0, len(source))
	for i := range source {
		l := &source[i]
		index := l.Index
		blockHash := l.BlockHash
		blockNumber := l.BlockNumber
		if blockHash == "" {
			blockHash = result.BlockHash
			blockNumber = result.BlockNumber
		}
		wire = append(wire, RPCLog{
			Address:          dataHex(l.Address),
			BlockHash:        hash32(blockHash),
			BlockNumber:      numHex(blockNumber),
			Data:             dataHex(l.Data),
			LogIndex:         numHex(index),
			Removed:          false,
			Topics:           formatTopics(l.Topics),
			TransactionHash:  txHash,
			TransactionIndex: numHex(result.TransactionIndex),
		})
	}
	return wire
}

// formatLog renders one log fetched from the logs endpoint.
func formatLog(l *mirror.Log, txHash string, txIndex *int64, logIndex int64) RPCLog {
	idx := int64(0)
	if txIndex != nil {
		idx = *txIndex
	}
	return RPCLog{
		Address:          dataHex(l.Address),
		BlockHash:        hash32(l.BlockHash),
		BlockNumber:      numHex(l.BlockNumber),
		Data:             dataHex(l.Data),
		LogIndex:         numHex(logIndex),
		Removed:          false,
		Topics:           formatTopics(l.Topics),
		TransactionHash:  txHash,
		TransactionIndex: numHex(idx),
	}
}

func formatTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t == "" {
			continue
		}
		out = append(out, hash32(t))
	}
	return out
}
