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
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/trie"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// skippedResultCodes lists upstream result codes whose contract results
// never executed EVM code and therefore do not surface as block
// transactions.
var skippedResultCodes = map[string]struct{}{
	"WRONG_NONCE":                {},
	"INVALID_ACCOUNT_ID":         {},
	"DUPLICATE_TRANSACTION":      {},
	"INVALID_CONTRACT_ID":        {},
	"MAX_CHILD_RECORDS_EXCEEDED": {},
	"INVALID_TRANSACTION":        {},
}

func includeInBlock(r *mirror.ContractResult) bool {
	_, skip := skippedResultCodes[r.Result]
	return !skip
}

// GetBlockByHash implements eth_getBlockByHash.
func (s *Service) GetBlockByHash(ctx context.Context, args []any) (any, error) {
	hash := args[0].(common.Hash)
	showDetails, _ := args[1].(bool)

	block, err := s.mirror.GetBlock(ctx, hash32(hash.Hex()))
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	return s.buildBlock(ctx, block, showDetails)
}

// GetBlockByNumber implements eth_getBlockByNumber.
func (s *Service) GetBlockByNumber(ctx context.Context, args []any) (any, error) {
	bn := args[0].(rpc.BlockNumber)
	showDetails, _ := args[1].(bool)

	block, err := s.resolveBlock(ctx, bn)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	return s.buildBlock(ctx, block, showDetails)
}

// GetBlockTransactionCountByHash implements
// eth_getBlockTransactionCountByHash.
func (s *Service) GetBlockTransactionCountByHash(ctx context.Context, args []any) (any, error) {
	block, err := s.mirror.GetBlock(ctx, hash32(args[0].(common.Hash).Hex()))
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	return numHex(block.Count), nil
}

// GetBlockTransactionCountByNumber implements
// eth_getBlockTransactionCountByNumber.
func (s *Service) GetBlockTransactionCountByNumber(ctx context.Context, args []any) (any, error) {
	block, err := s.resolveBlock(ctx, args[0].(rpc.BlockNumber))
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	return numHex(block.Count), nil
}

// buildBlock assembles the Execution API block body from the mirror
// block record, its contract results and its logs. Contract results and
// logs are fetched concurrently; logs whose transaction hash matches no
// contract result become synthetic transactions.
func (s *Service) buildBlock(ctx context.Context, block *mirror.Block, showDetails bool) (*RPCBlock, error) {
	if showDetails && block.Count > int64(s.cfg.BlockTxCountGuard) {
		return nil, rpcerr.RangeTooLarge(int64(s.cfg.BlockTxCountGuard))
	}

	var (
		results []mirror.ContractResult
		logs    []mirror.Log
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = s.mirror.GetContractResultsByRange(gctx, block.Timestamp)
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = s.blockLogs(gctx, block)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		txs        []any
		receipts   types.Receipts
		seenHashes = map[string]struct{}{}
		gasUsed    int64
	)
	appendReceipt := func(txHash string, status bool, gas int64, entryLogs []mirror.Log, txType int64) {
		gasUsed += gas
		receipts = append(receipts, receiptForRoot(txHash, status, gasUsed, gas, entryLogs, txType))
	}

	logsByHash := map[string][]mirror.Log{}
	for _, l := range logs {
		key := hash32(l.TransactionHash)
		logsByHash[key] = append(logsByHash[key], l)
	}

	for i := range results {
		r := &results[i]
		if !includeInBlock(r) {
			continue
		}
		key := hash32(r.Hash)
		if _, dup := seenHashes[key]; dup {
			continue
		}
		seenHashes[key] = struct{}{}
		if showDetails {
			tx := buildTransaction(r, "", "")
			if tx == nil {
				continue
			}
			txs = append(txs, tx)
		} else {
			txs = append(txs, key)
		}
		txType := int64(0)
		if r.Type != nil {
			txType = *r.Type
		}
		appendReceipt(key, r.Succeeded(), r.GasUsed, logsByHash[key], txType)
	}

	// Native operations emit logs without contract results; reconcile
	// them as synthetic transactions.
	for _, l := range logs {
		key := hash32(l.TransactionHash)
		if _, present := seenHashes[key]; present {
			continue
		}
		seenHashes[key] = struct{}{}
		if showDetails {
			lcopy := l
			txs = append(txs, s.syntheticTransaction(&lcopy))
		} else {
			txs = append(txs, key)
		}
		appendReceipt(key, true, 0, logsByHash[key], 2)
	}

	gasPrice, err := s.gasPriceAt(ctx, block.Timestamp.From)
	if err != nil {
		return nil, err
	}

	receiptsRoot := defaultRootHash
	if len(receipts) > 0 {
		receiptsRoot = types.DeriveSha(receipts, trie.NewStackTrie(nil)).Hex()
	}

	if txs == nil {
		txs = []any{}
	}
	return &RPCBlock{
		Number:           numHex(block.Number),
		Hash:             hash32(block.Hash),
		ParentHash:       hash32(block.PreviousHash),
		Nonce:            zeroHex8Byte,
		Sha3Uncles:       emptyArrayHash,
		LogsBloom:        bloomHex(block.LogsBloom),
		TransactionsRoot: hash32(block.Hash),
		StateRoot:        defaultRootHash,
		ReceiptsRoot:     receiptsRoot,
		Miner:            zeroAddress,
		Difficulty:       zeroHex,
		TotalDifficulty:  zeroHex,
		ExtraData:        "0x",
		Size:             numHex(block.Size),
		GasLimit:         hexutil.EncodeUint64(s.cfg.MaxGasPerSec),
		GasUsed:          numHex(block.GasUsed),
		BaseFeePerGas:    bigHex(gasPrice),
		MixHash:          zeroHex32Byte,
		Timestamp:        timestampHex(block.Timestamp.From),
		Uncles:           []string{},
		Transactions:     txs,
	}, nil
}

// blockLogs fetches every log in the block's consensus interval.
func (s *Service) blockLogs(ctx context.Context, block *mirror.Block) ([]mirror.Log, error) {
	q := url.Values{}
	q["timestamp"] = mirror.FormatTimestampRangeQuery(block.Timestamp)
	return s.mirror.GetContractResultsLogs(ctx, q)
}

// receiptForRoot builds the consensus-side receipt used only for the
// receipts-trie computation.
func receiptForRoot(txHash string, ok bool, cumulative, gas int64, entryLogs []mirror.Log, txType int64) *types.Receipt {
	status := types.ReceiptStatusFailed
	if ok {
		status = types.ReceiptStatusSuccessful
	}
	r := &types.Receipt{
		Type:              uint8(txType),
		Status:            status,
		CumulativeGasUsed: uint64(cumulative),
		GasUsed:           uint64(gas),
		TxHash:            common.HexToHash(txHash),
	}
	for _, l := range entryLogs {
		topics := make([]common.Hash, 0, len(l.Topics))
		for _, t := range l.Topics {
			topics = append(topics, common.HexToHash(t))
		}
		data, _ := hexutil.Decode(dataHex(l.Data))
		r.Logs = append(r.Logs, &types.Log{
			Address: common.HexToAddress(l.Address),
			Topics:  topics,
			Data:    data,
		})
	}
	r.Bloom = types.CreateBloom(types.Receipts{r})
	return r
}

// blockByTag is a cache-friendly lookup used by tracer and receipt
// paths that need the mirror record for an already validated number.
func (s *Service) blockByNumberValue(ctx context.Context, number int64) (*mirror.Block, error) {
	return s.mirror.GetBlock(ctx, strconv.FormatInt(number, 10))
}
