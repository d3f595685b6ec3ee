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

// Package tracer serves the debug_trace* namespace. Traces are not
// re-executed locally; they are assembled from the mirror's recorded
// actions, opcodes and state.
package tracer

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hashgraph/evm-gateway/config"
	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/dispatch"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

const blockTraceCacheTTL = time.Hour

// Service answers debug_traceTransaction and debug_traceBlockByNumber.
type Service struct {
	cfg    *config.Config
	mirror *mirror.Client
	cache  *cache.Tiered
	log    log.Logger
}

func New(cfg *config.Config, mc *mirror.Client, tc *cache.Tiered) *Service {
	return &Service{
		cfg:    cfg,
		mirror: mc,
		cache:  tc,
		log:    log.New("component", "tracer"),
	}
}

// Register wires the debug namespace into the registry.
func (s *Service) Register(reg *dispatch.Registry) {
	reg.Register(&dispatch.Method{
		Name: "debug_traceTransaction", Handler: s.TraceTransaction,
		Params: []dispatch.Param{
			{Type: dispatch.TypeTransactionHashOrID, Required: true},
			{Type: dispatch.TypeTracerConfigWrapper},
		},
	})
	reg.Register(&dispatch.Method{
		Name: "debug_traceBlockByNumber", Handler: s.TraceBlockByNumber,
		Params: []dispatch.Param{
			{Type: dispatch.TypeBlockNumber, Required: true},
			{Type: dispatch.TypeTracerConfigWrapper},
		},
		Cache: &cache.Policy{
			TTL:  blockTraceCacheTTL,
			Tier: cache.TierShared,
			Skip: []cache.SkipRule{{Param: 0, Values: []string{"latest", "pending", "safe", "finalized"}}},
		},
	})
}

// TraceTransaction implements debug_traceTransaction. The tracer
// defaults to the opcode logger.
func (s *Service) TraceTransaction(ctx context.Context, args []any) (any, error) {
	if !s.cfg.DebugAPIEnabled {
		return nil, rpcerr.UnsupportedMethod()
	}
	hashOrID := args[0].(string)
	wrapper := wrapperArg(args, 1, dispatch.TracerOpcode)

	switch wrapper.Tracer {
	case dispatch.TracerCall:
		return s.traceCall(ctx, hashOrID, wrapper.TracerConfig.OnlyTopCall)
	case dispatch.TracerOpcode:
		if !s.cfg.OpcodeLoggerEnabled {
			return nil, rpcerr.UnsupportedMethod()
		}
		return s.traceOpcodes(ctx, hashOrID, wrapper.TracerConfig)
	case dispatch.TracerPrestate:
		return nil, rpcerr.InvalidParameterMsg("prestateTracer is only supported for block traces")
	default:
		return nil, rpcerr.InvalidParameterMsg("unknown tracer " + wrapper.Tracer)
	}
}

// BlockTrace pairs one transaction with its trace result.
type BlockTrace struct {
	TxHash string `json:"txHash"`
	Result any    `json:"result"`
}

// TraceBlockByNumber implements debug_traceBlockByNumber. The tracer
// defaults to the call tracer; transactions the network rejected for a
// stale nonce are excluded.
func (s *Service) TraceBlockByNumber(ctx context.Context, args []any) (any, error) {
	if !s.cfg.DebugAPIEnabled {
		return nil, rpcerr.UnsupportedMethod()
	}
	bn := args[0].(rpc.BlockNumber)
	wrapper := wrapperArg(args, 1, dispatch.TracerCall)

	if wrapper.Tracer == dispatch.TracerOpcode && !s.cfg.OpcodeLoggerEnabled {
		return nil, rpcerr.UnsupportedMethod()
	}

	block, err := s.resolveBlock(ctx, bn)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, rpcerr.UnknownBlock()
	}
	results, err := s.mirror.GetContractResultsByRange(ctx, block.Timestamp)
	if err != nil {
		return nil, err
	}

	traces := make([]BlockTrace, 0, len(results))
	for _, result := range results {
		if result.Result == "WRONG_NONCE" {
			continue
		}
		hash := hash32(result.Hash)
		trace, err := s.runTracer(ctx, hash, wrapper)
		if err != nil {
			return nil, err
		}
		traces = append(traces, BlockTrace{TxHash: hash, Result: trace})
	}
	return traces, nil
}

func (s *Service) runTracer(ctx context.Context, hash string, wrapper *dispatch.TracerConfigWrapper) (any, error) {
	switch wrapper.Tracer {
	case dispatch.TracerOpcode:
		return s.traceOpcodes(ctx, hash, wrapper.TracerConfig)
	case dispatch.TracerPrestate:
		return s.tracePrestate(ctx, hash, wrapper.TracerConfig.OnlyTopCall)
	default:
		return s.traceCall(ctx, hash, wrapper.TracerConfig.OnlyTopCall)
	}
}

// wrapperArg returns the tracer wrapper at index, defaulting absent
// wrappers and absent tracer names to def.
func wrapperArg(args []any, index int, def string) *dispatch.TracerConfigWrapper {
	if len(args) > index && args[index] != nil {
		if w, ok := args[index].(*dispatch.TracerConfigWrapper); ok && w != nil {
			if w.Tracer == "" {
				w.Tracer = def
			}
			return w
		}
	}
	return &dispatch.TracerConfigWrapper{Tracer: def}
}

// resolveBlock maps a block-number parameter onto the mirror record.
func (s *Service) resolveBlock(ctx context.Context, bn rpc.BlockNumber) (*mirror.Block, error) {
	switch bn {
	case rpc.EarliestBlockNumber:
		return s.mirror.GetEarliestBlock(ctx)
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber, rpc.SafeBlockNumber, rpc.FinalizedBlockNumber:
		return s.mirror.GetLatestBlock(ctx)
	default:
		if bn < 0 {
			return nil, rpcerr.InvalidParameter(0, "invalid block number")
		}
		return s.mirror.GetBlock(ctx, strconv.FormatInt(int64(bn), 10))
	}
}
