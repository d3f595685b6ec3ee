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

package tracer

import (
	"context"
	"strings"

	"github.com/hashgraph/evm-gateway/gateway/dispatch"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// OpcodeTrace is the opcode logger's result shape.
type OpcodeTrace struct {
	Gas         int64       `json:"gas"`
	Failed      bool        `json:"failed"`
	ReturnValue string      `json:"returnValue"`
	StructLogs  []StructLog `json:"structLogs"`
}

// StructLog is one executed opcode. Detail categories disabled by the
// tracer config are null, never omitted.
type StructLog struct {
	PC      int64              `json:"pc"`
	Op      string             `json:"op"`
	Gas     int64              `json:"gas"`
	GasCost int64              `json:"gasCost"`
	Depth   int64              `json:"depth"`
	Stack   *[]string          `json:"stack"`
	Memory  *[]string          `json:"memory"`
	Storage *map[string]string `json:"storage"`
	Reason  *string            `json:"reason"`
}

// traceOpcodes replays the mirror's recorded opcode trace with the
// requested detail categories.
func (s *Service) traceOpcodes(ctx context.Context, hashOrID string, cfg dispatch.TracerConfig) (*OpcodeTrace, error) {
	withMemory := cfg.EnableMemory
	withStack := !cfg.DisableStack
	withStorage := !cfg.DisableStorage

	resp, err := s.mirror.GetContractOpcodes(ctx, hashOrID, withMemory, withStack, withStorage)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, rpcerr.ResourceNotFound("transaction " + hashOrID)
	}

	trace := &OpcodeTrace{
		Gas:         resp.Gas,
		Failed:      resp.Failed,
		ReturnValue: strings.TrimPrefix(resp.ReturnValue, "0x"),
		StructLogs:  make([]StructLog, 0, len(resp.Opcodes)),
	}
	for _, op := range resp.Opcodes {
		entry := StructLog{
			PC:      op.PC,
			Op:      op.Op,
			Gas:     op.Gas,
			GasCost: op.GasCost,
			Depth:   op.Depth,
			Reason:  op.Reason,
		}
		if withStack {
			stack := op.Stack
			if stack == nil {
				stack = []string{}
			}
			entry.Stack = &stack
		}
		if withMemory {
			memory := op.Memory
			if memory == nil {
				memory = []string{}
			}
			entry.Memory = &memory
		}
		if withStorage {
			storage := op.Storage
			if storage == nil {
				storage = map[string]string{}
			}
			entry.Storage = &storage
		}
		trace.StructLogs = append(trace.StructLogs, entry)
	}
	return trace, nil
}
