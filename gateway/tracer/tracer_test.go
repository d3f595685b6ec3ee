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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashgraph/evm-gateway/config"
	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/dispatch"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

const (
	testTxHash = "0x4a563af33c4871b51a8b108aa2fe1dd5280a30dfb7236170ae5e5e7957eb6392"
	addrA      = "0x67d8d32e9bf1a9968a5ff53b87d777aa8ebbee69"
	addrB      = "0x05fba803be258049a27b820088bab1cad2058871"
	addrC      = "0x263c584e3cb747b1b4b8d12c1b32e53f162b5cb5"
)

// fixture maps request paths to response bodies, JSON-encoded.
type fixture map[string]any

func (f fixture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := f[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestTracer(t *testing.T, routes fixture) *Service {
	t.Helper()
	srv := httptest.NewServer(routes)
	t.Cleanup(srv.Close)
	mc, err := mirror.NewClient(mirror.Config{
		BaseURL: srv.URL + "/api/v1/",
		Retries: 1,
		Timeout: 5 * time.Second,
		PageCap: 5,
	})
	require.NoError(t, err)
	cfg := config.Default()
	cfg.DebugAPIEnabled = true
	cfg.OpcodeLoggerEnabled = true
	return New(cfg, mc, cache.NewTiered(cache.NewL1(128), nil))
}

func actionsFixture(actions ...map[string]any) map[string]any {
	return map[string]any{"actions": actions, "links": map[string]any{"next": nil}}
}

func createActions() map[string]any {
	return actionsFixture(
		map[string]any{
			"call_operation_type": "CREATE",
			"call_depth":          0,
			"from":                addrA,
			"to":                  addrB,
			"gas":                 300000,
			"gas_used":            240000,
			"input":               "0x1",
			"result_data":         "0x2",
			"result_data_type":    "OUTPUT",
			"timestamp":           "1700000000.500000000",
		},
		map[string]any{
			"call_operation_type": "CREATE",
			"call_depth":          1,
			"from":                addrB,
			"to":                  addrC,
			"gas":                 189733,
			"gas_used":            75,
			"result_data_type":    "OUTPUT",
			"timestamp":           "1700000000.500000000",
		},
	)
}

func rootResult(result string) map[string]any {
	return map[string]any{
		"function_parameters": "0x1",
		"call_result":         "0x2",
		"from":                addrA,
		"to":                  addrB,
		"hash":                testTxHash,
		"result":              result,
		"timestamp":           "1700000000.500000000",
	}
}

func errCode(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	rpcErr, ok := rpcerr.FromError(err)
	require.True(t, ok)
	return rpcErr.Code
}

func TestTraceTransactionDebugDisabled(t *testing.T) {
	s := newTestTracer(t, fixture{})
	s.cfg.DebugAPIEnabled = false
	_, err := s.TraceTransaction(context.Background(), []any{testTxHash, nil})
	assert.Equal(t, rpcerr.CodeMethodNotFound, errCode(t, err))
}

func TestTraceTransactionOpcodeLoggerGate(t *testing.T) {
	s := newTestTracer(t, fixture{})
	s.cfg.OpcodeLoggerEnabled = false
	// Absent wrapper defaults to the opcode logger, which is gated.
	_, err := s.TraceTransaction(context.Background(), []any{testTxHash})
	assert.Equal(t, rpcerr.CodeMethodNotFound, errCode(t, err))
}

func TestTraceTransactionPrestateRejected(t *testing.T) {
	s := newTestTracer(t, fixture{})
	_, err := s.TraceTransaction(context.Background(), []any{
		testTxHash, &dispatch.TracerConfigWrapper{Tracer: dispatch.TracerPrestate},
	})
	assert.Equal(t, rpcerr.CodeInvalidParams, errCode(t, err))
}

func TestCallTracer(t *testing.T) {
	s := newTestTracer(t, fixture{
		"/api/v1/contracts/results/" + testTxHash + "/actions": createActions(),
		"/api/v1/contracts/results/" + testTxHash:              rootResult("SUCCESS"),
		"/api/v1/contracts/" + addrC: map[string]any{
			"contract_id":      "0.0.7001",
			"evm_address":      addrC,
			"runtime_bytecode": "0x6080",
		},
	})
	out, err := s.TraceTransaction(context.Background(), []any{
		testTxHash, &dispatch.TracerConfigWrapper{Tracer: dispatch.TracerCall},
	})
	require.NoError(t, err)
	frame, ok := out.(*CallFrame)
	require.True(t, ok)

	assert.Equal(t, "CREATE", frame.Type)
	assert.Equal(t, addrA, frame.From)
	assert.Equal(t, addrB, frame.To)
	assert.Equal(t, "0x1", frame.Input)
	assert.Equal(t, "0x2", frame.Output)
	require.Len(t, frame.Calls, 1)
	assert.Equal(t, addrC, frame.Calls[0].To)
	// The created contract's bytecode stands in for the action output.
	assert.Equal(t, "0x6080", frame.Calls[0].Output)
}

func TestCallTracerOnlyTopCall(t *testing.T) {
	s := newTestTracer(t, fixture{
		"/api/v1/contracts/results/" + testTxHash + "/actions": createActions(),
		"/api/v1/contracts/results/" + testTxHash:              rootResult("SUCCESS"),
	})
	out, err := s.TraceTransaction(context.Background(), []any{
		testTxHash, &dispatch.TracerConfigWrapper{
			Tracer:       dispatch.TracerCall,
			TracerConfig: dispatch.TracerConfig{OnlyTopCall: true},
		},
	})
	require.NoError(t, err)
	frame := out.(*CallFrame)
	assert.Nil(t, frame.Calls)

	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"calls"`)
}

// Error(string) encoding of "oops".
const revertPayload = "0x08c379a0" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"0000000000000000000000000000000000000000000000000000000000000004" +
	"6f6f707300000000000000000000000000000000000000000000000000000000"

func TestCallTracerRevert(t *testing.T) {
	result := rootResult("CONTRACT_REVERT_EXECUTED")
	result["error_message"] = revertPayload
	s := newTestTracer(t, fixture{
		"/api/v1/contracts/results/" + testTxHash + "/actions": createActions(),
		"/api/v1/contracts/results/" + testTxHash:              result,
	})
	out, err := s.TraceTransaction(context.Background(), []any{
		testTxHash, &dispatch.TracerConfigWrapper{Tracer: dispatch.TracerCall},
	})
	require.NoError(t, err)
	frame := out.(*CallFrame)
	assert.Equal(t, "execution reverted", frame.Error)
	assert.Equal(t, "oops", frame.RevertReason)
	assert.Equal(t, revertPayload, frame.Output)
}

func TestCallTracerNotFound(t *testing.T) {
	s := newTestTracer(t, fixture{})
	_, err := s.TraceTransaction(context.Background(), []any{
		testTxHash, &dispatch.TracerConfigWrapper{Tracer: dispatch.TracerCall},
	})
	assert.Equal(t, rpcerr.CodeResourceNotFound, errCode(t, err))
}

func TestOpcodeLogger(t *testing.T) {
	reason := "0x4e487b71"
	s := newTestTracer(t, fixture{
		"/api/v1/contracts/results/" + testTxHash + "/opcodes": map[string]any{
			"gas":          52139,
			"failed":       false,
			"return_value": "0x0001",
			"opcodes": []any{
				map[string]any{
					"pc": 0, "op": "PUSH1", "gas": 79000, "gas_cost": 3, "depth": 0,
					"stack":   []any{"00000000000000000000000000000000000000000000000000000000000000a0"},
					"storage": map[string]any{},
				},
				map[string]any{
					"pc": 2, "op": "REVERT", "gas": 78000, "gas_cost": 0, "depth": 0,
					"reason": reason,
				},
			},
		},
	})
	out, err := s.TraceTransaction(context.Background(), []any{testTxHash})
	require.NoError(t, err)
	trace, ok := out.(*OpcodeTrace)
	require.True(t, ok)

	assert.Equal(t, int64(52139), trace.Gas)
	assert.False(t, trace.Failed)
	assert.Equal(t, "0001", trace.ReturnValue)
	require.Len(t, trace.StructLogs, 2)
	require.NotNil(t, trace.StructLogs[0].Stack)
	assert.Len(t, *trace.StructLogs[0].Stack, 1)
	require.NotNil(t, trace.StructLogs[1].Reason)
	assert.Equal(t, reason, *trace.StructLogs[1].Reason)

	// Memory was not requested: present in the wire shape, but null.
	raw, err := json.Marshal(trace.StructLogs[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"memory":null`)
	assert.NotContains(t, string(raw), `"memory":[`)
}

func TestOpcodeLoggerDetailFlags(t *testing.T) {
	s := newTestTracer(t, fixture{
		"/api/v1/contracts/results/" + testTxHash + "/opcodes": map[string]any{
			"gas": 1, "failed": false, "return_value": "0x",
			"opcodes": []any{map[string]any{"pc": 0, "op": "STOP", "gas": 1, "gas_cost": 0, "depth": 0}},
		},
	})
	out, err := s.TraceTransaction(context.Background(), []any{
		testTxHash, &dispatch.TracerConfigWrapper{
			Tracer: dispatch.TracerOpcode,
			TracerConfig: dispatch.TracerConfig{
				EnableMemory: true,
				DisableStack: true,
			},
		},
	})
	require.NoError(t, err)
	trace := out.(*OpcodeTrace)
	require.Len(t, trace.StructLogs, 1)
	assert.Nil(t, trace.StructLogs[0].Stack)
	require.NotNil(t, trace.StructLogs[0].Memory)
	require.NotNil(t, trace.StructLogs[0].Storage)
}

func TestPrestateTracer(t *testing.T) {
	s := newTestTracer(t, fixture{
		"/api/v1/contracts/results/" + testTxHash + "/actions": createActions(),
		"/api/v1/contracts/" + addrB: map[string]any{
			"contract_id":      "0.0.7000",
			"evm_address":      addrB,
			"runtime_bytecode": "0x6080",
			"nonce":            3,
		},
		"/api/v1/balances": map[string]any{
			"balances": []any{map[string]any{"account": "0.0.7000", "balance": 25}},
		},
		"/api/v1/contracts/" + addrB + "/state": map[string]any{
			"state": []any{map[string]any{"slot": "0x1", "value": "0x2a"}},
			"links": map[string]any{"next": nil},
		},
		"/api/v1/accounts/" + addrA: map[string]any{
			"account":        "0.0.1001",
			"evm_address":    addrA,
			"ethereum_nonce": 7,
			"balance":        map[string]any{"balance": 100},
		},
	})
	out, err := s.tracePrestate(context.Background(), testTxHash, true)
	require.NoError(t, err)

	// Depth filtering keeps only the top action's two addresses.
	require.Len(t, out, 2)

	account := out[addrA]
	assert.Equal(t, weibarHex(100), account.Balance)
	assert.Equal(t, int64(7), account.Nonce)
	assert.Equal(t, "0x", account.Code)
	assert.Empty(t, account.Storage)

	contract := out[addrB]
	assert.Equal(t, weibarHex(25), contract.Balance)
	assert.Equal(t, int64(3), contract.Nonce)
	assert.Equal(t, "0x6080", contract.Code)
	assert.Equal(t, map[string]string{hash32("0x1"): hash32("0x2a")}, contract.Storage)
}

func TestTraceBlockByNumber(t *testing.T) {
	s := newTestTracer(t, fixture{
		"/api/v1/blocks/7": map[string]any{
			"number": 7,
			"count":  2,
			"timestamp": map[string]any{
				"from": "1700000000.000000000",
				"to":   "1700000001.999999999",
			},
		},
		"/api/v1/contracts/results": map[string]any{
			"results": []any{
				rootResult("SUCCESS"),
				func() map[string]any {
					r := rootResult("WRONG_NONCE")
					r["hash"] = "0x" + "11" + testTxHash[4:]
					return r
				}(),
			},
		},
		"/api/v1/contracts/results/" + testTxHash + "/actions": createActions(),
		"/api/v1/contracts/results/" + testTxHash:              rootResult("SUCCESS"),
	})
	out, err := s.TraceBlockByNumber(context.Background(), []any{rpc.BlockNumber(7), nil})
	require.NoError(t, err)
	traces, ok := out.([]BlockTrace)
	require.True(t, ok)
	require.Len(t, traces, 1)
	assert.Equal(t, testTxHash, traces[0].TxHash)
	frame, ok := traces[0].Result.(*CallFrame)
	require.True(t, ok)
	assert.Equal(t, "CREATE", frame.Type)
}

func TestTraceBlockByNumberUnknownBlock(t *testing.T) {
	s := newTestTracer(t, fixture{})
	_, err := s.TraceBlockByNumber(context.Background(), []any{rpc.BlockNumber(7), nil})
	assert.Equal(t, rpcerr.CodeUnknownBlock, errCode(t, err))
}
