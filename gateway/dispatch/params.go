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

package dispatch

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// ParamType is the semantic type of one positional parameter.
type ParamType int

const (
	TypeAddress ParamType = iota
	TypeHex
	TypeBool
	TypeBlockNumber
	TypeBlockNumberOrHash
	TypeTransactionHash
	TypeTransactionHashOrID
	TypeCallObject
	TypeLogsFilter
	TypeTracerConfigWrapper
	TypeFloatArray
)

// Param describes one position of a method's parameter schema.
type Param struct {
	Type     ParamType
	Required bool
	// ErrMsg overrides the generic invalid-params message.
	ErrMsg string
}

// CallObject is the wire shape of a transaction call (eth_call,
// eth_estimateGas). Both data and input are accepted; Input wins when
// the two are present and differ.
type CallObject struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Data                 *string         `json:"data"`
	Input                *string         `json:"input"`
}

// Payload returns the effective call data: input when present,
// otherwise data.
func (c *CallObject) Payload() string {
	if c.Input != nil && *c.Input != "" {
		return *c.Input
	}
	if c.Data != nil {
		return *c.Data
	}
	return ""
}

// LogsFilter is the wire shape of eth_getLogs params.
type LogsFilter struct {
	BlockHash *common.Hash      `json:"blockHash"`
	FromBlock *rpc.BlockNumber  `json:"fromBlock"`
	ToBlock   *rpc.BlockNumber  `json:"toBlock"`
	Address   addressList       `json:"address"`
	Topics    []json.RawMessage `json:"topics"`
}

// addressList accepts a single address or an array of addresses.
type addressList []common.Address

func (a *addressList) UnmarshalJSON(data []byte) error {
	var one common.Address
	if err := json.Unmarshal(data, &one); err == nil {
		*a = addressList{one}
		return nil
	}
	var many []common.Address
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

// TracerConfig is the tracer-specific configuration of debug traces.
type TracerConfig struct {
	OnlyTopCall    bool `json:"onlyTopCall"`
	EnableMemory   bool `json:"enableMemory"`
	DisableStack   bool `json:"disableStack"`
	DisableStorage bool `json:"disableStorage"`
}

// TracerConfigWrapper is the second parameter of debug_trace*.
type TracerConfigWrapper struct {
	Tracer       string       `json:"tracer"`
	TracerConfig TracerConfig `json:"tracerConfig"`
}

// Tracer names accepted by the wrapper.
const (
	TracerCall     = "callTracer"
	TracerOpcode   = "opcodeLogger"
	TracerPrestate = "prestateTracer"
)

var (
	hexPattern     = regexp.MustCompile(`^0x[0-9a-fA-F]*$`)
	txIDPattern    = regexp.MustCompile(`^\d+\.\d+\.\d+[-@]\d+[-.]\d+$`)
)

// validate parses one raw positional parameter per its semantic type.
func validate(index int, p Param, raw json.RawMessage) (any, *rpcerr.Error) {
	fail := func(reason string) (any, *rpcerr.Error) {
		if p.ErrMsg != "" {
			return nil, rpcerr.InvalidParameterMsg(p.ErrMsg)
		}
		return nil, rpcerr.InvalidParameter(index, reason)
	}

	switch p.Type {
	case TypeAddress:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fail("expected a hex address string")
		}
		if len(s) != 42 || !hexPattern.MatchString(s) {
			return fail(fmt.Sprintf("%q is not a valid address", s))
		}
		return common.HexToAddress(s), nil

	case TypeHex:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || !hexPattern.MatchString(s) {
			return fail("expected a 0x-prefixed hex string")
		}
		return s, nil

	case TypeBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return fail("expected a boolean")
		}
		return b, nil

	case TypeBlockNumber:
		var bn rpc.BlockNumber
		if err := bn.UnmarshalJSON(raw); err != nil {
			return fail("expected a block number or tag")
		}
		return bn, nil

	case TypeBlockNumberOrHash:
		var bnh rpc.BlockNumberOrHash
		if err := bnh.UnmarshalJSON(raw); err != nil {
			return fail("expected a block number, hash or tag")
		}
		return bnh, nil

	case TypeTransactionHash:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fail("expected a transaction hash")
		}
		if len(s) != 66 || !hexPattern.MatchString(s) {
			return fail(fmt.Sprintf("%q is not a valid transaction hash", s))
		}
		return common.HexToHash(s), nil

	case TypeTransactionHashOrID:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fail("expected a transaction hash or id")
		}
		if len(s) == 66 && hexPattern.MatchString(s) {
			return s, nil
		}
		if txIDPattern.MatchString(s) {
			return s, nil
		}
		return fail(fmt.Sprintf("%q is not a valid transaction hash or id", s))

	case TypeCallObject:
		var c CallObject
		if err := json.Unmarshal(raw, &c); err != nil {
			return fail("expected a transaction call object")
		}
		return &c, nil

	case TypeLogsFilter:
		var f LogsFilter
		if err := json.Unmarshal(raw, &f); err != nil {
			return fail("expected a filter object")
		}
		return &f, nil

	case TypeTracerConfigWrapper:
		var w TracerConfigWrapper
		if err := json.Unmarshal(raw, &w); err != nil {
			return fail("expected a tracer config wrapper")
		}
		switch w.Tracer {
		case "", TracerCall, TracerOpcode, TracerPrestate:
		default:
			return fail(fmt.Sprintf("unknown tracer %q", w.Tracer))
		}
		return &w, nil

	case TypeFloatArray:
		var a []float64
		if err := json.Unmarshal(raw, &a); err != nil {
			return fail("expected an array of numbers")
		}
		return a, nil
	}
	return fail("unknown parameter type")
}

// renderParam flattens a validated parameter for cache keys and skip
// rules.
func renderParam(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return fmt.Sprint(t)
	case common.Address:
		return strings.ToLower(t.Hex())
	case common.Hash:
		return strings.ToLower(t.Hex())
	case rpc.BlockNumber:
		return bnString(t)
	case rpc.BlockNumberOrHash:
		if h, ok := t.Hash(); ok {
			return strings.ToLower(h.Hex())
		}
		if n, ok := t.Number(); ok {
			return bnString(n)
		}
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func bnString(bn rpc.BlockNumber) string {
	switch bn {
	case rpc.LatestBlockNumber:
		return "latest"
	case rpc.PendingBlockNumber:
		return "pending"
	case rpc.EarliestBlockNumber:
		return "earliest"
	case rpc.SafeBlockNumber:
		return "safe"
	case rpc.FinalizedBlockNumber:
		return "finalized"
	default:
		return fmt.Sprintf("0x%x", int64(bn))
	}
}
