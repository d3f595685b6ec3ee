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

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// CallFrame is one node of a call trace. The top-level frame carries
// the flat list of sub-calls.
type CallFrame struct {
	Type         string      `json:"type"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	Value        string      `json:"value"`
	Gas          string      `json:"gas"`
	GasUsed      string      `json:"gasUsed"`
	Input        string      `json:"input"`
	Output       string      `json:"output"`
	Error        string      `json:"error,omitempty"`
	RevertReason string      `json:"revertReason,omitempty"`
	Calls        []CallFrame `json:"calls,omitempty"`
}

// traceCall assembles a call trace from the recorded actions. The root
// record supplies the top-level input and output; sub-calls come from
// the remaining actions, flattened.
func (s *Service) traceCall(ctx context.Context, hashOrID string, onlyTopCall bool) (*CallFrame, error) {
	var (
		actions []mirror.ContractAction
		result  *mirror.ContractResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		actions, err = s.mirror.GetContractActions(gctx, hashOrID)
		return err
	})
	g.Go(func() (err error) {
		result, err = s.mirror.GetContractResult(gctx, hashOrID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if result == nil || len(actions) == 0 {
		return nil, rpcerr.ResourceNotFound("transaction " + hashOrID)
	}

	frame := s.actionFrame(ctx, &actions[0], true)
	frame.Input = dataHex(result.FunctionParameters)
	frame.Output = dataHex(result.CallResult)

	if result.Result != "SUCCESS" {
		frame.Output = dataHex(result.ErrorMessage)
		frame.Error = executionError(result.Result)
		if reason, ok := decodeRevert(result.ErrorMessage); ok {
			frame.RevertReason = reason
		}
	}

	if !onlyTopCall && len(actions) > 1 {
		frame.Calls = make([]CallFrame, 0, len(actions)-1)
		for i := range actions[1:] {
			frame.Calls = append(frame.Calls, *s.actionFrame(ctx, &actions[i+1], false))
		}
	}
	return frame, nil
}

// actionFrame renders one action. Created contracts report their
// runtime bytecode as output; the top frame's input and output are
// overwritten by the caller from the root record.
func (s *Service) actionFrame(ctx context.Context, a *mirror.ContractAction, top bool) *CallFrame {
	frame := &CallFrame{
		Type:    frameType(a),
		From:    dataHex(a.From),
		To:      dataHex(a.To),
		Value:   weibarHex(a.Value),
		Gas:     numHex(a.Gas),
		GasUsed: numHex(a.GasUsed),
		Input:   dataHex(a.Input),
		Output:  dataHex(a.ResultData),
	}
	switch a.ResultDataType {
	case "REVERT_REASON":
		frame.Error = "execution reverted"
		if reason, ok := decodeRevert(a.ResultData); ok {
			frame.RevertReason = reason
		}
	case "ERROR":
		frame.Error = strings.Trim(a.ResultData, "\"")
	}
	if !top && frame.Error == "" && frameType(a) == "CREATE" && a.To != "" {
		if contract, err := s.mirror.GetContract(ctx, strings.ToLower(a.To)); err == nil && contract != nil {
			frame.Output = dataHex(contract.RuntimeBytecode)
		}
	}
	return frame
}

func frameType(a *mirror.ContractAction) string {
	if a.CallOperationType != "" {
		return a.CallOperationType
	}
	return a.CallType
}

// executionError maps an upstream result code onto the call tracer's
// error field.
func executionError(code string) string {
	if code == "CONTRACT_REVERT_EXECUTED" {
		return "execution reverted"
	}
	return code
}

// decodeRevert extracts a readable reason from a revert payload.
func decodeRevert(payload string) (string, bool) {
	if payload == "" || payload == "0x" {
		return "", false
	}
	raw, err := hexutil.Decode(dataHex(payload))
	if err != nil {
		return "", false
	}
	return rpcerr.DecodeRevertReason(raw)
}
