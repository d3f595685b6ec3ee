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

package rpcerr

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// revertSelector is the 4-byte selector of Error(string).
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

var stringArgs = func() abi.Arguments {
	t, _ := abi.NewType("string", "", nil)
	return abi.Arguments{{Type: t}}
}()

// DecodeRevertReason extracts a human-readable reason from a revert
// payload. It recognizes the standard Error(string) encoding first and
// falls back to any 4-byte selector followed by an ABI-encoded string.
// The second return is false when no string could be recovered.
func DecodeRevertReason(data []byte) (string, bool) {
	if len(data) < 4 {
		return "", false
	}
	if string(data[:4]) == string(revertSelector) {
		if reason, err := abi.UnpackRevert(data); err == nil {
			return reason, true
		}
		return "", false
	}
	// Custom error with a single string argument.
	vals, err := stringArgs.Unpack(data[4:])
	if err != nil || len(vals) != 1 {
		return "", false
	}
	s, ok := vals[0].(string)
	return s, ok
}

// ContractRevert builds the execution-reverted error for a raw revert
// payload (0x-prefixed or empty). The decoded reason, when present,
// replaces the payload in the message; the raw payload always rides in
// Data.
func ContractRevert(payload string) *Error {
	msg := "execution reverted"
	detail := strings.TrimPrefix(payload, "0x")
	if raw, err := hexutil.Decode(normalizeHexPayload(payload)); err == nil {
		if reason, ok := DecodeRevertReason(raw); ok {
			detail = reason
		}
	}
	if detail != "" {
		msg = "execution reverted: " + detail
	}
	return &Error{Code: CodeContractRevert, Message: msg, Data: normalizeHexPayload(payload)}
}

// ContractRevertWithReason builds the revert error from an upstream
// that reports the reason and the raw data separately.
func ContractRevertWithReason(reason, payload string) *Error {
	if reason == "" {
		return ContractRevert(payload)
	}
	return &Error{Code: CodeContractRevert, Message: "execution reverted: " + reason, Data: normalizeHexPayload(payload)}
}

func normalizeHexPayload(s string) string {
	if s == "" {
		return "0x"
	}
	if !strings.HasPrefix(s, "0x") {
		return "0x" + s
	}
	return s
}
