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

// Package rpcerr defines the closed set of JSON-RPC error kinds the
// gateway can surface. Every error carries a stable code, a message and
// an optional data payload, and is decorated with the originating
// request id before it reaches the wire.
package rpcerr

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes. Protocol codes follow JSON-RPC 2.0; validation codes
// follow the EIP-1474 conventions used by strict Ethereum clients.
const (
	CodeContractRevert    = 3
	CodeNonceTooLow       = 32001
	CodeNonceTooHigh      = 32002
	CodeInvalidArguments  = -32000
	CodeResourceNotFound  = -32001
	CodeGasLimitTooLow    = -32003
	CodeTimestampRange    = -32004
	CodeGasLimitTooHigh   = -32005
	CodeRangeTooLarge     = -32006
	CodeGasPriceTooLow    = -32009
	CodeRequestTimeout    = -32010
	CodeMissingFromBlock  = -32011
	CodeInvalidContract   = -32012
	CodeInsufficientFunds = -32014
	CodeUnsupportedChain  = -32015
	CodeValueTooLow       = -32016
	CodeUpstreamFailure   = -32020
	CodeTxSizeExceeded    = -32201
	CodeBatchDisabled     = -32202
	CodeBatchTooLarge     = -32203
	CodeCallDataExceeded  = -32204
	CodeBeyondHead        = -32521
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
	CodeRateLimitExceeded = -32605
	CodeUnsupportedTxType = -32611
	CodeParseError        = -32700
	CodeUnknownBlock      = -39012
	CodeInvalidBlockRange = -39013
)

// Error is the canonical gateway error. It satisfies the rpc error
// contracts (Error, ErrorCode, ErrorData) so it serializes unchanged
// through the JSON-RPC layer.
type Error struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) ErrorCode() int { return e.Code }

func (e *Error) ErrorData() interface{} { return e.Data }

// Is matches errors by code, so errors.Is(err, rpcerr.ErrTimeout)
// works across decorated copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

const requestIDPattern = "[Request ID: "

// Decorate prefixes the message with "[Request ID: <id>] " exactly
// once. Applying it to an already decorated error is a no-op, as is
// applying it to a message that mentions a request id anywhere.
func Decorate(e *Error, requestID string) *Error {
	if e == nil || requestID == "" || strings.Contains(e.Message, requestIDPattern) {
		return e
	}
	return &Error{
		Code:    e.Code,
		Message: fmt.Sprintf("[Request ID: %s] %s", requestID, e.Message),
		Data:    e.Data,
	}
}

// FromError extracts the gateway error from err, unwrapping as needed.
func FromError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Sentinels used with errors.Is. These carry the code only; the
// constructors below produce the user-visible instances.
var (
	ErrTimeout          = &Error{Code: CodeRequestTimeout}
	ErrResourceNotFound = &Error{Code: CodeResourceNotFound}
	ErrRateLimited      = &Error{Code: CodeRateLimitExceeded}
)

func ParseError(msg string) *Error {
	return &Error{Code: CodeParseError, Message: "Unable to parse JSON: " + msg}
}

func InvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Invalid request: " + msg}
}

func MethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("Method %s not found", method)}
}

// UnsupportedMethod is the deterministic answer for methods the gateway
// intentionally refuses (signing, mining, filters).
func UnsupportedMethod() *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Unsupported JSON-RPC method"}
}

func NotYetImplemented() *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Not yet implemented"}
}

func InvalidParameter(index int, reason string) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("Invalid parameter %d: %s", index, reason)}
}

func InvalidParameterMsg(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

func MissingRequiredParameter(index int) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("Missing value for required parameter %d", index)}
}

func Internal(msg string) *Error {
	if msg == "" {
		msg = "Unknown error invoking RPC"
	}
	return &Error{Code: CodeInternal, Message: "Internal error: " + msg}
}

func InvalidArguments(reason string) *Error {
	return &Error{Code: CodeInvalidArguments, Message: "Invalid arguments: " + reason}
}

func ResourceNotFound(what string) *Error {
	return &Error{Code: CodeResourceNotFound, Message: "Requested resource not found. " + what}
}

func UnknownBlock() *Error {
	return &Error{Code: CodeUnknownBlock, Message: "Unknown block"}
}

func RequestBeyondHead(requested, head uint64) *Error {
	return &Error{Code: CodeBeyondHead, Message: fmt.Sprintf("Request beyond head block: requested %d, head %d", requested, head)}
}

func NonceTooLow(provided, current uint64) *Error {
	return &Error{Code: CodeNonceTooLow, Message: fmt.Sprintf("Nonce too low. Provided nonce: %d, current nonce: %d", provided, current)}
}

func NonceTooHigh(provided, current uint64) *Error {
	return &Error{Code: CodeNonceTooHigh, Message: fmt.Sprintf("Nonce too high. Provided nonce: %d, current nonce: %d", provided, current)}
}

func GasLimitTooHigh(gas, max uint64) *Error {
	return &Error{Code: CodeGasLimitTooHigh, Message: fmt.Sprintf("Transaction gas limit '%d' exceeds block gas limit '%d'", gas, max)}
}

func GasLimitTooLow(gas, intrinsic uint64) *Error {
	return &Error{Code: CodeGasLimitTooLow, Message: fmt.Sprintf("Transaction gas limit provided '%d' is insufficient of intrinsic gas required '%d'", gas, intrinsic)}
}

func GasPriceTooLow(provided, minimum string) *Error {
	return &Error{Code: CodeGasPriceTooLow, Message: fmt.Sprintf("Gas price '%s' is below configured minimum gas price '%s'", provided, minimum)}
}

func InsufficientBalance() *Error {
	return &Error{Code: CodeInsufficientFunds, Message: "Insufficient funds for transfer"}
}

func ValueTooLow() *Error {
	return &Error{Code: CodeValueTooLow, Message: "Value below 10_000_000_000 wei which is 1 tinybar"}
}

func TransactionSizeExceeded(actual, max int) *Error {
	return &Error{Code: CodeTxSizeExceeded, Message: fmt.Sprintf("Oversized data: transaction size %d, transaction limit %d", actual, max)}
}

func CallDataSizeExceeded(actual, max int) *Error {
	return &Error{Code: CodeCallDataExceeded, Message: fmt.Sprintf("Oversized data: call data size %d, call data size limit %d", actual, max)}
}

func UnsupportedTransactionType() *Error {
	return &Error{Code: CodeUnsupportedTxType, Message: "Unsupported transaction type"}
}

func UnsupportedChainID(provided, expected string) *Error {
	return &Error{Code: CodeUnsupportedChain, Message: fmt.Sprintf("ChainId (%s) not supported. The correct chainId is %s", provided, expected)}
}

func InvalidContractAddress(addr string) *Error {
	msg := "Invalid contract address"
	if addr != "" {
		msg = fmt.Sprintf("Invalid contract address: %s. Expected length of 42 chars but was %d", addr, len(addr))
	}
	return &Error{Code: CodeInvalidContract, Message: msg}
}

func ReceiverSignatureRequired() *Error {
	return &Error{Code: CodeInvalidArguments, Message: "Invalid arguments: receiver account requires a signature"}
}

func RateLimitExceeded(method string) *Error {
	return &Error{Code: CodeRateLimitExceeded, Message: fmt.Sprintf("IP Rate limit exceeded on %s", method)}
}

func BatchDisabled() *Error {
	return &Error{Code: CodeBatchDisabled, Message: "Batch requests are disabled"}
}

func BatchTooLarge(amount, max int) *Error {
	return &Error{Code: CodeBatchTooLarge, Message: fmt.Sprintf("Batch request amount %d exceeds max %d", amount, max)}
}

func MethodNotAllowedInBatch(method string) *Error {
	return &Error{Code: CodeBatchDisabled, Message: fmt.Sprintf("Method %s is not permitted in batch requests", method)}
}

func MissingFromBlockParam() *Error {
	return &Error{Code: CodeMissingFromBlock, Message: "Provided toBlock parameter without specifying fromBlock"}
}

func InvalidBlockRange() *Error {
	return &Error{Code: CodeInvalidBlockRange, Message: "Invalid block range"}
}

func RangeTooLarge(max int64) *Error {
	return &Error{Code: CodeRangeTooLarge, Message: fmt.Sprintf("Exceeded maximum block range: %d", max)}
}

func TimestampRangeTooLarge(fromBlock, toBlock string, fromTS, toTS string) *Error {
	return &Error{
		Code: CodeTimestampRange,
		Message: fmt.Sprintf("The provided fromBlock and toBlock contain timestamps that exceed the maximum allowed duration of 7 days : fromBlock: %s (%s), toBlock: %s (%s)",
			fromBlock, fromTS, toBlock, toTS),
	}
}

func Timeout() *Error {
	return &Error{Code: CodeRequestTimeout, Message: "Request timeout. Retry in a few moments."}
}

// MirrorUpstream wraps a terminal mirror failure. The upstream HTTP
// status rides in Data so the HTTP layer can map it back to a status.
func MirrorUpstream(status int, detail string) *Error {
	msg := "Mirror node upstream failure"
	if detail != "" {
		msg = fmt.Sprintf("Mirror node upstream failure: %s", detail)
	}
	return &Error{Code: CodeUpstreamFailure, Message: msg, Data: UpstreamData{Status: status}}
}

// UpstreamData is the data payload of an upstream-failure error.
type UpstreamData struct {
	Status int `json:"httpStatus"`
}
