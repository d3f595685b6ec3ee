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

// Package consensus declares the interface the gateway consumes from
// the consensus collaborator. The SDK behind it is deliberately
// opaque: submit signed bytes, get a transaction id back.
package consensus

import (
	"context"
	"errors"
	"fmt"
)

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	TransactionID string
}

// Client is the consensus-network collaborator.
type Client interface {
	// SubmitEthereumTransaction hands the signed RLP bytes to
	// consensus. When the call data was uploaded out of band,
	// callDataFileID names the file holding it.
	SubmitEthereumTransaction(ctx context.Context, rawTx []byte, callDataFileID string) (*SubmitResult, error)

	// CreateFile uploads oversized init code to the file service.
	CreateFile(ctx context.Context, contents []byte) (fileID string, err error)

	// DeleteFile schedules a best-effort removal of an uploaded file.
	DeleteFile(ctx context.Context, fileID string) error
}

// Well-known status codes surfaced by the collaborator.
const (
	StatusWrongNonce        = "WRONG_NONCE"
	StatusTimeout           = "TIMEOUT"
	StatusConnectionDropped = "CONNECTION_DROPPED"
)

// Error is a failed or partially-failed submission. TxSubmitted marks
// the two partial-failure modes in which the transaction may still
// have reached consensus despite the error.
type Error struct {
	Status        string
	TxSubmitted   bool
	TransactionID string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("consensus submit failed: %s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("consensus submit failed: %s", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether the submission timed out or lost its
// connection mid-flight.
func (e *Error) IsTimeout() bool {
	return e.Status == StatusTimeout || e.Status == StatusConnectionDropped
}

// AsError extracts a consensus error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
