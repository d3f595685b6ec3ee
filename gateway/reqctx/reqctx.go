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

// Package reqctx carries per-request correlation data through a
// context.Context. A Details record is attached at ingress and read by
// every downstream layer for log correlation and error decoration.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// Details is the request-scoped record created at ingress. It lives for
// exactly one JSON-RPC request.
type Details struct {
	RequestID    string
	ClientIP     string
	ConnectionID string
	Origin       string
}

type ctxKey struct{}

// New creates request details with a fresh request id.
func New(clientIP string) *Details {
	return &Details{
		RequestID: uuid.NewString(),
		ClientIP:  clientIP,
	}
}

// WithDetails attaches d to ctx.
func WithDetails(ctx context.Context, d *Details) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// FromContext returns the details attached to ctx. A zero-valued record
// is returned when none is attached, so callers never nil-check.
func FromContext(ctx context.Context) *Details {
	if d, ok := ctx.Value(ctxKey{}).(*Details); ok && d != nil {
		return d
	}
	return &Details{}
}

// RequestID is a shorthand for FromContext(ctx).RequestID.
func RequestID(ctx context.Context) string {
	return FromContext(ctx).RequestID
}
