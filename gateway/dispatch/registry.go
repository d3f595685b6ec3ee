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

// Package dispatch is the method registry and dispatcher: declarative
// parameter schemas, parameter layouts, per-method cache policies and
// rate limits, and error normalization. Handlers are plain functions;
// every behavior a handler does not implement itself lives in its
// Method descriptor.
package dispatch

import (
	"context"
	"fmt"

	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/reqctx"
)

// Handler is the uniform method handler signature. args are the
// validated positional parameters after layout application.
type Handler func(ctx context.Context, args []any) (any, error)

// LayoutKind selects how validated params are arranged before the
// handler call.
type LayoutKind int

const (
	// LayoutDefault appends the request details after the params.
	LayoutDefault LayoutKind = iota
	// LayoutContextOnly drops the params; the handler receives the
	// request details alone.
	LayoutContextOnly
	// LayoutCustom applies Rearrange to the validated params.
	LayoutCustom
)

// Layout is the tagged parameter-arrangement variant.
type Layout struct {
	Kind      LayoutKind
	Rearrange func(args []any, details *reqctx.Details) []any
}

// Method is the immutable descriptor of one RPC method.
type Method struct {
	Name    string
	Handler Handler
	Params  []Param
	Layout  Layout
	Cache   *cache.Policy
	// RateLimit overrides the tier-default threshold when positive.
	RateLimit int
}

// Registry maps method names to descriptors. It is populated once at
// startup and immutable afterwards; lookups need no locking.
type Registry struct {
	methods map[string]*Method
	sealed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]*Method)}
}

// Register adds a method descriptor. Registering after Seal or
// registering a duplicate name panics: both are wiring bugs.
func (r *Registry) Register(m *Method) {
	if r.sealed {
		panic(fmt.Sprintf("dispatch: register %s after seal", m.Name))
	}
	if _, dup := r.methods[m.Name]; dup {
		panic(fmt.Sprintf("dispatch: duplicate method %s", m.Name))
	}
	if m.Handler == nil {
		panic(fmt.Sprintf("dispatch: method %s has no handler", m.Name))
	}
	r.methods[m.Name] = m
}

// Seal freezes the registry.
func (r *Registry) Seal() { r.sealed = true }

// Lookup returns the descriptor for a method name.
func (r *Registry) Lookup(name string) (*Method, bool) {
	m, ok := r.methods[name]
	return m, ok
}

// Methods returns the registered method names (for diagnostics).
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for n := range r.methods {
		names = append(names, n)
	}
	return names
}
