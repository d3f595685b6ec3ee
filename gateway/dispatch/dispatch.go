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
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/limiter"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/reqctx"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// Dispatcher validates, rate-limits, caches and invokes registered
// methods, and normalizes every failure into a decorated *rpcerr.Error.
type Dispatcher struct {
	reg     *Registry
	cache   *cache.Tiered
	limiter *limiter.Limiter
	devMode bool
	log     log.Logger
}

// NewDispatcher wires the dispatcher. cache and limiter may be nil in
// tests; both are then skipped.
func NewDispatcher(reg *Registry, c *cache.Tiered, l *limiter.Limiter, devMode bool) *Dispatcher {
	reg.Seal()
	return &Dispatcher{
		reg:     reg,
		cache:   c,
		limiter: l,
		devMode: devMode,
		log:     log.New("component", "dispatch"),
	}
}

// Dispatch executes one JSON-RPC call. The returned error, when
// non-nil, is always a *rpcerr.Error carrying the request id.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, rawParams []json.RawMessage) (any, error) {
	details := reqctx.FromContext(ctx)
	result, err := d.dispatch(ctx, method, rawParams, details)
	if err != nil {
		return nil, rpcerr.Decorate(d.normalize(method, err), details.RequestID)
	}
	// A handler may return an already-typed error as its value; it
	// enters the error pipeline all the same.
	if retErr, ok := result.(error); ok {
		return nil, rpcerr.Decorate(d.normalize(method, retErr), details.RequestID)
	}
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, method string, rawParams []json.RawMessage, details *reqctx.Details) (any, error) {
	m, ok := d.reg.Lookup(method)
	if !ok {
		return nil, classifyUnknown(method)
	}

	args, verr := d.validateParams(m, rawParams)
	if verr != nil {
		return nil, verr
	}

	rendered := make([]string, len(args))
	for i, a := range args {
		rendered[i] = renderParam(a)
	}

	cacheable := !d.devMode && d.cache != nil && m.Cache.Cacheable(rendered)
	key := ""
	if cacheable {
		key = cache.Key(m.Name, rendered...)
		if v, hit := d.cache.GetTier(ctx, key, m.Cache.Tier); hit {
			return v, nil
		}
	}

	if d.limiter != nil && d.limiter.ShouldRateLimit(ctx, details.ClientIP, m.Name, m.RateLimit) {
		return nil, rpcerr.RateLimitExceeded(m.Name)
	}

	finalArgs := applyLayout(m.Layout, args, details)
	result, err := m.Handler(ctx, finalArgs)
	if err != nil {
		return nil, err
	}
	if retErr, ok := result.(error); ok {
		return nil, retErr
	}

	if cacheable {
		if encoded, err := json.Marshal(result); err == nil {
			d.cache.SetTier(ctx, key, encoded, m.Cache.TTL, m.Cache.Tier)
			return json.RawMessage(encoded), nil
		}
	}
	return result, nil
}

func (d *Dispatcher) validateParams(m *Method, rawParams []json.RawMessage) ([]any, *rpcerr.Error) {
	if len(rawParams) > len(m.Params) {
		return nil, rpcerr.InvalidParameterMsg("Too many parameters")
	}
	args := make([]any, 0, len(m.Params))
	for i, p := range m.Params {
		if i >= len(rawParams) || len(rawParams[i]) == 0 || string(rawParams[i]) == "null" {
			if p.Required {
				if p.ErrMsg != "" {
					return nil, rpcerr.InvalidParameterMsg(p.ErrMsg)
				}
				return nil, rpcerr.MissingRequiredParameter(i)
			}
			args = append(args, nil)
			continue
		}
		v, verr := validate(i, p, rawParams[i])
		if verr != nil {
			return nil, verr
		}
		args = append(args, v)
	}
	return args, nil
}

func applyLayout(l Layout, args []any, details *reqctx.Details) []any {
	switch l.Kind {
	case LayoutContextOnly:
		return []any{details}
	case LayoutCustom:
		if l.Rearrange != nil {
			return l.Rearrange(args, details)
		}
		return args
	default:
		return append(args, details)
	}
}

// classifyUnknown maps unregistered method names onto error kinds by
// namespace.
func classifyUnknown(method string) *rpcerr.Error {
	switch {
	case strings.HasPrefix(method, "engine_"):
		return rpcerr.UnsupportedMethod()
	case strings.HasPrefix(method, "trace_"), strings.HasPrefix(method, "debug_"):
		return rpcerr.NotYetImplemented()
	default:
		return rpcerr.MethodNotFound(method)
	}
}

// normalize folds every error shape into the canonical taxonomy.
// Mirror errors are preserved through internal layers and wrapped only
// here, at the dispatcher boundary.
func (d *Dispatcher) normalize(method string, err error) *rpcerr.Error {
	if e, ok := rpcerr.FromError(err); ok {
		return e
	}
	if me, ok := mirror.AsError(err); ok {
		return rpcerr.MirrorUpstream(me.Status, me.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return rpcerr.Timeout()
	}
	d.log.Error("unhandled handler failure", "method", method, "err", err)
	return rpcerr.Internal(err.Error())
}
