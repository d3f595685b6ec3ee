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

// Package server is the JSON-RPC 2.0 HTTP shell: one POST endpoint,
// batch handling, the error-to-status mapping and client-ip
// extraction. Everything behind it goes through the dispatcher.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"

	"github.com/hashgraph/evm-gateway/config"
	"github.com/hashgraph/evm-gateway/gateway/dispatch"
	"github.com/hashgraph/evm-gateway/gateway/reqctx"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

const maxRequestBody = 2 << 20

// Server is the HTTP front-end.
type Server struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	log        log.Logger
}

func New(cfg *config.Config, d *dispatch.Dispatcher) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: d,
		log:        log.New("component", "server"),
	}
}

// Handler builds the full middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/readiness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", s.serveRPC)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(mux)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", srv.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// rpcRequest is one JSON-RPC 2.0 call on the wire.
type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type successResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   wireError       `json:"error"`
}

func success(id json.RawMessage, result any) any {
	return successResponse{JSONRPC: "2.0", ID: normalizeID(id), Result: result}
}

func failure(id json.RawMessage, e *rpcerr.Error) any {
	return errorResponse{JSONRPC: "2.0", ID: normalizeID(id), Error: wireError{
		Code:    e.Code,
		Message: e.Message,
		Data:    e.Data,
	}}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failure(nil, rpcerr.ParseError(err.Error())))
		return
	}

	details := reqctx.New(ClientIP(r, s.cfg.TrustProxy))
	details.Origin = r.Header.Get("Origin")
	ctx, cancel := context.WithTimeout(reqctx.WithDetails(r.Context(), details), s.cfg.RequestTimeout)
	defer cancel()

	if isBatch(body) {
		s.serveBatch(ctx, w, body)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, failure(nil, rpcerr.ParseError(err.Error())))
		return
	}
	resp, status := s.handle(ctx, &req)
	writeJSON(w, status, resp)
}

// serveBatch answers an array of calls. Batch responses always use
// HTTP 200; per-call failures ride inside the array.
func (s *Server) serveBatch(ctx context.Context, w http.ResponseWriter, body []byte) {
	if !s.cfg.BatchEnabled {
		writeJSON(w, http.StatusOK, failure(nil, rpcerr.BatchDisabled()))
		return
	}
	var reqs []rpcRequest
	if err := json.Unmarshal(body, &reqs); err != nil {
		writeJSON(w, http.StatusOK, failure(nil, rpcerr.ParseError(err.Error())))
		return
	}
	if len(reqs) > s.cfg.BatchMaxSize {
		writeJSON(w, http.StatusOK, failure(nil, rpcerr.BatchTooLarge(len(reqs), s.cfg.BatchMaxSize)))
		return
	}

	responses := make([]any, 0, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		if s.disallowedInBatch(req.Method) {
			responses = append(responses, failure(req.ID, rpcerr.MethodNotAllowedInBatch(req.Method)))
			continue
		}
		resp, _ := s.handle(ctx, req)
		responses = append(responses, resp)
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) disallowedInBatch(method string) bool {
	for _, m := range s.cfg.BatchDisallowed {
		if m == method {
			return true
		}
	}
	return false
}

// handle runs one call and maps its outcome to an HTTP status.
func (s *Server) handle(ctx context.Context, req *rpcRequest) (any, int) {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return failure(req.ID, rpcerr.InvalidRequest("expected a JSON-RPC 2.0 call")), http.StatusBadRequest
	}
	result, err := s.dispatcher.Dispatch(ctx, req.Method, req.Params)
	if err != nil {
		e, ok := rpcerr.FromError(err)
		if !ok {
			e = rpcerr.Internal(err.Error())
		}
		return failure(req.ID, e), statusFor(e)
	}
	return success(req.ID, result), http.StatusOK
}

// statusFor maps an error onto the HTTP status of a single-call
// response. Reverts are successful executions as far as HTTP is
// concerned.
func statusFor(e *rpcerr.Error) int {
	switch e.Code {
	case rpcerr.CodeContractRevert:
		return http.StatusOK
	case rpcerr.CodeInternal:
		return http.StatusInternalServerError
	case rpcerr.CodeInvalidRequest, rpcerr.CodeInvalidParams, rpcerr.CodeMethodNotFound:
		return http.StatusBadRequest
	case rpcerr.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case rpcerr.CodeUpstreamFailure:
		return upstreamStatus(e)
	default:
		return http.StatusBadRequest
	}
}

func upstreamStatus(e *rpcerr.Error) int {
	data, ok := e.Data.(rpcerr.UpstreamData)
	if !ok {
		return http.StatusInternalServerError
	}
	switch data.Status {
	case http.StatusNotFound:
		return http.StatusBadRequest
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests
	case http.StatusNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// isBatch reports whether the first significant byte opens an array.
func isBatch(body []byte) bool {
	for _, b := range bytes.TrimLeft(body, " \t\r\n") {
		return b == '['
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("response write failed", "err", err)
	}
}

// ClientIP extracts the caller's address. Proxy headers are honored
// only when trustProxy is set; X-Forwarded-For wins over the RFC 7239
// Forwarded header.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := firstForwardedFor(xff); ip != "" {
				return ip
			}
		}
		if fwd := r.Header.Get("Forwarded"); fwd != "" {
			if ip := parseForwarded(fwd); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
