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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashgraph/evm-gateway/config"
	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/dispatch"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

func fixed(result any, err error) dispatch.Handler {
	return func(ctx context.Context, args []any) (any, error) {
		return result, err
	}
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	reg := dispatch.NewRegistry()
	reg.Register(&dispatch.Method{Name: "test_echo", Handler: fixed("ok", nil)})
	reg.Register(&dispatch.Method{Name: "test_revert", Handler: fixed(nil, rpcerr.ContractRevert("0x"))})
	reg.Register(&dispatch.Method{Name: "test_internal", Handler: fixed(nil, rpcerr.Internal("boom"))})
	reg.Register(&dispatch.Method{Name: "test_ratelimited", Handler: fixed(nil, rpcerr.RateLimitExceeded("test_ratelimited"))})
	reg.Register(&dispatch.Method{Name: "test_invalid", Handler: fixed(nil, rpcerr.InvalidParameterMsg("bad"))})
	reg.Register(&dispatch.Method{Name: "test_domain", Handler: fixed(nil, rpcerr.UnknownBlock())})
	reg.Register(&dispatch.Method{Name: "debug_traceBlockByNumber", Handler: fixed("trace", nil)})
	for _, status := range []int{404, 429, 500, 501} {
		reg.Register(&dispatch.Method{
			Name:    "test_upstream" + strconv.Itoa(status),
			Handler: fixed(nil, rpcerr.MirrorUpstream(status, "upstream")),
		})
	}
	d := dispatch.NewDispatcher(reg, cache.NewTiered(cache.NewL1(32), nil), nil, false)
	return New(cfg, d)
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *wireError      `json:"error"`
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func singleCall(method string) string {
	return `{"jsonrpc":"2.0","id":1,"method":"` + method + `","params":[]}`
}

func decodeSingle(t *testing.T, w *httptest.ResponseRecorder) wireResponse {
	t.Helper()
	var resp wireResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSingleSuccess(t *testing.T) {
	s := newTestServer(t, nil)
	w := post(t, s, singleCall("test_echo"))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeSingle(t, w)
	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, json.RawMessage("1"), resp.ID)
	assert.Equal(t, `"ok"`, string(resp.Result))
	assert.Nil(t, resp.Error)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t, nil)
	cases := []struct {
		method string
		status int
		code   int
	}{
		{"test_revert", http.StatusOK, rpcerr.CodeContractRevert},
		{"test_internal", http.StatusInternalServerError, rpcerr.CodeInternal},
		{"test_ratelimited", http.StatusTooManyRequests, rpcerr.CodeRateLimitExceeded},
		{"test_invalid", http.StatusBadRequest, rpcerr.CodeInvalidParams},
		{"test_domain", http.StatusBadRequest, rpcerr.CodeUnknownBlock},
		{"eth_bogus", http.StatusBadRequest, rpcerr.CodeMethodNotFound},
		{"test_upstream404", http.StatusBadRequest, rpcerr.CodeUpstreamFailure},
		{"test_upstream429", http.StatusTooManyRequests, rpcerr.CodeUpstreamFailure},
		{"test_upstream500", http.StatusInternalServerError, rpcerr.CodeUpstreamFailure},
		{"test_upstream501", http.StatusNotImplemented, rpcerr.CodeUpstreamFailure},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			w := post(t, s, singleCall(tc.method))
			assert.Equal(t, tc.status, w.Code)
			resp := decodeSingle(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestParseError(t *testing.T) {
	s := newTestServer(t, nil)
	w := post(t, s, `{"jsonrpc":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeSingle(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcerr.CodeParseError, resp.Error.Code)
	assert.Equal(t, json.RawMessage("null"), resp.ID)
}

func TestInvalidRequestEnvelope(t *testing.T) {
	s := newTestServer(t, nil)

	w := post(t, s, `{"jsonrpc":"1.0","id":7,"method":"test_echo"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeSingle(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcerr.CodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, json.RawMessage("7"), resp.ID)

	w = post(t, s, `{"jsonrpc":"2.0","id":8}`)
	resp = decodeSingle(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcerr.CodeInvalidRequest, resp.Error.Code)
}

func TestNonPostRejected(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/health/liveness", "/health/readiness"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestBatch(t *testing.T) {
	s := newTestServer(t, nil)
	body := `[` +
		`{"jsonrpc":"2.0","id":1,"method":"test_echo","params":[]},` +
		`{"jsonrpc":"2.0","id":2,"method":"test_internal","params":[]},` +
		`{"jsonrpc":"2.0","id":3,"method":"debug_traceBlockByNumber","params":[]}` +
		`]`
	w := post(t, s, body)

	// Batches always answer 200; failures ride inside the array.
	assert.Equal(t, http.StatusOK, w.Code)
	var resps []wireResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resps))
	require.Len(t, resps, 3)

	assert.Equal(t, `"ok"`, string(resps[0].Result))
	require.NotNil(t, resps[1].Error)
	assert.Equal(t, rpcerr.CodeInternal, resps[1].Error.Code)
	require.NotNil(t, resps[2].Error)
	assert.Equal(t, rpcerr.CodeBatchDisabled, resps[2].Error.Code)
	assert.Equal(t, json.RawMessage("3"), resps[2].ID)
}

func TestBatchDisabled(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.BatchEnabled = false })
	w := post(t, s, `[`+singleCall("test_echo")+`]`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeSingle(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcerr.CodeBatchDisabled, resp.Error.Code)
}

func TestBatchTooLarge(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.BatchMaxSize = 2 })
	calls := []string{singleCall("test_echo"), singleCall("test_echo"), singleCall("test_echo")}
	w := post(t, s, `[`+strings.Join(calls, ",")+`]`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeSingle(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpcerr.CodeBatchTooLarge, resp.Error.Code)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		trustProxy bool
		headers    map[string]string
		want       string
	}{
		{
			name:       "x-forwarded-for first entry",
			trustProxy: true,
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"},
			want:       "1.2.3.4",
		},
		{
			name:       "proxy headers ignored when untrusted",
			trustProxy: false,
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "192.0.2.1",
		},
		{
			name:       "forwarded unquoted",
			trustProxy: true,
			headers:    map[string]string{"Forwarded": "for=192.0.2.60;proto=http;by=203.0.113.43"},
			want:       "192.0.2.60",
		},
		{
			name:       "forwarded first element wins",
			trustProxy: true,
			headers:    map[string]string{"Forwarded": "for=192.0.2.43, for=198.51.100.17"},
			want:       "192.0.2.43",
		},
		{
			name:       "forwarded quoted ipv6 with port",
			trustProxy: true,
			headers:    map[string]string{"Forwarded": `For="[2001:db8:cafe::17]:4711"`},
			want:       "2001:db8:cafe::17",
		},
		{
			name:       "forwarded unquoted with port",
			trustProxy: true,
			headers:    map[string]string{"Forwarded": "for=192.0.2.60:8080"},
			want:       "192.0.2.60",
		},
		{
			name:       "x-forwarded-for wins over forwarded",
			trustProxy: true,
			headers: map[string]string{
				"X-Forwarded-For": "1.2.3.4",
				"Forwarded":       "for=192.0.2.60",
			},
			want: "1.2.3.4",
		},
		{
			name:       "oversized header falls back to peer",
			trustProxy: true,
			headers:    map[string]string{"X-Forwarded-For": strings.Repeat("1.2.3.4, ", 200)},
			want:       "192.0.2.1",
		},
		{
			name:       "overlong candidate rejected",
			trustProxy: true,
			headers:    map[string]string{"X-Forwarded-For": strings.Repeat("a", 60)},
			want:       "192.0.2.1",
		},
		{
			name:       "no headers",
			trustProxy: true,
			headers:    nil,
			want:       "192.0.2.1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(req, tc.trustProxy))
		})
	}
}
