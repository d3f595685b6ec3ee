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

package ethsrv

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashgraph/evm-gateway/config"
	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/consensus"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
)

// fixture maps request paths to response bodies. Values marshal to
// JSON; unknown paths answer 404.
type fixture map[string]any

func (f fixture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := f[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if h, isHandler := body.(http.Handler); isHandler {
		h.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestService(t *testing.T, routes fixture) *Service {
	t.Helper()
	return newTestServiceWith(t, routes, nil)
}

func newTestServiceWith(t *testing.T, routes fixture, cc consensus.Client) *Service {
	t.Helper()
	srv := httptest.NewServer(routes)
	t.Cleanup(srv.Close)
	mc, err := mirror.NewClient(mirror.Config{
		BaseURL: srv.URL + "/api/v1/",
		Retries: 1,
		Timeout: 5 * time.Second,
		PageCap: 5,
	})
	require.NoError(t, err)
	cfg := config.Default()
	cfg.TxReconcileRetries = 2
	cfg.TxReconcileInterval = time.Millisecond
	return New(cfg, mc, cc, cache.NewTiered(cache.NewL1(128), nil))
}

// Canonical fixtures shared across tests.

const (
	testTxHash    = "0x4a563af33c4871b51a8b108aa2fe1dd5280a30dfb7236170ae5e5e7957eb6392"
	testBlockHash = "0x3c08bbbee74d287b1dcd3f0ca6d1d2cb92c90883c4acf9747de9f3f3162ad25b"
	testAddress   = "0x67d8d32e9bf1a9968a5ff53b87d777aa8ebbee69"
	testAddress2  = "0x05fba803be258049a27b820088bab1cad2058871"
)

func feeFixture() any {
	return map[string]any{
		"fees": []map[string]any{
			{"gas": 71, "transaction_type": "ContractCall"},
			{"gas": 71, "transaction_type": "EthereumTransaction"},
		},
		"timestamp": "1700000000.000000000",
	}
}

func blockFixture(number int64, count int64) map[string]any {
	return map[string]any{
		"count":         count,
		"hash":          testBlockHash + "deadbeefdeadbeefdeadbeefdeadbeef",
		"number":        number,
		"previous_hash": testBlockHash,
		"size":          1000,
		"gas_used":      400000,
		"logs_bloom":    "0x",
		"timestamp": map[string]any{
			"from": "1700000000.000000000",
			"to":   "1700000001.999999999",
		},
	}
}

func blocksPageFixture(b map[string]any) any {
	return map[string]any{"blocks": []any{b}}
}

func resultFixture(hash string) map[string]any {
	return map[string]any{
		"address":             testAddress2,
		"amount":              0,
		"bloom":               "0x",
		"call_result":         "0x0001",
		"contract_id":         "0.0.5001",
		"from":                testAddress,
		"function_parameters": "0xa9059cbb",
		"gas_limit":           400000,
		"gas_used":            80000,
		"hash":                hash,
		"result":              "SUCCESS",
		"timestamp":           "1700000000.500000000",
		"to":                  testAddress2,
		"block_hash":          testBlockHash + "deadbeefdeadbeefdeadbeefdeadbeef",
		"block_number":        7,
		"block_gas_used":      80000,
		"transaction_index":   0,
		"chain_id":            "0x12a",
		"gas_price":           "0x",
		"max_fee_per_gas":     "0x59",
		"max_priority_fee_per_gas": "0x33",
		"nonce":               4,
		"r":                   "0x00b5c21ab4dfd336e30ac2106cad4aa8888b1873a99bce35d50f64d2ec2cc5ac6d",
		"s":                   "0x1092806a99727a20c31836959133301b65a2bfa980f9795522d21a254e629110",
		"v":                   1,
		"type":                2,
		"logs":                []any{},
	}
}
