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

package mirror

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashgraph/evm-gateway/gateway/reqctx"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		BaseURL: srv.URL + "/api/v1/",
		Retries: 2,
		Timeout: 5 * time.Second,
		PageCap: 5,
	})
	require.NoError(t, err)
	// Keep retry tests fast.
	c.http.RetryWaitMin = time.Millisecond
	c.http.RetryWaitMax = 5 * time.Millisecond
	return c, srv
}

func TestGetBlock404IsNil(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	b, err := c.GetBlock(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestRetryOn5xxThenSuccess(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"number":7,"hash":"0xdeadbeef","count":2,"timestamp":{"from":"100.0","to":"102.0"}}`))
	}))
	b, err := c.GetBlock(context.Background(), "7")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, int64(7), b.Number)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRetryBudgetExhaustedKeepsStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	_, err := c.GetBlock(context.Background(), "7")
	me, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, me.Status)
}

func TestClientErrorIsTerminal(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"_status":{"messages":[{"message":"CONTRACT_REVERT_EXECUTED","detail":"reverted","data":"0x08c379a0"}]}}`))
	}))
	_, err := c.GetContractResult(context.Background(), "0xabc")
	me, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, me.Status)
	assert.Equal(t, "CONTRACT_REVERT_EXECUTED", me.Message)
	assert.Equal(t, "0x08c379a0", me.Data)
	assert.True(t, me.IsRevert())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not retry")
}

func TestRequestIDHeaderInjected(t *testing.T) {
	var got string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{"number":1}`))
	}))
	ctx := reqctx.WithDetails(context.Background(), &reqctx.Details{RequestID: "rid-42"})
	_, err := c.GetBlock(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "rid-42", got)
}

func TestContractResultsPagination(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.Write([]byte(`{"results":[{"hash":"0x02"}],"links":{"next":null}}`))
			return
		}
		w.Write([]byte(`{"results":[{"hash":"0x01"}],"links":{"next":"/api/v1/contracts/results?page=2"}}`))
	}))
	results, err := c.GetContractResults(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "0x01", results[0].Hash)
	assert.Equal(t, "0x02", results[1].Hash)
}

func TestGetLatestAndEarliestBlock(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("order") == "desc" {
			w.Write([]byte(`{"blocks":[{"number":900}]}`))
		} else {
			w.Write([]byte(`{"blocks":[{"number":0}]}`))
		}
	}))
	latest, err := c.GetLatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(900), latest.Number)
	earliest, err := c.GetEarliestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), earliest.Number)
}

func TestDeadlinePropagation(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetBlock(ctx, "1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveEntityTypeOrder(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/contracts/0x0000000000000000000000000000000000000404":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/api/v1/tokens/0.0.1028":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/api/v1/accounts/0x0000000000000000000000000000000000000404":
			w.Write([]byte(`{"account":"0.0.1028","evm_address":"0x0000000000000000000000000000000000000404","ethereum_nonce":5}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	addr := common.HexToAddress("0x0000000000000000000000000000000000000404")
	got, err := c.ResolveEntityType(context.Background(), addr, "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, EntityAccount, got.Type)
	assert.Equal(t, int64(5), *got.Account.EthereumNonce)
}

func TestResolveEntityTypeMissing(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	got, err := c.ResolveEntityType(context.Background(), common.HexToAddress("0xdead"), "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddressToEntityID(t *testing.T) {
	id, ok := AddressToEntityID(common.HexToAddress("0x0000000000000000000000000000000000000404"))
	require.True(t, ok)
	assert.Equal(t, "0.0.1028", id)

	_, ok = AddressToEntityID(common.HexToAddress("0x71562b71999873DB5b286dF957af199Ec94617F7"))
	assert.False(t, ok)
}

func TestTimestampHelpers(t *testing.T) {
	ts := Timestamp("1700000000.000000001")
	assert.Equal(t, int64(1700000000), ts.Seconds())
	assert.True(t, Timestamp("1.5").Before(Timestamp("2.0")))
	assert.False(t, Timestamp("2.0").Before(Timestamp("1.5")))
}

func TestTinybarWeibarConversion(t *testing.T) {
	tb := big.NewInt(5)
	assert.Equal(t, "50000000000", TinybarToWeibar(tb).String())
	assert.Equal(t, "5", WeibarToTinybar(TinybarToWeibar(tb)).String())
}
