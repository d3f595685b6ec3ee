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

// Package mirror is the typed REST client for the mirror collaborator.
// Upstream 404s normalize to nil results, 429/5xx retry with bounded
// backoff, and everything else surfaces as a typed *Error preserving
// the upstream HTTP status.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/hashgraph/evm-gateway/gateway/reqctx"
)

// Error is a terminal mirror failure carrying the final HTTP status.
type Error struct {
	Status  int
	Message string
	Detail  string
	Data    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mirror upstream failure: status %d", e.Status)
	}
	return fmt.Sprintf("mirror upstream failure: status %d: %s", e.Status, e.Message)
}

// IsRevert reports whether the failure is a contract revert reported
// by the mirror's contract-call endpoint.
func (e *Error) IsRevert() bool {
	return e.Message == "CONTRACT_REVERT_EXECUTED" || strings.Contains(e.Detail, "reverted")
}

type statusBody struct {
	Status struct {
		Messages []struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
			Data    string `json:"data"`
		} `json:"messages"`
	} `json:"_status"`
}

// Config are the mirror client knobs.
type Config struct {
	BaseURL string
	Retries int
	Timeout time.Duration
	PageCap int
}

// Client is the typed mirror REST client. Safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *retryablehttp.Client
	pageCap int
	log     log.Logger
}

// NewClient builds a mirror client with bounded retry on 429/5xx.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mirror url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, nil
	}
	// Hand the final response back so the status can be preserved.
	rc.ErrorHandler = func(resp *http.Response, err error, _ int) (*http.Response, error) {
		return resp, err
	}
	pageCap := cfg.PageCap
	if pageCap <= 0 {
		pageCap = 20
	}
	return &Client{
		base:    base,
		http:    rc,
		pageCap: pageCap,
		log:     log.New("component", "mirror"),
	}, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path += path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// get issues a GET and decodes a 2xx body into out. The found return
// is false on upstream 404 (entity absence is not an error here).
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) (bool, error) {
	return c.do(ctx, http.MethodGet, c.endpoint(path, q), nil, out)
}

// getURL is get for a pre-built URL (pagination links).
func (c *Client) getURL(ctx context.Context, full string, out any) (bool, error) {
	return c.do(ctx, http.MethodGet, full, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) (bool, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return false, err
	}
	return c.do(ctx, http.MethodPost, c.endpoint(path, nil), buf, out)
}

func (c *Client) do(ctx context.Context, method, full string, body []byte, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return false, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := reqctx.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.log.Warn("mirror request failed", "method", method, "url", full, "err", err)
		return false, &Error{Status: status, Message: "retry budget exhausted"}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return true, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, &Error{Status: resp.StatusCode, Message: "malformed response body", Detail: err.Error()}
		}
		return true, nil
	default:
		return false, c.errorFrom(resp)
	}
}

func (c *Client) errorFrom(resp *http.Response) *Error {
	e := &Error{Status: resp.StatusCode}
	var body statusBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		if msgs := body.Status.Messages; len(msgs) > 0 {
			e.Message = msgs[0].Message
			e.Detail = msgs[0].Detail
			e.Data = msgs[0].Data
		}
	}
	return e
}

// AsError extracts a mirror error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

type links struct {
	Next *string `json:"next"`
}

// collectPages follows links.next up to the page cap. fetch decodes
// one page at the given URL and returns the next link (or nil).
func (c *Client) collectPages(ctx context.Context, first string, fetch func(ctx context.Context, u string) (*string, error)) error {
	u := first
	for page := 0; page < c.pageCap; page++ {
		next, err := fetch(ctx, u)
		if err != nil {
			return err
		}
		if next == nil || *next == "" {
			return nil
		}
		// Links are absolute paths rooted at the API host.
		abs := *c.base
		abs.Path = ""
		abs.RawQuery = ""
		u = strings.TrimSuffix(abs.String(), "/") + *next
	}
	c.log.Warn("pagination cap reached", "url", first, "cap", c.pageCap)
	return nil
}

// --- blocks ---

type blocksPage struct {
	Blocks []Block `json:"blocks"`
	Links  links   `json:"links"`
}

// GetBlock fetches a block by hash or number. Nil when absent.
func (c *Client) GetBlock(ctx context.Context, hashOrNumber string) (*Block, error) {
	var b Block
	found, err := c.get(ctx, "blocks/"+hashOrNumber, nil, &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// GetLatestBlock returns the newest block known to the mirror.
func (c *Client) GetLatestBlock(ctx context.Context) (*Block, error) {
	return c.getEdgeBlock(ctx, "desc")
}

// GetEarliestBlock returns the oldest block known to the mirror.
func (c *Client) GetEarliestBlock(ctx context.Context) (*Block, error) {
	return c.getEdgeBlock(ctx, "asc")
}

func (c *Client) getEdgeBlock(ctx context.Context, order string) (*Block, error) {
	q := url.Values{"order": {order}, "limit": {"1"}}
	var page blocksPage
	found, err := c.get(ctx, "blocks", q, &page)
	if err != nil || !found || len(page.Blocks) == 0 {
		return nil, err
	}
	return &page.Blocks[0], nil
}

// --- contract results ---

type contractResultsPage struct {
	Results []ContractResult `json:"results"`
	Links   links            `json:"links"`
}

// GetContractResult fetches the detailed execution record for a
// transaction hash or id. Nil when absent.
func (c *Client) GetContractResult(ctx context.Context, hashOrID string) (*ContractResult, error) {
	var r ContractResult
	found, err := c.get(ctx, "contracts/results/"+hashOrID, nil, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// GetContractResults lists execution records matching q, following
// pagination.
func (c *Client) GetContractResults(ctx context.Context, q url.Values) ([]ContractResult, error) {
	if q == nil {
		q = url.Values{}
	}
	if q.Get("limit") == "" {
		q.Set("limit", "100")
	}
	var all []ContractResult
	err := c.collectPages(ctx, c.endpoint("contracts/results", q), func(ctx context.Context, u string) (*string, error) {
		var page contractResultsPage
		if _, err := c.getURL(ctx, u, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		return page.Links.Next, nil
	})
	return all, err
}

// GetContractResultsByRange lists execution records inside a block's
// consensus interval, in ascending transaction-index order.
func (c *Client) GetContractResultsByRange(ctx context.Context, r TimestampRange) ([]ContractResult, error) {
	q := url.Values{"timestamp": FormatTimestampRangeQuery(r), "order": {"asc"}}
	return c.GetContractResults(ctx, q)
}

// --- logs ---

type logsPage struct {
	Logs  []Log `json:"logs"`
	Links links `json:"links"`
}

// GetContractResultsLogs lists logs matching q across all contracts.
func (c *Client) GetContractResultsLogs(ctx context.Context, q url.Values) ([]Log, error) {
	return c.pagedLogs(ctx, "contracts/results/logs", q)
}

// GetContractLogsByAddress lists logs emitted by one contract.
func (c *Client) GetContractLogsByAddress(ctx context.Context, address string, q url.Values) ([]Log, error) {
	return c.pagedLogs(ctx, "contracts/"+address+"/results/logs", q)
}

func (c *Client) pagedLogs(ctx context.Context, path string, q url.Values) ([]Log, error) {
	if q == nil {
		q = url.Values{}
	}
	if q.Get("limit") == "" {
		q.Set("limit", "100")
	}
	var all []Log
	err := c.collectPages(ctx, c.endpoint(path, q), func(ctx context.Context, u string) (*string, error) {
		var page logsPage
		if _, err := c.getURL(ctx, u, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Logs...)
		return page.Links.Next, nil
	})
	return all, err
}

// --- actions and opcodes ---

type actionsPage struct {
	Actions []ContractAction `json:"actions"`
	Links   links            `json:"links"`
}

// GetContractActions lists the EVM actions of a transaction in index
// order.
func (c *Client) GetContractActions(ctx context.Context, hash string) ([]ContractAction, error) {
	q := url.Values{"limit": {"100"}}
	var all []ContractAction
	found := false
	err := c.collectPages(ctx, c.endpoint("contracts/results/"+hash+"/actions", q), func(ctx context.Context, u string) (*string, error) {
		var page actionsPage
		ok, err := c.getURL(ctx, u, &page)
		if err != nil {
			return nil, err
		}
		found = found || ok
		all = append(all, page.Actions...)
		return page.Links.Next, nil
	})
	if err != nil || !found {
		return nil, err
	}
	return all, nil
}

// GetContractOpcodes fetches the opcode trace of a transaction with
// the requested detail categories. Nil when the trace is absent.
func (c *Client) GetContractOpcodes(ctx context.Context, hash string, memory, stack, storage bool) (*OpcodesResponse, error) {
	q := url.Values{
		"memory":  {fmt.Sprint(memory)},
		"stack":   {fmt.Sprint(stack)},
		"storage": {fmt.Sprint(storage)},
	}
	var r OpcodesResponse
	found, err := c.get(ctx, "contracts/results/"+hash+"/opcodes", q, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// --- accounts, contracts, tokens ---

// GetAccount fetches an account by id, alias or EVM address,
// optionally as of a historical timestamp. Nil when absent.
func (c *Client) GetAccount(ctx context.Context, idOrAlias string, ts Timestamp) (*Account, error) {
	q := url.Values{"limit": {"1"}}
	if ts != "" {
		q.Set("timestamp", "lte:"+string(ts))
	}
	var a Account
	found, err := c.get(ctx, "accounts/"+idOrAlias, q, &a)
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

type accountPage struct {
	Account
	Links links `json:"links"`
}

// GetAccountTransfersSince returns the account record together with
// every transaction touching it after the given timestamp, following
// pagination. Used to roll a live balance back to a recent block.
func (c *Client) GetAccountTransfersSince(ctx context.Context, idOrAlias string, after Timestamp) (*Account, []Transaction, error) {
	q := url.Values{
		"limit":     {"100"},
		"order":     {"desc"},
		"timestamp": {"gt:" + string(after)},
	}
	var (
		acct *Account
		txs  []Transaction
	)
	err := c.collectPages(ctx, c.endpoint("accounts/"+idOrAlias, q), func(ctx context.Context, u string) (*string, error) {
		var page struct {
			Account
			Transactions []Transaction `json:"transactions"`
			Links        links         `json:"links"`
		}
		found, err := c.getURL(ctx, u, &page)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		if acct == nil {
			a := page.Account
			acct = &a
		}
		txs = append(txs, page.Transactions...)
		return page.Links.Next, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return acct, txs, nil
}

// GetContract fetches a contract by id or EVM address. Nil when
// absent.
func (c *Client) GetContract(ctx context.Context, idOrAddress string) (*Contract, error) {
	var r Contract
	found, err := c.get(ctx, "contracts/"+idOrAddress, nil, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// GetTokenByID fetches a token record. Nil when absent.
func (c *Client) GetTokenByID(ctx context.Context, tokenID string) (*Token, error) {
	var r Token
	found, err := c.get(ctx, "tokens/"+tokenID, nil, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// --- balances and state ---

type balancesPage struct {
	Timestamp Timestamp `json:"timestamp"`
	Balances  []struct {
		Account string `json:"account"`
		Balance int64  `json:"balance"`
	} `json:"balances"`
}

// GetBalanceAtTimestamp returns the account's tinybar balance at ts,
// or (0, false, nil) when the mirror has no snapshot for it.
func (c *Client) GetBalanceAtTimestamp(ctx context.Context, idOrAddress string, ts Timestamp) (int64, bool, error) {
	q := url.Values{"account.id": {idOrAddress}}
	if ts != "" {
		q.Set("timestamp", "lte:"+string(ts))
	}
	var page balancesPage
	found, err := c.get(ctx, "balances", q, &page)
	if err != nil || !found || len(page.Balances) == 0 {
		return 0, false, err
	}
	return page.Balances[0].Balance, true, nil
}

type statePage struct {
	State []StateSlot `json:"state"`
	Links links       `json:"links"`
}

// GetContractState lists a contract's storage as of ts.
func (c *Client) GetContractState(ctx context.Context, idOrAddress string, ts Timestamp) ([]StateSlot, error) {
	q := url.Values{"limit": {"100"}}
	if ts != "" {
		q.Set("timestamp", string(ts))
	}
	var all []StateSlot
	err := c.collectPages(ctx, c.endpoint("contracts/"+idOrAddress+"/state", q), func(ctx context.Context, u string) (*string, error) {
		var page statePage
		if _, err := c.getURL(ctx, u, &page); err != nil {
			return nil, err
		}
		all = append(all, page.State...)
		return page.Links.Next, nil
	})
	return all, err
}

// GetContractStateSlot reads one storage slot of a contract as of ts.
// Empty when the slot was never written.
func (c *Client) GetContractStateSlot(ctx context.Context, idOrAddress, slot string, ts Timestamp) (string, error) {
	q := url.Values{"slot": {slot}, "limit": {"1"}}
	if ts != "" {
		q.Set("timestamp", string(ts))
	}
	var page statePage
	found, err := c.get(ctx, "contracts/"+idOrAddress+"/state", q, &page)
	if err != nil || !found || len(page.State) == 0 {
		return "", err
	}
	return page.State[0].Value, nil
}

// --- network ---

// GetNetworkFees returns the fee schedule, optionally as of a
// historical timestamp. Nil when the mirror has no schedule.
func (c *Client) GetNetworkFees(ctx context.Context, ts Timestamp) (*NetworkFees, error) {
	q := url.Values{}
	if ts != "" {
		q.Set("timestamp", "lte:"+string(ts))
		q.Set("order", "desc")
	}
	var r NetworkFees
	found, err := c.get(ctx, "network/fees", q, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// GetNetworkExchangeRate returns the hbar/cent exchange rate record.
func (c *Client) GetNetworkExchangeRate(ctx context.Context, ts Timestamp) (*ExchangeRate, error) {
	q := url.Values{}
	if ts != "" {
		q.Set("timestamp", string(ts))
	}
	var r ExchangeRate
	found, err := c.get(ctx, "network/exchangerate", q, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// --- transactions ---

type transactionsPage struct {
	Transactions []Transaction `json:"transactions"`
	Links        links         `json:"links"`
}

// GetAccountEthereumTransactions lists ethereum-type consensus
// transactions for an account at or before ts, newest first, bounded
// by limit.
func (c *Client) GetAccountEthereumTransactions(ctx context.Context, accountID string, ts Timestamp, limit int) ([]Transaction, error) {
	q := url.Values{
		"account.id":      {accountID},
		"transactiontype": {"ETHEREUMTRANSACTION"},
		"order":           {"desc"},
		"limit":           {fmt.Sprint(limit)},
	}
	if ts != "" {
		q.Set("timestamp", "lte:"+string(ts))
	}
	var page transactionsPage
	found, err := c.get(ctx, "transactions", q, &page)
	if err != nil || !found {
		return nil, err
	}
	return page.Transactions, nil
}

// --- contract call ---

// PostContractCall executes or estimates a contract call through the
// mirror's EVM. Errors (including reverts) surface as *Error.
func (c *Client) PostContractCall(ctx context.Context, req *ContractCallRequest) (*ContractCallResponse, error) {
	var r ContractCallResponse
	found, err := c.post(ctx, "contracts/call", req, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		// A 404 here means the target contract does not exist.
		return nil, nil
	}
	return &r, nil
}
