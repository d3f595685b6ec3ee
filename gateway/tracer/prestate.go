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

package tracer

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

const prestateCacheTTL = time.Hour

// PrestateAccount is the pre-execution view of one touched address.
type PrestateAccount struct {
	Balance string            `json:"balance"`
	Nonce   int64             `json:"nonce"`
	Code    string            `json:"code"`
	Storage map[string]string `json:"storage"`
}

// touchedAddress is one address the trace touched, with the consensus
// timestamp scoping its historical lookups.
type touchedAddress struct {
	address string
	ts      mirror.Timestamp
}

// tracePrestate reconstructs the state of every address the
// transaction touched, as of the transaction's consensus timestamp.
func (s *Service) tracePrestate(ctx context.Context, hashOrID string, onlyTopCall bool) (map[string]PrestateAccount, error) {
	key := cache.Key("debug_prestate", hashOrID, strconv.FormatBool(onlyTopCall))
	if s.cache != nil {
		if raw, ok := s.cache.GetTier(ctx, key, cache.TierShared); ok {
			var cached map[string]PrestateAccount
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	actions, err := s.mirror.GetContractActions(ctx, hashOrID)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, rpcerr.ResourceNotFound("transaction " + hashOrID)
	}

	touched := collectTouched(actions, onlyTopCall)
	entries := make([]*PrestateAccount, len(touched))
	g, gctx := errgroup.WithContext(ctx)
	for i := range touched {
		i := i
		g.Go(func() error {
			entry, err := s.prestateEntry(gctx, touched[i])
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]PrestateAccount, len(touched))
	for i, t := range touched {
		if entries[i] != nil {
			out[t.address] = *entries[i]
		}
	}
	if s.cache != nil {
		if raw, merr := json.Marshal(out); merr == nil {
			s.cache.SetTier(ctx, key, raw, prestateCacheTTL, cache.TierShared)
		}
	}
	return out, nil
}

// collectTouched extracts the unique caller and recipient addresses,
// in first-seen order.
func collectTouched(actions []mirror.ContractAction, onlyTopCall bool) []touchedAddress {
	var out []touchedAddress
	seen := make(map[string]bool)
	add := func(address string, ts mirror.Timestamp) {
		address = strings.ToLower(address)
		if address == "" || seen[address] {
			return
		}
		seen[address] = true
		out = append(out, touchedAddress{address: address, ts: ts})
	}
	for i := range actions {
		a := &actions[i]
		if onlyTopCall && a.CallDepth != 0 {
			continue
		}
		add(a.From, a.Timestamp)
		add(a.To, a.Timestamp)
	}
	return out
}

// prestateEntry resolves one touched address. Tokens and unknown
// entities contribute nothing.
func (s *Service) prestateEntry(ctx context.Context, t touchedAddress) (*PrestateAccount, error) {
	entity, err := s.mirror.ResolveEntityType(ctx, common.HexToAddress(t.address), t.ts)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}
	switch entity.Type {
	case mirror.EntityContract:
		return s.contractPrestate(ctx, t, entity.Contract)
	case mirror.EntityAccount:
		nonce := int64(0)
		if entity.Account.EthereumNonce != nil {
			nonce = *entity.Account.EthereumNonce
		}
		return &PrestateAccount{
			Balance: weibarHex(entity.Account.Balance.Balance),
			Nonce:   nonce,
			Code:    "0x",
			Storage: map[string]string{},
		}, nil
	default:
		return nil, nil
	}
}

func (s *Service) contractPrestate(ctx context.Context, t touchedAddress, contract *mirror.Contract) (*PrestateAccount, error) {
	var (
		balance int64
		slots   []mirror.StateSlot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, _, err := s.mirror.GetBalanceAtTimestamp(gctx, contract.ContractID, t.ts)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	g.Go(func() (err error) {
		slots, err = s.mirror.GetContractState(gctx, t.address, t.ts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	storage := make(map[string]string, len(slots))
	for _, slot := range slots {
		storage[hash32(slot.Slot)] = hash32(slot.Value)
	}
	return &PrestateAccount{
		Balance: weibarHex(balance),
		Nonce:   contract.Nonce,
		Code:    dataHex(contract.RuntimeBytecode),
		Storage: storage,
	}, nil
}
