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
	"context"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
)

// resolveAddress maps a long-zero address onto the entity's assigned
// EVM address when one exists. Addresses outside the long-zero range
// already are EVM addresses and pass through. Resolution failures are
// tolerated; the raw address is better than no answer.
func (s *Service) resolveAddress(ctx context.Context, address string) string {
	if address == "" || !mirror.IsLongZeroAddress(common.HexToAddress(address)) {
		return address
	}
	entity, err := s.mirror.ResolveEntityType(ctx, common.HexToAddress(address), "")
	if err != nil || entity == nil {
		return address
	}
	if evm := entity.EvmAddress(); evm != "" {
		return evm
	}
	return address
}

// resolveAddressPair resolves a from/to pair concurrently. Lookups
// share the request context so one timeout cancels both.
func (s *Service) resolveAddressPair(ctx context.Context, from, to string) (string, string, error) {
	g, gctx := errgroup.WithContext(ctx)
	var resolvedFrom, resolvedTo string
	g.Go(func() error {
		resolvedFrom = s.resolveAddress(gctx, from)
		return nil
	})
	g.Go(func() error {
		resolvedTo = s.resolveAddress(gctx, to)
		return nil
	})
	if err := g.Wait(); err != nil {
		return from, to, err
	}
	return resolvedFrom, resolvedTo, nil
}
