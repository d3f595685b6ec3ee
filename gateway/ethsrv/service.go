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

// Package ethsrv implements the eth_, net_ and web3_ namespaces over
// the mirror and consensus collaborators. Handlers translate
// Ethereum-shaped requests into mirror REST lookups and consensus
// submissions and reassemble the results into Execution API shapes.
package ethsrv

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hashgraph/evm-gateway/config"
	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/consensus"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// Service is the eth-namespace implementation. One instance serves all
// requests; all state lives in the collaborators and the cache.
type Service struct {
	cfg       *config.Config
	mirror    *mirror.Client
	consensus consensus.Client
	cache     *cache.Tiered
	log       log.Logger
}

// New wires the service. consensus may be nil for read-only
// deployments; eth_sendRawTransaction then reports unsupported.
func New(cfg *config.Config, mc *mirror.Client, cc consensus.Client, tc *cache.Tiered) *Service {
	return &Service{
		cfg:       cfg,
		mirror:    mc,
		consensus: cc,
		cache:     tc,
		log:       log.New("component", "ethsrv"),
	}
}

// resolveBlock maps a block-number parameter onto the mirror block
// record. Tags latest/pending/safe/finalized resolve to the newest
// block, earliest to the oldest. Nil when the block does not exist.
func (s *Service) resolveBlock(ctx context.Context, bn rpc.BlockNumber) (*mirror.Block, error) {
	switch bn {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber, rpc.SafeBlockNumber, rpc.FinalizedBlockNumber:
		return s.mirror.GetLatestBlock(ctx)
	case rpc.EarliestBlockNumber:
		return s.mirror.GetEarliestBlock(ctx)
	default:
		if bn < 0 {
			return nil, rpcerr.InvalidParameterMsg(fmt.Sprintf("invalid block number %d", bn))
		}
		return s.mirror.GetBlock(ctx, strconv.FormatInt(int64(bn), 10))
	}
}

// resolveBlockNumberOrHash handles the EIP-1898 parameter shape.
func (s *Service) resolveBlockNumberOrHash(ctx context.Context, bnh rpc.BlockNumberOrHash) (*mirror.Block, error) {
	if hash, ok := bnh.Hash(); ok {
		return s.mirror.GetBlock(ctx, hash.Hex())
	}
	if num, ok := bnh.Number(); ok {
		return s.resolveBlock(ctx, num)
	}
	return s.mirror.GetLatestBlock(ctx)
}

// isConcreteTag reports whether bn names a moving tag rather than a
// concrete height.
func isMovingTag(bn rpc.BlockNumber) bool {
	switch bn {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber, rpc.SafeBlockNumber, rpc.FinalizedBlockNumber:
		return true
	}
	return false
}

// latestBlock fetches the head or fails with unknown-block when the
// mirror is empty.
func (s *Service) latestBlock(ctx context.Context) (*mirror.Block, error) {
	b, err := s.mirror.GetLatestBlock(ctx)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, rpcerr.UnknownBlock()
	}
	return b, nil
}
