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

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
	"github.com/hashgraph/evm-gateway/version"
)

// The gateway fronts a non-mining, uncle-free chain; a fixed set of
// methods answers with constants.

// ChainID implements eth_chainId.
func (s *Service) ChainID(ctx context.Context, args []any) (any, error) {
	return bigHex(s.cfg.ChainID), nil
}

// BlockNumber implements eth_blockNumber.
func (s *Service) BlockNumber(ctx context.Context, args []any) (any, error) {
	block, err := s.latestBlock(ctx)
	if err != nil {
		return nil, err
	}
	return numHex(block.Number), nil
}

// Syncing implements eth_syncing; the mirror is always at head.
func (s *Service) Syncing(ctx context.Context, args []any) (any, error) {
	return false, nil
}

// Mining implements eth_mining.
func (s *Service) Mining(ctx context.Context, args []any) (any, error) {
	return false, nil
}

// Hashrate implements eth_hashrate.
func (s *Service) Hashrate(ctx context.Context, args []any) (any, error) {
	return zeroHex, nil
}

// Accounts implements eth_accounts; the gateway holds no keys.
func (s *Service) Accounts(ctx context.Context, args []any) (any, error) {
	return []string{}, nil
}

// GetUncleCountByBlockHash and friends cover the uncle family; uncles
// do not exist here.

func (s *Service) GetUncleCountByBlockHash(ctx context.Context, args []any) (any, error) {
	return zeroHex, nil
}

func (s *Service) GetUncleCountByBlockNumber(ctx context.Context, args []any) (any, error) {
	return zeroHex, nil
}

func (s *Service) GetUncleByBlockHashAndIndex(ctx context.Context, args []any) (any, error) {
	return nil, nil
}

func (s *Service) GetUncleByBlockNumberAndIndex(ctx context.Context, args []any) (any, error) {
	return nil, nil
}

// NetVersion implements net_version; it mirrors the chain id in
// decimal.
func (s *Service) NetVersion(ctx context.Context, args []any) (any, error) {
	return s.cfg.ChainID.String(), nil
}

// NetListening implements net_listening.
func (s *Service) NetListening(ctx context.Context, args []any) (any, error) {
	return false, nil
}

// Web3ClientVersion implements web3_clientVersion.
func (s *Service) Web3ClientVersion(ctx context.Context, args []any) (any, error) {
	return version.ClientVersion(), nil
}

// Web3Sha3 implements web3_sha3.
func (s *Service) Web3Sha3(ctx context.Context, args []any) (any, error) {
	input, ok := args[0].(string)
	if !ok {
		return nil, rpcerr.InvalidParameter(0, "expected a 0x-prefixed hex string")
	}
	data, err := hexutil.Decode(input)
	if err != nil {
		return nil, rpcerr.InvalidParameter(0, "expected a 0x-prefixed hex string")
	}
	return hexutil.Encode(crypto.Keccak256(data)), nil
}

// Unsupported answers the documented always-unsupported methods.
func (s *Service) Unsupported(ctx context.Context, args []any) (any, error) {
	return nil, rpcerr.UnsupportedMethod()
}
