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
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// GetBalance implements eth_getBalance. Recent historical blocks
// precede the mirror's balance snapshots; those are answered by rolling
// the live balance back through the transfers that happened since.
func (s *Service) GetBalance(ctx context.Context, args []any) (any, error) {
	address := args[0].(common.Address)
	bnh := args[1].(rpc.BlockNumberOrHash)
	hexAddr := strings.ToLower(address.Hex())

	if num, ok := bnh.Number(); ok {
		if isMovingTag(num) {
			return s.liveBalance(ctx, hexAddr)
		}
		if num == rpc.EarliestBlockNumber {
			earliest, err := s.mirror.GetEarliestBlock(ctx)
			if err != nil {
				return nil, err
			}
			if earliest != nil && earliest.Number > 1 {
				return nil, rpcerr.Internal("earliest block is not genesis; historical state unavailable")
			}
			return zeroHex, nil
		}
	}

	block, err := s.resolveBlockNumberOrHash(ctx, bnh)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, rpcerr.UnknownBlock()
	}
	latest, err := s.latestBlock(ctx)
	if err != nil {
		return nil, err
	}
	if block.Number >= latest.Number {
		return s.liveBalance(ctx, hexAddr)
	}

	age := latest.Timestamp.From.Time().Sub(block.Timestamp.To.Time())
	if age <= s.cfg.BalanceRefreshWindow {
		return s.rolledBackBalance(ctx, hexAddr, block.Timestamp.To)
	}

	tinybar, found, err := s.mirror.GetBalanceAtTimestamp(ctx, hexAddr, block.Timestamp.To)
	if err != nil {
		return nil, err
	}
	if !found {
		return zeroHex, nil
	}
	return weibarHexFromTinybar(tinybar), nil
}

func (s *Service) liveBalance(ctx context.Context, hexAddr string) (any, error) {
	account, err := s.mirror.GetAccount(ctx, hexAddr, "")
	if err != nil {
		return nil, err
	}
	if account == nil {
		return zeroHex, nil
	}
	return weibarHexFromTinybar(account.Balance.Balance), nil
}

// rolledBackBalance reconstructs a balance at a recent timestamp by
// subtracting every signed transfer applied after it.
func (s *Service) rolledBackBalance(ctx context.Context, hexAddr string, at mirror.Timestamp) (any, error) {
	account, txs, err := s.mirror.GetAccountTransfersSince(ctx, hexAddr, at)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return zeroHex, nil
	}
	balance := account.Balance.Balance
	for i := range txs {
		for _, transfer := range txs[i].Transfers {
			if transfer.Account == account.Account {
				balance -= transfer.Amount
			}
		}
	}
	if balance < 0 {
		balance = 0
	}
	return weibarHexFromTinybar(balance), nil
}

// GetTransactionCount implements eth_getTransactionCount.
func (s *Service) GetTransactionCount(ctx context.Context, args []any) (any, error) {
	address := args[0].(common.Address)
	bn := args[1].(rpc.BlockNumber)
	hexAddr := strings.ToLower(address.Hex())

	if isMovingTag(bn) {
		return s.liveNonce(ctx, hexAddr)
	}
	if bn == rpc.EarliestBlockNumber {
		earliest, err := s.mirror.GetEarliestBlock(ctx)
		if err != nil {
			return nil, err
		}
		if earliest != nil && earliest.Number > 1 {
			return nil, rpcerr.Internal("earliest block is not genesis; historical state unavailable")
		}
		return zeroHex, nil
	}
	if bn == 0 || bn == 1 {
		return zeroHex, nil
	}

	block, err := s.resolveBlock(ctx, bn)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, rpcerr.UnknownBlock()
	}
	latest, err := s.latestBlock(ctx)
	if err != nil {
		return nil, err
	}
	// Recent blocks are close enough to live state.
	if latest.Number-block.Number <= s.cfg.MaxBlockRange {
		return s.liveNonce(ctx, hexAddr)
	}
	return s.historicalNonce(ctx, hexAddr, block.Timestamp.To)
}

func (s *Service) liveNonce(ctx context.Context, hexAddr string) (any, error) {
	account, err := s.mirror.GetAccount(ctx, hexAddr, "")
	if err != nil {
		return nil, err
	}
	if account == nil {
		return zeroHex, nil
	}
	if account.EthereumNonce == nil {
		// Contracts from before nonce tracking report null; they have
		// deployed exactly once.
		return "0x1", nil
	}
	return numHex(*account.EthereumNonce), nil
}

// historicalNonce reconstructs a nonce from the account's ethereum
// transaction history at a timestamp.
func (s *Service) historicalNonce(ctx context.Context, hexAddr string, at mirror.Timestamp) (any, error) {
	account, err := s.mirror.GetAccount(ctx, hexAddr, "")
	if err != nil {
		return nil, err
	}
	if account == nil {
		return zeroHex, nil
	}
	txs, err := s.mirror.GetAccountEthereumTransactions(ctx, account.Account, at, 2)
	if err != nil {
		return nil, err
	}
	switch {
	case len(txs) == 0:
		return zeroHex, nil
	case len(txs) == 1:
		return "0x1", nil
	}
	result, err := s.mirror.GetContractResult(ctx, txs[0].TransactionID)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Nonce == nil {
		return s.liveNonce(ctx, hexAddr)
	}
	if !strings.EqualFold(result.From, hexAddr) {
		// The fee payer differs from the signer; the record cannot
		// anchor this account's nonce.
		s.log.Warn("historical nonce signer mismatch", "account", hexAddr, "from", result.From)
		return s.liveNonce(ctx, hexAddr)
	}
	return numHex(*result.Nonce + 1), nil
}

// GetCode implements eth_getCode.
func (s *Service) GetCode(ctx context.Context, args []any) (any, error) {
	address := args[0].(common.Address)
	bn := args[1].(rpc.BlockNumber)
	hexAddr := strings.ToLower(address.Hex())

	if hexAddr == htsAddress {
		return invalidOpcodeSentinel, nil
	}

	entity, err := s.mirror.ResolveEntityType(ctx, address, "")
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return "0x", nil
	}
	switch entity.Type {
	case mirror.EntityToken:
		return redirectBytecodeFor(hexAddr), nil
	case mirror.EntityContract:
		if !isMovingTag(bn) && bn >= 0 {
			block, err := s.resolveBlock(ctx, bn)
			if err != nil {
				return nil, err
			}
			if block == nil {
				return nil, rpcerr.UnknownBlock()
			}
			if block.Timestamp.To.Before(entity.Contract.CreatedTimestamp) {
				return "0x", nil
			}
		}
		if code := entity.Contract.RuntimeBytecode; code != "" && code != "0x" {
			return dataHex(code), nil
		}
		return "0x", nil
	default:
		return "0x", nil
	}
}

// GetStorageAt implements eth_getStorageAt.
func (s *Service) GetStorageAt(ctx context.Context, args []any) (any, error) {
	address := args[0].(common.Address)
	slot := args[1].(string)
	bnh := args[2].(rpc.BlockNumberOrHash)
	hexAddr := strings.ToLower(address.Hex())

	ts := mirror.Timestamp("")
	if num, ok := bnh.Number(); !ok || !isMovingTag(num) {
		block, err := s.resolveBlockNumberOrHash(ctx, bnh)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, rpcerr.UnknownBlock()
		}
		ts = block.Timestamp.To
	}

	value, err := s.mirror.GetContractStateSlot(ctx, hexAddr, hash32(slot), ts)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return zeroHex32Byte, nil
	}
	return hash32(value), nil
}
