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
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hashgraph/evm-gateway/gateway/consensus"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/reqctx"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// SendRawTransaction implements eth_sendRawTransaction: parse,
// precheck, submit to consensus, then reconcile the mirror record. In
// async mode submission and reconciliation run detached from the
// caller.
func (s *Service) SendRawTransaction(ctx context.Context, args []any) (any, error) {
	if s.consensus == nil {
		return nil, rpcerr.UnsupportedMethod()
	}

	raw, err := hexutil.Decode(args[0].(string))
	if err != nil {
		return nil, rpcerr.InvalidArguments("raw transaction is not valid hex")
	}
	parsed, err := parseRawTransaction(raw)
	if err != nil {
		return nil, err
	}
	localHash := strings.ToLower(crypto.Keccak256Hash(raw).Hex())

	networkPrice, err := s.gasPriceAt(ctx, "")
	if err != nil {
		return nil, err
	}
	account, err := s.precheck(ctx, parsed, networkPrice)
	if err != nil {
		return nil, err
	}

	if s.cfg.UseAsyncTxProcessing {
		// The background task outlives the caller but not the configured
		// reconciliation budget.
		detached := context.WithoutCancel(ctx)
		go func() {
			budget := time.Duration(s.cfg.TxReconcileRetries+2) * s.cfg.TxReconcileInterval
			bctx, cancel := context.WithTimeout(detached, budget+s.cfg.MirrorTimeout)
			defer cancel()
			if _, err := s.submitAndReconcile(bctx, parsed, account, localHash); err != nil {
				s.log.Warn("async transaction processing failed",
					"hash", localHash, "requestId", reqctx.RequestID(bctx), "err", err)
			}
		}()
		return localHash, nil
	}
	return s.submitAndReconcile(ctx, parsed, account, localHash)
}

// submitAndReconcile drives the Submitting, Submitted and Reconciling
// states, returning the authoritative transaction hash.
func (s *Service) submitAndReconcile(ctx context.Context, parsed *parsedTx, account *mirror.Account, localHash string) (string, error) {
	fileID, err := s.uploadOversizedInitcode(ctx, parsed)
	if err != nil {
		return "", err
	}

	result, submitErr := s.consensus.SubmitEthereumTransaction(ctx, parsed.raw, fileID)
	if submitErr != nil {
		ce, ok := consensus.AsError(submitErr)
		if !ok {
			return "", submitErr
		}
		if ce.Status == consensus.StatusWrongNonce {
			return "", s.resolveWrongNonce(ctx, parsed, account)
		}
		if !ce.TxSubmitted {
			return "", rpcerr.Internal(ce.Error())
		}
		// Partial failure: the transaction may still reach consensus.
		// Reconcile; fall back to the locally computed hash.
		if hash, found := s.reconcile(ctx, localHash); found {
			return hash, nil
		}
		s.log.Warn("transaction submitted but not reconciled; returning local hash",
			"hash", localHash, "status", ce.Status)
		return localHash, nil
	}

	hash, found := s.reconcile(ctx, localHash)
	if !found {
		s.log.Error("submitted transaction never appeared in the mirror",
			"hash", localHash, "transactionId", result.TransactionID)
		return "", rpcerr.Internal("transaction " + localHash + " was not found after submission")
	}
	return hash, nil
}

// uploadOversizedInitcode moves contract-creation payloads above the
// inline limit into the file service. Cleanup of the file is scheduled
// regardless of the submission outcome.
func (s *Service) uploadOversizedInitcode(ctx context.Context, parsed *parsedTx) (string, error) {
	if parsed.tx.To() != nil || len(parsed.tx.Data()) <= s.cfg.InlineBytecodeLimit {
		return "", nil
	}
	fileID, err := s.consensus.CreateFile(ctx, parsed.tx.Data())
	if err != nil {
		return "", rpcerr.Internal("cannot upload init code: " + err.Error())
	}
	// Best effort, fire and forget.
	cleanup := context.WithoutCancel(ctx)
	go func() {
		dctx, cancel := context.WithTimeout(cleanup, s.cfg.MirrorTimeout)
		defer cancel()
		if err := s.consensus.DeleteFile(dctx, fileID); err != nil {
			s.log.Debug("init code file cleanup failed", "fileId", fileID, "err", err)
		}
	}()
	return fileID, nil
}

// reconcile polls the mirror for the submitted transaction's contract
// result. The mirror record's hash is authoritative.
func (s *Service) reconcile(ctx context.Context, localHash string) (string, bool) {
	for attempt := 0; attempt < s.cfg.TxReconcileRetries; attempt++ {
		result, err := s.mirror.GetContractResult(ctx, localHash)
		if err == nil && result != nil && result.Hash != "" {
			return hash32(result.Hash), true
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(s.cfg.TxReconcileInterval):
		}
	}
	return "", false
}

// resolveWrongNonce polls the account until its nonce moves past the
// precheck snapshot, then reports too-high or too-low precisely.
func (s *Service) resolveWrongNonce(ctx context.Context, parsed *parsedTx, account *mirror.Account) error {
	snapshot := int64(-1)
	if account.EthereumNonce != nil {
		snapshot = *account.EthereumNonce
	}
	current := snapshot
	for attempt := 0; attempt < s.cfg.TxReconcileRetries; attempt++ {
		refreshed, err := s.mirror.GetAccount(ctx, account.Account, "")
		if err == nil && refreshed != nil && refreshed.EthereumNonce != nil {
			current = *refreshed.EthereumNonce
			if current != snapshot {
				break
			}
		}
		select {
		case <-ctx.Done():
			return rpcerr.Timeout()
		case <-time.After(s.cfg.TxReconcileInterval):
		}
	}
	if current < 0 {
		current = 0
	}
	if parsed.tx.Nonce() > uint64(current) {
		return rpcerr.NonceTooHigh(parsed.tx.Nonce(), uint64(current))
	}
	return rpcerr.NonceTooLow(parsed.tx.Nonce(), uint64(current))
}
