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
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/dispatch"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/rpcerr"
)

// Intrinsic and fallback gas costs.
const (
	gasTxBaseCost       = 21_000
	gasZeroByte         = 4
	gasNonZeroByte      = 16
	gasHollowAccountMin = 587_000
	gasContractCallAvg  = 500_000
	gasDefault          = 400_000

	ethCallCacheTTL = 200 * time.Millisecond
)

// intrinsicGas computes the EIP-2028 intrinsic cost of a payload.
func intrinsicGas(data []byte) uint64 {
	gas := uint64(gasTxBaseCost)
	for _, b := range data {
		if b == 0 {
			gas += gasZeroByte
		} else {
			gas += gasNonZeroByte
		}
	}
	return gas
}

// Call implements eth_call via the mirror's contract-call endpoint.
func (s *Service) Call(ctx context.Context, args []any) (any, error) {
	call := args[0].(*dispatch.CallObject)
	req, err := s.contractCallRequest(ctx, call, blockArg(args, 1), false)
	if err != nil {
		return nil, err
	}

	key := s.callCacheKey("eth_call", call, req)
	if s.cache != nil {
		if raw, ok := s.cache.GetTier(ctx, key, cache.TierShared); ok {
			var cached string
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	result, err := s.mirror.PostContractCall(ctx, req)
	if err != nil {
		// Host-side validation failures mean the call had no effect.
		if norm := s.normalizeCallError(err); norm != nil {
			return nil, norm
		}
		return "0x", nil
	}
	if result == nil {
		return "0x", nil
	}
	out := dataHex(result.Result)
	if s.cache != nil {
		if raw, merr := json.Marshal(out); merr == nil {
			s.cache.SetTier(ctx, key, raw, ethCallCacheTTL, cache.TierShared)
		}
	}
	return out, nil
}

// EstimateGas implements eth_estimateGas. The mirror estimate is
// preferred; on failure a table of predefined costs answers instead.
func (s *Service) EstimateGas(ctx context.Context, args []any) (any, error) {
	call := args[0].(*dispatch.CallObject)
	req, err := s.contractCallRequest(ctx, call, blockArg(args, 1), true)
	if err != nil {
		return nil, err
	}

	result, callErr := s.mirror.PostContractCall(ctx, req)
	if callErr == nil && result != nil && result.Result != "" && result.Result != "0x" {
		return quantityHex(result.Result), nil
	}
	if callErr != nil {
		if e, ok := mirror.AsError(callErr); ok && e.IsRevert() && s.cfg.EstimateGasThrows {
			return nil, s.normalizeCallError(callErr)
		}
		if _, ok := mirror.AsError(callErr); !ok {
			return nil, callErr
		}
		s.log.Debug("gas estimation fell back to predefined costs", "err", callErr)
	}
	return numHex(int64(s.predefinedGas(ctx, call))), nil
}

// predefinedGas picks a fallback estimate by transaction shape.
func (s *Service) predefinedGas(ctx context.Context, call *dispatch.CallObject) uint64 {
	payload := call.Payload()
	hasData := payload != "" && payload != "0x"
	switch {
	case call.To == nil && hasData:
		// Contract creation.
		data, err := hexutil.Decode(dataHex(payload))
		if err != nil {
			return gasDefault
		}
		return intrinsicGas(data)
	case call.To != nil && !hasData:
		// Simple transfer; unknown recipients need a hollow account.
		account, err := s.mirror.GetAccount(ctx, strings.ToLower(call.To.Hex()), "")
		if err == nil && account != nil {
			return gasTxBaseCost
		}
		return gasHollowAccountMin
	case call.To != nil && hasData:
		return gasContractCallAvg
	default:
		return gasDefault
	}
}

// contractCallRequest normalizes a call object into the mirror's
// contract-call body.
func (s *Service) contractCallRequest(ctx context.Context, call *dispatch.CallObject, bnh *rpc.BlockNumberOrHash, estimate bool) (*mirror.ContractCallRequest, error) {
	if call.To == nil && !estimate {
		return nil, rpcerr.InvalidContractAddress("")
	}

	req := &mirror.ContractCallRequest{Estimate: estimate}
	if call.To != nil {
		req.To = strings.ToLower(call.To.Hex())
	}
	if call.From != nil {
		req.From = strings.ToLower(call.From.Hex())
	}
	if data := call.Payload(); data != "" {
		req.Data = dataHex(data)
	}
	if call.Value != nil && call.Value.ToInt().Sign() > 0 {
		if call.From == nil {
			return nil, rpcerr.InvalidParameterMsg("from must be provided for value-bearing calls")
		}
		req.Value = mirror.WeibarToTinybar(call.Value.ToInt()).Int64()
	}
	if call.Gas != nil {
		gas := uint64(*call.Gas)
		if gas > s.cfg.MaxGasPerSec {
			gas = s.cfg.MaxGasPerSec
		}
		req.Gas = int64(gas)
	}
	if call.GasPrice != nil {
		req.GasPrice = mirror.WeibarToTinybar(call.GasPrice.ToInt()).Int64()
	}
	if bnh != nil {
		if num, ok := bnh.Number(); ok && !isMovingTag(num) && num >= 0 {
			req.Block = numHex(int64(num))
		} else if hash, ok := bnh.Hash(); ok {
			block, err := s.mirror.GetBlock(ctx, strings.ToLower(hash.Hex()))
			if err != nil {
				return nil, err
			}
			if block == nil {
				return nil, rpcerr.UnknownBlock()
			}
			req.Block = numHex(block.Number)
		} else {
			req.Block = "latest"
		}
	}
	return req, nil
}

// callCacheKey fingerprints the call by sender, target and the SHA-1 of
// the payload.
func (s *Service) callCacheKey(method string, call *dispatch.CallObject, req *mirror.ContractCallRequest) string {
	sum := sha1.Sum([]byte(req.Data))
	return cache.Key(method, req.From, req.To, hex.EncodeToString(sum[:]), req.Block)
}

// normalizeCallError maps mirror contract-call failures onto the error
// taxonomy.
func (s *Service) normalizeCallError(err error) error {
	e, ok := mirror.AsError(err)
	if !ok {
		return err
	}
	switch {
	case e.Message == "INVALID_TRANSACTION" || e.Message == "FAIL_INVALID":
		return nil
	case e.IsRevert():
		return rpcerr.ContractRevert(e.Data)
	default:
		return err
	}
}

// blockArg extracts an optional block parameter.
func blockArg(args []any, index int) *rpc.BlockNumberOrHash {
	if len(args) <= index || args[index] == nil {
		return nil
	}
	if bnh, ok := args[index].(rpc.BlockNumberOrHash); ok {
		return &bnh
	}
	return nil
}
