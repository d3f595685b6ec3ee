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
	"time"

	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/dispatch"
)

// Response cache horizons. Closed blocks and their contents are
// immutable; live state is not cached at the registry level.
const (
	cacheTTLImmutable = time.Hour
	cacheTTLConstant  = time.Hour
	cacheTTLGasPrice  = 15 * time.Second
	cacheTTLHead      = time.Second
	cacheTTLCode      = time.Minute
)

// movingTags are block parameters that re-resolve on every call.
var movingTags = []string{"latest", "pending", "safe", "finalized"}

func skipMoving(param int) cache.SkipRule {
	return cache.SkipRule{Param: param, Values: movingTags}
}

func immutablePolicy() *cache.Policy {
	return &cache.Policy{TTL: cacheTTLImmutable, Tier: cache.TierShared}
}

func blockParamPolicy(param int) *cache.Policy {
	return &cache.Policy{
		TTL:  cacheTTLImmutable,
		Tier: cache.TierShared,
		Skip: []cache.SkipRule{skipMoving(param)},
	}
}

func constantPolicy() *cache.Policy {
	return &cache.Policy{TTL: cacheTTLConstant, Tier: cache.TierProcess}
}

// Register wires every eth_, net_ and web3_ method into the registry.
func (s *Service) Register(reg *dispatch.Registry) {
	required := func(t dispatch.ParamType) dispatch.Param {
		return dispatch.Param{Type: t, Required: true}
	}
	optional := func(t dispatch.ParamType) dispatch.Param {
		return dispatch.Param{Type: t}
	}

	// Chain identity and head.
	reg.Register(&dispatch.Method{Name: "eth_chainId", Handler: s.ChainID})
	reg.Register(&dispatch.Method{
		Name: "eth_blockNumber", Handler: s.BlockNumber,
		Cache: &cache.Policy{TTL: cacheTTLHead, Tier: cache.TierProcess},
	})

	// Blocks.
	reg.Register(&dispatch.Method{
		Name: "eth_getBlockByHash", Handler: s.GetBlockByHash,
		Params: []dispatch.Param{
			required(dispatch.TypeTransactionHash),
			required(dispatch.TypeBool),
		},
		Cache: immutablePolicy(),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getBlockByNumber", Handler: s.GetBlockByNumber,
		Params: []dispatch.Param{
			required(dispatch.TypeBlockNumber),
			required(dispatch.TypeBool),
		},
		Cache: blockParamPolicy(0),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getBlockTransactionCountByHash", Handler: s.GetBlockTransactionCountByHash,
		Params: []dispatch.Param{required(dispatch.TypeTransactionHash)},
		Cache:  immutablePolicy(),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getBlockTransactionCountByNumber", Handler: s.GetBlockTransactionCountByNumber,
		Params: []dispatch.Param{required(dispatch.TypeBlockNumber)},
		Cache:  blockParamPolicy(0),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getBlockReceipts", Handler: s.GetBlockReceipts,
		Params: []dispatch.Param{required(dispatch.TypeBlockNumberOrHash)},
		Cache:  blockParamPolicy(0),
	})

	// Transactions and receipts.
	reg.Register(&dispatch.Method{
		Name: "eth_getTransactionByHash", Handler: s.GetTransactionByHash,
		Params: []dispatch.Param{required(dispatch.TypeTransactionHashOrID)},
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getTransactionByBlockHashAndIndex", Handler: s.GetTransactionByBlockHashAndIndex,
		Params: []dispatch.Param{
			required(dispatch.TypeTransactionHash),
			required(dispatch.TypeHex),
		},
		Cache: immutablePolicy(),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getTransactionByBlockNumberAndIndex", Handler: s.GetTransactionByBlockNumberAndIndex,
		Params: []dispatch.Param{
			required(dispatch.TypeBlockNumber),
			required(dispatch.TypeHex),
		},
		Cache: blockParamPolicy(0),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getTransactionReceipt", Handler: s.GetTransactionReceipt,
		Params: []dispatch.Param{required(dispatch.TypeTransactionHashOrID)},
	})

	// Logs.
	reg.Register(&dispatch.Method{
		Name: "eth_getLogs", Handler: s.GetLogs,
		Params: []dispatch.Param{required(dispatch.TypeLogsFilter)},
	})

	// Account state.
	reg.Register(&dispatch.Method{
		Name: "eth_getBalance", Handler: s.GetBalance,
		Params: []dispatch.Param{
			required(dispatch.TypeAddress),
			required(dispatch.TypeBlockNumberOrHash),
		},
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getTransactionCount", Handler: s.GetTransactionCount,
		Params: []dispatch.Param{
			required(dispatch.TypeAddress),
			required(dispatch.TypeBlockNumber),
		},
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getCode", Handler: s.GetCode,
		Params: []dispatch.Param{
			required(dispatch.TypeAddress),
			required(dispatch.TypeBlockNumber),
		},
		Cache: &cache.Policy{TTL: cacheTTLCode, Tier: cache.TierProcess},
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getStorageAt", Handler: s.GetStorageAt,
		Params: []dispatch.Param{
			required(dispatch.TypeAddress),
			required(dispatch.TypeHex),
			required(dispatch.TypeBlockNumberOrHash),
		},
	})

	// Execution.
	reg.Register(&dispatch.Method{
		Name: "eth_call", Handler: s.Call,
		Params: []dispatch.Param{
			required(dispatch.TypeCallObject),
			optional(dispatch.TypeBlockNumberOrHash),
		},
	})
	reg.Register(&dispatch.Method{
		Name: "eth_estimateGas", Handler: s.EstimateGas,
		Params: []dispatch.Param{
			required(dispatch.TypeCallObject),
			optional(dispatch.TypeBlockNumberOrHash),
		},
	})
	reg.Register(&dispatch.Method{
		Name: "eth_sendRawTransaction", Handler: s.SendRawTransaction,
		Params: []dispatch.Param{required(dispatch.TypeHex)},
	})

	// Fees.
	reg.Register(&dispatch.Method{
		Name: "eth_gasPrice", Handler: s.GasPrice,
		Cache: &cache.Policy{TTL: cacheTTLGasPrice, Tier: cache.TierShared},
	})
	reg.Register(&dispatch.Method{
		Name: "eth_maxPriorityFeePerGas", Handler: s.MaxPriorityFeePerGas,
		Cache: constantPolicy(),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_feeHistory", Handler: s.FeeHistory,
		Params: []dispatch.Param{
			required(dispatch.TypeHex),
			required(dispatch.TypeBlockNumber),
			optional(dispatch.TypeFloatArray),
		},
		Cache: &cache.Policy{
			TTL:  cacheTTLGasPrice,
			Tier: cache.TierShared,
			Skip: []cache.SkipRule{skipMoving(1)},
		},
	})

	// Constants of a non-mining, uncle-free chain.
	reg.Register(&dispatch.Method{Name: "eth_syncing", Handler: s.Syncing, Cache: constantPolicy()})
	reg.Register(&dispatch.Method{Name: "eth_mining", Handler: s.Mining, Cache: constantPolicy()})
	reg.Register(&dispatch.Method{Name: "eth_hashrate", Handler: s.Hashrate, Cache: constantPolicy()})
	reg.Register(&dispatch.Method{Name: "eth_accounts", Handler: s.Accounts, Cache: constantPolicy()})
	reg.Register(&dispatch.Method{
		Name: "eth_getUncleCountByBlockHash", Handler: s.GetUncleCountByBlockHash,
		Params: []dispatch.Param{required(dispatch.TypeTransactionHash)},
		Cache:  constantPolicy(),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getUncleCountByBlockNumber", Handler: s.GetUncleCountByBlockNumber,
		Params: []dispatch.Param{required(dispatch.TypeBlockNumber)},
		Cache:  blockParamPolicy(0),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getUncleByBlockHashAndIndex", Handler: s.GetUncleByBlockHashAndIndex,
		Params: []dispatch.Param{
			required(dispatch.TypeTransactionHash),
			required(dispatch.TypeHex),
		},
		Cache: constantPolicy(),
	})
	reg.Register(&dispatch.Method{
		Name: "eth_getUncleByBlockNumberAndIndex", Handler: s.GetUncleByBlockNumberAndIndex,
		Params: []dispatch.Param{
			required(dispatch.TypeBlockNumber),
			required(dispatch.TypeHex),
		},
		Cache: blockParamPolicy(0),
	})

	// net_ and web3_ namespaces.
	reg.Register(&dispatch.Method{Name: "net_version", Handler: s.NetVersion, Cache: constantPolicy()})
	reg.Register(&dispatch.Method{Name: "net_listening", Handler: s.NetListening, Cache: constantPolicy()})
	reg.Register(&dispatch.Method{Name: "web3_clientVersion", Handler: s.Web3ClientVersion, Cache: constantPolicy()})
	reg.Register(&dispatch.Method{
		Name: "web3_sha3", Handler: s.Web3Sha3,
		Params: []dispatch.Param{required(dispatch.TypeHex)},
	})

	// Methods the gateway will never support: no accounts to sign
	// with, no PoW, no proofs over the mirror's state model.
	for _, name := range []string{
		"eth_coinbase",
		"eth_sign",
		"eth_signTransaction",
		"eth_sendTransaction",
		"eth_protocolVersion",
		"eth_getWork",
		"eth_submitWork",
		"eth_submitHashrate",
		"eth_getProof",
		"eth_createAccessList",
		"eth_blobBaseFee",
		"eth_newFilter",
		"eth_newBlockFilter",
		"eth_newPendingTransactionFilter",
		"eth_getFilterLogs",
		"eth_getFilterChanges",
		"eth_uninstallFilter",
		"net_peerCount",
	} {
		reg.Register(&dispatch.Method{Name: name, Handler: s.Unsupported})
	}
}
