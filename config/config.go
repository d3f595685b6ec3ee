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

// Package config holds the gateway runtime options. The struct is
// populated once at startup (flags/env) and passed by pointer; nothing
// mutates it afterwards.
package config

import (
	"math/big"
	"time"
)

// Config is the complete set of gateway runtime options.
type Config struct {
	// Identity.
	ChainID *big.Int

	// HTTP front-end.
	Port             int
	TrustProxy       bool // honor X-Forwarded-For / Forwarded
	BatchEnabled     bool
	BatchMaxSize     int
	BatchDisallowed  []string // methods rejected inside batches
	RequestTimeout   time.Duration

	// Mirror collaborator.
	MirrorURL     string
	MirrorRetries int
	MirrorTimeout time.Duration
	MirrorPageCap int

	// Shared store (L2 cache + shared rate limiter). Empty disables.
	RedisURL string

	// Rate limiting.
	RateLimitDisabled bool
	RateLimitWindow   time.Duration
	RateLimitDefault  int

	// Caching.
	DevMode bool // disables response caching entirely

	// Gas and fees.
	GasPriceBufferPercent int64 // may be zero or negative
	GasPriceToleranceTiny int64 // tinybars of slack below network price
	MaxGasPerSec          uint64
	EstimateGasThrows     bool
	FeeHistoryMaxResults  int

	// Read-path guards.
	MaxBlockRange        int64 // eth_getLogs block-range guard
	MaxTimestampRange    time.Duration
	BlockTxCountGuard    int // reject full-detail blocks above this
	BalanceRefreshWindow time.Duration

	// Write path.
	SendRawTxSizeLimit     int
	CallDataSizeLimit      int
	MaxTransactionFee      uint64 // upper gas-limit bound
	UseAsyncTxProcessing   bool
	TxReconcileRetries     int
	TxReconcileInterval    time.Duration
	InlineBytecodeLimit    int    // above this, init code goes to the file service
	DeterministicDeployer  string // raw tx hex whitelisted past the gas-price precheck
	SystemCreateSelectors  []string

	// Debug namespace.
	DebugAPIEnabled     bool
	OpcodeLoggerEnabled bool
}

// Default returns the configuration the gateway ships with. Chain id
// defaults to 0x12a (testnet); production deployments override it.
func Default() *Config {
	return &Config{
		ChainID: big.NewInt(0x12a),

		Port:            7546,
		TrustProxy:      true,
		BatchEnabled:    true,
		BatchMaxSize:    100,
		BatchDisallowed: []string{"debug_traceBlockByNumber"},
		RequestTimeout:  60 * time.Second,

		MirrorURL:     "http://localhost:5551/api/v1/",
		MirrorRetries: 3,
		MirrorTimeout: 10 * time.Second,
		MirrorPageCap: 20,

		RateLimitWindow:  15 * time.Second,
		RateLimitDefault: 800,

		GasPriceBufferPercent: 0,
		GasPriceToleranceTiny: 1,
		MaxGasPerSec:          15_000_000,
		FeeHistoryMaxResults:  10,

		MaxBlockRange:        1000,
		MaxTimestampRange:    7 * 24 * time.Hour,
		BlockTxCountGuard:    1000,
		BalanceRefreshWindow: 15 * time.Minute,

		SendRawTxSizeLimit:  131072,
		CallDataSizeLimit:   131072,
		MaxTransactionFee:   15_000_000,
		TxReconcileRetries:  10,
		TxReconcileInterval: 1 * time.Second,
		InlineBytecodeLimit: 5120,

		// Cross-chain deterministic deployment proxy, pre-signed. The
		// exact bytes are network policy, hence configurable.
		DeterministicDeployer: "0xf8a58085174876e800830186a08080b853604580600e600052366000602037600080366017600060195af41560265760206000f35b600080fdfe1ca02222222222222222222222222222222222222222222222222222222222222222a02222222222222222222222222222222222222222222222222222222222222222",

		// Selectors of the system-contract token-creation entry points;
		// creations through these read the new address from call_result.
		SystemCreateSelectors: []string{
			"0x0fb65bf3", // createFungibleToken
			"0x2af0c59a", // createFungibleTokenWithCustomFees
			"0xea83f293", // createNonFungibleToken
			"0xabb54eb5", // createNonFungibleTokenWithCustomFees
		},
	}
}
