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

// gateway is the Ethereum JSON-RPC front-end over the mirror and
// consensus collaborators.
package main

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/hashgraph/evm-gateway/config"
	"github.com/hashgraph/evm-gateway/gateway/cache"
	"github.com/hashgraph/evm-gateway/gateway/dispatch"
	"github.com/hashgraph/evm-gateway/gateway/ethsrv"
	"github.com/hashgraph/evm-gateway/gateway/limiter"
	"github.com/hashgraph/evm-gateway/gateway/mirror"
	"github.com/hashgraph/evm-gateway/gateway/tracer"
	"github.com/hashgraph/evm-gateway/server"
	"github.com/hashgraph/evm-gateway/version"
)

const l1CacheEntries = 4096

var (
	portFlag = &cli.IntFlag{
		Name:    "port",
		Usage:   "HTTP listening port",
		Value:   config.Default().Port,
		EnvVars: []string{"GATEWAY_PORT"},
	}
	chainIDFlag = &cli.Int64Flag{
		Name:    "chain-id",
		Usage:   "EVM chain id served by eth_chainId",
		Value:   config.Default().ChainID.Int64(),
		EnvVars: []string{"GATEWAY_CHAIN_ID"},
	}
	trustProxyFlag = &cli.BoolFlag{
		Name:    "trust-proxy",
		Usage:   "honor X-Forwarded-For / Forwarded headers",
		Value:   config.Default().TrustProxy,
		EnvVars: []string{"GATEWAY_TRUST_PROXY"},
	}
	batchEnabledFlag = &cli.BoolFlag{
		Name:    "batch.enabled",
		Usage:   "accept JSON-RPC batch requests",
		Value:   config.Default().BatchEnabled,
		EnvVars: []string{"GATEWAY_BATCH_ENABLED"},
	}
	batchMaxFlag = &cli.IntFlag{
		Name:    "batch.max-size",
		Usage:   "maximum calls per batch",
		Value:   config.Default().BatchMaxSize,
		EnvVars: []string{"GATEWAY_BATCH_MAX_SIZE"},
	}
	requestTimeoutFlag = &cli.DurationFlag{
		Name:    "request-timeout",
		Usage:   "per-request deadline",
		Value:   config.Default().RequestTimeout,
		EnvVars: []string{"GATEWAY_REQUEST_TIMEOUT"},
	}
	mirrorURLFlag = &cli.StringFlag{
		Name:    "mirror.url",
		Usage:   "mirror REST API base url",
		Value:   config.Default().MirrorURL,
		EnvVars: []string{"GATEWAY_MIRROR_URL"},
	}
	mirrorRetriesFlag = &cli.IntFlag{
		Name:    "mirror.retries",
		Usage:   "mirror retry budget for 429/5xx responses",
		Value:   config.Default().MirrorRetries,
		EnvVars: []string{"GATEWAY_MIRROR_RETRIES"},
	}
	mirrorTimeoutFlag = &cli.DurationFlag{
		Name:    "mirror.timeout",
		Usage:   "per-call mirror deadline",
		Value:   config.Default().MirrorTimeout,
		EnvVars: []string{"GATEWAY_MIRROR_TIMEOUT"},
	}
	redisURLFlag = &cli.StringFlag{
		Name:    "redis.url",
		Usage:   "redis url for the shared cache and rate-limit counters (empty disables)",
		EnvVars: []string{"GATEWAY_REDIS_URL"},
	}
	rateLimitDisabledFlag = &cli.BoolFlag{
		Name:    "ratelimit.disabled",
		Usage:   "disable IP rate limiting",
		EnvVars: []string{"GATEWAY_RATELIMIT_DISABLED"},
	}
	rateLimitWindowFlag = &cli.DurationFlag{
		Name:    "ratelimit.window",
		Usage:   "rate-limit window duration",
		Value:   config.Default().RateLimitWindow,
		EnvVars: []string{"GATEWAY_RATELIMIT_WINDOW"},
	}
	rateLimitDefaultFlag = &cli.IntFlag{
		Name:    "ratelimit.default",
		Usage:   "default per-window request allowance per (ip, method)",
		Value:   config.Default().RateLimitDefault,
		EnvVars: []string{"GATEWAY_RATELIMIT_DEFAULT"},
	}
	devModeFlag = &cli.BoolFlag{
		Name:    "dev",
		Usage:   "development mode: disables response caching",
		EnvVars: []string{"GATEWAY_DEV_MODE"},
	}
	gasPriceBufferFlag = &cli.Int64Flag{
		Name:    "gas-price-buffer-percent",
		Usage:   "percentage added on top of the network gas price",
		Value:   config.Default().GasPriceBufferPercent,
		EnvVars: []string{"GATEWAY_GAS_PRICE_BUFFER_PERCENT"},
	}
	estimateGasThrowsFlag = &cli.BoolFlag{
		Name:    "estimate-gas-throws",
		Usage:   "surface eth_estimateGas reverts as errors instead of a predefined fallback",
		EnvVars: []string{"GATEWAY_ESTIMATE_GAS_THROWS"},
	}
	debugAPIFlag = &cli.BoolFlag{
		Name:    "debug.enabled",
		Usage:   "enable the debug_ namespace",
		EnvVars: []string{"GATEWAY_DEBUG_API_ENABLED"},
	}
	opcodeLoggerFlag = &cli.BoolFlag{
		Name:    "debug.opcode-logger",
		Usage:   "enable the opcode logger tracer",
		EnvVars: []string{"GATEWAY_OPCODELOGGER_ENABLED"},
	}
	verbosityFlag = &cli.IntFlag{
		Name:    "verbosity",
		Usage:   "logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:   3,
		EnvVars: []string{"GATEWAY_VERBOSITY"},
	}
)

func main() {
	app := &cli.App{
		Name:    "gateway",
		Usage:   "Ethereum JSON-RPC gateway over a mirror/consensus backend",
		Version: version.ClientVersion(),
		Flags: []cli.Flag{
			portFlag, chainIDFlag, trustProxyFlag,
			batchEnabledFlag, batchMaxFlag, requestTimeoutFlag,
			mirrorURLFlag, mirrorRetriesFlag, mirrorTimeoutFlag,
			redisURLFlag,
			rateLimitDisabledFlag, rateLimitWindowFlag, rateLimitDefaultFlag,
			devModeFlag, gasPriceBufferFlag, estimateGasThrowsFlag,
			debugAPIFlag, opcodeLoggerFlag,
			verbosityFlag,
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(c.Int(verbosityFlag.Name)), false)
	log.SetDefault(log.NewLogger(handler))

	cfg := configFromFlags(c)

	mc, err := mirror.NewClient(mirror.Config{
		BaseURL: cfg.MirrorURL,
		Retries: cfg.MirrorRetries,
		Timeout: cfg.MirrorTimeout,
		PageCap: cfg.MirrorPageCap,
	})
	if err != nil {
		return err
	}

	var (
		l2       cache.Store
		limStore limiter.CounterStore = limiter.NewMemoryStore()
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		l2 = cache.NewRedis(rdb)
		limStore = limiter.NewRedisStore(rdb)
		log.Info("shared store enabled", "addr", opts.Addr)
	}
	tc := cache.NewTiered(cache.NewL1(l1CacheEntries), l2)

	var lim *limiter.Limiter
	if !cfg.RateLimitDisabled {
		lim = limiter.New(limStore, cfg.RateLimitWindow, cfg.RateLimitDefault)
	}

	reg := dispatch.NewRegistry()
	// The consensus collaborator is deployment-specific; the standalone
	// binary serves the read surface and eth_sendRawTransaction reports
	// the method unavailable until a client is wired in.
	ethsrv.New(cfg, mc, nil, tc).Register(reg)
	tracer.New(cfg, mc, tc).Register(reg)

	d := dispatch.NewDispatcher(reg, tc, lim, cfg.DevMode)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting gateway",
		"version", version.ClientVersion(),
		"chainid", cfg.ChainID,
		"mirror", cfg.MirrorURL,
		"port", cfg.Port,
	)
	return server.New(cfg, d).ListenAndServe(ctx)
}

func configFromFlags(c *cli.Context) *config.Config {
	cfg := config.Default()
	cfg.ChainID = big.NewInt(c.Int64(chainIDFlag.Name))
	cfg.Port = c.Int(portFlag.Name)
	cfg.TrustProxy = c.Bool(trustProxyFlag.Name)
	cfg.BatchEnabled = c.Bool(batchEnabledFlag.Name)
	cfg.BatchMaxSize = c.Int(batchMaxFlag.Name)
	cfg.RequestTimeout = c.Duration(requestTimeoutFlag.Name)
	cfg.MirrorURL = c.String(mirrorURLFlag.Name)
	cfg.MirrorRetries = c.Int(mirrorRetriesFlag.Name)
	cfg.MirrorTimeout = c.Duration(mirrorTimeoutFlag.Name)
	cfg.RedisURL = c.String(redisURLFlag.Name)
	cfg.RateLimitDisabled = c.Bool(rateLimitDisabledFlag.Name)
	cfg.RateLimitWindow = c.Duration(rateLimitWindowFlag.Name)
	cfg.RateLimitDefault = c.Int(rateLimitDefaultFlag.Name)
	cfg.DevMode = c.Bool(devModeFlag.Name)
	cfg.GasPriceBufferPercent = c.Int64(gasPriceBufferFlag.Name)
	cfg.EstimateGasThrows = c.Bool(estimateGasThrowsFlag.Name)
	cfg.DebugAPIEnabled = c.Bool(debugAPIFlag.Name)
	cfg.OpcodeLoggerEnabled = c.Bool(opcodeLoggerFlag.Name)
	return cfg
}
