// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/MysticalGareth/UBB-sub000/netparams"
)

const (
	defaultDataDir    = "ubbindexer_data"
	defaultRPCURL     = "http://127.0.0.1:8332"
	defaultMaxRetries = 8
	defaultRetryDelay = time.Second
	defaultLogLevel   = "info"
)

// config holds the fully-parsed, validated command-line configuration for
// one indexing run.
type config struct {
	TipHash     string `short:"t" long:"tip" description:"Block hash to index up to (defaults to the node's current best block)"`
	GenesisHash string `short:"g" long:"genesis" description:"UBB genesis block hash to index from when no snapshot exists yet"`
	FromHeight0 bool   `long:"genesis-from-height-0" description:"Use the real chain genesis as the UBB genesis (mostly useful on regtest)"`

	DataDir string `short:"d" long:"data-dir" description:"Directory to store snapshots, cached blocks, and saved images"`
	Network string `short:"n" long:"network" description:"Network to index: mainnet, testnet, or regtest"`

	RPCURL     string        `short:"s" long:"rpc-url" description:"JSON-RPC URL of the node to index from"`
	MaxRetries int           `long:"max-retries" description:"Maximum transport retry attempts per RPC call"`
	RetryDelay time.Duration `long:"retry-delay" description:"Initial backoff delay between retried RPC calls"`

	LogLevel string `long:"loglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`
	LogDir   string `long:"logdir" description:"Directory to write the rotated log file to"`

	netParams *netparams.Params
}

// parseConfig parses the command line and applies defaults and
// cross-field validation the way the node's own config package does.
func parseConfig() (*config, error) {
	cfg := config{
		DataDir:    defaultDataDir,
		Network:    netparams.MainnetParams.Name,
		RPCURL:     defaultRPCURL,
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
		LogLevel:   defaultLogLevel,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	netParams, err := netparams.ByName(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.netParams = netParams

	if cfg.GenesisHash == "" && !cfg.FromHeight0 {
		if netParams.MainnetGenesisHash == "" {
			return nil, errors.Errorf("--genesis is required for network %q (no compiled-in default)", cfg.Network)
		}
		cfg.GenesisHash = netParams.MainnetGenesisHash
	}
	if cfg.GenesisHash != "" && cfg.FromHeight0 {
		return nil, errors.New("--genesis and --genesis-from-height-0 are mutually exclusive")
	}
	if !isHexHash(cfg.GenesisHash) && !cfg.FromHeight0 {
		return nil, errors.Errorf("--genesis %q is not a 64-character hex hash", cfg.GenesisHash)
	}
	if cfg.TipHash != "" && !isHexHash(cfg.TipHash) {
		return nil, errors.Errorf("--tip %q is not a 64-character hex hash", cfg.TipHash)
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.Errorf("--max-retries must be non-negative, got %d", cfg.MaxRetries)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = cfg.DataDir
	}

	return &cfg, nil
}

func isHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
