// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/MysticalGareth/UBB-sub000/billboard/engine"
	"github.com/MysticalGareth/UBB-sub000/blockcache"
	"github.com/MysticalGareth/UBB-sub000/blocksource"
	"github.com/MysticalGareth/UBB-sub000/logger"
	"github.com/MysticalGareth/UBB-sub000/store"
)

// chainParamsFor maps a netparams.Params name to the btcd chaincfg.Params
// the classifier needs to decode output addresses.
func chainParamsFor(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("no chaincfg.Params mapping for network %q", name)
	}
}

func main() {
	defer handlePanic()

	cfg, err := parseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	logger.InitLogRotator(filepath.Join(cfg.LogDir, "ubbindexer.log"))
	if err := logger.ParseAndSetDebugLevels(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "error setting log level: %s\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.EngineLog.Errorf("indexing run failed: %+v", err)
		fmt.Fprintf(os.Stderr, "indexing run failed: %s\n", err)
		os.Exit(1)
	}
}

func run(cfg *config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt(cancel)

	chainParams, err := chainParamsFor(cfg.netParams.Name)
	if err != nil {
		return err
	}

	src := blocksource.New(blocksource.Config{
		RPCURL:     cfg.RPCURL,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, cfg.netParams)

	tipHash := cfg.TipHash
	if tipHash == "" {
		tipHash, err = src.GetTip(ctx)
		if err != nil {
			return err
		}
	}

	// storeGenesisHash is never the empty sentinel: the store keys its
	// on-disk tree by genesis hash, so a --genesis-from-height-0 run
	// needs a concrete name too. The real genesis hash isn't known until
	// the engine's downward walk reaches it, so the store is opened
	// under the fixed placeholder "height-0" and the engine is told to
	// find the real genesis via the empty sentinel.
	storeGenesisHash := cfg.GenesisHash
	if cfg.FromHeight0 {
		storeGenesisHash = "height-0"
	}

	cache, err := blockcache.New(cfg.DataDir, cfg.netParams.Name)
	if err != nil {
		return err
	}
	st, err := store.New(cfg.DataDir, cfg.netParams.Name, storeGenesisHash)
	if err != nil {
		return err
	}

	eng := &engine.Engine{
		Source: src,
		Cache:  cache,
		Store:  st,
		Net:    chainParams,
	}

	engineGenesisHash := cfg.GenesisHash
	if cfg.FromHeight0 {
		engineGenesisHash = ""
	}

	result, err := eng.Run(ctx, tipHash, engineGenesisHash)
	if err != nil {
		return err
	}

	fmt.Printf("blocks processed:       %d\n", result.BlocksProcessed)
	fmt.Printf("transactions processed: %d\n", result.TransactionsProcessed)
	fmt.Printf("plots created:          %d\n", result.PlotsCreated)
	fmt.Printf("plots updated:          %d\n", result.PlotsUpdated)
	fmt.Printf("plots bricked:          %d\n", result.PlotsBricked)
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if !result.Success {
		return fmt.Errorf("run did not complete successfully")
	}
	return nil
}

// interrupt cancels ctx on SIGINT/SIGTERM, letting the engine's
// cooperative check in Run finish the in-flight block before returning.
func interrupt(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.EngineLog.Infof("received interrupt, finishing in-flight block before exiting")
		cancel()
	}()
}

func handlePanic() {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "unrecoverable error: %v\n", r)
		os.Exit(1)
	}
}
