// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netparams defines the per-network parameters the indexer needs:
// which chain a node claims to be on (for the NetworkMismatch check), the
// compiled-in mainnet genesis, and the default RPC port. It follows the
// upstream node's own network-registration pattern, reduced to what an
// indexer (rather than a full validating node) actually consults.
package netparams

import "github.com/pkg/errors"

// Params defines a Bitcoin-family network by the parameters the indexer
// needs to talk to a node and to pick a starting point for a fresh index.
type Params struct {
	// Name is a human-readable identifier for the network.
	Name string

	// RPCChainName is the value getblockchaininfo().chain is expected to
	// report for this network. The Block Source fails fast with
	// NetworkMismatch on its first call if these disagree.
	RPCChainName string

	// DefaultRPCPort is the node's conventional JSON-RPC port on this
	// network. It is informational: nothing fills it into an --rpc-url
	// that omits a port.
	DefaultRPCPort string

	// MainnetGenesisHash is the compiled-in UBB genesis block hash for
	// this network, used when the caller omits --genesis and
	// --genesis-from-height-0. Empty for networks with no fixed genesis
	// (e.g. regtest, which is reset per deployment).
	MainnetGenesisHash string
}

// MainnetParams defines the network parameters for Bitcoin mainnet.
var MainnetParams = Params{
	Name:         "mainnet",
	RPCChainName: "main",
	DefaultRPCPort: "8332",
	// The block at which the UBB protocol is deemed to begin on mainnet.
	// A real deployment compiles in the actual first-claim block hash;
	// left blank here since this repo ships no live UBB deployment.
	MainnetGenesisHash: "",
}

// TestnetParams defines the network parameters for Bitcoin testnet (any of
// the testnet3/testnet4 families, which share a chain name of "test" or
// "testnet4" depending on node version; both are accepted).
var TestnetParams = Params{
	Name:           "testnet",
	RPCChainName:   "test",
	DefaultRPCPort: "18332",
}

// RegtestParams defines the network parameters for a local regression-test
// node. Regtest has no fixed UBB genesis; callers must pass one explicitly
// or use --genesis-from-height-0.
var RegtestParams = Params{
	Name:           "regtest",
	RPCChainName:   "regtest",
	DefaultRPCPort: "18443",
}

// ErrUnknownNetwork is returned by ByName for an unrecognized network name.
var ErrUnknownNetwork = errors.New("unknown network")

var byName = map[string]*Params{
	MainnetParams.Name: &MainnetParams,
	TestnetParams.Name: &TestnetParams,
	RegtestParams.Name: &RegtestParams,
}

// ByName looks up a registered Params by its CLI --network name.
func ByName(name string) (*Params, error) {
	params, ok := byName[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNetwork, "%q", name)
	}
	return params, nil
}

// MatchesChain reports whether a node's getblockchaininfo().chain value is
// consistent with this network. Testnet accepts both "test" and
// "testnet4", since the four-call Block Source contract does not
// distinguish between testnet generations.
func (p *Params) MatchesChain(chain string) bool {
	if chain == p.RPCChainName {
		return true
	}
	if p.Name == TestnetParams.Name && chain == "testnet4" {
		return true
	}
	return false
}
