// Package engine implements the two-phase Indexer Engine: a downward walk
// from the caller's tip to either an existing snapshot or the UBB genesis,
// followed by a forward walk that applies every block's transactions to a
// freshly forked working snapshot, one snapshot per block, in
// block-serialization order.
package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"

	"github.com/MysticalGareth/UBB-sub000/billboard"
	"github.com/MysticalGareth/UBB-sub000/billboard/classifier"
	"github.com/MysticalGareth/UBB-sub000/billboard/transition"
	"github.com/MysticalGareth/UBB-sub000/logger"
)

// ErrGenesisUnreachable is returned when the downward walk runs off the
// start of the chain before reaching the configured genesis hash.
var ErrGenesisUnreachable = errors.New("genesis unreachable from tip")

// BlockSource is the subset of blocksource.Client the engine needs.
type BlockSource interface {
	GetHashAtHeight(ctx context.Context, height uint32) (string, error)
	GetHeightOf(ctx context.Context, hash string) (uint32, error)
	GetBlockHex(ctx context.Context, hash string) (string, error)
}

// BlockCache is the subset of blockcache.Cache the engine needs.
type BlockCache interface {
	Has(hash string) bool
	Get(hash string) ([]byte, bool, error)
	Put(hash string, data []byte) error
}

// Store is the subset of store.Store the engine needs.
type Store interface {
	Has(hash string) bool
	Load(hash string) (*billboard.Snapshot, error)
	Save(snap *billboard.Snapshot) error
	SaveImage(txid string, data []byte) error
	SetTip(hash string) error
}

// Engine drives the two-phase indexing run described in the design.
type Engine struct {
	Source BlockSource
	Cache  BlockCache
	Store  Store
	Net    *chaincfg.Params
}

// RunResult summarizes one indexing run for the caller.
type RunResult struct {
	Success               bool
	BlocksProcessed       int
	TransactionsProcessed int
	PlotsCreated          int
	PlotsUpdated          int
	PlotsBricked          int
	Warnings              []string
}

type blockInfo struct {
	hash       string
	parentHash string
	height     uint32
	timestamp  time.Time
	msg        *wire.MsgBlock
}

// Run indexes from tipHash back to genesisHash (or to an existing
// snapshot, whichever comes first), then forward from that point back up
// to tipHash, persisting one snapshot per block. It returns cooperatively
// as soon as ctx is cancelled, after the in-flight block finishes.
func (e *Engine) Run(ctx context.Context, tipHash, genesisHash string) (RunResult, error) {
	result := RunResult{}

	childOf, resumeHash, err := e.walkDown(ctx, tipHash, genesisHash)
	if err != nil {
		return result, err
	}

	var working *billboard.Snapshot
	if e.Store.Has(resumeHash) {
		working, err = e.Store.Load(resumeHash)
		if err != nil {
			return result, errors.WithStack(err)
		}
	} else {
		// resumeHash must be genesisHash: initialize state at genesis by
		// processing it as if it were the first applied block.
		info, err := e.fetchBlock(ctx, resumeHash)
		if err != nil {
			return result, err
		}
		working = billboard.NewGenesisSnapshot(info.hash, info.parentHash, info.height, info.timestamp, len(info.msg.Transactions))
		stats := e.applyBlock(working, info)
		result.accumulate(stats)
		if err := e.Store.Save(working); err != nil {
			return result, errors.WithStack(err)
		}
		result.BlocksProcessed++
	}

	for current := working.BlockHash; current != tipHash; {
		select {
		case <-ctx.Done():
			result.Success = true
			return result, nil
		default:
		}

		next, ok := childOf[current]
		if !ok {
			return result, errors.Wrapf(ErrGenesisUnreachable, "no recorded child of %s on the path to %s", current, tipHash)
		}

		info, err := e.fetchBlock(ctx, next)
		if err != nil {
			return result, err
		}
		working = working.Fork(info.hash, info.height, info.timestamp, len(info.msg.Transactions))
		stats := e.applyBlock(working, info)
		result.accumulate(stats)

		if err := e.Store.Save(working); err != nil {
			return result, errors.WithStack(err)
		}
		result.BlocksProcessed++
		current = info.hash

		logger.EngineLog.Infof("applied block %s (height %d, %d tx)", info.hash, info.height, len(info.msg.Transactions))
	}

	if err := e.Store.SetTip(tipHash); err != nil {
		return result, errors.WithStack(err)
	}
	result.Success = true
	return result, nil
}

// walkDown implements Phase 1: it follows parent pointers from tipHash
// until it finds a block with an existing snapshot (the resume point) or
// reaches genesisHash, recording a parent->child map along the way. An
// empty genesisHash is a sentinel meaning "use the real chain genesis",
// for callers that asked to index from height 0.
func (e *Engine) walkDown(ctx context.Context, tipHash, genesisHash string) (childOf map[string]string, resumeHash string, err error) {
	childOf = make(map[string]string)
	current := tipHash
	for {
		if e.Store.Has(current) {
			return childOf, current, nil
		}
		if genesisHash != "" && current == genesisHash {
			return childOf, current, nil
		}

		info, err := e.fetchBlock(ctx, current)
		if err != nil {
			return nil, "", err
		}
		if info.parentHash == "" {
			if genesisHash == "" {
				return childOf, current, nil
			}
			return nil, "", errors.Wrapf(ErrGenesisUnreachable, "reached a block with no parent before genesis %s", genesisHash)
		}
		childOf[info.parentHash] = current
		current = info.parentHash
	}
}

// fetchBlock gets a block's bytes (cache first, then the Block Source) and
// parses its header fields.
func (e *Engine) fetchBlock(ctx context.Context, hash string) (blockInfo, error) {
	raw, hit, err := e.Cache.Get(hash)
	if err != nil {
		return blockInfo{}, errors.WithStack(err)
	}
	if !hit {
		hexStr, err := e.Source.GetBlockHex(ctx, hash)
		if err != nil {
			return blockInfo{}, err
		}
		raw = []byte(hexStr)
		if err := e.Cache.Put(hash, raw); err != nil {
			return blockInfo{}, errors.WithStack(err)
		}
	}

	decoded, err := hex.DecodeString(string(raw))
	if err != nil {
		return blockInfo{}, errors.WithStack(err)
	}

	var msg wire.MsgBlock
	if err := msg.Deserialize(bytes.NewReader(decoded)); err != nil {
		return blockInfo{}, errors.WithStack(err)
	}

	blockHash := msg.BlockHash().String()

	parentHash := msg.Header.PrevBlock.String()
	if msg.Header.PrevBlock == (chainhash.Hash{}) {
		parentHash = ""
	}

	height, err := e.Source.GetHeightOf(ctx, blockHash)
	if err != nil {
		return blockInfo{}, err
	}

	return blockInfo{
		hash:       blockHash,
		parentHash: parentHash,
		height:     height,
		timestamp:  msg.Header.Timestamp,
		msg:        &msg,
	}, nil
}

type applyStats struct {
	transactions int
	created      int
	updated      int
	bricked      int
	warnings     []string
}

// applyBlock iterates a block's transactions in block-serialization order,
// classifying and applying each UBB-relevant one to working.
func (e *Engine) applyBlock(working *billboard.Snapshot, info blockInfo) applyStats {
	stats := applyStats{transactions: len(info.msg.Transactions)}
	deedSet := classifier.DeedUTXOSetFromOutpoints(working.DeedUTXOSet())

	for _, tx := range info.msg.Transactions {
		c := classifier.Classify(tx, deedSet, e.Net)
		if !c.Relevant {
			continue
		}
		txid := tx.TxHash().String()
		res := transition.Apply(working, txid, c, info.timestamp)

		if res.PlotCreated {
			stats.created++
		}
		if res.PlotUpdated {
			stats.updated++
		}
		if res.PlotBricked {
			stats.bricked++
		}
		if res.Warning != "" {
			stats.warnings = append(stats.warnings, res.Warning)
			logger.EngineLog.Warnf("tx %s: %s", txid, res.Warning)
		}
		if res.SaveImageTxID != "" {
			if err := e.Store.SaveImage(res.SaveImageTxID, res.SaveImageData); err != nil {
				logger.EngineLog.Errorf("failed to save image for %s: %s", res.SaveImageTxID, err)
			}
		}

		// deedSet must reflect this transaction's effect before the next
		// transaction in the block is classified.
		deedSet = classifier.DeedUTXOSetFromOutpoints(working.DeedUTXOSet())
	}
	return stats
}

func (r *RunResult) accumulate(s applyStats) {
	r.TransactionsProcessed += s.transactions
	r.PlotsCreated += s.created
	r.PlotsUpdated += s.updated
	r.PlotsBricked += s.bricked
	r.Warnings = append(r.Warnings, s.warnings...)
}
