// Package store is the State Store: per (network, genesis_hash), a
// directory of serialized snapshots, saved BMP images, and an atomic
// pointer to the current tip snapshot. Snapshots are serialized as the
// self-describing textual map the on-disk layout calls for, using
// gopkg.in/yaml.v3 the way the rest of the ecosystem serializes
// structured state to disk.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/MysticalGareth/UBB-sub000/billboard"
	"github.com/MysticalGareth/UBB-sub000/logger"
)

// ErrNotFound is returned by Load and Tip when no entry exists yet.
var ErrNotFound = errors.New("store: not found")

// Store is a single-writer filesystem store rooted at
// <data_dir>/<network>/v1/<genesis_hash>/.
type Store struct {
	root       string
	statesDir  string
	imagesDir  string
	tipPointer string
}

// New returns a Store rooted under dataDir for the given network and UBB
// genesis hash, creating its directory tree if necessary.
func New(dataDir, network, genesisHash string) (*Store, error) {
	root := filepath.Join(dataDir, network, "v1", genesisHash)
	s := &Store{
		root:       root,
		statesDir:  filepath.Join(root, "states"),
		imagesDir:  filepath.Join(root, "images"),
		tipPointer: filepath.Join(root, "state_at_tip"),
	}
	for _, dir := range []string{s.statesDir, s.imagesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return s, nil
}

// snapshotDoc is the on-disk shape of a Snapshot: a flat, self-describing
// map whose field names mirror §3 exactly, independent of the in-memory
// Snapshot's unexported indexes.
type snapshotDoc struct {
	BlockHash   string        `yaml:"block_hash"`
	ParentHash  string        `yaml:"parent_hash"`
	BlockHeight uint32        `yaml:"block_height"`
	Timestamp   time.Time     `yaml:"timestamp"`
	TxCount     int           `yaml:"tx_count"`
	Plots       []plotDoc     `yaml:"plots"`
	DeedUTXOSet []outpointDoc `yaml:"deed_utxo_set"`
}

type outpointDoc struct {
	TxID string `yaml:"txid"`
	Vout uint32 `yaml:"vout"`
}

type plotDoc struct {
	TxID                    string      `yaml:"txid"`
	X0                      uint16      `yaml:"x0"`
	Y0                      uint16      `yaml:"y0"`
	W                       uint16      `yaml:"w"`
	H                       uint16      `yaml:"h"`
	Status                  string      `yaml:"status"`
	DeedUTXO                outpointDoc `yaml:"deed_utxo"`
	ImageHash               string      `yaml:"image_hash"`
	Owner                   string      `yaml:"owner"`
	URI                     string      `yaml:"uri"`
	WasPlacedBeforeBricking bool        `yaml:"was_placed_before_bricking"`
	CreatedAt               time.Time   `yaml:"created_at"`
	LastUpdated             time.Time   `yaml:"last_updated"`
}

func toDoc(s *billboard.Snapshot) snapshotDoc {
	doc := snapshotDoc{
		BlockHash:   s.BlockHash,
		ParentHash:  s.ParentHash,
		BlockHeight: s.BlockHeight,
		Timestamp:   s.Timestamp,
		TxCount:     s.TxCount,
	}
	for _, p := range s.Plots() {
		doc.Plots = append(doc.Plots, plotDoc{
			TxID:                    p.TxID,
			X0:                      p.Rect.X0,
			Y0:                      p.Rect.Y0,
			W:                       p.Rect.W,
			H:                       p.Rect.H,
			Status:                  p.Status.String(),
			DeedUTXO:                outpointDoc{TxID: p.DeedUTXO.TxID, Vout: p.DeedUTXO.Vout},
			ImageHash:               hashHex(p.ImageHash),
			Owner:                   p.Owner,
			URI:                     p.URI,
			WasPlacedBeforeBricking: p.WasPlacedBeforeBricking,
			CreatedAt:               p.CreatedAt,
			LastUpdated:             p.LastUpdated,
		})
	}
	for _, op := range s.DeedUTXOSet() {
		doc.DeedUTXOSet = append(doc.DeedUTXOSet, outpointDoc{TxID: op.TxID, Vout: op.Vout})
	}
	return doc
}

func fromDoc(doc snapshotDoc) (*billboard.Snapshot, error) {
	s := billboard.NewGenesisSnapshot(doc.BlockHash, doc.ParentHash, doc.BlockHeight, doc.Timestamp, doc.TxCount)
	for _, pd := range doc.Plots {
		status, err := billboard.ParseStatus(pd.Status)
		if err != nil {
			return nil, err
		}
		imageHash, err := hashFromHex(pd.ImageHash)
		if err != nil {
			return nil, err
		}
		plot := &billboard.Plot{
			TxID:                    pd.TxID,
			Rect:                    billboard.Rect{X0: pd.X0, Y0: pd.Y0, W: pd.W, H: pd.H},
			Status:                  status,
			DeedUTXO:                billboard.Outpoint{TxID: pd.DeedUTXO.TxID, Vout: pd.DeedUTXO.Vout},
			ImageHash:               imageHash,
			Owner:                   pd.Owner,
			URI:                     pd.URI,
			WasPlacedBeforeBricking: pd.WasPlacedBeforeBricking,
			CreatedAt:               pd.CreatedAt,
			LastUpdated:             pd.LastUpdated,
		}
		s.SetPlot(nil, plot)
	}
	for _, opd := range doc.DeedUTXOSet {
		s.RotateDeed(billboard.Outpoint{}, billboard.Outpoint{TxID: opd.TxID, Vout: opd.Vout}, plotTxIDFor(doc, opd))
	}
	return s, nil
}

// plotTxIDFor recovers which plot a deed outpoint in the serialized set
// belongs to, since the wire format stores the deed set and the plots'
// own deed_utxo fields redundantly (as the in-memory Snapshot does).
func plotTxIDFor(doc snapshotDoc, op outpointDoc) string {
	for _, pd := range doc.Plots {
		if pd.DeedUTXO.TxID == op.TxID && pd.DeedUTXO.Vout == op.Vout {
			return pd.TxID
		}
	}
	return ""
}

// Has reports whether a snapshot has already been persisted for hash.
func (s *Store) Has(hash string) bool {
	_, err := os.Stat(s.statePath(hash))
	return err == nil
}

func (s *Store) statePath(hash string) string {
	return filepath.Join(s.statesDir, hash)
}

// Load reads and deserializes the snapshot persisted under hash.
func (s *Store) Load(hash string) (*billboard.Snapshot, error) {
	b, err := os.ReadFile(s.statePath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.WithStack(err)
	}
	var doc snapshotDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.WithStack(err)
	}
	return fromDoc(doc)
}

// Save atomically persists snapshot under its own block hash.
func (s *Store) Save(snap *billboard.Snapshot) error {
	b, err := yaml.Marshal(toDoc(snap))
	if err != nil {
		return errors.WithStack(err)
	}
	if err := atomicWrite(s.statePath(snap.BlockHash), b); err != nil {
		return err
	}
	logger.StoreLog.Debugf("saved snapshot %s (height %d, %d plots)", snap.BlockHash, snap.BlockHeight, snap.PlotCount())
	return nil
}

// SaveImage atomically persists raw BMP bytes under the CLAIM txid.
func (s *Store) SaveImage(txid string, data []byte) error {
	return atomicWrite(filepath.Join(s.imagesDir, txid+".bmp"), data)
}

// Tip returns the block hash the state_at_tip pointer currently names.
func (s *Store) Tip() (string, error) {
	b, err := os.ReadFile(s.tipPointer)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", errors.WithStack(err)
	}
	return string(b), nil
}

// SetTip atomically repoints state_at_tip to hash.
func (s *Store) SetTip(hash string) error {
	if err := atomicWrite(s.tipPointer, []byte(hash)); err != nil {
		return err
	}
	logger.StoreLog.Infof("tip advanced to %s", hash)
	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.WithStack(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmpName, path))
}
