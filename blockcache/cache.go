// Package blockcache is the raw-block filesystem cache: one file per
// block hash under <data_dir>/<network>/rawblock/, written atomically via
// write-to-temp-then-rename so a crash mid-write never leaves a
// corrupted entry visible to a reader.
package blockcache

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/MysticalGareth/UBB-sub000/logger"
)

// ErrCacheIO wraps any filesystem failure reading or writing an entry.
var ErrCacheIO = errors.New("block cache i/o error")

// Cache is a single-writer, filesystem-backed store of raw block hex
// keyed by block hash. It provides no locking of its own: the engine is
// the only writer for a given (network, genesis) pair, per the
// concurrency model.
type Cache struct {
	dir string
}

// New returns a Cache rooted at <dataDir>/<network>/rawblock.
func New(dataDir, network string) (*Cache, error) {
	dir := filepath.Join(dataDir, network, "rawblock")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(ErrCacheIO, err.Error())
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash)
}

// Has reports whether hash has a cached entry.
func (c *Cache) Has(hash string) bool {
	_, err := os.Stat(c.path(hash))
	return err == nil
}

// Get returns the cached raw block hex for hash, or ok=false on a miss.
func (c *Cache) Get(hash string) (data []byte, ok bool, err error) {
	b, err := os.ReadFile(c.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(ErrCacheIO, err.Error())
	}
	return b, true, nil
}

// Put writes data for hash atomically: write to a temp file in the same
// directory, fsync, then rename over the final path.
func (c *Cache) Put(hash string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, hash+".tmp-*")
	if err != nil {
		return errors.Wrap(ErrCacheIO, err.Error())
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(ErrCacheIO, err.Error())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(ErrCacheIO, err.Error())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(ErrCacheIO, err.Error())
	}
	if err := os.Rename(tmpName, c.path(hash)); err != nil {
		return errors.Wrap(ErrCacheIO, err.Error())
	}

	logger.BlockCacheLog.Tracef("cached block %s (%d bytes)", hash, len(data))
	return nil
}
