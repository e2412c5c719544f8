package overlay

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
)

// Cache stores loaded grids between runs.
type Cache interface {
	Get(key string) (Grid, bool, error)
	Set(key string, g Grid, ttl time.Duration) error
	Close() error
}

// BadgerCache keeps zstd compressed grids in a badger database.
type BadgerCache struct {
	db      *badger.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// OpenBadgerCache opens the cache in dir. An empty dir keeps it in memory.
func OpenBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open overlay cache: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &BadgerCache{db: db, encoder: encoder, decoder: decoder}, nil
}

func hashKey(key string) []byte {
	sum := sha1.Sum([]byte(key))
	return []byte(hex.EncodeToString(sum[:]))
}

// Get returns the grid stored under key. Expired entries are misses.
func (c *BadgerCache) Get(key string) (Grid, bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(hashKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Grid{}, false, nil
	}
	if err != nil {
		return Grid{}, false, err
	}

	data, err := c.decoder.DecodeAll(raw, nil)
	if err != nil {
		return Grid{}, false, fmt.Errorf("decompress %q: %w", key, err)
	}
	var g Grid
	if err := json.Unmarshal(data, &g); err != nil {
		return Grid{}, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return g, true, nil
}

// Set stores g under key. A zero ttl never expires.
func (c *BadgerCache) Set(key string, g Grid, ttl time.Duration) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))

	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(hashKey(key), compressed)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Close releases the database and codecs.
func (c *BadgerCache) Close() error {
	c.decoder.Close()
	if err := c.encoder.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}
