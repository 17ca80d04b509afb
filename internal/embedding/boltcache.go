package embedding

import (
	"fmt"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/vector"
)

var bucketEmbeddings = []byte("embeddings")

// BoltCache persists embeddings in a bbolt file so restarts do not re-bill the provider.
type BoltCache struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// NewBoltCache opens or creates the cache file at path.
func NewBoltCache(path string, logger *zap.Logger) (*BoltCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketEmbeddings, err)
	}
	return &BoltCache{db: db, logger: logger}, nil
}

// Get returns the stored vector for key.
func (c *BoltCache) Get(key string) ([]float32, bool) {
	var vec []float32
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(key))
		if data == nil {
			return nil
		}
		// data is only valid inside the transaction; DecodeBlob copies it.
		v, err := vector.DecodeBlob(data)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		return nil, false
	}
	return vec, vec != nil
}

// Set stores the vector for key. Write failures are logged, not returned.
func (c *BoltCache) Set(key string, value []float32) {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(key), vector.EncodeBlob(value))
	})
	if err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
}

// Len returns the number of stored entries.
func (c *BoltCache) Len() int {
	n := 0
	_ = c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEmbeddings).Stats().KeyN
		return nil
	})
	return n
}

// Close closes the underlying file.
func (c *BoltCache) Close() error {
	return c.db.Close()
}
