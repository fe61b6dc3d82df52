package storage

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// BoltStore is a durable Store backed by a single bbolt file. Each namespace
// maps to a bucket; commits are bbolt transactions, so writes from different
// handles never interleave within a key.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the store file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

// Open returns a handle on the named namespace, creating its bucket if needed.
func (s *BoltStore) Open(namespace string) (Namespace, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(namespace))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open namespace %s: %w", namespace, err)
	}
	return &boltNamespace{db: s.db, bucket: []byte(namespace)}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltNamespace struct {
	db      *bolt.DB
	bucket  []byte
	pending map[string][]byte
}

func (n *boltNamespace) get(key string) ([]byte, error) {
	if v, ok := n.pending[key]; ok {
		return v, nil
	}
	var out []byte
	err := n.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (n *boltNamespace) set(key string, value []byte) {
	if n.pending == nil {
		n.pending = make(map[string][]byte)
	}
	n.pending[key] = value
}

func (n *boltNamespace) GetU32(key string) (uint32, error) {
	v, err := n.get(key)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("key %s: expected 4 bytes, got %d", key, len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}

func (n *boltNamespace) SetU32(key string, value uint32) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, value)
	n.set(key, buf)
	return nil
}

func (n *boltNamespace) GetString(key string) (string, error) {
	v, err := n.get(key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (n *boltNamespace) SetString(key, value string) error {
	n.set(key, []byte(value))
	return nil
}

// Commit writes all buffered values in one transaction.
func (n *boltNamespace) Commit() error {
	if len(n.pending) == 0 {
		return nil
	}
	err := n.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(n.bucket)
		if err != nil {
			return err
		}
		for k, v := range n.pending {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit namespace %s: %w", n.bucket, err)
	}
	n.pending = nil
	return nil
}

// Close discards uncommitted writes. The database stays open; it belongs to
// the BoltStore.
func (n *boltNamespace) Close() error {
	n.pending = nil
	return nil
}
