package cache

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("snapshots")

// BoltLayer is the L2 cache: memory-mapped, shared across process restarts
// (spec §4.6: "memory-mapped / shared", async access, LRU with TTL). bbolt
// gives single-writer/many-reader mmap semantics for free; eviction here is
// TTL-only — bbolt has no native LRU, and capacity-bounded eviction would
// need a full-bucket scan on every write, so L2 relies on expiry plus
// periodic Sweep rather than an eager size cap.
type BoltLayer struct {
	db *bolt.DB

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// OpenBoltLayer opens (creating if absent) a bbolt-backed L2 cache at path.
func OpenBoltLayer(path string) (*BoltLayer, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltLayer{db: db}, nil
}

func (b *BoltLayer) Close() error {
	return b.db.Close()
}

// record is value||expiresUnixNano, a fixed 8-byte trailer so Get can check
// expiry without a second structure.
func encodeRecord(value []byte, expires time.Time) []byte {
	out := make([]byte, len(value)+8)
	copy(out, value)
	binary.BigEndian.PutUint64(out[len(value):], uint64(expires.UnixNano()))
	return out
}

func decodeRecord(raw []byte) (value []byte, expires time.Time) {
	if len(raw) < 8 {
		return raw, time.Time{}
	}
	n := len(raw) - 8
	ns := int64(binary.BigEndian.Uint64(raw[n:]))
	return raw[:n], time.Unix(0, ns)
}

func (b *BoltLayer) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expires time.Time
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return nil
		}
		v, exp := decodeRecord(raw)
		value = append([]byte(nil), v...)
		expires = exp
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		b.misses.Add(1)
		return nil, false, nil
	}
	if !expires.IsZero() && time.Now().After(expires) {
		_ = b.Delete(ctx, key)
		b.misses.Add(1)
		b.evictions.Add(1)
		return nil, false, nil
	}
	b.hits.Add(1)
	return value, true, nil
}

func (b *BoltLayer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	record := encodeRecord(value, time.Now().Add(ttl))
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), record)
	})
}

func (b *BoltLayer) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func (b *BoltLayer) Clear(ctx context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

func (b *BoltLayer) Stats() Stats {
	var entries int64
	_ = b.db.View(func(tx *bolt.Tx) error {
		entries = int64(tx.Bucket(bucketName).Stats().KeyN)
		return nil
	})
	return Stats{
		Hits:      b.hits.Load(),
		Misses:    b.misses.Load(),
		Evictions: b.evictions.Load(),
		Entries:   entries,
	}
}

func (b *BoltLayer) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && hasPrefix(string(k), prefix); k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	return out, err
}

// Sweep deletes every expired entry; callers run it on a periodic ticker
// since bbolt itself never expires keys on its own.
func (b *BoltLayer) Sweep(ctx context.Context) (removed int, err error) {
	now := time.Now()
	err = b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		c := bkt.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			_, expires := decodeRecord(v)
			if !expires.IsZero() && now.After(expires) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if removed > 0 {
		b.evictions.Add(int64(removed))
	}
	return removed, err
}
