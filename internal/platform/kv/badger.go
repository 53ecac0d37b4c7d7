package kv

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
)

// Badger is a Store backed by an embedded badger database. Badger enforces
// entry TTLs natively, so expiry survives process restarts (which the token
// service does not rely on, but gets for free).
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (creating if needed) a badger database at dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db at %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

// NewBadger wraps an already-open badger database. The caller keeps ownership
// of db's lifecycle unless Close is used.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

// Close releases the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// DB exposes the underlying handle so other stores can share one database.
func (b *Badger) DB() *badger.DB {
	return b.db
}

// Put implements Store.Put.
func (b *Badger) Put(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrBadTTL
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
}

// Get implements Store.Get.
func (b *Badger) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}
