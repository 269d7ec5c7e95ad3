package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"greenledger/internal/util"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"go.uber.org/zap"
)

const versionHeader = 8

// BadgerStore persists entries in an embedded badger database. Each value
// is stored behind an 8-byte big-endian version header.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// OpenBadger opens (or creates) a badger database in dir. An empty dir
// opens an in-memory instance.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &BadgerStore{db: db, logger: util.Named("kv-badger")}, nil
}

func encodeVersioned(version int64, value []byte) []byte {
	buf := make([]byte, versionHeader+len(value))
	binary.BigEndian.PutUint64(buf, uint64(version))
	copy(buf[versionHeader:], value)
	return buf
}

func decodeVersioned(raw []byte) (int64, []byte, error) {
	if len(raw) < versionHeader {
		return 0, nil, fmt.Errorf("corrupt entry: %d bytes", len(raw))
	}
	return int64(binary.BigEndian.Uint64(raw[:versionHeader])), raw[versionHeader:], nil
}

// Get reads key
func (b *BadgerStore) Get(ctx context.Context, key string) (*Entry, error) {
	var entry *Entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			version, value, err := decodeVersioned(val)
			if err != nil {
				return err
			}
			entry = &Entry{Key: key, Value: append([]byte(nil), value...), Version: version}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put writes key inside a badger transaction; badger's own conflict
// detection covers writers racing between our read and commit.
func (b *BadgerStore) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	var next int64
	err := b.db.Update(func(txn *badger.Txn) error {
		var current int64
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				current, _, err = decodeVersioned(val)
				return err
			}); err != nil {
				return err
			}
		}

		if expectedVersion != AnyVersion && expectedVersion != current {
			return ErrConflict
		}
		next = current + 1
		return txn.Set([]byte(key), encodeVersioned(next, value))
	})
	if errors.Is(err, badger.ErrConflict) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Delete removes key
func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Keys lists keys with prefix
func (b *BadgerStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// Subscribe uses badger's native change feed
func (b *BadgerStore) Subscribe(ctx context.Context, prefix string) (<-chan Change, error) {
	ch := make(chan Change, 64)

	go func() {
		defer close(ch)
		err := b.db.Subscribe(ctx, func(list *badger.KVList) error {
			for _, item := range list.Kv {
				change := Change{Key: string(item.Key)}
				if version, _, err := decodeVersioned(item.Value); err == nil {
					change.Version = version
				} else {
					change.Deleted = true
				}
				select {
				case ch <- change:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}, []pb.Match{{Prefix: []byte(prefix)}})
		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("Badger subscription ended", zap.String("prefix", prefix), zap.Error(err))
		}
	}()

	return ch, nil
}

// Close closes the database
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
