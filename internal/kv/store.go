// Package kv is the storage seam of the service. Every piece of mutable
// state (QR ledgers, accounts, sessions, OTPs, login flows) is a JSON
// value under a well-known key in a Store. Writes are versioned
// compare-and-swap so concurrent read-modify-write cycles cannot silently
// overwrite each other.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"greenledger/internal/util"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("kv: key not found")
	// ErrConflict is returned when the expected version does not match.
	ErrConflict = errors.New("kv: version conflict")
	// ErrSkip tells Update that no write is needed.
	ErrSkip = errors.New("kv: skip write")
)

// AnyVersion makes Put unconditional. Version 0 means "must not exist".
const AnyVersion int64 = -1

// MaxRetries bounds the optimistic retry loop in Update
const MaxRetries = 8

// Entry is a stored value and its version
type Entry struct {
	Key     string
	Value   []byte
	Version int64
}

// Change is a notification emitted after a successful write or delete
type Change struct {
	Key     string
	Version int64
	Deleted bool
}

// Store is a versioned key/value store
type Store interface {
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) (*Entry, error)
	// Put writes value if the current version equals expectedVersion and
	// returns the new version. It returns ErrConflict otherwise.
	Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Subscribe streams changes to keys starting with prefix until ctx is done.
	Subscribe(ctx context.Context, prefix string) (<-chan Change, error)
	Close() error
}

// Update runs fn over the current value of key and writes the result with
// compare-and-swap, retrying on conflict. fn may return ErrSkip to leave
// the key untouched.
func Update(ctx context.Context, s Store, key string, fn func(current []byte, exists bool) ([]byte, error)) error {
	for attempt := 0; attempt < MaxRetries; attempt++ {
		var current []byte
		var version int64

		entry, err := s.Get(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			util.StorageErrorsTotal.WithLabelValues("get").Inc()
			return fmt.Errorf("failed to read %s: %w", key, err)
		default:
			current, version = entry.Value, entry.Version
		}

		next, err := fn(current, version != 0)
		if errors.Is(err, ErrSkip) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = s.Put(ctx, key, next, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			util.StorageErrorsTotal.WithLabelValues("put").Inc()
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
		util.StorageConflictsTotal.WithLabelValues(Keyspace(key)).Inc()

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("giving up on %s after %d attempts: %w", key, MaxRetries, ErrConflict)
}

// UpdateJSON is Update over a JSON-encoded value of type T. fn receives the
// zero value when the key does not exist.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(v *T, exists bool) error) error {
	return Update(ctx, s, key, func(current []byte, exists bool) ([]byte, error) {
		var v T
		if exists {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
		if err := fn(&v, exists); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
}

// GetJSON decodes the value at key into v and returns its version
func GetJSON(ctx context.Context, s Store, key string, v any) (int64, error) {
	entry, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(entry.Value, v); err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return entry.Version, nil
}

// PutJSON encodes v and writes it unconditionally
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.Put(ctx, key, b, AnyVersion)
	return err
}
