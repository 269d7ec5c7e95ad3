package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"greenledger/internal/kv"
	"greenledger/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

const changeChannel = "kv_changes"

// Store is the Postgres backend. It implements kv.Store over the
// kv_entries table and keeps the worker's audit log.
type Store struct {
	db     *sqlx.DB
	url    string
	logger *zap.Logger
}

var _ kv.Store = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, url: databaseURL, logger: util.Named("kv-postgres")}, nil
}

// Migrate creates the tables when missing
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for readiness probes
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type row struct {
	Key     string `db:"key"`
	Value   []byte `db:"value"`
	Version int64  `db:"version"`
}

// Get reads one entry
func (s *Store) Get(ctx context.Context, key string) (*kv.Entry, error) {
	var r row
	err := s.db.GetContext(ctx, &r, "SELECT key, value, version FROM kv_entries WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kv.Entry{Key: r.Key, Value: r.Value, Version: r.Version}, nil
}

// Put writes with a conditional INSERT or UPDATE so the version check and
// the write happen in one statement.
func (s *Store) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	var (
		version int64
		err     error
	)

	switch expectedVersion {
	case kv.AnyVersion:
		err = s.db.GetContext(ctx, &version, `
			INSERT INTO kv_entries (key, value, version)
			VALUES ($1, $2, 1)
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, version = kv_entries.version + 1, updated_at = NOW()
			RETURNING version`, key, value)
	case 0:
		err = s.db.GetContext(ctx, &version, `
			INSERT INTO kv_entries (key, value, version)
			VALUES ($1, $2, 1)
			ON CONFLICT (key) DO NOTHING
			RETURNING version`, key, value)
	default:
		err = s.db.GetContext(ctx, &version, `
			UPDATE kv_entries
			SET value = $2, version = version + 1, updated_at = NOW()
			WHERE key = $1 AND version = $3
			RETURNING version`, key, value, expectedVersion)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return 0, kv.ErrConflict
	}
	if err != nil {
		return 0, err
	}

	s.notify(ctx, kv.Change{Key: key, Version: version})
	return version, nil
}

// Delete removes one entry
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = $1", key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(ctx, kv.Change{Key: key, Deleted: true})
	}
	return nil
}

// Keys lists keys with prefix
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys,
		"SELECT key FROM kv_entries WHERE key LIKE $1 ESCAPE '\\' ORDER BY key", likePrefix(prefix))
	return keys, err
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

type notification struct {
	Key     string `json:"key"`
	Version int64  `json:"version"`
	Deleted bool   `json:"deleted,omitempty"`
}

func (s *Store) notify(ctx context.Context, c kv.Change) {
	payload, _ := json.Marshal(notification{Key: c.Key, Version: c.Version, Deleted: c.Deleted})
	if _, err := s.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", changeChannel, string(payload)); err != nil {
		s.logger.Warn("Failed to publish change notification", zap.String("key", c.Key), zap.Error(err))
	}
}

// Subscribe listens on the kv_changes channel with a dedicated pq listener
func (s *Store) Subscribe(ctx context.Context, prefix string) (<-chan kv.Change, error) {
	listener := pq.NewListener(s.url, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("Listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(changeChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", changeChannel, err)
	}

	ch := make(chan kv.Change, 64)
	go func() {
		defer close(ch)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// nil after a reconnect
				if n == nil {
					continue
				}
				var msg notification
				if err := json.Unmarshal([]byte(n.Extra), &msg); err != nil {
					continue
				}
				if !strings.HasPrefix(msg.Key, prefix) {
					continue
				}
				select {
				case ch <- kv.Change{Key: msg.Key, Version: msg.Version, Deleted: msg.Deleted}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
