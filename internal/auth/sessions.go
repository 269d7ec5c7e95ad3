package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStore keeps session tokens and the profile they point at
type SessionStore struct {
	store  kv.Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewSessionStore creates a session store. now may be nil.
func NewSessionStore(store kv.Store, ttl time.Duration, now func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &SessionStore{store: store, ttl: ttl, now: now, logger: util.Named("sessions")}
}

// Create opens a session for user
func (s *SessionStore) Create(ctx context.Context, user *models.User, source string) (*models.Session, error) {
	now := s.now()
	session := &models.Session{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		Source:    source,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := kv.PutJSON(ctx, s.store, kv.UserKey(user.ID), user); err != nil {
		return nil, err
	}
	b, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	// a fresh token must not exist yet
	if _, err := s.store.Put(ctx, kv.SessionKey(session.Token), b, 0); err != nil {
		return nil, err
	}
	return session, nil
}

// Lookup resolves a token to its session and user. Expired sessions are deleted.
func (s *SessionStore) Lookup(ctx context.Context, token string) (*models.Session, *models.User, error) {
	var session models.Session
	if _, err := kv.GetJSON(ctx, s.store, kv.SessionKey(token), &session); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	if session.Expired(s.now()) {
		if err := s.store.Delete(ctx, kv.SessionKey(token)); err != nil {
			s.logger.Error("Failed to delete expired session", zap.Error(err))
		}
		return nil, nil, ErrSessionExpired
	}

	var user models.User
	if _, err := kv.GetJSON(ctx, s.store, kv.UserKey(session.UserID), &user); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}
	return &session, &user, nil
}

// Delete ends a session
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.store.Delete(ctx, kv.SessionKey(token))
}

// PurgeExpired removes every expired session
func (s *SessionStore) PurgeExpired(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx, kv.KeySession+":")
	if err != nil {
		return 0, err
	}

	now := s.now()
	purged := 0
	for _, key := range keys {
		var session models.Session
		if _, err := kv.GetJSON(ctx, s.store, key, &session); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return purged, err
		}
		if !session.Expired(now) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
