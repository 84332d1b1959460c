// Package session keeps admin panel logins in redis. Each access token jti
// maps to a record holding its user and a digest of the refresh token.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/redis"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// Session is what a login or refresh hands back to the caller. The refresh
// token is only ever returned here; redis keeps its digest.
type Session struct {
	AccessID     string
	RefreshToken string
	UserID       uuid.UUID
}

type record struct {
	UserID   uuid.UUID `json:"uid"`
	Digest   string    `json:"rt"`
	IssuedAt time.Time `json:"iat"`
}

// AccessSessionChecker is the read side used by the admin auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager requires the refresh lifetime to outlast the access token.
func NewManager(client *redis.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case ttl <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case ttl <= access:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{store: client, ttl: ttl, now: time.Now}, nil
}

// NewAccessID produces the value used as both JWT jti and redis key suffix.
func NewAccessID() string {
	return uuid.NewString()
}

func (m *Manager) Start(ctx context.Context, userID uuid.UUID) (Session, error) {
	if userID == uuid.Nil {
		return Session{}, errors.New("user id is required")
	}
	return m.open(ctx, userID)
}

// Rotate trades a valid refresh token for a new session and deletes the
// old one, so each refresh token works once.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (Session, error) {
	if blank(oldAccessID) || blank(provided) {
		return Session{}, ErrInvalidRefreshToken
	}
	key := m.store.AccessSessionKey(oldAccessID)
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return Session{}, err
	}
	rec, ok := decodeRecord(raw)
	if !ok || subtle.ConstantTimeCompare([]byte(rec.Digest), []byte(digest(provided))) != 1 {
		return Session{}, ErrInvalidRefreshToken
	}

	next, err := m.open(ctx, rec.UserID)
	if err != nil {
		return Session{}, err
	}
	if err := m.store.Del(ctx, key); err != nil {
		return Session{}, err
	}
	return next, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errors.New("access id is required")
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errors.New("access id is required")
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *Manager) open(ctx context.Context, userID uuid.UUID) (Session, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("generating refresh token: %w", err)
	}
	sess := Session{
		AccessID:     NewAccessID(),
		RefreshToken: base64.RawURLEncoding.EncodeToString(buf),
		UserID:       userID,
	}
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	value, err := json.Marshal(record{UserID: userID, Digest: digest(sess.RefreshToken), IssuedAt: now().UTC()})
	if err != nil {
		return Session{}, err
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(sess.AccessID), string(value), m.ttl); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func decodeRecord(raw string) (record, bool) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.UserID == uuid.Nil || rec.Digest == "" {
		return record{}, false
	}
	return rec, true
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
