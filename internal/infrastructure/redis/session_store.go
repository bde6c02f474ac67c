package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	dmodels "github.com/nexusportal/backend/internal/domain/models"
	backend "github.com/redis/go-redis/v9"
)

// SessionStore implements ports.SessionPersistence on Redis. It is meant
// for deployments that keep the system tables in MySQL but want session
// churn off the database: sessions are hot, small, and expendable after
// the TTL. Resumption lookups go through index keys written in the same
// pipeline as the session body so they expire together.
type SessionStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*SessionStore)

// WithTTL sets the expiration for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// New creates a new Redis session store with options.
func New(address, password string, db int, opts ...Option) *SessionStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a new Redis session store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: "portal:webform:session:",
		ttl:    0, // no expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *SessionStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *SessionStore) recordKey(webFormID, recordID string) string {
	return fmt.Sprintf("%srecord:%s:%s", s.prefix, webFormID, recordID)
}

func (s *SessionStore) identityKey(webFormID, identity string) string {
	return fmt.Sprintf("%sidentity:%s:%s", s.prefix, webFormID, identity)
}

// Load retrieves a session by id. A miss is (nil, nil).
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*dmodels.WebFormSession, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session from redis: %w", err)
	}

	var session dmodels.WebFormSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return &session, nil
}

// LoadByPrimaryRecord resolves the session holding a sticky primary record
func (s *SessionStore) LoadByPrimaryRecord(ctx context.Context, webFormID, recordID string) (*dmodels.WebFormSession, error) {
	return s.loadIndirect(ctx, s.recordKey(webFormID, recordID))
}

// LoadByIdentity resolves the session held by a visitor identity
func (s *SessionStore) LoadByIdentity(ctx context.Context, webFormID, identity string) (*dmodels.WebFormSession, error) {
	return s.loadIndirect(ctx, s.identityKey(webFormID, identity))
}

func (s *SessionStore) loadIndirect(ctx context.Context, indexKey string) (*dmodels.WebFormSession, error) {
	sessionID, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve session index from redis: %w", err)
	}
	return s.Load(ctx, sessionID)
}

// Save persists the session body and its resumption indexes in one pipeline
func (s *SessionStore) Save(ctx context.Context, session *dmodels.WebFormSession) (string, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(session.ID), data, s.ttl)

	if session.PrimaryRecord.ID != "" {
		pipe.Set(ctx, s.recordKey(session.WebFormID, session.PrimaryRecord.ID), session.ID, s.ttl)
	}
	if session.ContactID != "" {
		pipe.Set(ctx, s.identityKey(session.WebFormID, session.ContactID), session.ID, s.ttl)
	}
	if session.AnonymousID != "" {
		pipe.Set(ctx, s.identityKey(session.WebFormID, session.AnonymousID), session.ID, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to save session to redis: %w", err)
	}
	return session.ID, nil
}

// Deactivate marks the session inactive and drops its resumption indexes
// so a later entry starts fresh. The body stays until the TTL for audit.
func (s *SessionStore) Deactivate(ctx context.Context, sessionID string) error {
	session, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	session.IsActive = false
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sessionID), data, s.ttl)
	if session.PrimaryRecord.ID != "" {
		pipe.Del(ctx, s.recordKey(session.WebFormID, session.PrimaryRecord.ID))
	}
	if session.ContactID != "" {
		pipe.Del(ctx, s.identityKey(session.WebFormID, session.ContactID))
	}
	if session.AnonymousID != "" {
		pipe.Del(ctx, s.identityKey(session.WebFormID, session.AnonymousID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to deactivate session in redis: %w", err)
	}
	return nil
}
