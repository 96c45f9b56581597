package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet/internal/domain"
)

const sessionPrefix = "session:"

// cachedSession is the stored form of a session.
type cachedSession struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionStore keeps live sessions in Redis, expiring them with their TTL.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Save stores a session.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(cachedSession{
		ID:          session.ID,
		AccountID:   session.Identity.ID,
		Role:        string(session.Identity.Role),
		DisplayName: session.Identity.DisplayName,
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionPrefix+session.ID, data, ttl).Err()
}

// Get retrieves a session. It returns nil when the session does not exist.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &domain.Session{
		ID: cached.ID,
		Identity: domain.Identity{
			ID:          cached.AccountID,
			Role:        domain.Role(cached.Role),
			DisplayName: cached.DisplayName,
		},
		CreatedAt: cached.CreatedAt,
		ExpiresAt: cached.ExpiresAt,
	}, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionPrefix+sessionID).Err()
}
