package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// SessionStore persists live sessions. Get returns nil when the session does not exist.
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// AccountResolver maps a login to the account it acts for.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, role domain.Role, name string) (string, error)
}

// SessionListener is told when a session ends so per-session work can be torn down.
type SessionListener interface {
	SessionEnded(ctx context.Context, identity domain.Identity)
}

// SessionService is the session/role authority. It owns identities exclusively.
type SessionService struct {
	store     SessionStore
	tokens    *TokenIssuer
	accounts  AccountResolver
	ttl       time.Duration
	listeners []SessionListener
	logger    *slog.Logger
}

// NewSessionService creates a new SessionService. accounts may be nil, in which
// case the display name is used as the account ID.
func NewSessionService(store SessionStore, tokens *TokenIssuer, accounts AccountResolver, ttl time.Duration, logger *slog.Logger) *SessionService {
	return &SessionService{
		store:    store,
		tokens:   tokens,
		accounts: accounts,
		ttl:      ttl,
		logger:   logger,
	}
}

// AddListener registers a listener notified on logout.
func (s *SessionService) AddListener(l SessionListener) {
	s.listeners = append(s.listeners, l)
}

// LoginRequest contains the parameters for a login.
type LoginRequest struct {
	Role domain.Role
	Name string
}

// LoginResponse is the authenticated session and its bearer token.
type LoginResponse struct {
	Session *domain.Session
	Token   string
}

// Login moves the caller from Anonymous to Authenticated(role, name).
func (s *SessionService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidDisplayName
	}

	accountID := name
	if s.accounts != nil {
		id, err := s.accounts.ResolveAccount(ctx, req.Role, name)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrUnknownAccount
			}
			return nil, err
		}
		accountID = id
	}

	now := time.Now()
	session := &domain.Session{
		ID: uuid.New().String(),
		Identity: domain.Identity{
			ID:          accountID,
			Role:        req.Role,
			DisplayName: name,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.store.Save(ctx, session, s.ttl); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(session)
	if err != nil {
		_ = s.store.Delete(ctx, session.ID)
		return nil, err
	}

	s.logger.Info("session started", "session_id", session.ID, "role", req.Role, "account_id", accountID)
	return &LoginResponse{Session: session, Token: token}, nil
}

// Resolve returns the live session for a token, or nil for the anonymous caller.
// Tokens of logged-out sessions resolve to nil.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Identity.ID != claims.Subject {
		return nil, nil
	}
	return session, nil
}

// Logout moves the caller back to Anonymous. Logging out an unknown, expired
// or already ended session is a no-op.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.tokens.ParseIgnoringExpiry(token)
	if err != nil {
		return nil
	}

	session, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	if err := s.store.Delete(ctx, session.ID); err != nil {
		return err
	}

	for _, l := range s.listeners {
		l.SessionEnded(ctx, session.Identity)
	}

	s.logger.Info("session ended", "session_id", session.ID, "role", session.Identity.Role)
	return nil
}
