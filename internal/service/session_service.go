package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/session-console/internal/domain"
	"github.com/sandeepkv93/session-console/internal/observability"
	"github.com/sandeepkv93/session-console/internal/repository"

	"github.com/google/uuid"
)

const (
	RevokeStatusRevoked        = "revoked"
	RevokeStatusAlreadyRevoked = "already_revoked"
)

var ErrEmptyToken = errors.New("session token is required")

type SessionService struct {
	sessionRepo repository.SessionRepository
	sessionTTL  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository, sessionTTL time.Duration, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		sessionTTL:  sessionTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// NewSession describes a sign-in to record. A zero CreatedAt means now and a
// zero ExpiresAt means CreatedAt plus the session TTL.
type NewSession struct {
	UserAgent string
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Create stores a session for userID with a fresh id and revocation token.
func (s *SessionService) Create(ctx context.Context, userID uint, in NewSession) (*domain.Session, error) {
	created := in.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
	}
	expires := in.ExpiresAt
	if expires.IsZero() {
		expires = created.Add(s.sessionTTL)
	}
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserAgent: strings.TrimSpace(in.UserAgent),
		IP:        strings.TrimSpace(in.IP),
		ExpiresAt: expires,
		CreatedAt: created,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *SessionService) Current(ctx context.Context, userID uint, sessionID string) (*domain.Session, error) {
	return s.sessionRepo.FindActiveByIDForUser(ctx, userID, sessionID)
}

func (s *SessionService) ListActiveSessions(ctx context.Context, userID uint) ([]domain.Session, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		observability.RecordSessionList(ctx, "all", "error")
		return nil, err
	}
	observability.RecordSessionList(ctx, "all", "success")
	return sessions, nil
}

// ListDeviceSessions returns the active sessions that share the user agent
// of the caller's session.
func (s *SessionService) ListDeviceSessions(ctx context.Context, userID uint, currentSessionID string) ([]domain.Session, error) {
	current, err := s.sessionRepo.FindActiveByIDForUser(ctx, userID, currentSessionID)
	if err != nil {
		observability.RecordSessionList(ctx, "device", "error")
		return nil, err
	}
	if current.UserAgent == "" {
		observability.RecordSessionList(ctx, "device", "success")
		return []domain.Session{*current}, nil
	}
	sessions, err := s.sessionRepo.ListActiveByUserAgent(ctx, userID, current.UserAgent)
	if err != nil {
		observability.RecordSessionList(ctx, "device", "error")
		return nil, err
	}
	observability.RecordSessionList(ctx, "device", "success")
	return sessions, nil
}

// RevokeSession revokes the caller's session holding token. Revoking an
// already revoked session is not an error.
func (s *SessionService) RevokeSession(ctx context.Context, userID uint, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		observability.RecordSessionRevoke(ctx, "one", "invalid")
		return "", ErrEmptyToken
	}
	revoked, changed, err := s.sessionRepo.RevokeByTokenForUser(ctx, userID, token, "user_session_revoked")
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordSessionRevoke(ctx, "one", "not_found")
		} else {
			observability.RecordSessionRevoke(ctx, "one", "error")
		}
		return "", err
	}
	observability.RecordSessionRevoke(ctx, "one", "success")
	if !changed {
		return RevokeStatusAlreadyRevoked, nil
	}
	s.logger.InfoContext(ctx, "session revoked", "user_id", userID, "session_id", revoked.ID)
	return RevokeStatusRevoked, nil
}

func (s *SessionService) RevokeOtherSessions(ctx context.Context, userID uint, currentSessionID string) (int64, error) {
	n, err := s.sessionRepo.RevokeOthersByUser(ctx, userID, currentSessionID, "user_revoke_others")
	if err != nil {
		observability.RecordSessionRevoke(ctx, "others", "error")
		return n, err
	}
	observability.RecordSessionRevoke(ctx, "others", "success")
	s.logger.InfoContext(ctx, "other sessions revoked", "user_id", userID, "kept_session_id", currentSessionID, "count", n)
	return n, nil
}

// CleanupExpired deletes sessions past their expiry.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.CleanupExpired(ctx)
	if err != nil {
		return n, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", "count", n)
	}
	return n, nil
}
