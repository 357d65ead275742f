package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/session-console/internal/domain"
	"github.com/sandeepkv93/session-console/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindActiveByIDForUser(ctx context.Context, userID uint, sessionID string) (*domain.Session, error)
	ListActiveByUserID(ctx context.Context, userID uint) ([]domain.Session, error)
	ListActiveByUserAgent(ctx context.Context, userID uint, userAgent string) ([]domain.Session, error)
	RevokeByTokenForUser(ctx context.Context, userID uint, token, reason string) (*domain.Session, bool, error)
	RevokeOthersByUser(ctx context.Context, userID uint, keepSessionID, reason string) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindActiveByIDForUser(ctx context.Context, userID uint, sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ? AND revoked_at IS NULL AND expires_at > ?", userID, sessionID, time.Now()).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "find_active_by_id_for_user", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "find_active_by_id_for_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_active_by_id_for_user", "success")
	return &s, nil
}

func (r *GormSessionRepository) ListActiveByUserID(ctx context.Context, userID uint) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, time.Now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_id", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_id", "success")
	return sessions, nil
}

func (r *GormSessionRepository) ListActiveByUserAgent(ctx context.Context, userID uint, userAgent string) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND user_agent = ? AND revoked_at IS NULL AND expires_at > ?", userID, userAgent, time.Now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_agent", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_agent", "success")
	return sessions, nil
}

// RevokeByTokenForUser revokes the user's session holding token. changed is
// false when the session was already revoked.
func (r *GormSessionRepository) RevokeByTokenForUser(ctx context.Context, userID uint, token, reason string) (*domain.Session, bool, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, token).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "revoke_by_token_for_user", "not_found")
			return nil, false, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_token_for_user", "error")
		return nil, false, err
	}
	if s.RevokedAt != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_token_for_user", "success")
		return &s, false, nil
	}
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND revoked_at IS NULL", s.ID).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_token_for_user", "error")
		return nil, false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_by_token_for_user", "success")
	if res.RowsAffected > 0 {
		s.RevokedAt = &now
		s.RevokedReason = &reason
	}
	return &s, res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) RevokeOthersByUser(ctx context.Context, userID uint, keepSessionID, reason string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND id <> ? AND revoked_at IS NULL", userID, keepSessionID).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_others_by_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_others_by_user", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
