package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"activepanel/internal/domain"

	"gorm.io/gorm"
)

// HashToken derives the storage key for a raw refresh token. Raw tokens are
// never written to the database.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenRepository is the durable ledger of issued refresh tokens.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// GetValidByHash returns the matching record only if it is neither revoked
// nor expired. Absence, revocation and expiry all come back as (nil, nil):
// the refresh path must treat them identically as a reuse signal.
func (r *RefreshTokenRepository) GetValidByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked = ? AND expires_at > ?", hash, false, time.Now().UTC()).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// RevokeByHash marks the record revoked with a single conditional update.
// The `revoked = false` guard makes the first caller win; concurrent
// duplicates see won=false and must take the reuse path. This is the atomic
// step that keeps rotation linearizable per token hash.
func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, hash string, reason domain.RevocationReason) (won bool, err error) {
	now := time.Now().UTC()
	tx := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("token_hash = ? AND revoked = ?", hash, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
			"last_used_at":   now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// RevokeFamily invalidates every live token descended from one login.
// Used exclusively when reuse of a rotated-away token is detected.
func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("family_id = ? AND revoked = ?", familyID, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": domain.ReasonSecurity,
		}).Error
}

// RevokeAllForUser is the account-wide compromise response (password change,
// detected takeover).
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": domain.ReasonSecurity,
		}).Error
}

// DeleteExpired removes records past their expiry, plus revoked records whose
// revocation is older than the retention window. Active records are never
// touched.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-retention)
	tx := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked = ? AND revoked_at < ?)", now, true, cutoff).
		Delete(&domain.RefreshToken{})
	return tx.RowsAffected, tx.Error
}
