package repository

import (
	"context"
	"time"

	"activepanel/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlacklistRepository stores revoked token ids. Access tokens are stateless,
// so this is the only way to kill one before its natural expiry.
type BlacklistRepository struct {
	db *gorm.DB
}

func NewBlacklistRepository(db *gorm.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Add is idempotent: blacklisting the same jti twice is not an error.
func (r *BlacklistRepository) Add(ctx context.Context, entry *domain.BlacklistedToken) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(entry).Error
}

// IsBlacklisted reports whether a live entry exists for the jti. Entries
// whose copied expiry has passed no longer matter; the token itself is
// already rejected by the expiry check.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BlacklistedToken{}).
		Where("jti = ? AND expires_at > ?", jti, time.Now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *BlacklistRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&domain.BlacklistedToken{})
	return tx.RowsAffected, tx.Error
}
