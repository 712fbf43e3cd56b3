package domain

import "time"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// BlacklistedToken records a token id (jti) that must be rejected before its
// natural expiry. ExpiresAt is copied from the token itself: once it passes,
// signature verification would reject the token anyway, so the entry only
// needs to live that long.
type BlacklistedToken struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	JTI    string `json:"jti" gorm:"size:64;uniqueIndex;not null"`
	UserID int64  `json:"user_id" gorm:"index"`

	TokenType TokenType        `json:"token_type" gorm:"size:8;not null"`
	ExpiresAt time.Time        `json:"expires_at" gorm:"index;not null"`
	Reason    RevocationReason `json:"reason" gorm:"size:16;not null"`

	BlacklistedAt time.Time `json:"blacklisted_at" gorm:"autoCreateTime"`
}

func (b *BlacklistedToken) IsActive(now time.Time) bool {
	return b.ExpiresAt.After(now)
}
