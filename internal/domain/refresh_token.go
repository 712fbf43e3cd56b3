package domain

import "time"

type RevocationReason string

const (
	ReasonLogout   RevocationReason = "logout"
	ReasonSecurity RevocationReason = "security"
	ReasonRotation RevocationReason = "rotation"
	ReasonExpired  RevocationReason = "expired"
)

// RefreshToken is the ledger record for one issued refresh token.
//
// Security notes:
// - We never store the raw token in DB, only its SHA-256 hash (TokenHash).
// - On refresh we rotate tokens: old token is revoked and replaced by a new one.
// - FamilyID groups every token descended from a single login so that a
//   detected replay invalidates exactly that lineage.
type RefreshToken struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	UserID int64 `json:"user_id" gorm:"index;not null"`
	User   User  `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	FamilyID  string `json:"family_id" gorm:"size:36;index;not null"`
	TokenHash string `json:"-" gorm:"size:64;uniqueIndex;not null"`

	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"index;not null"`
	LastUsedAt *time.Time `json:"last_used_at"`

	Revoked       bool             `json:"revoked" gorm:"index;not null;default:false"`
	RevokedAt     *time.Time       `json:"revoked_at"`
	RevokedReason RevocationReason `json:"revoked_reason,omitempty" gorm:"size:16"`

	UserAgent string `json:"user_agent,omitempty" gorm:"size:512"`
	IPAddress string `json:"ip_address,omitempty" gorm:"size:64"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
