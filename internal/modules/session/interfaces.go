package session

import (
	"context"
	"time"

	"activepanel/internal/domain"
)

// UserRepositoryInterface covers the user operations the session service needs.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u *domain.User) error
}

// LedgerInterface is the durable source of truth for refresh-token usability.
type LedgerInterface interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetValidByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	RevokeByHash(ctx context.Context, hash string, reason domain.RevocationReason) (bool, error)
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// BlacklistInterface holds revoked token ids, checked on every protected call.
type BlacklistInterface interface {
	Add(ctx context.Context, entry *domain.BlacklistedToken) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// GoogleVerifier validates a Google ID token with the identity provider and
// returns the asserted profile. Implemented outside this module; the session
// service only consumes the verified result.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleProfile, error)
}
