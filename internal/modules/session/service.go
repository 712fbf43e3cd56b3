package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"activepanel/internal/cache"
	"activepanel/internal/domain"
	"activepanel/internal/pkg/token"
	"activepanel/internal/repository"
)

type tokenCodec interface {
	IssueAccess(u *domain.User) (string, error)
	IssueRefresh(u *domain.User, familyID string) (string, error)
	VerifyAccess(tokenStr string) (*token.AccessClaims, error)
	VerifyRefresh(tokenStr string) (*token.RefreshClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Service owns the token lifecycle: login mints a pair and opens a family,
// refresh rotates within the family, replay of a rotated token kills the
// family, logout blacklists the access jti and revokes the refresh record.
//
// The service is stateless; the ledger and blacklist are the only shared
// mutable resources and are only touched through their atomic operations.
// The cache is advisory and may be nil.
type Service struct {
	users     UserRepositoryInterface
	ledger    LedgerInterface
	blacklist BlacklistInterface
	codec     tokenCodec
	revCache  *cache.BlacklistCache
}

func NewService(
	users UserRepositoryInterface,
	ledger LedgerInterface,
	blacklist BlacklistInterface,
	codec tokenCodec,
	revCache *cache.BlacklistCache,
) *Service {
	return &Service{
		users:     users,
		ledger:    ledger,
		blacklist: blacklist,
		codec:     codec,
		revCache:  revCache,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest, meta ClientMeta) (*domain.User, *TokenPair, error) {
	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrEmailAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		DisplayName:  req.Name,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}
	user.PasswordHash = ""
	return user, pair, nil
}

// Login authenticates by password. Unknown email and wrong password are
// deliberately indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest, meta ClientMeta) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !user.HasPassword() {
		return nil, nil, ErrPasswordLoginUnavailable
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}
	user.PasswordHash = ""
	return user, pair, nil
}

// LoginWithGoogle upserts the account behind a verified Google profile and
// opens a session for it. Accounts are matched by google id first, then by
// email (linking a previously password-only account).
func (s *Service) LoginWithGoogle(ctx context.Context, profile *GoogleProfile, meta ClientMeta) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByGoogleID(ctx, profile.GoogleID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	if user == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = s.users.GetByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			user.GoogleID = profile.GoogleID
			if user.AvatarURL == "" {
				user.AvatarURL = profile.Picture
			}
			if err := s.users.Update(ctx, user); err != nil {
				return nil, nil, err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = &domain.User{
				Email:       strings.ToLower(strings.TrimSpace(profile.Email)),
				GoogleID:    profile.GoogleID,
				DisplayName: profile.Name,
				FirstName:   profile.FirstName,
				LastName:    profile.LastName,
				AvatarURL:   profile.Picture,
				Role:        domain.RoleUser,
			}
			if err := s.users.Create(ctx, user); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, err
		}
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, nil, err
	}
	user.PasswordHash = ""
	return user, pair, nil
}

// Refresh performs one rotation step. Expected path: the presented token is
// found live in the ledger, gets revoked (reason=rotation) and a successor is
// created in the same family. Any other outcome (unknown hash, revoked row,
// losing the conditional revoke to a concurrent duplicate) is treated as
// replay of a stolen token and burns the whole family.
func (s *Service) Refresh(ctx context.Context, rawRefresh string, meta ClientMeta) (*TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(rawRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	hash := repository.HashToken(rawRefresh)
	current, err := s.ledger.GetValidByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if current == nil {
		if err := s.ledger.RevokeFamily(ctx, claims.FamilyID); err != nil {
			return nil, err
		}
		return nil, ErrReuseDetected
	}

	// Revoke before create: a crash between the two leaves the old token
	// dead and no new one issued, which fails safe.
	won, err := s.ledger.RevokeByHash(ctx, hash, domain.ReasonRotation)
	if err != nil {
		return nil, err
	}
	if !won {
		if err := s.ledger.RevokeFamily(ctx, current.FamilyID); err != nil {
			return nil, err
		}
		return nil, ErrReuseDetected
	}

	user, err := s.users.GetByID(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	return s.issuePair(ctx, user, current.FamilyID, meta)
}

// Logout blacklists exactly the presented access token's jti and revokes the
// refresh record if one was presented. Safe to call twice.
func (s *Service) Logout(ctx context.Context, claims *token.AccessClaims, rawRefresh string) error {
	expiresAt := time.Now().Add(s.codec.AccessTTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	entry := &domain.BlacklistedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		TokenType: domain.TokenTypeAccess,
		ExpiresAt: expiresAt,
		Reason:    domain.ReasonLogout,
	}
	if err := s.blacklist.Add(ctx, entry); err != nil {
		return err
	}
	s.revCache.Put(ctx, claims.ID, time.Until(expiresAt))

	if rawRefresh != "" {
		if _, err := s.ledger.RevokeByHash(ctx, repository.HashToken(rawRefresh), domain.ReasonLogout); err != nil {
			return err
		}
	}
	return nil
}

// RevokeAllSessions is the account-wide compromise response. Every live
// refresh token for the user is revoked; the calling access token is
// blacklisted so the current session dies immediately too. Other outstanding
// access tokens are untracked and expire within the short access TTL.
func (s *Service) RevokeAllSessions(ctx context.Context, claims *token.AccessClaims) error {
	if err := s.ledger.RevokeAllForUser(ctx, claims.UserID); err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.codec.AccessTTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	entry := &domain.BlacklistedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		TokenType: domain.TokenTypeAccess,
		ExpiresAt: expiresAt,
		Reason:    domain.ReasonSecurity,
	}
	if err := s.blacklist.Add(ctx, entry); err != nil {
		return err
	}
	s.revCache.Put(ctx, claims.ID, time.Until(expiresAt))
	return nil
}

func (s *Service) CurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// openSession starts a fresh token family for a successful authentication.
func (s *Service) openSession(ctx context.Context, user *domain.User, meta ClientMeta) (*TokenPair, error) {
	return s.issuePair(ctx, user, uuid.NewString(), meta)
}

func (s *Service) issuePair(ctx context.Context, user *domain.User, familyID string, meta ClientMeta) (*TokenPair, error) {
	accessToken, err := s.codec.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.codec.IssueRefresh(user, familyID)
	if err != nil {
		return nil, err
	}

	record := &domain.RefreshToken{
		UserID:    user.ID,
		FamilyID:  familyID,
		TokenHash: repository.HashToken(refreshToken),
		ExpiresAt: time.Now().Add(s.codec.RefreshTTL()),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IP,
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
