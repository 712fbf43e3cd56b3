package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"activepanel/internal/domain"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// AccessClaims is what an API call proves about its caller. Validity is
// established by signature alone; nothing here touches storage.
type AccessClaims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwtlib.RegisteredClaims
}

// RefreshClaims carries the family id through every rotation descended from
// one login.
type RefreshClaims struct {
	UserID    int64  `json:"user_id"`
	FamilyID  string `json:"family_id"`
	TokenType string `json:"type"`
	jwtlib.RegisteredClaims
}

// Codec signs and verifies both token kinds. Verification is pure CPU:
// no I/O, safe to call from any number of stateless workers.
type Codec struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCodec(keys *KeyPair, issuer, audience string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	priv, err := jwtlib.ParseRSAPrivateKeyFromPEM(keys.privatePEM)
	if err != nil {
		return nil, fmt.Errorf("parse RSA private key: %w", err)
	}
	pub, err := jwtlib.ParseRSAPublicKeyFromPEM(keys.publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parse RSA public key: %w", err)
	}
	return &Codec{
		privateKey: priv,
		publicKey:  pub,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *Codec) IssueAccess(user *domain.User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		TokenType: string(domain.TokenTypeAccess),
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Audience:  jwtlib.ClaimStrings{c.audience},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims).SignedString(c.privateKey)
}

func (c *Codec) IssueRefresh(user *domain.User, familyID string) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID:    user.ID,
		FamilyID:  familyID,
		TokenType: string(domain.TokenTypeRefresh),
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Audience:  jwtlib.ClaimStrings{c.audience},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims).SignedString(c.privateKey)
}

// VerifyAccess checks signature, issuer, audience and expiry, then the type
// discriminator. A refresh token presented here fails with ErrWrongTokenType.
func (c *Codec) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != string(domain.TokenTypeAccess) {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (c *Codec) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != string(domain.TokenTypeRefresh) {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string, claims jwtlib.Claims) error {
	parsed, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.publicKey, nil
	},
		jwtlib.WithIssuer(c.issuer),
		jwtlib.WithAudience(c.audience),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
