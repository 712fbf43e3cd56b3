package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"activepanel/internal/cache"
	"activepanel/internal/pkg/response"
	"activepanel/internal/pkg/token"
)

// BlacklistChecker is the authoritative revocation lookup. The cache in
// front of it is advisory only.
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

type accessVerifier interface {
	VerifyAccess(tokenStr string) (*token.AccessClaims, error)
}

// JWTAuth verifies the bearer access token and rejects blacklisted jtis.
// Signature verification is pure CPU; the blacklist lookup is the only I/O
// on the hot path, and a cache hit skips even that.
func JWTAuth(codec accessVerifier, blacklist BlacklistChecker, revCache *cache.BlacklistCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "No token provided")
			c.Abort()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Invalid Authorization header")
			c.Abort()
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if tokenStr == "" {
			response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Empty token")
			c.Abort()
			return
		}

		claims, err := codec.VerifyAccess(tokenStr)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenExpired):
				response.Error(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired")
			default:
				response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
			}
			c.Abort()
			return
		}

		revoked := revCache.Contains(c.Request.Context(), claims.ID)
		if !revoked {
			revoked, err = blacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				// Store trouble is not a revoked token; surface it as 5xx.
				response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Authentication store unavailable")
				c.Abort()
				return
			}
		}
		if revoked {
			response.Error(c, http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Set("jti", claims.ID)
		c.Set("access_claims", claims)

		c.Next()
	}
}
