package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"activepanel/internal/database"
	"activepanel/internal/domain"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *domain.User {
	t.Helper()
	u := &domain.User{Email: fmt.Sprintf("%s@example.com", strings.ToLower(strings.ReplaceAll(t.Name(), "/", "."))), DisplayName: "Test", Role: domain.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func newRecord(userID int64, family, raw string, expiresIn time.Duration) *domain.RefreshToken {
	return &domain.RefreshToken{
		UserID:    userID,
		FamilyID:  family,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().UTC().Add(expiresIn),
	}
}

func TestLedger_CreateAndLookup(t *testing.T) {
	db := testDB(t)
	repo := NewRefreshTokenRepository(db)
	user := seedUser(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "raw-token", time.Hour)))

	rec, err := repo.GetValidByHash(ctx, HashToken("raw-token"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, user.ID, rec.UserID)
	assert.Equal(t, "fam-1", rec.FamilyID)

	// unknown hash is not an error, just absent
	rec, err = repo.GetValidByHash(ctx, HashToken("never-issued"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLedger_UniqueHashConstraint(t *testing.T) {
	db := testDB(t)
	repo := NewRefreshTokenRepository(db)
	user := seedUser(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "raw-token", time.Hour)))
	assert.Error(t, repo.Create(ctx, newRecord(user.ID, "fam-2", "raw-token", time.Hour)))
}

func TestLedger_ExpiredNotReturned(t *testing.T) {
	db := testDB(t)
	repo := NewRefreshTokenRepository(db)
	user := seedUser(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "stale", -time.Minute)))

	rec, err := repo.GetValidByHash(ctx, HashToken("stale"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLedger_RevokeByHash_FirstCallerWins(t *testing.T) {
	db := testDB(t)
	repo := NewRefreshTokenRepository(db)
	user := seedUser(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "raw-token", time.Hour)))

	won, err := repo.RevokeByHash(ctx, HashToken("raw-token"), domain.ReasonRotation)
	require.NoError(t, err)
	assert.True(t, won)

	// the duplicate must observe that it lost
	won, err = repo.RevokeByHash(ctx, HashToken("raw-token"), domain.ReasonRotation)
	require.NoError(t, err)
	assert.False(t, won)

	rec, err := repo.GetValidByHash(ctx, HashToken("raw-token"))
	require.NoError(t, err)
	assert.Nil(t, rec)

	var stored domain.RefreshToken
	require.NoError(t, db.Where("token_hash = ?", HashToken("raw-token")).First(&stored).Error)
	assert.True(t, stored.Revoked)
	assert.Equal(t, domain.ReasonRotation, stored.RevokedReason)
	assert.NotNil(t, stored.RevokedAt)
	assert.NotNil(t, stored.LastUsedAt)
}

func TestLedger_RevokeFamily(t *testing.T) {
	db := testDB(t)
	repo := NewRefreshTokenRepository(db)
	user := seedUser(t, db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "t1", time.Hour)))
	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "t2", time.Hour)))
	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-other", "t3", time.Hour)))

	require.NoError(t, repo.RevokeFamily(ctx, "fam-1"))

	for _, raw := range []string{"t1", "t2"} {
		rec, err := repo.GetValidByHash(ctx, HashToken(raw))
		require.NoError(t, err)
		assert.Nil(t, rec, "token %s should be revoked", raw)
	}

	// another family is untouched
	rec, err := repo.GetValidByHash(ctx, HashToken("t3"))
	require.NoError(t, err)
	assert.NotNil(t, rec)

	var revoked domain.RefreshToken
	require.NoError(t, db.Where("token_hash = ?", HashToken("t1")).First(&revoked).Error)
	assert.Equal(t, domain.ReasonSecurity, revoked.RevokedReason)
}

func TestLedger_RevokeAllForUser(t *testing.T) {
	db := testDB(t)
	repo := NewRefreshTokenRepository(db)
	user := seedUser(t, db)
	other := &domain.User{Email: "other@example.com", DisplayName: "Other", Role: domain.RoleUser}
	require.NoError(t, db.Create(other).Error)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "mine-1", time.Hour)))
	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-2", "mine-2", time.Hour)))
	require.NoError(t, repo.Create(ctx, newRecord(other.ID, "fam-3", "theirs", time.Hour)))

	require.NoError(t, repo.RevokeAllForUser(ctx, user.ID))

	for _, raw := range []string{"mine-1", "mine-2"} {
		rec, err := repo.GetValidByHash(ctx, HashToken(raw))
		require.NoError(t, err)
		assert.Nil(t, rec)
	}

	rec, err := repo.GetValidByHash(ctx, HashToken("theirs"))
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestLedger_DeleteExpired(t *testing.T) {
	db := testDB(t)
	repo := NewRefreshTokenRepository(db)
	user := seedUser(t, db)
	ctx := context.Background()
	retention := 30 * 24 * time.Hour

	// expired
	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "expired", -time.Minute)))
	// revoked long ago
	old := newRecord(user.ID, "fam-1", "old-revoked", time.Hour)
	require.NoError(t, repo.Create(ctx, old))
	longAgo := time.Now().UTC().Add(-retention - time.Hour)
	require.NoError(t, db.Model(old).Updates(map[string]any{
		"revoked": true, "revoked_at": longAgo, "revoked_reason": domain.ReasonLogout,
	}).Error)
	// revoked recently: kept until retention passes
	recent := newRecord(user.ID, "fam-1", "recent-revoked", time.Hour)
	require.NoError(t, repo.Create(ctx, recent))
	_, err := repo.RevokeByHash(ctx, HashToken("recent-revoked"), domain.ReasonLogout)
	require.NoError(t, err)
	// active
	require.NoError(t, repo.Create(ctx, newRecord(user.ID, "fam-1", "active", time.Hour)))

	count, err := repo.DeleteExpired(ctx, retention)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var remaining int64
	require.NoError(t, db.Model(&domain.RefreshToken{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)

	rec, err := repo.GetValidByHash(ctx, HashToken("active"))
	require.NoError(t, err)
	assert.NotNil(t, rec)
}
