package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"activepanel/internal/database"
	"activepanel/internal/domain"
	"activepanel/internal/repository"
)

func newRealService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	service := NewService(
		repository.NewUserRepository(db),
		repository.NewRefreshTokenRepository(db),
		repository.NewBlacklistRepository(db),
		newTestCodec(t),
		nil,
	)
	return service, db
}

func seedPasswordUser(t *testing.T, db *gorm.DB, email, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	u := &domain.User{Email: email, PasswordHash: string(hash), DisplayName: "Seeded", Role: domain.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestLifecycle_SequentialRotation(t *testing.T) {
	service, db := newRealService(t)
	seedPasswordUser(t, db, "rotate@example.com", "password123")
	ctx := context.Background()

	_, pair1, err := service.Login(ctx, LoginRequest{Email: "rotate@example.com", Password: "password123"}, ClientMeta{})
	require.NoError(t, err)

	pair2, err := service.Refresh(ctx, pair1.RefreshToken, ClientMeta{})
	require.NoError(t, err)

	pair3, err := service.Refresh(ctx, pair2.RefreshToken, ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, pair2.RefreshToken, pair3.RefreshToken)

	// exactly one active token remains in the family
	var active int64
	require.NoError(t, db.Model(&domain.RefreshToken{}).Where("revoked = ?", false).Count(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestLifecycle_ReplayBurnsWholeFamily(t *testing.T) {
	service, db := newRealService(t)
	seedPasswordUser(t, db, "replay@example.com", "password123")
	ctx := context.Background()

	_, pair1, err := service.Login(ctx, LoginRequest{Email: "replay@example.com", Password: "password123"}, ClientMeta{})
	require.NoError(t, err)

	pair2, err := service.Refresh(ctx, pair1.RefreshToken, ClientMeta{})
	require.NoError(t, err)

	// replaying the rotated-away token is the theft signal
	_, err = service.Refresh(ctx, pair1.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, ErrReuseDetected)

	// the successor issued to the legitimate client is burned with it
	_, err = service.Refresh(ctx, pair2.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, ErrReuseDetected)
}

func TestLifecycle_LogoutBlacklistsExactToken(t *testing.T) {
	service, db := newRealService(t)
	seedPasswordUser(t, db, "logout@example.com", "password123")
	ctx := context.Background()
	blacklist := repository.NewBlacklistRepository(db)

	// two independent sessions for the same subject
	_, pairA, err := service.Login(ctx, LoginRequest{Email: "logout@example.com", Password: "password123"}, ClientMeta{})
	require.NoError(t, err)
	_, pairB, err := service.Login(ctx, LoginRequest{Email: "logout@example.com", Password: "password123"}, ClientMeta{})
	require.NoError(t, err)

	claimsA, err := service.codec.VerifyAccess(pairA.AccessToken)
	require.NoError(t, err)
	claimsB, err := service.codec.VerifyAccess(pairB.AccessToken)
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, claimsA, pairA.RefreshToken))

	// the presented jti is dead, the sibling session's token is not
	revoked, err := blacklist.IsBlacklisted(ctx, claimsA.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = blacklist.IsBlacklisted(ctx, claimsB.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	// session B still refreshes, session A's refresh token is spent
	_, err = service.Refresh(ctx, pairB.RefreshToken, ClientMeta{})
	require.NoError(t, err)
	_, err = service.Refresh(ctx, pairA.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, ErrReuseDetected)
}

func TestLifecycle_ConcurrentDoubleRefresh(t *testing.T) {
	service, db := newRealService(t)
	seedPasswordUser(t, db, "race@example.com", "password123")
	ctx := context.Background()

	_, pair, err := service.Login(ctx, LoginRequest{Email: "race@example.com", Password: "password123"}, ClientMeta{})
	require.NoError(t, err)

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Refresh(ctx, pair.RefreshToken, ClientMeta{})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrReuseDetected)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent refresh may win")
}
