package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/prudhvinik1/livesync/internal/models"
)

func newTestSessionRepo(t *testing.T) *RedisSessionRepository {
	client := getTestRedisClient(t)
	t.Cleanup(func() { cleanupKeys(t, client, sessionPrefix+"*", "livesync:account:*:sessions") })
	return NewRedisSessionRepository(client, zaptest.NewLogger(t))
}

func newSession(accountID uuid.UUID, ttl time.Duration) *models.Session {
	return &models.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}
}

func TestSessionRepository_Create(t *testing.T) {
	repo := newTestSessionRepo(t)
	ctx := context.Background()

	accountID := uuid.New()
	session := newSession(accountID, 24*time.Hour)

	require.NoError(t, repo.Create(ctx, session))

	retrieved, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, accountID, retrieved.AccountID)

	sessions, err := repo.ListByAccountID(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
}

func TestSessionRepository_CreateExpired(t *testing.T) {
	repo := newTestSessionRepo(t)

	err := repo.Create(context.Background(), newSession(uuid.New(), -time.Minute))

	assert.Error(t, err)
}

// Expired ids are pruned from the account index on the next listing.
func TestSessionRepository_Expiration(t *testing.T) {
	repo := newTestSessionRepo(t)
	ctx := context.Background()

	accountID := uuid.New()
	short := newSession(accountID, time.Second)
	long := newSession(accountID, 24*time.Hour)
	require.NoError(t, repo.Create(ctx, short))
	require.NoError(t, repo.Create(ctx, long))

	time.Sleep(2 * time.Second)

	sessions, err := repo.ListByAccountID(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, long.ID, sessions[0].ID)

	_, err = repo.GetByID(ctx, short.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepository_Delete(t *testing.T) {
	repo := newTestSessionRepo(t)
	ctx := context.Background()

	accountID := uuid.New()
	session := newSession(accountID, 24*time.Hour)
	require.NoError(t, repo.Create(ctx, session))

	require.NoError(t, repo.Delete(ctx, session.ID))

	_, err := repo.GetByID(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	sessions, err := repo.ListByAccountID(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSessionRepository_DeleteUnknown(t *testing.T) {
	repo := newTestSessionRepo(t)

	err := repo.Delete(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepository_DeleteAllForAccount(t *testing.T) {
	repo := newTestSessionRepo(t)
	ctx := context.Background()

	accountID := uuid.New()
	other := newSession(uuid.New(), 24*time.Hour)
	require.NoError(t, repo.Create(ctx, other))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newSession(accountID, 24*time.Hour)))
	}

	sessions, err := repo.ListByAccountID(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)

	require.NoError(t, repo.DeleteAllForAccount(ctx, accountID))

	sessions, err = repo.ListByAccountID(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = repo.GetByID(ctx, other.ID)
	assert.NoError(t, err, "other accounts keep their sessions")
}
