package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionPrefix         = "livesync:session:"
	accountSessionsPrefix = "livesync:account:%s:sessions"
)

// RedisSessionRepository keeps sign-in sessions as JSON values that expire
// with the token, plus a per-account set used for sign-out everywhere.
type RedisSessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisSessionRepository(client *redis.Client, logger *zap.Logger) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, logger: logging.OrNop(logger)}
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, ttl)
		pipe.SAdd(ctx, accountSessionsKey(session.AccountID), session.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ListByAccountID returns live sessions and prunes ids whose keys expired.
func (r *RedisSessionRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	accountKey := accountSessionsKey(accountID)
	ids, err := r.client.SMembers(ctx, accountKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get account sessions: %w", err)
	}

	var (
		sessions []*models.Session
		expired  []any
	)
	for _, id := range ids {
		session, err := r.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			expired = append(expired, id)
			continue
		}
		if err != nil {
			r.logger.Warn("skipping unreadable session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}

	if len(expired) > 0 {
		if err := r.client.SRem(ctx, accountKey, expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove expired sessions: %w", err)
		}
	}
	return sessions, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, accountSessionsKey(session.AccountID), id)
		pipe.Del(ctx, sessionKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	accountKey := accountSessionsKey(accountID)
	ids, err := r.client.SMembers(ctx, accountKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get account sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, accountKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to logout all sessions: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

func accountSessionsKey(accountID uuid.UUID) string {
	return fmt.Sprintf(accountSessionsPrefix, accountID)
}
