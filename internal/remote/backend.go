package remote

import (
	"context"
	"fmt"

	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/repositories"
	"github.com/prudhvinik1/livesync/internal/synchronizer"
)

// Backend is the dashboard store as seen by a synchronizer of rows.
type Backend struct {
	rows repositories.RowRepository
	feed *RedisChangeFeed
}

var _ synchronizer.Source[models.Row] = (*Backend)(nil)

func NewBackend(rows repositories.RowRepository, feed *RedisChangeFeed) *Backend {
	return &Backend{rows: rows, feed: feed}
}

func (b *Backend) Query(ctx context.Context, table, ownerID string) ([]models.Row, error) {
	t, err := models.LookupTable(table)
	if err != nil {
		return nil, err
	}

	rows, err := b.rows.ListByOwner(ctx, t, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return rows, nil
}

func (b *Backend) Subscribe(ctx context.Context, table, ownerID string) (synchronizer.Stream[models.Row], error) {
	if _, err := models.LookupTable(table); err != nil {
		return nil, err
	}
	stream, err := b.feed.Subscribe(ctx, table, ownerID)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
