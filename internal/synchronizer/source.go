package synchronizer

import (
	"context"

	"github.com/prudhvinik1/livesync/internal/models"
)

// Source is the remote store a synchronizer mirrors.
type Source[R models.Record] interface {
	// Query returns every record of table owned by ownerID, in store order.
	Query(ctx context.Context, table, ownerID string) ([]R, error)

	// Subscribe opens a live change stream for table scoped to ownerID.
	Subscribe(ctx context.Context, table, ownerID string) (Stream[R], error)
}

// Stream is one live subscription. Events is closed when the stream ends;
// Err then reports why (nil after Unsubscribe). Unsubscribe may be called
// any number of times.
type Stream[R models.Record] interface {
	Events() <-chan models.ChangeEvent[R]
	Err() error
	Unsubscribe()
}
