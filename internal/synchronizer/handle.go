package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/retry"
	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/models"
)

type loadResult[R models.Record] struct {
	rows []R
	err  error
}

// Handle is one active synchronization of a table for one owner. A single
// goroutine applies bulk loads and change events; the accessors return
// copies and may be called from anywhere. Records share their underlying
// values with the handle and must not be mutated by callers.
type Handle[R models.Record] struct {
	table   string
	ownerID string
	source  Source[R]
	cfg     Config
	logger  *zap.Logger
	release func(*Handle[R])

	mu      sync.RWMutex
	coll    *Collection[R]
	loading bool
	lastErr error
	fenced  bool

	updates  chan struct{}
	reloadCh chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newHandle[R models.Record](table, ownerID string, source Source[R], cfg Config, logger *zap.Logger, release func(*Handle[R])) *Handle[R] {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle[R]{
		table:    table,
		ownerID:  ownerID,
		source:   source,
		cfg:      cfg,
		logger:   logger.With(zap.String("table", table), zap.String("owner_id", ownerID)),
		release:  release,
		coll:     NewCollection[R](),
		loading:  true,
		updates:  make(chan struct{}, 1),
		reloadCh: make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.run(ctx)
	return h
}

func (h *Handle[R]) Table() string   { return h.table }
func (h *Handle[R]) OwnerID() string { return h.ownerID }

func (h *Handle[R]) Records() []R {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.coll.Snapshot()
}

func (h *Handle[R]) IsLoading() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loading
}

func (h *Handle[R]) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// Active reports whether Deactivate has not been called yet.
func (h *Handle[R]) Active() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.fenced
}

// Updates receives a value after the records, loading flag or error change.
// Notifications coalesce: a slow reader sees one pending signal, not one
// per change.
func (h *Handle[R]) Updates() <-chan struct{} {
	return h.updates
}

// Refresh asks for a fresh bulk load. If the stream is down it also
// restarts the resubscribe cycle.
func (h *Handle[R]) Refresh() {
	select {
	case h.reloadCh <- struct{}{}:
	default:
	}
}

// Deactivate fences the handle so no further event is applied, stops the
// stream and waits for the apply goroutine to exit. It is idempotent.
func (h *Handle[R]) Deactivate() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.fenced = true
		h.mu.Unlock()

		h.cancel()
		<-h.done

		if h.release != nil {
			h.release(h)
		}
		h.logger.Debug("live collection deactivated")
	})
}

func (h *Handle[R]) notify() {
	select {
	case h.updates <- struct{}{}:
	default:
	}
}

func (h *Handle[R]) run(ctx context.Context) {
	defer close(h.done)

	var (
		unstable int
		delay    time.Duration
	)
	for {
		stream, err := h.subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.failLoad(err)
			if !h.awaitReload(ctx) {
				return
			}
			unstable = 0
			continue
		}

		opened := h.cfg.Clock.Now()
		reconnect := h.consume(ctx, stream)
		stream.Unsubscribe()
		if !reconnect {
			return
		}
		reconnects.WithLabelValues(h.table).Inc()

		// Streams that drop before StableAfter count against the same
		// budget as failed subscribes.
		if h.cfg.Clock.Now().Sub(opened) >= h.cfg.StableAfter {
			unstable = 0
		}
		unstable++
		if unstable > h.cfg.ReconnectAttempts {
			cause := stream.Err()
			if cause == nil {
				cause = errors.New("stream ended")
			}
			h.failLoad(fmt.Errorf("%w: dropped %d times in a row: %w", ErrStreamDisconnected, unstable, cause))
			if !h.awaitReload(ctx) {
				return
			}
			unstable = 0
			continue
		}

		if unstable == 1 {
			delay = h.cfg.ReconnectDelay
		} else {
			delay = min(retry.DoubleDelay(delay, unstable), h.cfg.ReconnectMaxDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-h.cfg.Clock.After(delay):
		}
	}
}

// awaitReload parks a failed handle until Refresh or Activate asks for
// another attempt. It reports false when the handle is shutting down.
func (h *Handle[R]) awaitReload(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-h.reloadCh:
		h.setLoading()
		return true
	}
}

func (h *Handle[R]) subscribe(ctx context.Context) (Stream[R], error) {
	var stream Stream[R]
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			s, err := h.source.Subscribe(ctx, h.table, h.ownerID)
			if err != nil {
				return err
			}
			stream = s
			return nil
		},
		IsFatalError: func(error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			h.logger.Warn("subscribe failed", zap.Int("attempt", attempt), zap.Error(err))
		},
		Attempts:    h.cfg.ReconnectAttempts,
		Delay:       h.cfg.ReconnectDelay,
		MaxDelay:    h.cfg.ReconnectMaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       h.cfg.Clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if retry.IsAttemptsExceeded(err) || retry.IsDurationExceeded(err) {
			err = retry.LastError(err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStreamDisconnected, err)
	}
	return stream, nil
}

// consume runs one subscription: it bulk loads, replays events that arrived
// during the load, then applies events as they come. It returns true when
// the stream dropped and the caller should resubscribe.
func (h *Handle[R]) consume(ctx context.Context, stream Stream[R]) bool {
	var (
		pending []models.ChangeEvent[R]
		synced  bool
	)
	loads := h.startLoad(ctx)
	events := stream.Events()

	for {
		select {
		case <-ctx.Done():
			return false

		case res := <-loads:
			loads = nil
			if res.err != nil {
				h.failLoad(res.err)
				synced = false
			} else {
				h.install(res.rows, pending)
				synced = true
			}
			pending = nil

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return false
				}
				h.logger.Warn("change stream dropped, resubscribing", zap.Error(stream.Err()))
				return true
			}
			switch {
			case loads != nil:
				pending = append(pending, ev)
			case synced:
				h.apply(ev)
			default:
				// The next successful load covers whatever this event changed.
				eventsDropped.WithLabelValues(h.table, "unsynced").Inc()
			}

		case <-h.reloadCh:
			if loads == nil {
				pending = nil
				loads = h.startLoad(ctx)
			}
		}
	}
}

func (h *Handle[R]) setLoading() {
	h.mu.Lock()
	if !h.fenced {
		h.loading = true
	}
	h.mu.Unlock()
	h.notify()
}

func (h *Handle[R]) startLoad(ctx context.Context) <-chan loadResult[R] {
	h.setLoading()

	out := make(chan loadResult[R], 1)
	go func() {
		rows, err := h.source.Query(ctx, h.table, h.ownerID)
		out <- loadResult[R]{rows: rows, err: err}
	}()
	return out
}

func (h *Handle[R]) install(rows []R, pending []models.ChangeEvent[R]) {
	h.mu.Lock()
	if h.fenced {
		h.mu.Unlock()
		return
	}

	owned := make([]R, 0, len(rows))
	for _, r := range rows {
		if r.RecordOwner() != h.ownerID {
			h.logger.Warn("bulk load returned a foreign row", zap.String("id", r.RecordID()))
			continue
		}
		owned = append(owned, r)
	}
	h.coll.Replace(owned)
	for _, ev := range pending {
		h.applyLocked(ev)
	}
	h.loading = false
	h.lastErr = nil
	h.mu.Unlock()

	bulkLoads.WithLabelValues(h.table, "ok").Inc()
	h.logger.Debug("bulk load installed", zap.Int("records", len(owned)), zap.Int("replayed", len(pending)))
	h.notify()
}

func (h *Handle[R]) failLoad(err error) {
	h.mu.Lock()
	if h.fenced {
		h.mu.Unlock()
		return
	}
	h.loading = false
	h.lastErr = fmt.Errorf("%w: %w", ErrBulkLoadFailed, err)
	h.mu.Unlock()

	bulkLoads.WithLabelValues(h.table, "failed").Inc()
	h.logger.Warn("bulk load failed", zap.Error(err))
	h.notify()
}

func (h *Handle[R]) apply(ev models.ChangeEvent[R]) {
	h.mu.Lock()
	if h.fenced {
		h.mu.Unlock()
		return
	}
	applied := h.applyLocked(ev)
	h.mu.Unlock()

	if applied {
		h.notify()
	}
}

func (h *Handle[R]) applyLocked(ev models.ChangeEvent[R]) bool {
	if !ev.Valid() {
		eventsDropped.WithLabelValues(h.table, "invalid").Inc()
		h.logger.Debug("dropping malformed change event", zap.String("kind", string(ev.Kind)))
		return false
	}

	owner := ev.Owner()
	if owner != h.ownerID && !(ev.Kind == models.ChangeDeleted && owner == "") {
		eventsDropped.WithLabelValues(h.table, "owner_mismatch").Inc()
		h.logger.Debug("dropping change event",
			zap.String("kind", string(ev.Kind)),
			zap.String("id", ev.Key()),
			zap.Error(ErrOwnerMismatch))
		return false
	}

	h.coll.Apply(ev)
	eventsApplied.WithLabelValues(h.table, string(ev.Kind)).Inc()
	return true
}
