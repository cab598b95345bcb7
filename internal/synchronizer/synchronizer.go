// Package synchronizer keeps local, ordered mirrors of remote per-owner
// tables current through an initial bulk read followed by a live change
// stream.
package synchronizer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/models"
)

type handleKey struct {
	table   string
	ownerID string
}

// Synchronizer owns at most one Handle per (table, owner) pair.
type Synchronizer[R models.Record] struct {
	source Source[R]
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	handles map[handleKey]*Handle[R]
}

func New[R models.Record](source Source[R], opts ...Option) *Synchronizer[R] {
	o := options{config: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Synchronizer[R]{
		source:  source,
		cfg:     o.config.withDefaults(),
		logger:  logging.OrNop(o.logger),
		handles: make(map[handleKey]*Handle[R]),
	}
}

// Activate starts mirroring table for ownerID and returns its handle. If the
// pair is already active the existing handle is returned; when that handle's
// last bulk load failed, a new one is started.
func (s *Synchronizer[R]) Activate(table, ownerID string) (*Handle[R], error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}
	if table == "" {
		return nil, ErrNoTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := handleKey{table: table, ownerID: ownerID}
	if h, ok := s.handles[key]; ok && h.Active() {
		if h.LastError() != nil && !h.IsLoading() {
			h.Refresh()
		}
		return h, nil
	}

	h := newHandle(table, ownerID, s.source, s.cfg, s.logger, s.release)
	s.handles[key] = h
	s.logger.Debug("live collection activated", zap.String("table", table), zap.String("owner_id", ownerID))
	return h, nil
}

// Deactivate is the same as h.Deactivate. A nil handle is ignored.
func (s *Synchronizer[R]) Deactivate(h *Handle[R]) {
	if h == nil {
		return
	}
	h.Deactivate()
}

// DeactivateAll tears down every handle this synchronizer owns.
func (s *Synchronizer[R]) DeactivateAll() {
	s.mu.Lock()
	handles := make([]*Handle[R], 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Deactivate()
	}
}

func (s *Synchronizer[R]) Lookup(table, ownerID string) (*Handle[R], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[handleKey{table: table, ownerID: ownerID}]
	if !ok || !h.Active() {
		return nil, false
	}
	return h, true
}

// Handles returns the active handles in no particular order.
func (s *Synchronizer[R]) Handles() []*Handle[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Handle[R], 0, len(s.handles))
	for _, h := range s.handles {
		if h.Active() {
			out = append(out, h)
		}
	}
	return out
}

func (s *Synchronizer[R]) release(h *Handle[R]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := handleKey{table: h.table, ownerID: h.ownerID}
	if cur, ok := s.handles[key]; ok && cur == h {
		delete(s.handles, key)
	}
}

// FollowSession keeps tables active for whichever principal states reports.
// A signed-out state deactivates everything, a new principal replaces the
// previous one's handles, and loading states change nothing. Every handle
// is deactivated when states closes or ctx ends.
func (s *Synchronizer[R]) FollowSession(ctx context.Context, states <-chan models.SessionState, tables ...string) error {
	defer s.DeactivateAll()

	var current string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case st, ok := <-states:
			if !ok {
				return nil
			}
			if st.Loading {
				continue
			}
			if !st.SignedIn() {
				if current != "" {
					s.logger.Info("principal signed out", zap.String("owner_id", current))
				}
				current = ""
				s.DeactivateAll()
				continue
			}
			if st.PrincipalID != current {
				s.DeactivateAll()
				current = st.PrincipalID
				s.logger.Info("principal signed in", zap.String("owner_id", current))
			}
			for _, table := range tables {
				if _, err := s.Activate(table, current); err != nil {
					return err
				}
			}
		}
	}
}
