package synchronizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prudhvinik1/livesync/internal/models"
)

func row(id, owner, name string) models.Row {
	return models.Row{"id": id, "user_id": owner, "name": name}
}

func names(rows []models.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["name"].(string)
	}
	return out
}

// stubSource is an in-memory Source whose bulk reads and streams are driven
// by the test.
type stubSource struct {
	mu           sync.Mutex
	rows         []models.Row
	queryErr     error
	subscribeErr error
	queryGate    chan struct{}
	queries      int

	subscribed chan *stubStream
}

func newStubSource(rows ...models.Row) *stubSource {
	return &stubSource{rows: rows, subscribed: make(chan *stubStream, 16)}
}

func (s *stubSource) setRows(rows ...models.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
}

func (s *stubSource) setQueryErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErr = err
}

func (s *stubSource) setSubscribeErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribeErr = err
}

func (s *stubSource) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *stubSource) Query(ctx context.Context, table, ownerID string) ([]models.Row, error) {
	s.mu.Lock()
	s.queries++
	gate := s.queryGate
	err := s.queryErr
	rows := make([]models.Row, 0, len(s.rows))
	for _, r := range s.rows {
		if r.RecordOwner() == ownerID {
			rows = append(rows, r)
		}
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *stubSource) Subscribe(ctx context.Context, table, ownerID string) (Stream[models.Row], error) {
	s.mu.Lock()
	err := s.subscribeErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	st := &stubStream{
		events: make(chan models.ChangeEvent[models.Row]),
		done:   make(chan struct{}),
	}
	s.subscribed <- st
	return st, nil
}

func (s *stubSource) nextStream(t *testing.T) *stubStream {
	t.Helper()
	select {
	case st := <-s.subscribed:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription")
		return nil
	}
}

type stubStream struct {
	events chan models.ChangeEvent[models.Row]
	done   chan struct{}

	mu        sync.Mutex
	err       error
	dropped   bool
	unsubOnce sync.Once
	unsubs    int
}

func (st *stubStream) Events() <-chan models.ChangeEvent[models.Row] {
	return st.events
}

func (st *stubStream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

func (st *stubStream) Unsubscribe() {
	st.mu.Lock()
	st.unsubs++
	st.mu.Unlock()
	st.unsubOnce.Do(func() { close(st.done) })
}

func (st *stubStream) unsubscribeCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.unsubs
}

// deliver hands ev to the consumer. It reports false when the stream was
// unsubscribed before the consumer took the event.
func (st *stubStream) deliver(ev models.ChangeEvent[models.Row]) bool {
	select {
	case st.events <- ev:
		return true
	case <-st.done:
		return false
	}
}

func (st *stubStream) mustDeliver(t *testing.T, ev models.ChangeEvent[models.Row]) {
	t.Helper()
	require.True(t, st.deliver(ev), "stream was unsubscribed")
}

// drop simulates a network disconnect.
func (st *stubStream) drop(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.dropped {
		return
	}
	st.dropped = true
	st.err = err
	close(st.events)
}
