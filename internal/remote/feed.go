// Package remote connects the synchronizer to the dashboard store: bulk
// reads come from Postgres and live changes travel over Redis pub/sub.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/models"
)

const (
	channelFormat = "livesync:changes:%s:%s"
	streamBuffer  = 64
)

var feedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "livesync_feed_messages_total",
	Help: "Change feed messages by direction and outcome.",
}, []string{"direction", "outcome"})

// Channel names the pub/sub channel carrying changes to table rows owned
// by ownerID.
func Channel(table, ownerID string) string {
	return fmt.Sprintf(channelFormat, table, ownerID)
}

// RedisChangeFeed publishes row changes and opens per-owner streams of
// them. Redis pub/sub does not replay missed messages, so a stream ends on
// the first receive error and the subscriber has to re-read the table.
type RedisChangeFeed struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisChangeFeed(client *redis.Client, logger *zap.Logger) *RedisChangeFeed {
	return &RedisChangeFeed{client: client, logger: logging.OrNop(logger)}
}

// Publish sends ev to the channel of its table and owner.
func (f *RedisChangeFeed) Publish(ctx context.Context, ev models.ChangeEvent[models.Row]) error {
	if !ev.Valid() || ev.Owner() == "" {
		return fmt.Errorf("refusing to publish incomplete %s event for %s", ev.Kind, ev.Table)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	if err := f.client.Publish(ctx, Channel(ev.Table, ev.Owner()), payload).Err(); err != nil {
		feedMessages.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	feedMessages.WithLabelValues("out", "ok").Inc()
	return nil
}

// Subscribe opens a stream and returns once Redis has confirmed the
// subscription, so no change published afterwards is missed.
func (f *RedisChangeFeed) Subscribe(ctx context.Context, table, ownerID string) (*RedisStream, error) {
	channel := Channel(table, ownerID)
	pubsub := f.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &RedisStream{
		pubsub: pubsub,
		logger: f.logger.With(zap.String("channel", channel)),
		events: make(chan models.ChangeEvent[models.Row], streamBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.receive(ctx)
	return s, nil
}

// RedisStream is one live pub/sub subscription.
type RedisStream struct {
	pubsub *redis.PubSub
	logger *zap.Logger
	events chan models.ChangeEvent[models.Row]
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
	once   sync.Once
}

func (s *RedisStream) Events() <-chan models.ChangeEvent[models.Row] {
	return s.events
}

func (s *RedisStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *RedisStream) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		if err := s.pubsub.Close(); err != nil {
			s.logger.Debug("closing pubsub", zap.Error(err))
		}
	})
	<-s.done
}

func (s *RedisStream) receive(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	for {
		msg, err := s.pubsub.ReceiveMessage(ctx)
		if err != nil {
			s.finish(err)
			return
		}

		var ev models.ChangeEvent[models.Row]
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			feedMessages.WithLabelValues("in", "malformed").Inc()
			s.logger.Warn("dropping undecodable change event", zap.Error(err))
			continue
		}
		feedMessages.WithLabelValues("in", "ok").Inc()

		select {
		case s.events <- ev:
		case <-ctx.Done():
			s.finish(nil)
			return
		}
	}
}

// finish records why the stream ended. Errors caused by Unsubscribe are
// not failures.
func (s *RedisStream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
		return
	}
	if err == nil {
		err = errors.New("change stream ended")
	}
	s.err = err
}
