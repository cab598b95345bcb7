package services

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/models"
)

// DefaultSessionPollInterval is used when no positive interval is given.
const DefaultSessionPollInterval = 30 * time.Second

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*TokenClaims, error)
}

// SessionProvider turns a bearer token into a stream of session states by
// re-checking the token's session on an interval.
type SessionProvider struct {
	auth     Authenticator
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

func NewSessionProvider(auth Authenticator, interval time.Duration, clk clock.Clock, logger *zap.Logger) *SessionProvider {
	if clk == nil {
		clk = clock.WallClock
	}
	if interval <= 0 {
		interval = DefaultSessionPollInterval
	}
	return &SessionProvider{auth: auth, interval: interval, clock: clk, logger: logging.OrNop(logger)}
}

// Watch reports a loading state, then the signed-in principal, and keeps
// polling until the session ends. A final signed-out state is sent before
// the channel closes unless ctx ended first.
func (p *SessionProvider) Watch(ctx context.Context, token string) <-chan models.SessionState {
	out := make(chan models.SessionState, 1)
	go p.watch(ctx, token, out)
	return out
}

func (p *SessionProvider) watch(ctx context.Context, token string, out chan<- models.SessionState) {
	defer close(out)

	send := func(st models.SessionState) bool {
		select {
		case out <- st:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(models.SessionState{Loading: true}) {
		return
	}

	current := ""
	for {
		claims, err := p.auth.Authenticate(ctx, token)
		switch {
		case err == nil:
			if principal := claims.Principal(); principal != current {
				current = principal
				if !send(models.SessionState{PrincipalID: current}) {
					return
				}
			}
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrSessionExpired):
			p.logger.Info("session ended", zap.String("owner_id", current), zap.Error(err))
			send(models.SessionState{})
			return
		case ctx.Err() != nil:
			return
		default:
			p.logger.Warn("session check failed, keeping current state", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.interval):
		}
	}
}
