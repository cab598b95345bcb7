package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/synchronizer"
)

const (
	writeWait  = 10 * time.Second
	pongDelay  = 90 * time.Second
	pingPeriod = (pongDelay * 8) / 10
)

var liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "livesync_live_connections",
	Help: "Open live table websocket connections.",
})

// Snapshot is what a live connection receives after every change to the
// mirrored table.
type Snapshot struct {
	Table   string       `json:"table"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
	Records []models.Row `json:"records"`
}

// clientMessage is the only thing clients send: {"type":"refresh"} asks
// for a fresh bulk load.
type clientMessage struct {
	Type string `json:"type"`
}

func snapshotOf(h *synchronizer.Handle[models.Row]) Snapshot {
	snap := Snapshot{
		Table:   h.Table(),
		Loading: h.IsLoading(),
		Records: h.Records(),
	}
	if err := h.LastError(); err != nil {
		snap.Error = err.Error()
	}
	return snap
}

func (s *Server) live(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if _, err := models.LookupTable(table); err != nil {
		s.writeError(w, r, err)
		return
	}
	owner := principal(r.Context())
	token := sessionToken(r.Context())

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("problem initiating websocket", zap.Error(err))
		return
	}
	defer socket.Close()

	liveConnections.Inc()
	defer liveConnections.Dec()

	logger := s.logger.With(zap.String("table", table), zap.String("owner_id", owner))
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	syncer := synchronizer.New[models.Row](s.source,
		synchronizer.WithConfig(s.syncCfg),
		synchronizer.WithLogger(logger))
	defer syncer.DeactivateAll()

	h, err := syncer.Activate(table, owner)
	if err != nil {
		logger.Warn("activate failed", zap.Error(err))
		return
	}

	var states <-chan models.SessionState
	if s.sessions != nil {
		states = s.sessions.Watch(ctx, token)
	}

	socket.SetReadDeadline(time.Now().Add(pongDelay))
	socket.SetPongHandler(func(string) error {
		socket.SetReadDeadline(time.Now().Add(pongDelay))
		return nil
	})
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	messages := receiveMessages(ctx, socket)

	// The first snapshot already reflects anything signalled so far.
	select {
	case <-h.Updates():
	default:
	}
	if err := writeSnapshot(socket, snapshotOf(h)); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-h.Updates():
			if err := writeSnapshot(socket, snapshotOf(h)); err != nil {
				logger.Debug("failed to write snapshot", zap.Error(err))
				return
			}

		case m, ok := <-messages:
			if !ok {
				return
			}
			if m.Type == "refresh" {
				h.Refresh()
			}

		case st, ok := <-states:
			if !ok || (!st.Loading && st.PrincipalID != owner) {
				logger.Info("session ended, closing live connection")
				deadline := time.Now().Add(writeWait)
				socket.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended"), deadline)
				return
			}

		case <-ticker.C:
			if err := socket.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				logger.Debug("failed to write ping", zap.Error(err))
				return
			}
		}
	}
}

func writeSnapshot(socket *websocket.Conn, snap Snapshot) error {
	socket.SetWriteDeadline(time.Now().Add(writeWait))
	return socket.WriteJSON(snap)
}

// receiveMessages reads client messages until the socket fails or closes.
// The returned channel is closed when reading stops.
func receiveMessages(ctx context.Context, socket *websocket.Conn) <-chan clientMessage {
	messages := make(chan clientMessage)

	go func() {
		defer close(messages)
		for {
			var m clientMessage
			if err := socket.ReadJSON(&m); err != nil {
				return
			}
			select {
			case messages <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	return messages
}
