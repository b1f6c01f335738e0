package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// handleShapProgress streams a computation's progress record over a
// websocket at the configured interval, closing shortly after the
// computation reaches a terminal state.
func (s *Server) handleShapProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/shap/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Detect the client going away; writes alone won't notice for a while.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		progress, ok := s.compute.Progress(id)
		if !ok {
			// Not registered yet; keep polling like the client would.
			continue
		}

		if err := conn.WriteJSON(progress); err != nil {
			s.logger.Warn("websocket write failed",
				zap.String("computation_id", id),
				zap.Error(err))
			return
		}

		if progress.Status.Terminal() {
			// Give the client one interval to read the final message.
			select {
			case <-done:
			case <-time.After(s.cfg.ProgressInterval):
			}
			return
		}
	}
}
