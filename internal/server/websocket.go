package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
)

const requestReadTimeout = 30 * time.Second

// handleMatchSocket runs one session per connection. The client sends the
// match request as its first text message and then receives every event as a
// JSON message. The server closes the socket after the terminal event.
func (s *Server) handleMatchSocket(w http.ResponseWriter, r *http.Request) {
	role, err := conversation.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer ws.CloseNow()

	readCtx, cancel := context.WithTimeout(r.Context(), requestReadTimeout)
	var body matchBody
	err = wsjson.Read(readCtx, ws, &body)
	cancel()
	if err != nil {
		if websocket.CloseStatus(err) == -1 {
			s.logger.Debug("read match request", zap.Error(err))
			_ = ws.Close(websocket.StatusUnsupportedData, "expected a match request")
		}
		return
	}

	req := s.matchRequest(r, role, body)
	ctx := ws.CloseRead(r.Context())
	sink := matching.SinkFunc(func(ctx context.Context, ev matching.Event) error {
		return wsjson.Write(ctx, ws, ev)
	})

	res, err := s.coordinator.Run(ctx, req, matching.Tee(sink, traceSink(s.logger)))
	if err != nil {
		s.logSessionEnd(err)
		if matching.IsClientGone(err) {
			return
		}
	} else {
		s.persist(ctx, res)
	}

	if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
		s.logger.Debug("websocket close", zap.Error(closeErr))
	}
}
