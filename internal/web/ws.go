package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	errx "github.com/chatgraph-poc/server/internal/core/error"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

const wsWriteTimeout = 10 * time.Second

// handleChatWS serves the chat over a websocket: every text frame is a
// ChatRequest and is answered with one ChatReply frame.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestBytes)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logx.Debug().Err(err).Msg("Websocket read ended")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var reply ChatReply
		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			reply = ChatReply{Error: errx.BadRequest(err).Error()}
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), s.turnTimeout)
			reply, _ = s.answer(ctx, req)
			cancel()
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logx.Warn().Err(err).Msg("Websocket write failed")
			}
			return
		}
	}
}
