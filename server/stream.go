package server

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/becomeliminal/chat-go-sdk/session"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 1 << 20
)

// Stream upgrades to a websocket and streams replies for each ask message.
// Messages on one connection are handled in order. A reply that cannot be
// delivered in full is not recorded in the conversation.
// GET /v1/sessions/:id/stream
func (s *Server) Stream(c echo.Context) error {
	conv, ok := s.conversation(c.Param("id"))
	if !ok {
		return notFound(c)
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Printf("[SERVER] Failed to upgrade websocket: %v", err)
		return nil
	}
	defer ws.Close()
	ws.SetReadLimit(maxMessageSize)

	ctx := c.Request().Context()
	for {
		var msg ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("[SERVER] Websocket read error: %v", err)
			}
			return nil
		}

		switch msg.Type {
		case TypeAsk:
			if strings.TrimSpace(msg.Prompt) == "" {
				err = send(ws, ServerMessage{Type: TypeError, Error: "prompt is required", Code: "bad_request"})
			} else {
				err = s.streamReply(ctx, ws, conv, msg.Prompt)
			}
		case TypeReset:
			conv.Reset()
			err = send(ws, ServerMessage{Type: TypeDone})
		default:
			err = send(ws, ServerMessage{Type: TypeError, Error: "unknown message type: " + msg.Type, Code: "bad_request"})
		}
		if err != nil {
			s.logger.Printf("[SERVER] Websocket write error: %v", err)
			return nil
		}
	}
}

func (s *Server) streamReply(ctx context.Context, ws *websocket.Conn, conv *session.Session, prompt string) error {
	requestID := uuid.NewString()
	var full strings.Builder

	for chunk, err := range conv.AskStream(ctx, prompt) {
		if err != nil {
			_, code := statusFor(err)
			return send(ws, ServerMessage{Type: TypeError, RequestID: requestID, Error: err.Error(), Code: code})
		}
		full.WriteString(chunk.Content)
		if err := send(ws, ServerMessage{Type: TypeChunk, RequestID: requestID, Content: chunk.Content}); err != nil {
			return err
		}
	}
	return send(ws, ServerMessage{
		Type:       TypeDone,
		RequestID:  requestID,
		Content:    full.String(),
		HistoryLen: len(conv.History()),
	})
}

func send(ws *websocket.Conn, msg ServerMessage) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return ws.WriteJSON(msg)
}
