package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/horizon-coach/internal/identity"
)

// wsInbound is a client frame. Only "chat" is understood.
type wsInbound struct {
	Type string `json:"type"`
	chatRequest
}

type wsEnd struct {
	Type string `json:"type"`
}

// HandleWebSocket serves chat over a WebSocket. Each "chat" frame runs one
// turn; the server answers with token frames, then an end or error frame.
// Turns on one connection run one at a time. A dedicated reader watches the
// connection so a client close cancels the turn in flight.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "remote_ip", identity.IPFromRequest(r), "error", err)
		return
	}
	ws.SetReadLimit(h.cfg.MaxBodyBytes)

	ctx, cancel := context.WithCancel(r.Context())
	frames := make(chan []byte, wsFrameBuffer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		defer close(frames)
		h.wsReadLoop(ctx, ws, r, frames)
	}()
	defer func() {
		cancel()
		ws.CloseNow()
		wg.Wait()
	}()

	for {
		var data []byte
		var ok bool
		select {
		case <-ctx.Done():
			return
		case data, ok = <-frames:
			if !ok {
				return
			}
		}

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := h.wsWrite(ctx, ws, errorEvent{Type: "error", Message: "invalid message", Status: http.StatusBadRequest}); err != nil {
				return
			}
			continue
		}
		if msg.Type != "chat" {
			if err := h.wsWrite(ctx, ws, errorEvent{Type: "error", Message: "unsupported message type", Status: http.StatusBadRequest}); err != nil {
				return
			}
			continue
		}

		if err := h.wsTurn(ctx, ws, r, msg.chatRequest); err != nil {
			return
		}
	}
}

const wsFrameBuffer = 8

// wsReadLoop forwards inbound frames until the connection fails or closes.
func (h *Handler) wsReadLoop(ctx context.Context, ws *websocket.Conn, r *http.Request, frames chan<- []byte) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.logger.Warn("websocket read failed", "remote_ip", identity.IPFromRequest(r), "error", err)
			}
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

// wsTurn runs one turn. A returned error means the connection is unusable.
func (h *Handler) wsTurn(ctx context.Context, ws *websocket.Conn, r *http.Request, req chatRequest) error {
	turn, status, msg := h.turnRequest(r, req)
	if status != 0 {
		return h.wsWrite(ctx, ws, errorEvent{Type: "error", Message: msg, Status: status})
	}

	for tok, err := range h.coach.ProcessTurn(ctx, turn) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.logger.Warn("websocket turn failed", "session_id", turn.SessionID, "error", err)
			return h.wsWrite(ctx, ws, errorEvent{Type: "error", Message: err.Error(), Status: statusFor(err)})
		}
		if err := h.wsWrite(ctx, ws, tokenEvent{Type: "token", Data: tok}); err != nil {
			return err
		}
	}
	return h.wsWrite(ctx, ws, wsEnd{Type: "end"})
}

func (h *Handler) wsWrite(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
