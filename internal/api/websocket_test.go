package api

import (
	"context"
	"encoding/json"
	"iter"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/horizon-coach/internal/coach"
	"github.com/ashureev/horizon-coach/internal/llm"
	"github.com/ashureev/horizon-coach/internal/store"
)

type wsFrame struct {
	Type    string `json:"type"`
	Data    string `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func readFrames(t *testing.T, ctx context.Context, ws *websocket.Conn) []wsFrame {
	t.Helper()
	var frames []wsFrame
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var f wsFrame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("decode frame %s: %v", data, err)
		}
		frames = append(frames, f)
		if f.Type == "end" || f.Type == "error" {
			return frames
		}
	}
}

func TestHandleWebSocket_ChatTurn(t *testing.T) {
	svc := coach.New(coach.Deps{Repo: store.NewMemory(), Model: llm.Echo{}}, coach.Options{FrictionThreshold: 3, MinWords: 15})
	srv := httptest.NewServer(newTestRouter(t, svc, Config{}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?session_id=ws-1"
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.CloseNow()

	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"chat","message":"how do loops terminate"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := readFrames(t, ctx, ws)
	if last := frames[len(frames)-1]; last.Type != "end" {
		t.Fatalf("expected end frame, got %+v", last)
	}
	var reply strings.Builder
	for _, f := range frames[:len(frames)-1] {
		if f.Type != "token" {
			t.Fatalf("unexpected frame %+v", f)
		}
		reply.WriteString(f.Data)
	}
	if !strings.Contains(reply.String(), "how do loops terminate") {
		t.Fatalf("unexpected reply %q", reply.String())
	}

	// An empty message is rejected but the connection stays usable.
	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"chat","message":"  "}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames = readFrames(t, ctx, ws)
	if f := frames[0]; f.Type != "error" || f.Status != 400 {
		t.Fatalf("expected 400 error frame, got %+v", f)
	}

	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames = readFrames(t, ctx, ws)
	if frames[0].Type != "error" {
		t.Fatalf("expected error for unknown frame type, got %+v", frames[0])
	}

	hist, err := svc.History(ctx, "ws-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected learner and assistant turns, got %d", len(hist))
	}

	ws.Close(websocket.StatusNormalClosure, "done")
}

// blockingCoach yields one token, then holds the turn open until its
// context is cancelled.
type blockingCoach struct {
	*fakeCoach
	cancelled chan struct{}
}

func (b *blockingCoach) ProcessTurn(ctx context.Context, _ coach.TurnRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("thinking", nil) {
			return
		}
		<-ctx.Done()
		close(b.cancelled)
		yield("", ctx.Err())
	}
}

func TestHandleWebSocket_ClientCloseCancelsTurn(t *testing.T) {
	c := &blockingCoach{fakeCoach: &fakeCoach{}, cancelled: make(chan struct{})}
	srv := httptest.NewServer(newTestRouter(t, c, Config{}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?session_id=ws-close"
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.CloseNow()

	if err := ws.Write(ctx, websocket.MessageText, []byte(`{"type":"chat","message":"why"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f wsFrame
	if err := json.Unmarshal(data, &f); err != nil || f.Type != "token" {
		t.Fatalf("expected token frame, got %s (%v)", data, err)
	}

	_ = ws.Close(websocket.StatusNormalClosure, "bye")

	select {
	case <-c.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("turn was not cancelled after the client closed")
	}
}
