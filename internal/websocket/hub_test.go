package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, cancel
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_AttachDetach(t *testing.T) {
	h, _ := startHub(t)
	ctx := context.Background()

	a, _, err := h.Attach(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	b, _, err := h.Attach(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if _, _, err := h.Attach(ctx, 2, 11); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	eventually(t, func() bool { return h.Count(1) == 2 && h.Total() == 3 })

	h.Detach(a)
	h.Detach(b)
	eventually(t, func() bool { return h.Count(1) == 0 && h.Total() == 1 })
}

func TestHub_StopCancelsFeeds(t *testing.T) {
	h, _ := startHub(t)

	_, feedCtx, err := h.Attach(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	eventually(t, func() bool { return h.Count(3) == 1 })

	h.Stop()

	select {
	case <-feedCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("feed context not cancelled on stop")
	}
	if _, _, err := h.Attach(context.Background(), 3, 1); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("Attach after stop err = %v, want ErrHubStopped", err)
	}
}

func TestHub_RunContextCancels(t *testing.T) {
	h, cancel := startHub(t)

	_, feedCtx, err := h.Attach(context.Background(), 4, 1)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	cancel()

	select {
	case <-feedCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("feed context not cancelled when Run exits")
	}
}

type recordingHandler chan Frame

func (r recordingHandler) HandleMessage(_ context.Context, _ *Client, f *Frame) error {
	r <- *f
	return nil
}

func TestClient_Pumps(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(recordingHandler, 4)
	closed := make(chan struct{})
	proceed := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c := NewClient(conn, 7, 9)
		go c.ReadPump(context.Background(), frames, func() { close(closed) })
		<-proceed

		if err := c.SendFrame(TypeSnapshot, map[string]int{"n": 1}); err != nil {
			t.Errorf("SendFrame: %v", err)
		}
		if err := c.SendFrame(TypeEnd, nil); err != nil {
			t.Errorf("SendFrame: %v", err)
		}
		c.Close()
		if err := c.SendFrame(TypeEnd, nil); !errors.Is(err, ErrClientClosed) {
			t.Errorf("SendFrame after close err = %v", err)
		}
		c.WritePump(context.Background())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Frame{Type: TypeMessage, Data: json.RawMessage(`{"body":"hi"}`)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case f := <-frames:
		if f.Type != TypeMessage || string(f.Data) != `{"body":"hi"}` {
			t.Errorf("handler got %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client frame not delivered to handler")
	}
	close(proceed)

	var got []FrameType
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		if f.SessionID != 9 {
			t.Errorf("frame session = %d, want 9", f.SessionID)
		}
		got = append(got, f.Type)
	}
	if len(got) != 2 || got[0] != TypeSnapshot || got[1] != TypeEnd {
		t.Fatalf("frames = %v, want [snapshot end]", got)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump did not stop after the connection closed")
	}
}
