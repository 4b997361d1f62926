package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordingHandler struct {
	url string

	mu       sync.Mutex
	opened   int
	messages [][]byte
}

func (h *recordingHandler) Name() string { return "test-stream" }
func (h *recordingHandler) URL() string  { return h.url }

func (h *recordingHandler) OnOpen(_ context.Context, _ *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened++
	return nil
}

func (h *recordingHandler) OnMessage(_ context.Context, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, append([]byte(nil), msg...))
}

func (h *recordingHandler) OnPing(_ context.Context, _ *websocket.Conn) error { return nil }

func (h *recordingHandler) snapshot() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opened, len(h.messages)
}

// echoServer upgrades and immediately sends the given frames.
func echoServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, f := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		// Hold the connection open until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWSWorker_ConnectsAndDeliversFrames(t *testing.T) {
	srv := echoServer(t, []string{"one", "two"})
	defer srv.Close()

	h := &recordingHandler{url: wsURL(srv)}
	w := NewWSWorker(h)
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, 2*time.Second, func() bool {
		_, n := h.snapshot()
		return n >= 2
	})

	opened, _ := h.snapshot()
	if opened != 1 {
		t.Errorf("opened %d times, want 1", opened)
	}
	h.mu.Lock()
	first, second := string(h.messages[0]), string(h.messages[1])
	h.mu.Unlock()
	if first != "one" || second != "two" {
		t.Errorf("frames = %q, %q", first, second)
	}
}

func TestWSWorker_ReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.Close()
	}))
	defer srv.Close()

	h := &recordingHandler{url: wsURL(srv)}
	w := NewWSWorker(h)
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, 5*time.Second, func() bool {
		opened, _ := h.snapshot()
		return opened >= 2
	})
}

func TestWSWorker_StopWhileDialFailing(t *testing.T) {
	h := &recordingHandler{url: "ws://127.0.0.1:1/nope"}
	w := NewWSWorker(h)
	w.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while dial was failing")
	}
}

func TestWSWorker_WriteWithoutConnection(t *testing.T) {
	w := NewWSWorker(&recordingHandler{url: "ws://127.0.0.1:1/nope"})
	if err := w.Write(websocket.TextMessage, []byte("x")); err == nil {
		t.Fatal("expected error writing without a connection")
	}
}
