package infra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamHandler is the venue-specific half of a websocket worker: where
// to connect and what to do with each frame.
type StreamHandler interface {
	// Name identifies the stream in logs.
	Name() string
	// URL is the full dial target, including any subscription encoding.
	URL() string
	// OnOpen runs after each (re)connect, e.g. to send subscribe frames.
	OnOpen(ctx context.Context, conn *websocket.Conn) error
	OnMessage(ctx context.Context, msg []byte)
	// OnPing runs on the ping interval; an error forces a reconnect.
	OnPing(ctx context.Context, conn *websocket.Conn) error
}

// WSWorker owns one websocket connection for a StreamHandler: it dials,
// reads, pings, and reconnects with jittered exponential delay until the
// context ends. Writes are serialized; reads happen on the worker
// goroutine only.
type WSWorker struct {
	handler StreamHandler

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// NewWSWorker creates a worker for h with default timeouts.
func NewWSWorker(h StreamHandler) *WSWorker {
	return &WSWorker{
		handler:      h,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Start launches the connect-read-reconnect loop.
func (w *WSWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop tears the connection down and waits for the loop to exit.
func (w *WSWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.dropConn()
	w.wg.Wait()
}

func (w *WSWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	attempt := 0
	for ctx.Err() == nil {
		if err := w.dial(ctx); err != nil {
			slog.Warn("WS_CONNECT_FAILED",
				slog.String("stream", w.handler.Name()),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(ReconnectDelay(attempt)):
				attempt++
				continue
			}
		}

		attempt = 0
		w.readFrames(ctx)
	}
}

func (w *WSWorker) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	header.Set("User-Agent", GetUserAgent())

	conn, _, err := dialer.DialContext(ctx, w.handler.URL(), header)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	if err := w.handler.OnOpen(ctx, conn); err != nil {
		w.dropConn()
		return fmt.Errorf("stream open hook failed: %w", err)
	}

	if w.PingInterval > 0 {
		go w.pingLoop(ctx)
	}

	slog.Info("WS_CONNECTED", slog.String("stream", w.handler.Name()))
	return nil
}

// readFrames blocks until the connection breaks; every frame goes to the
// handler on this goroutine, so handlers need no locking of their own.
func (w *WSWorker) readFrames(ctx context.Context) {
	for {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("WS_READ_FAILED",
					slog.String("stream", w.handler.Name()),
					slog.Any("error", err))
			}
			w.dropConn()
			return
		}

		w.handler.OnMessage(ctx, msg)
	}
}

func (w *WSWorker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := w.handler.OnPing(ctx, conn); err != nil {
				slog.Warn("WS_PING_FAILED",
					slog.String("stream", w.handler.Name()),
					slog.Any("error", err))
				w.dropConn()
				return
			}
		}
	}
}

// Write sends one frame; safe from any goroutine.
func (w *WSWorker) Write(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	return conn.WriteMessage(msgType, data)
}

func (w *WSWorker) dropConn() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
