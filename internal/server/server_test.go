package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/engine"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange/paper"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/metrics"
)

func testEngine() *engine.Engine {
	venue := paper.New("BTCUSDT", 10000, domain.Precision{PriceTick: 0.01, QtyStep: 0.001})
	return engine.New(engine.Config{
		Symbol:          "BTCUSDT",
		LowerPrice:      100,
		UpperPrice:      200,
		GridLevels:      5,
		OrderSize:       0.1,
		MaxPositionSize: 0.5,
	}, venue)
}

func TestHealthz(t *testing.T) {
	router := NewRouter(testEngine(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	router := NewRouter(testEngine(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("snapshot not valid JSON: %v", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	router := NewRouter(testEngine(), reg)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("metrics body empty")
	}
}
