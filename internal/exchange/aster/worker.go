package aster

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
)

// marketHandler consumes the combined market stream for one symbol:
// mini-ticker, mark price and a shallow depth snapshot. Subscription is
// encoded in the URL, so OnOpen has nothing to send.
type marketHandler struct {
	wsURL   string
	symbol  string
	onTick  func(domain.TickerSnapshot)
	onDepth func(domain.DepthSnapshot)

	// mark price arrives on its own stream; merge it into the next
	// ticker frame rather than emitting half-empty snapshots.
	lastMark float64
	lastTick domain.TickerSnapshot
}

func newMarketHandler(wsURL, symbol string, onTick func(domain.TickerSnapshot), onDepth func(domain.DepthSnapshot)) *marketHandler {
	return &marketHandler{wsURL: wsURL, symbol: symbol, onTick: onTick, onDepth: onDepth}
}

func (h *marketHandler) Name() string { return "aster-market-" + strings.ToLower(h.symbol) }

func (h *marketHandler) URL() string {
	s := strings.ToLower(h.symbol)
	streams := s + "@miniTicker/" + s + "@markPrice@1s/" + s + "@depth5@100ms"
	return strings.TrimRight(h.wsURL, "/") + "/stream?streams=" + streams
}

func (h *marketHandler) OnOpen(_ context.Context, _ *websocket.Conn) error { return nil }

func (h *marketHandler) OnPing(_ context.Context, conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.PongMessage, nil)
}

func (h *marketHandler) OnMessage(_ context.Context, msg []byte) {
	var frame wireStreamFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return
	}

	switch {
	case strings.HasSuffix(frame.Stream, "@miniTicker"):
		var tick wireMiniTicker
		if err := json.Unmarshal(msg, &tick); err != nil {
			return
		}
		h.lastTick = domain.TickerSnapshot{
			Symbol:    h.symbol,
			Last:      parseFloat(tick.Data.LastPrice),
			MarkPrice: h.lastMark,
			UpdatedAt: tick.Data.EventTime,
		}
		h.onTick(h.lastTick)

	case strings.Contains(frame.Stream, "@markPrice"):
		var mark wireMarkPrice
		if err := json.Unmarshal(msg, &mark); err != nil {
			return
		}
		h.lastMark = parseFloat(mark.Data.MarkPrice)
		if h.lastTick.Last > 0 {
			h.lastTick.MarkPrice = h.lastMark
			h.lastTick.UpdatedAt = mark.Data.EventTime
			h.onTick(h.lastTick)
		}

	case strings.Contains(frame.Stream, "@depth"):
		var depth wireDepth
		if err := json.Unmarshal(msg, &depth); err != nil {
			return
		}
		h.onDepth(domain.DepthSnapshot{
			Symbol:    h.symbol,
			Bids:      parseLevels(depth.Data.Bids),
			Asks:      parseLevels(depth.Data.Asks),
			UpdatedAt: depth.Data.EventTime,
		})
	}
}

func parseLevels(raw [][]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		levels = append(levels, domain.PriceLevel{
			Price: parseFloat(entry[0]),
			Qty:   parseFloat(entry[1]),
		})
	}
	return levels
}

// userHandler consumes the authenticated user-data stream: order updates
// and account updates.
type userHandler struct {
	wsURL     string
	listenKey string
	onOrder   func(domain.Order)
	onAccount func(wireAccountUpdate)
}

func newUserHandler(wsURL, listenKey string, onOrder func(domain.Order), onAccount func(wireAccountUpdate)) *userHandler {
	return &userHandler{wsURL: wsURL, listenKey: listenKey, onOrder: onOrder, onAccount: onAccount}
}

func (h *userHandler) Name() string { return "aster-user" }

func (h *userHandler) URL() string {
	return strings.TrimRight(h.wsURL, "/") + "/ws/" + h.listenKey
}

func (h *userHandler) OnOpen(_ context.Context, _ *websocket.Conn) error { return nil }

func (h *userHandler) OnPing(_ context.Context, conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.PongMessage, nil)
}

func (h *userHandler) OnMessage(_ context.Context, msg []byte) {
	var ev wireUserEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return
	}

	switch ev.EventType {
	case "ORDER_TRADE_UPDATE":
		var update wireOrderUpdate
		if err := json.Unmarshal(msg, &update); err != nil {
			return
		}
		h.onOrder(update.toDomain())

	case "ACCOUNT_UPDATE":
		var update wireAccountUpdate
		if err := json.Unmarshal(msg, &update); err != nil {
			return
		}
		h.onAccount(update)
	}
}
