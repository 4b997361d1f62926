package aster

import (
	"context"
	"testing"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
)

func TestMarketHandler_TickerAndMarkMerge(t *testing.T) {
	var ticks []domain.TickerSnapshot
	h := newMarketHandler("wss://example", "BTCUSDT", func(s domain.TickerSnapshot) { ticks = append(ticks, s) }, nil)

	ctx := context.Background()
	h.OnMessage(ctx, []byte(`{"stream":"btcusdt@miniTicker","data":{"s":"BTCUSDT","c":"101.5","E":1700000000000}}`))
	if len(ticks) != 1 || ticks[0].Last != 101.5 {
		t.Fatalf("ticker not parsed: %v", ticks)
	}
	if ticks[0].MarkPrice != 0 {
		t.Errorf("mark price = %v before any mark frame", ticks[0].MarkPrice)
	}

	h.OnMessage(ctx, []byte(`{"stream":"btcusdt@markPrice@1s","data":{"s":"BTCUSDT","p":"101.4","E":1700000001000}}`))
	if len(ticks) != 2 {
		t.Fatalf("mark frame did not re-emit: %d ticks", len(ticks))
	}
	if ticks[1].Last != 101.5 || ticks[1].MarkPrice != 101.4 {
		t.Errorf("merged tick = %+v", ticks[1])
	}
}

func TestMarketHandler_Depth(t *testing.T) {
	var depths []domain.DepthSnapshot
	h := newMarketHandler("wss://example", "BTCUSDT", nil, func(d domain.DepthSnapshot) { depths = append(depths, d) })

	h.OnMessage(context.Background(), []byte(`{"stream":"btcusdt@depth5@100ms","data":{"s":"BTCUSDT","b":[["100.1","2"]],"a":[["100.3","1"]],"E":1700000000000}}`))
	if len(depths) != 1 {
		t.Fatalf("depth not parsed")
	}
	if depths[0].BestBid() != 100.1 || depths[0].BestAsk() != 100.3 {
		t.Errorf("book = bid %v ask %v", depths[0].BestBid(), depths[0].BestAsk())
	}
	if got := depths[0].MidPrice(); got != 100.2 {
		t.Errorf("mid = %v, want 100.2", got)
	}
}

func TestUserHandler_OrderUpdate(t *testing.T) {
	var orders []domain.Order
	h := newUserHandler("wss://example", "lk", func(o domain.Order) { orders = append(orders, o) }, func(wireAccountUpdate) {})

	h.OnMessage(context.Background(), []byte(`{"e":"ORDER_TRADE_UPDATE","E":1700000000000,"o":{"s":"BTCUSDT","S":"SELL","o":"LIMIT","p":"168.17","q":"0.1","z":"0.1","X":"FILLED","i":9001,"R":true,"T":1700000000000}}`))
	if len(orders) != 1 {
		t.Fatalf("order update not delivered")
	}
	o := orders[0]
	if o.ID != "9001" || o.Side != domain.SideSell || o.Status != domain.StatusFilled {
		t.Errorf("parsed order = %+v", o)
	}
	if !o.IsTerminalFill() {
		t.Error("filled update not terminal")
	}
}

func TestUserHandler_AccountUpdate(t *testing.T) {
	var updates []wireAccountUpdate
	h := newUserHandler("wss://example", "lk", func(domain.Order) {}, func(u wireAccountUpdate) { updates = append(updates, u) })

	h.OnMessage(context.Background(), []byte(`{"e":"ACCOUNT_UPDATE","E":1,"a":{"B":[{"a":"USDT","wb":"5000"}],"P":[{"s":"BTCUSDT","pa":"0.3","ep":"100","up":"2"}]}}`))
	if len(updates) != 1 {
		t.Fatalf("account update not delivered")
	}
	if updates[0].Account.Positions[0].PositionAmt != "0.3" {
		t.Errorf("position amt = %s", updates[0].Account.Positions[0].PositionAmt)
	}
}
