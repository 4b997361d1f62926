package aster

import (
	"strconv"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
)

// Default endpoints. The API is binance-futures compatible.
const (
	DefaultRestURL = "https://fapi.asterdex.com"
	DefaultWSURL   = "wss://fstream.asterdex.com"
)

// apiError is the venue's error envelope.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// wireOrder is the REST representation of an order, shared by the place
// response and the open-orders listing.
type wireOrder struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	StopPrice     string `json:"stopPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	ReduceOnly    bool   `json:"reduceOnly"`
	UpdateTime    int64  `json:"updateTime"`
}

func (w *wireOrder) toDomain() domain.Order {
	return domain.Order{
		ID:          strconv.FormatInt(w.OrderID, 10),
		Symbol:      w.Symbol,
		Side:        domain.Side(w.Side),
		Type:        domain.OrderType(w.Type),
		Price:       parseFloat(w.Price),
		StopPrice:   parseFloat(w.StopPrice),
		Quantity:    parseFloat(w.OrigQty),
		ExecutedQty: parseFloat(w.ExecutedQty),
		ReduceOnly:  w.ReduceOnly,
		Status:      domain.OrderStatus(w.Status),
		UpdateTime:  w.UpdateTime,
	}
}

// wireAccount is the account endpoint response.
type wireAccount struct {
	TotalWalletBalance string         `json:"totalWalletBalance"`
	Positions          []wirePosition `json:"positions"`
}

type wirePosition struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	UnrealizedProfit string `json:"unrealizedProfit"`
}

func (a *wireAccount) toDomain() domain.AccountSnapshot {
	snap := domain.AccountSnapshot{WalletBalance: parseFloat(a.TotalWalletBalance)}
	for _, p := range a.Positions {
		qty := parseFloat(p.PositionAmt)
		if qty == 0 {
			continue
		}
		snap.Positions = append(snap.Positions, domain.Position{
			Symbol:        p.Symbol,
			Qty:           qty,
			EntryPrice:    parseFloat(p.EntryPrice),
			UnrealizedPnL: parseFloat(p.UnrealizedProfit),
		})
	}
	return snap
}

// wireExchangeInfo carries per-symbol quanta inside filter entries.
type wireExchangeInfo struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

type wireListenKey struct {
	ListenKey string `json:"listenKey"`
}

// combined-stream market frames

type wireStreamFrame struct {
	Stream string `json:"stream"`
}

type wireMiniTicker struct {
	Data struct {
		Symbol    string `json:"s"`
		LastPrice string `json:"c"`
		EventTime int64  `json:"E"`
	} `json:"data"`
}

type wireMarkPrice struct {
	Data struct {
		Symbol    string `json:"s"`
		MarkPrice string `json:"p"`
		EventTime int64  `json:"E"`
	} `json:"data"`
}

type wireDepth struct {
	Data struct {
		Symbol    string     `json:"s"`
		Bids      [][]string `json:"b"`
		Asks      [][]string `json:"a"`
		EventTime int64      `json:"E"`
	} `json:"data"`
}

// user-stream frames

type wireUserEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

type wireOrderUpdate struct {
	Order struct {
		Symbol        string `json:"s"`
		ClientOrderID string `json:"c"`
		Side          string `json:"S"`
		Type          string `json:"o"`
		Price         string `json:"p"`
		StopPrice     string `json:"sp"`
		OrigQty       string `json:"q"`
		ExecutedQty   string `json:"z"`
		Status        string `json:"X"`
		OrderID       int64  `json:"i"`
		ReduceOnly    bool   `json:"R"`
		TradeTime     int64  `json:"T"`
	} `json:"o"`
}

func (u *wireOrderUpdate) toDomain() domain.Order {
	o := u.Order
	return domain.Order{
		ID:          strconv.FormatInt(o.OrderID, 10),
		Symbol:      o.Symbol,
		Side:        domain.Side(o.Side),
		Type:        domain.OrderType(o.Type),
		Price:       parseFloat(o.Price),
		StopPrice:   parseFloat(o.StopPrice),
		Quantity:    parseFloat(o.OrigQty),
		ExecutedQty: parseFloat(o.ExecutedQty),
		ReduceOnly:  o.ReduceOnly,
		Status:      domain.OrderStatus(o.Status),
		UpdateTime:  o.TradeTime,
	}
}

type wireAccountUpdate struct {
	Account struct {
		Balances []struct {
			Asset         string `json:"a"`
			WalletBalance string `json:"wb"`
		} `json:"B"`
		Positions []struct {
			Symbol           string `json:"s"`
			PositionAmt      string `json:"pa"`
			EntryPrice       string `json:"ep"`
			UnrealizedProfit string `json:"up"`
		} `json:"P"`
	} `json:"a"`
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
