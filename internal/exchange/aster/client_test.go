package aster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
)

func TestClassifyError_KnownCodes(t *testing.T) {
	cases := []struct {
		body string
		want exchange.ErrorKind
	}{
		{`{"code":-2011,"msg":"Unknown order sent."}`, exchange.KindAlreadyGone},
		{`{"code":-2013,"msg":"Order does not exist."}`, exchange.KindAlreadyGone},
		{`{"code":-1003,"msg":"Too many requests."}`, exchange.KindRateLimited},
		{`{"code":-2019,"msg":"Margin is insufficient."}`, exchange.KindInsufficientBalance},
		{`{"code":-1102,"msg":"Mandatory parameter missing."}`, exchange.KindOther},
	}
	for _, c := range cases {
		err := classifyError(http.StatusBadRequest, []byte(c.body))
		if got := exchange.KindOf(err); got != c.want {
			t.Errorf("classifyError(%s) kind = %s, want %s", c.body, got, c.want)
		}
	}
}

func TestClassifyError_NonJSONBody(t *testing.T) {
	err := classifyError(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	if exchange.KindOf(err) != exchange.KindOther {
		t.Errorf("unexpected kind for non-JSON body: %v", err)
	}
}

func TestClient_SignedRequestCarriesAuth(t *testing.T) {
	var gotHeader, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-MBX-APIKEY")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"orderId":42,"symbol":"BTCUSDT","status":"NEW","price":"100","origQty":"0.5","side":"BUY","type":"LIMIT"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-secret")
	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	order, err := c.PlaceOrder(context.Background(), params)
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if gotHeader != "test-key" {
		t.Errorf("api key header = %q, want test-key", gotHeader)
	}
	values, err := url.ParseQuery(gotQuery)
	if err != nil {
		t.Fatalf("bad query: %v", err)
	}
	if values.Get("signature") == "" || values.Get("timestamp") == "" {
		t.Errorf("signed query missing auth fields: %s", gotQuery)
	}
	if order.OrderID != 42 {
		t.Errorf("order id = %d, want 42", order.OrderID)
	}
}

func TestClient_VenueErrorSurfacesTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2011,"msg":"Unknown order sent."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s")
	err := c.CancelOrder(context.Background(), "BTCUSDT", "123")
	if !exchange.IsAlreadyGone(err) {
		t.Fatalf("expected already-gone, got %v", err)
	}
}
