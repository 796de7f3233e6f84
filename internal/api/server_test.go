package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"paper-trader/internal/config"
	"paper-trader/internal/ledger"
	"paper-trader/internal/market"
	"paper-trader/internal/order"
	"paper-trader/internal/signal"
)

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSubmitOrder(t *testing.T) {
	s, env := newTestServer(t)

	// 市价买入使用默认账户。
	w := doRequest(s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"symbol":   "AAPL",
		"side":     "BUY",
		"type":     "MARKET",
		"quantity": 10,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var o order.Order
	mustDecode(t, w, &o)
	if o.Status != order.StatusFilled {
		t.Errorf("expected filled order, got %s", o.Status)
	}
	if o.PortfolioID != env.portfolioID {
		t.Errorf("expected default portfolio %s, got %s", env.portfolioID, o.PortfolioID)
	}
}

func TestSubmitOrder_ValidationStatus(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"symbol":   "AAPL",
		"side":     "BUY",
		"type":     "LIMIT",
		"quantity": 10,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit order without price, got %d", w.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	mustDecode(t, w, &resp)
	if resp.Error == "" {
		t.Errorf("expected specific validation message in body")
	}
}

func TestCancelOrder_StatusMapping(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"symbol":   "AAPL",
		"side":     "BUY",
		"type":     "MARKET",
		"quantity": 10,
	})
	var o order.Order
	mustDecode(t, w, &o)

	w = doRequest(s, http.MethodDelete, "/api/v1/orders/"+o.ID, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for filled order cancel, got %d", w.Code)
	}

	w = doRequest(s, http.MethodDelete, "/api/v1/orders/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown order, got %d", w.Code)
	}
}

func TestPortfolioRoutes(t *testing.T) {
	s, env := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/portfolios/"+env.portfolioID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var p ledger.Portfolio
	mustDecode(t, w, &p)
	if p.Cash != 100000 {
		t.Errorf("expected cash 100000, got %f", p.Cash)
	}

	w = doRequest(s, http.MethodGet, "/api/v1/portfolios/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown portfolio, got %d", w.Code)
	}

	w = doRequest(s, http.MethodPost, "/api/v1/portfolios", map[string]interface{}{
		"initial_capital": 5000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/v1/portfolios/"+env.portfolioID+"/risk", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 on risk metrics, got %d", w.Code)
	}
}

func TestBatchSignals_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/signals/batch", map[string]interface{}{
		"symbols": []string{},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", w.Code)
	}
}

type testEnv struct {
	portfolioID string
}

func newTestServer(t *testing.T) (*Server, testEnv) {
	t.Helper()

	book := ledger.New(nil)
	p, err := book.CreatePortfolio(100000)
	if err != nil {
		t.Fatalf("CreatePortfolio returned error: %v", err)
	}

	provider := &stubProvider{price: 50}
	trading := config.TradingConfig{
		CommissionRate: 0.0001,
		MinCommission:  1,
		Slippage:       0.001,
		WatchInterval:  5 * time.Millisecond,
		MaxPositionPct: 1,
		MaxExposurePct: 1,
	}

	manager := order.NewManager(book, provider, trading, nil, nil)
	t.Cleanup(manager.Close)

	composer := signal.NewComposer(provider, config.SignalConfig{
		Timeframe: "1d",
		BarLimit:  100,
		MaxBatch:  20,
	}, nil)

	s := NewServer(config.ServerConfig{Port: 0, ShutdownTimeout: time.Second}, Deps{
		Ledger:             book,
		Orders:             manager,
		Signals:            composer,
		Trading:            trading,
		DefaultPortfolioID: p.ID,
	}, nil)

	return s, testEnv{portfolioID: p.ID}
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func mustDecode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
}

type stubProvider struct {
	mu    sync.Mutex
	price float64
}

func (p *stubProvider) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return market.Quote{Symbol: symbol, Price: p.price, Timestamp: time.Now().UTC()}, nil
}

func (p *stubProvider) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	return nil, nil
}
