package market

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCachedProvider_QuoteTTL(t *testing.T) {
	inner := &countingProvider{price: 50}
	cached := NewCachedProvider(inner, time.Hour)

	first, err := cached.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	second, err := cached.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}

	if inner.calls() != 1 {
		t.Errorf("expected single upstream call within ttl, got %d", inner.calls())
	}
	if first.Price != second.Price {
		t.Errorf("expected cached quote returned, got %f vs %f", first.Price, second.Price)
	}

	cached.Invalidate("AAPL")
	if _, err := cached.Quote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if inner.calls() != 2 {
		t.Errorf("expected upstream refetch after invalidate, got %d calls", inner.calls())
	}
}

func TestCachedProvider_Expiry(t *testing.T) {
	inner := &countingProvider{price: 50}
	cached := NewCachedProvider(inner, 10*time.Millisecond)

	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return current }

	if _, err := cached.Quote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}

	current = current.Add(20 * time.Millisecond)
	if _, err := cached.Quote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}

	if inner.calls() != 2 {
		t.Errorf("expected refetch after ttl expiry, got %d calls", inner.calls())
	}
}

func TestCachedProvider_ZeroTTLPassthrough(t *testing.T) {
	inner := &countingProvider{price: 50}
	cached := NewCachedProvider(inner, 0)

	for i := 0; i < 3; i++ {
		if _, err := cached.Quote(context.Background(), "AAPL"); err != nil {
			t.Fatalf("Quote returned error: %v", err)
		}
	}
	if inner.calls() != 3 {
		t.Errorf("expected passthrough on zero ttl, got %d calls", inner.calls())
	}
}

type countingProvider struct {
	mu    sync.Mutex
	price float64
	count int
}

func (p *countingProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return Quote{Symbol: symbol, Price: p.price, Timestamp: time.Now().UTC()}, nil
}

func (p *countingProvider) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	return nil, nil
}

func (p *countingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
