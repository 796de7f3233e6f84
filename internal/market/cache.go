package market

import (
	"context"
	"sync"
	"time"
)

type cachedQuote struct {
	quote     Quote
	fetchedAt time.Time
}

// CachedProvider 在 Provider 之上增加一层带TTL的行情缓存，
// 避免条件单轮询与信号生成反复击穿数据源。
type CachedProvider struct {
	inner Provider
	ttl   time.Duration

	mu     sync.Mutex
	quotes map[string]cachedQuote
	now    func() time.Time
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider 包装已有 Provider。ttl 为0时退化为透传。
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		ttl:    ttl,
		quotes: make(map[string]cachedQuote),
		now:    time.Now,
	}
}

// Quote 优先返回未过期的缓存行情。
func (p *CachedProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	if p.ttl > 0 {
		p.mu.Lock()
		entry, ok := p.quotes[symbol]
		p.mu.Unlock()
		if ok && p.now().Sub(entry.fetchedAt) < p.ttl {
			return entry.quote, nil
		}
	}

	quote, err := p.inner.Quote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	if p.ttl > 0 {
		p.mu.Lock()
		p.quotes[symbol] = cachedQuote{quote: quote, fetchedAt: p.now()}
		p.mu.Unlock()
	}

	return quote, nil
}

// Candles 直接透传，K线粒度本身已是聚合数据。
func (p *CachedProvider) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	return p.inner.Candles(ctx, symbol, timeframe, limit)
}

// Invalidate 清除指定标的缓存，成交后调用以便下一次读取拿到新价。
func (p *CachedProvider) Invalidate(symbol string) {
	p.mu.Lock()
	delete(p.quotes, symbol)
	p.mu.Unlock()
}
