package signal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"paper-trader/internal/config"
	"paper-trader/internal/indicator"
	"paper-trader/internal/market"
	"paper-trader/internal/regime"
)

func TestGenerate_FallbackOnProviderError(t *testing.T) {
	provider := &mockProvider{candlesErr: errors.New("feed down")}
	composer := NewComposer(provider, testSignalConfig(), nil)

	sig := composer.Generate(context.Background(), "BTC/USDT")
	if sig.Action != indicator.ActionHold {
		t.Fatalf("expected HOLD fallback on data failure, got %s", sig.Action)
	}
	if sig.Confidence != 0.1 {
		t.Errorf("expected fallback confidence 0.1, got %f", sig.Confidence)
	}
	if sig.TargetPrice != 0 || sig.StopLoss != 0 {
		t.Errorf("fallback signal must not carry price targets")
	}
	if sig.Regime != regime.Fallback() {
		t.Errorf("expected fallback regime, got %+v", sig.Regime)
	}
}

func TestGenerate_FallbackOnSparseData(t *testing.T) {
	provider := &mockProvider{candles: makeCandles(linear(100, 1, 10))}
	composer := NewComposer(provider, testSignalConfig(), nil)

	sig := composer.Generate(context.Background(), "BTC/USDT")
	if sig.Action != indicator.ActionHold || sig.Confidence != 0.1 {
		t.Fatalf("expected degraded HOLD on sparse data, got %s/%f", sig.Action, sig.Confidence)
	}
	if !strings.Contains(sig.Reasoning, "历史K线不足") {
		t.Errorf("expected sparse-data reasoning, got %q", sig.Reasoning)
	}
}

func TestGenerate_FullSeries(t *testing.T) {
	provider := &mockProvider{candles: makeCandles(linear(100, 1, 80))}
	composer := NewComposer(provider, testSignalConfig(), nil)

	sig := composer.Generate(context.Background(), "BTC/USDT")
	if sig.Symbol != "BTC/USDT" {
		t.Errorf("unexpected symbol %q", sig.Symbol)
	}
	if len(sig.Indicators) != 6 {
		t.Fatalf("expected 6 indicator snapshots, got %d", len(sig.Indicators))
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		t.Errorf("confidence out of range: %f", sig.Confidence)
	}
	if sig.Reasoning == "" {
		t.Errorf("expected non-empty reasoning")
	}

	lastClose := 100.0 + 79
	switch sig.Action {
	case indicator.ActionBuy:
		if sig.TargetPrice <= lastClose || sig.StopLoss >= lastClose {
			t.Errorf("BUY targets inconsistent: target=%f stop=%f close=%f", sig.TargetPrice, sig.StopLoss, lastClose)
		}
	case indicator.ActionSell:
		if sig.TargetPrice >= lastClose || sig.StopLoss <= lastClose {
			t.Errorf("SELL targets inconsistent: target=%f stop=%f close=%f", sig.TargetPrice, sig.StopLoss, lastClose)
		}
	default:
		if sig.TargetPrice != 0 || sig.StopLoss != 0 {
			t.Errorf("HOLD must not carry price targets")
		}
	}
}

func TestGenerateBatch(t *testing.T) {
	provider := &mockProvider{
		perSymbol: map[string][]market.Candle{
			"AAA": makeCandles(linear(100, 1, 80)),
			"BBB": makeCandles(linear(200, -1, 80)),
			"CCC": makeCandles(linear(100, 1, 5)),
		},
	}
	composer := NewComposer(provider, testSignalConfig(), nil)

	result, err := composer.GenerateBatch(context.Background(), []string{"AAA", "BBB", "CCC"})
	if err != nil {
		t.Fatalf("GenerateBatch returned error: %v", err)
	}
	if len(result.Signals) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(result.Signals))
	}

	bySymbol := make(map[string]Signal, 3)
	for _, sig := range result.Signals {
		bySymbol[sig.Symbol] = sig
	}
	sparse, ok := bySymbol["CCC"]
	if !ok {
		t.Fatalf("expected signal for sparse symbol")
	}
	if sparse.Action != indicator.ActionHold || sparse.Confidence != 0.1 {
		t.Errorf("sparse symbol must degrade to HOLD, got %s/%f", sparse.Action, sparse.Confidence)
	}

	insight := result.Insight
	if insight.BuyCount+insight.SellCount+insight.HoldCount != 3 {
		t.Errorf("insight counts must sum to batch size, got %+v", insight)
	}
	if insight.AvgConfidence <= 0 || insight.AvgConfidence > 1 {
		t.Errorf("avg confidence out of range: %f", insight.AvgConfidence)
	}

	var total int
	for _, n := range insight.RiskDistribution {
		total += n
	}
	if total != 3 {
		t.Errorf("risk distribution must cover all signals, got %+v", insight.RiskDistribution)
	}
}

func TestGenerateBatch_Limits(t *testing.T) {
	composer := NewComposer(&mockProvider{}, testSignalConfig(), nil)

	if _, err := composer.GenerateBatch(context.Background(), nil); err == nil {
		t.Fatalf("expected error on empty symbol list")
	}

	symbols := make([]string, 21)
	for i := range symbols {
		symbols[i] = "SYM"
	}
	if _, err := composer.GenerateBatch(context.Background(), symbols); err == nil {
		t.Fatalf("expected error when batch exceeds limit")
	}
}

func testSignalConfig() config.SignalConfig {
	return config.SignalConfig{
		Timeframe: "1d",
		BarLimit:  100,
		MaxBatch:  20,
	}
}

type mockProvider struct {
	candles    []market.Candle
	candlesErr error
	perSymbol  map[string][]market.Candle
}

func (m *mockProvider) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	return market.Quote{}, errors.New("not implemented")
}

func (m *mockProvider) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	if m.candlesErr != nil {
		return nil, m.candlesErr
	}
	if m.perSymbol != nil {
		return m.perSymbol[symbol], nil
	}
	return m.candles, nil
}

func makeCandles(closes []float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = market.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return candles
}

func linear(start, step float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + step*float64(i)
	}
	return values
}
