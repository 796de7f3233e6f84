package regime

import (
	"math"
	"testing"
	"time"

	"paper-trader/internal/indicator"
	"paper-trader/internal/market"
)

func TestClassify_BullTrend(t *testing.T) {
	reg := Classify(makeSeries(linear(100, 2, 60)))
	if reg.Trend != TrendBull {
		t.Fatalf("expected BULL on steady uptrend, got %s (strength=%f)", reg.Trend, reg.TrendStrength)
	}
	if reg.TrendStrength <= trendThreshold {
		t.Errorf("expected strength above threshold, got %f", reg.TrendStrength)
	}
	if reg.Confidence <= 0 || reg.Confidence > 1 {
		t.Errorf("confidence out of range: %f", reg.Confidence)
	}
}

func TestClassify_BearTrend(t *testing.T) {
	reg := Classify(makeSeries(linear(300, -2, 60)))
	if reg.Trend != TrendBear {
		t.Fatalf("expected BEAR on steady downtrend, got %s (strength=%f)", reg.Trend, reg.TrendStrength)
	}
}

func TestClassify_SidewaysLowVol(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 0.1*math.Sin(float64(i))
	}

	reg := Classify(makeSeries(closes))
	if reg.Trend != TrendSideways {
		t.Fatalf("expected SIDEWAYS on flat series, got %s", reg.Trend)
	}
	if reg.Volatility != VolatilityLow {
		t.Errorf("expected LOW volatility, got %s (vol=%f)", reg.Volatility, reg.AnnualizedVol)
	}
}

func TestClassify_HighVolatility(t *testing.T) {
	closes := make([]float64, 60)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price *= 1.05
		} else {
			price *= 0.95
		}
		closes[i] = price
	}

	reg := Classify(makeSeries(closes))
	if reg.Volatility != VolatilityHigh {
		t.Fatalf("expected HIGH volatility on whipsaw series, got %s (vol=%f)", reg.Volatility, reg.AnnualizedVol)
	}
}

func TestClassify_FallbackOnShortInput(t *testing.T) {
	reg := Classify(makeSeries(linear(100, 1, 20)))

	want := Fallback()
	if reg != want {
		t.Fatalf("expected fallback regime %+v, got %+v", want, reg)
	}
	if reg.Trend != TrendSideways || reg.Volatility != VolatilityMedium || reg.Confidence != 0.5 {
		t.Errorf("fallback regime fields unexpected: %+v", reg)
	}
}

func makeSeries(closes []float64) indicator.Series {
	candles := make([]market.Candle, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = market.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return indicator.NewSeries(candles)
}

func linear(start, step float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + step*float64(i)
	}
	return values
}
