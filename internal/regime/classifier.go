package regime

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"paper-trader/internal/indicator"
)

// Trend 为趋势分类。
type Trend string

const (
	TrendBull     Trend = "BULL"
	TrendBear     Trend = "BEAR"
	TrendSideways Trend = "SIDEWAYS"
)

// Volatility 为波动率分级。
type Volatility string

const (
	VolatilityLow    Volatility = "LOW"
	VolatilityMedium Volatility = "MEDIUM"
	VolatilityHigh   Volatility = "HIGH"
)

// 分类阈值。趋势以10/50均线相对间距衡量，波动率为年化日收益标准差。
const (
	lookback           = 50
	trendThreshold     = 0.05
	lowVolThreshold    = 0.15
	highVolThreshold   = 0.30
	tradingDaysPerYear = 252
)

// Regime 描述当前市场状态，用于调节信号合成的权重与阈值。
type Regime struct {
	Trend         Trend      `json:"trend"`
	Volatility    Volatility `json:"volatility"`
	TrendStrength float64    `json:"trend_strength"`
	AnnualizedVol float64    `json:"annualized_vol"`
	Confidence    float64    `json:"confidence"`
}

// Fallback 返回数据不足时的默认市场状态。
func Fallback() Regime {
	return Regime{
		Trend:      TrendSideways,
		Volatility: VolatilityMedium,
		Confidence: 0.5,
	}
}

// Classify 基于最近50根K线划分趋势与波动率状态。
func Classify(series indicator.Series) Regime {
	if series.Len() < lookback {
		return Fallback()
	}

	closes := indicator.SliceTail(series.Close, lookback)

	short := indicator.Last(talib.Sma(closes, 10))
	long := indicator.Last(talib.Sma(closes, 50))
	if math.IsNaN(short) || math.IsNaN(long) || long == 0 {
		return Fallback()
	}

	strength := (short - long) / long

	trend := TrendSideways
	switch {
	case strength > trendThreshold:
		trend = TrendBull
	case strength < -trendThreshold:
		trend = TrendBear
	}

	annualized := annualizedVolatility(closes)
	volatility := VolatilityMedium
	switch {
	case annualized < lowVolThreshold:
		volatility = VolatilityLow
	case annualized > highVolThreshold:
		volatility = VolatilityHigh
	}

	return Regime{
		Trend:         trend,
		Volatility:    volatility,
		TrendStrength: strength,
		AnnualizedVol: annualized,
		Confidence:    math.Min(math.Abs(strength)*10, 1),
	}
}

func annualizedVolatility(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
