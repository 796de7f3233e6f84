package signal

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-trader/internal/config"
	"paper-trader/internal/indicator"
	"paper-trader/internal/market"
	"paper-trader/internal/regime"
)

// 信号合成参数。阈值与目标价比例沿用参考实现。
const (
	minBars            = 50
	bullMultiplier     = 1.2
	bearMultiplier     = 0.8
	defaultThreshold   = 0.55
	highVolThreshold   = 0.65
	buyTargetPct       = 0.03
	buyStopPct         = 0.02
	sellTargetPct      = 0.03
	sellStopPct        = 0.02
	fallbackConfidence = 0.1
)

// Composer 将指标输出与市场状态合成为单一方向信号。
// 本身无状态，可在多标的间并行使用。
type Composer struct {
	provider market.Provider
	cfg      config.SignalConfig
	logger   *zap.Logger
}

// NewComposer 创建信号合成器。
func NewComposer(provider market.Provider, cfg config.SignalConfig, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}
}

// Generate 为单个标的生成信号。
// 数据不可用或K线不足时降级为低置信度 HOLD，绝不向调用方抛错。
func (c *Composer) Generate(ctx context.Context, symbol string) Signal {
	candles, err := c.provider.Candles(ctx, symbol, c.cfg.Timeframe, c.cfg.BarLimit)
	if err != nil {
		c.logger.Warn("获取K线失败，信号降级为观望",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return fallbackSignal(symbol, fmt.Sprintf("行情数据不可用（%v），建议观望。", err))
	}

	if len(candles) < minBars {
		return fallbackSignal(symbol,
			fmt.Sprintf("历史K线不足（%d/%d根），无法形成可靠判断，建议观望。", len(candles), minBars))
	}

	return c.compose(symbol, candles)
}

func (c *Composer) compose(symbol string, candles []market.Candle) Signal {
	series := indicator.NewSeries(candles)
	reg := regime.Classify(series)
	values := indicator.ComputeAll(series)

	multiplier := 1.0
	switch reg.Trend {
	case regime.TrendBull:
		multiplier = bullMultiplier
	case regime.TrendBear:
		multiplier = bearMultiplier
	}

	var buyWeight, sellWeight, totalWeight, confidenceSum float64
	for _, v := range values {
		weighted := v.Confidence * multiplier
		totalWeight += weighted
		confidenceSum += v.Confidence

		switch v.Signal {
		case indicator.ActionBuy:
			buyWeight += weighted
		case indicator.ActionSell:
			sellWeight += weighted
		}
	}

	buyRatio := indicator.SafeDivide(buyWeight, totalWeight)
	sellRatio := indicator.SafeDivide(sellWeight, totalWeight)

	threshold := defaultThreshold
	if reg.Volatility == regime.VolatilityHigh {
		threshold = highVolThreshold
	}

	action := indicator.ActionHold
	switch {
	case buyRatio > threshold && buyRatio > sellRatio:
		action = indicator.ActionBuy
	case sellRatio > threshold && sellRatio > buyRatio:
		action = indicator.ActionSell
	}

	meanConfidence := confidenceSum / float64(len(values))
	confidence := clamp(0.7*meanConfidence+0.3*reg.Confidence, 0, 1)

	sig := Signal{
		Symbol:      symbol,
		Action:      action,
		Confidence:  confidence,
		Reasoning:   buildReasoning(action, values, reg, buyRatio, sellRatio),
		Indicators:  values,
		RiskLevel:   riskLevel(reg, confidence),
		Regime:      reg,
		GeneratedAt: time.Now().UTC(),
	}

	// HOLD 不给出目标价与止损价。
	price := indicator.Last(series.Close)
	switch action {
	case indicator.ActionBuy:
		sig.TargetPrice = price * (1 + buyTargetPct)
		sig.StopLoss = price * (1 - buyStopPct)
	case indicator.ActionSell:
		sig.TargetPrice = price * (1 - sellTargetPct)
		sig.StopLoss = price * (1 + sellStopPct)
	}

	return sig
}

// riskLevel 按波动率、置信度与趋势累加风险分：≥5为高风险，≥3为中风险。
func riskLevel(reg regime.Regime, confidence float64) RiskLevel {
	score := 0
	switch reg.Volatility {
	case regime.VolatilityHigh:
		score += 3
	case regime.VolatilityMedium:
		score += 2
	case regime.VolatilityLow:
		score++
	}

	switch {
	case confidence < 0.4:
		score += 2
	case confidence < 0.6:
		score++
	}

	if reg.Trend == regime.TrendBear {
		score++
	}

	switch {
	case score >= 5:
		return RiskHigh
	case score >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

func buildReasoning(action indicator.Action, values []indicator.Value, reg regime.Regime, buyRatio, sellRatio float64) string {
	var buys, sells []string
	for _, v := range values {
		switch v.Signal {
		case indicator.ActionBuy:
			buys = append(buys, v.Name)
		case indicator.ActionSell:
			sells = append(sells, v.Name)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "市场处于%s趋势、%s波动（多头权重%.2f/空头权重%.2f）。",
		trendLabel(reg.Trend), volatilityLabel(reg.Volatility), buyRatio, sellRatio)

	if len(buys) > 0 {
		fmt.Fprintf(&sb, "看多指标: %s。", strings.Join(buys, ", "))
	}
	if len(sells) > 0 {
		fmt.Fprintf(&sb, "看空指标: %s。", strings.Join(sells, ", "))
	}

	switch action {
	case indicator.ActionBuy:
		sb.WriteString("综合判断为买入。")
	case indicator.ActionSell:
		sb.WriteString("综合判断为卖出。")
	default:
		sb.WriteString("多空力量未达阈值，建议观望。")
	}

	return sb.String()
}

func trendLabel(t regime.Trend) string {
	switch t {
	case regime.TrendBull:
		return "多头"
	case regime.TrendBear:
		return "空头"
	default:
		return "震荡"
	}
}

func volatilityLabel(v regime.Volatility) string {
	switch v {
	case regime.VolatilityHigh:
		return "高"
	case regime.VolatilityLow:
		return "低"
	default:
		return "中"
	}
}

func fallbackSignal(symbol, reason string) Signal {
	return Signal{
		Symbol:      symbol,
		Action:      indicator.ActionHold,
		Confidence:  fallbackConfidence,
		Reasoning:   reason,
		Indicators:  []indicator.Value{},
		RiskLevel:   RiskMedium,
		Regime:      regime.Fallback(),
		GeneratedAt: time.Now().UTC(),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
