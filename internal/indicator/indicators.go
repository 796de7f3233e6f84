package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// Action 表示单个指标或信号给出的方向。
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// 常用指标周期。
const (
	RSIPeriod       = 14
	ShortSMAPeriod  = 10
	MediumSMAPeriod = 20
	LongSMAPeriod   = 50
	MACDFastPeriod  = 12
	MACDSlowPeriod  = 26
	MACDSignalSpan  = 9
	BollingerPeriod = 20
	BollingerWidth  = 2.0
)

// Value 为一次指标计算的快照，每次信号请求都会重新计算。
type Value struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Signal     Action  `json:"signal"`
	Confidence float64 `json:"confidence"`
}

func neutral(name string, value float64) Value {
	return Value{Name: name, Value: value, Signal: ActionHold, Confidence: 0.1}
}

// RSI 计算 Wilder 平滑的相对强弱指数并给出方向判断。
// 数据不足时返回中性默认值而非报错，信号合成器在稀疏数据下仍可运行。
func RSI(series Series, period int) Value {
	if period <= 0 {
		period = RSIPeriod
	}
	name := fmt.Sprintf("RSI_%d", period)
	if series.Len() < period+1 {
		return neutral(name, 50)
	}

	value := Last(talib.Rsi(series.Close, period))
	if math.IsNaN(value) {
		return neutral(name, 50)
	}

	switch {
	case value > 70:
		confidence := 0.7
		if value > 80 {
			confidence = 0.9
		}
		return Value{Name: name, Value: value, Signal: ActionSell, Confidence: confidence}
	case value < 30:
		confidence := 0.7
		if value < 20 {
			confidence = 0.9
		}
		return Value{Name: name, Value: value, Signal: ActionBuy, Confidence: confidence}
	default:
		return Value{Name: name, Value: value, Signal: ActionHold, Confidence: 0.3}
	}
}

// SMA 以简单均线相对收盘价的位置给出方向，偏离越大置信度越高。
// 长周期（≥50）用5%作为显著偏离阈值，短周期用2%。
func SMA(series Series, period int) Value {
	name := fmt.Sprintf("SMA_%d", period)
	if period <= 0 || series.Len() < period {
		return neutral(name, Last(series.Close))
	}

	value := Last(talib.Sma(series.Close, period))
	closePrice := Last(series.Close)
	if math.IsNaN(value) || value == 0 {
		return neutral(name, closePrice)
	}

	threshold := 0.02
	if period >= LongSMAPeriod {
		threshold = 0.05
	}

	deviation := math.Abs(closePrice-value) / value
	confidence := 0.4
	if deviation > threshold {
		confidence = 0.7
	}

	signal := ActionSell
	if closePrice > value {
		signal = ActionBuy
	}

	return Value{Name: name, Value: value, Signal: signal, Confidence: confidence}
}

// MACrossover 比较10日与50日均线，置信度随两线相对间距放大。
func MACrossover(series Series) Value {
	const name = "MA_CROSS_10_50"
	if series.Len() < LongSMAPeriod {
		return neutral(name, 0)
	}

	short := Last(talib.Sma(series.Close, ShortSMAPeriod))
	long := Last(talib.Sma(series.Close, LongSMAPeriod))
	if math.IsNaN(short) || math.IsNaN(long) || long == 0 {
		return neutral(name, 0)
	}

	gap := (short - long) / long
	confidence := math.Min(math.Abs(gap)*10, 0.9)
	if confidence < 0.3 {
		confidence = 0.3
	}

	signal := ActionSell
	if short > long {
		signal = ActionBuy
	}

	return Value{Name: name, Value: gap, Signal: signal, Confidence: confidence}
}

// MACD 计算12/26快慢EMA差值。信号线刻意采用MACD序列的简单均线，
// 而非标准的EMA-of-EMA，以保持与参考行为一致（见 DESIGN.md）。
func MACD(series Series) Value {
	const name = "MACD_12_26"
	if series.Len() < MACDSlowPeriod {
		return neutral(name, 0)
	}

	fast := talib.Ema(series.Close, MACDFastPeriod)
	slow := talib.Ema(series.Close, MACDSlowPeriod)

	macdLine := make([]float64, series.Len())
	for i := range macdLine {
		macdLine[i] = fast[i] - slow[i]
	}

	// 去掉慢线预热区，避免前导0污染信号线均值。
	usable := macdLine[MACDSlowPeriod-1:]
	macdValue := Last(usable)
	signalLine := average(SliceTail(usable, MACDSignalSpan))
	histogram := macdValue - signalLine

	signal := ActionSell
	if macdValue > signalLine {
		signal = ActionBuy
	}

	return Value{Name: name, Value: histogram, Signal: signal, Confidence: 0.6}
}

// Bollinger 计算20周期2σ布林带，价格破下轨看多、破上轨看空。
func Bollinger(series Series) Value {
	const name = "BOLLINGER_20_2"
	if series.Len() < BollingerPeriod {
		return neutral(name, Last(series.Close))
	}

	upper, middle, lower := talib.BBands(series.Close, BollingerPeriod, BollingerWidth, BollingerWidth, talib.SMA)
	u, m, l := Last(upper), Last(middle), Last(lower)
	closePrice := Last(series.Close)
	if math.IsNaN(u) || math.IsNaN(l) || math.IsNaN(m) {
		return neutral(name, closePrice)
	}

	switch {
	case closePrice < l:
		return Value{Name: name, Value: closePrice - l, Signal: ActionBuy, Confidence: 0.75}
	case closePrice > u:
		return Value{Name: name, Value: closePrice - u, Signal: ActionSell, Confidence: 0.75}
	default:
		return Value{Name: name, Value: closePrice - m, Signal: ActionHold, Confidence: 0.3}
	}
}

// VolumeRatio 比较近5根与近20根K线的平均成交量。
// 放量（>1.5倍）时以最近一次价格变化的方向为准，否则视为观望。
func VolumeRatio(series Series) Value {
	const name = "VOLUME_RATIO_5_20"
	if series.Len() < MediumSMAPeriod {
		return neutral(name, 1)
	}

	short := average(SliceTail(series.Volume, 5))
	long := average(SliceTail(series.Volume, 20))
	ratio := SafeDivide(short, long)

	if ratio <= 1.5 {
		return Value{Name: name, Value: ratio, Signal: ActionHold, Confidence: 0.2}
	}

	lastChange := Last(series.Close) - Prev(series.Close)
	signal := ActionSell
	if lastChange > 0 {
		signal = ActionBuy
	}

	return Value{Name: name, Value: ratio, Signal: signal, Confidence: 0.65}
}

// ComputeAll 计算信号合成所需的全部指标快照。
func ComputeAll(series Series) []Value {
	return []Value{
		RSI(series, RSIPeriod),
		SMA(series, MediumSMAPeriod),
		MACrossover(series),
		MACD(series),
		Bollinger(series),
		VolumeRatio(series),
	}
}
