package signal

import (
	"time"

	"paper-trader/internal/indicator"
	"paper-trader/internal/regime"
)

// RiskLevel 为信号风险分级。
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Signal 为一次信号请求的完整结果，临时产生、不做持久化。
// HOLD 信号不携带目标价与止损价。
type Signal struct {
	Symbol      string            `json:"symbol"`
	Action      indicator.Action  `json:"action"`
	Confidence  float64           `json:"confidence"`
	Reasoning   string            `json:"reasoning"`
	Indicators  []indicator.Value `json:"indicators"`
	RiskLevel   RiskLevel         `json:"risk_level"`
	TargetPrice float64           `json:"target_price,omitempty"`
	StopLoss    float64           `json:"stop_loss,omitempty"`
	Regime      regime.Regime     `json:"regime"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Insight 为批量信号的聚合统计。
type Insight struct {
	BuyCount         int               `json:"buy_count"`
	SellCount        int               `json:"sell_count"`
	HoldCount        int               `json:"hold_count"`
	AvgConfidence    float64           `json:"avg_confidence"`
	RiskDistribution map[RiskLevel]int `json:"risk_distribution"`
	StrongestBuy     string            `json:"strongest_buy,omitempty"`
	StrongestSell    string            `json:"strongest_sell,omitempty"`
}

// BatchResult 聚合批量信号及其统计。
type BatchResult struct {
	Signals []Signal `json:"signals"`
	Insight Insight  `json:"insight"`
}
