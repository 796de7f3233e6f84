package ledger

import "time"

// Side 表示成交方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade 为一次成交的不可变记录，成交后仅由账本补记已实现盈亏。
type Trade struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	PortfolioID string    `json:"portfolio_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Commission  float64   `json:"commission"`
	RealizedPnL *float64  `json:"realized_pnl,omitempty"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// Position 为单一标的的持仓。数量降为0时持仓即被移除，
// 不存在数量非正的持仓。
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	AvgPrice      float64   `json:"avg_price"`
	LastPrice     float64   `json:"last_price"`
	MarketValue   float64   `json:"market_value"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
	StopLoss      float64   `json:"stop_loss,omitempty"`
	TakeProfit    float64   `json:"take_profit,omitempty"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Portfolio 为账户快照。不变式: TotalValue = Cash + Σ持仓市值，Cash ≥ 0。
type Portfolio struct {
	ID             string               `json:"id"`
	Cash           float64              `json:"cash"`
	InitialCapital float64              `json:"initial_capital"`
	Positions      map[string]*Position `json:"positions"`
	TotalValue     float64              `json:"total_value"`
	RealizedPnL    float64              `json:"realized_pnl"`
	UnrealizedPnL  float64              `json:"unrealized_pnl"`
	TotalPnL       float64              `json:"total_pnl"`
	TotalReturnPct float64              `json:"total_return_pct"`
	WinRate        float64              `json:"win_rate"`
	SharpeRatio    float64              `json:"sharpe_ratio"`
	MaxDrawdownPct float64              `json:"max_drawdown_pct"`
	WinningTrades  int                  `json:"winning_trades"`
	LosingTrades   int                  `json:"losing_trades"`
	ClosedTrades   int                  `json:"closed_trades"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`

	peakValue float64
}

// RiskReport 为账户风险度量。
type RiskReport struct {
	PortfolioID           string             `json:"portfolio_id"`
	Exposure              map[string]float64 `json:"exposure"`
	AggregateRisk         float64            `json:"aggregate_risk"`
	BuyingPower           float64            `json:"buying_power"`
	DayTradingBuyingPower float64            `json:"day_trading_buying_power"`
}

func (p *Portfolio) clone() Portfolio {
	dst := *p
	dst.Positions = make(map[string]*Position, len(p.Positions))
	for symbol, pos := range p.Positions {
		cp := *pos
		dst.Positions[symbol] = &cp
	}
	return dst
}
