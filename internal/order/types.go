package order

import (
	"context"
	"time"

	"paper-trader/internal/ledger"
)

// Type 表示订单类型。
type Type string

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStop      Type = "STOP"
	TypeStopLimit Type = "STOP_LIMIT"
)

// Status 表示订单状态。PENDING 是唯一非终态，
// FILLED/CANCELLED/REJECTED 之后订单不再变更。
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

// Order 为一笔订单的完整状态。
type Order struct {
	ID             string      `json:"id"`
	PortfolioID    string      `json:"portfolio_id"`
	Symbol         string      `json:"symbol"`
	Side           ledger.Side `json:"side"`
	Type           Type        `json:"type"`
	Quantity       float64     `json:"quantity"`
	LimitPrice     float64     `json:"limit_price,omitempty"`
	StopPrice      float64     `json:"stop_price,omitempty"`
	Status         Status      `json:"status"`
	FilledQuantity float64     `json:"filled_quantity,omitempty"`
	FilledPrice    float64     `json:"filled_price,omitempty"`
	Commission     float64     `json:"commission,omitempty"`
	RejectReason   string      `json:"reject_reason,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Terminal 判断订单是否已进入终态。
func (o *Order) Terminal() bool {
	return o.Status != StatusPending
}

// Request 为一次下单请求。Price 仅对 LIMIT/STOP_LIMIT 有意义，
// StopPrice 仅对 STOP/STOP_LIMIT 有意义。
type Request struct {
	PortfolioID string      `json:"portfolio_id"`
	Symbol      string      `json:"symbol"`
	Side        ledger.Side `json:"side"`
	Type        Type        `json:"type"`
	Quantity    float64     `json:"quantity"`
	Price       float64     `json:"price,omitempty"`
	StopPrice   float64     `json:"stop_price,omitempty"`
}

// Stats 为交易会话统计。
type Stats struct {
	Submitted int       `json:"submitted"`
	Filled    int       `json:"filled"`
	Cancelled int       `json:"cancelled"`
	Rejected  int       `json:"rejected"`
	StartedAt time.Time `json:"started_at"`
}

// Recorder 抽象事件落盘，避免订单管理器直接依赖存储实现。
type Recorder interface {
	RecordOrder(ctx context.Context, o Order)
	RecordTrade(ctx context.Context, t ledger.Trade)
}
