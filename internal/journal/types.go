package journal

import (
	"time"

	"paper-trader/internal/ledger"
	"paper-trader/internal/order"
	"paper-trader/internal/signal"
)

// EventType 表示事件日志类型。
type EventType string

const (
	EventOrder     EventType = "order"
	EventTrade     EventType = "trade"
	EventSignal    EventType = "signal"
	EventPortfolio EventType = "portfolio"
	EventError     EventType = "error"
)

// Event 封装通用事件记录。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderPayload 记录订单状态变更。
type OrderPayload struct {
	Order order.Order `json:"order"`
}

// TradePayload 记录成交入账。
type TradePayload struct {
	Trade ledger.Trade `json:"trade"`
}

// SignalPayload 记录信号生成结果。
type SignalPayload struct {
	Signal signal.Signal `json:"signal"`
}

// PortfolioPayload 记录账户快照。
type PortfolioPayload struct {
	Portfolio ledger.Portfolio `json:"portfolio"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
