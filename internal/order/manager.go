package order

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paper-trader/internal/config"
	"paper-trader/internal/ledger"
	"paper-trader/internal/market"
)

// Manager 负责订单的校验、执行与条件单盯盘，是账本唯一的写入方。
type Manager struct {
	ledger *ledger.Ledger
	quotes market.Provider
	cfg    config.TradingConfig
	logger *zap.Logger

	recorder Recorder

	mu       sync.Mutex
	orders   map[string]*Order
	watchers map[string]chan struct{}
	stats    Stats

	quit chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewManager 创建订单管理器。recorder 可为 nil，此时不落盘事件。
func NewManager(l *ledger.Ledger, quotes market.Provider, cfg config.TradingConfig, recorder Recorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		ledger:   l,
		quotes:   quotes,
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		orders:   make(map[string]*Order),
		watchers: make(map[string]chan struct{}),
		stats:    Stats{StartedAt: time.Now().UTC()},
		quit:     make(chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close 停止全部条件单盯盘并等待其退出。
func (m *Manager) Close() {
	close(m.quit)
	m.wg.Wait()
}

// Submit 校验并受理一笔订单。
// 校验失败立即返回且不产生订单；市价单同步执行，条件单注册盯盘任务。
func (m *Manager) Submit(ctx context.Context, req Request) (Order, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	if err := m.validate(ctx, &req); err != nil {
		return Order{}, err
	}

	now := m.now()
	o := &Order{
		ID:          uuid.NewString(),
		PortfolioID: req.PortfolioID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		LimitPrice:  req.Price,
		StopPrice:   req.StopPrice,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.orders[o.ID] = o
	m.stats.Submitted++
	m.mu.Unlock()

	m.logger.Info("订单已受理",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.String("type", string(o.Type)),
		zap.Float64("quantity", o.Quantity),
	)

	m.record(ctx, o.ID)

	if o.Type == TypeMarket {
		if err := m.Execute(ctx, o.ID); err != nil {
			return Order{}, err
		}
	} else {
		m.startWatcher(o.ID)
	}

	return m.snapshot(o.ID)
}

func (m *Manager) validate(ctx context.Context, req *Request) error {
	if req.Symbol == "" {
		return validationErr("symbol", "标的不能为空")
	}
	if req.Side != ledger.SideBuy && req.Side != ledger.SideSell {
		return validationErr("side", "方向必须为 BUY 或 SELL")
	}
	switch req.Type {
	case TypeMarket, TypeLimit, TypeStop, TypeStopLimit:
	default:
		return validationErr("type", "不支持的订单类型 %q", req.Type)
	}
	if req.Quantity <= 0 {
		return validationErr("quantity", "数量必须大于0")
	}
	if (req.Type == TypeLimit || req.Type == TypeStopLimit) && req.Price <= 0 {
		return validationErr("price", "%s 订单必须指定限价", req.Type)
	}
	if (req.Type == TypeStop || req.Type == TypeStopLimit) && req.StopPrice <= 0 {
		return validationErr("stop_price", "%s 订单必须指定触发价", req.Type)
	}

	portfolio, err := m.ledger.Get(req.PortfolioID)
	if err != nil {
		return err
	}

	if req.Side == ledger.SideSell {
		pos, ok := portfolio.Positions[req.Symbol]
		if !ok {
			return fmt.Errorf("order: %w: %s", ledger.ErrPositionNotFound, req.Symbol)
		}
		if pos.Quantity < req.Quantity {
			return fmt.Errorf("order: %w: 持有 %.6f，卖出 %.6f", ledger.ErrInsufficientShares, pos.Quantity, req.Quantity)
		}
		return nil
	}

	// 买入校验：以限价或当前行情估算成本，拒绝超出可用现金的订单。
	estPrice := req.Price
	if estPrice <= 0 {
		quote, quoteErr := m.quotes.Quote(ctx, req.Symbol)
		if quoteErr != nil {
			return fmt.Errorf("order: 无法估算买入成本: %w", quoteErr)
		}
		estPrice = quote.Price
	}

	notional := estPrice * req.Quantity
	estCost := notional + m.commission(notional)
	if estCost > portfolio.Cash {
		return fmt.Errorf("order: %w: 需要 %.2f，可用 %.2f", ledger.ErrInsufficientCash, estCost, portfolio.Cash)
	}

	if portfolio.TotalValue > 0 {
		var exposure float64
		for _, pos := range portfolio.Positions {
			exposure += pos.MarketValue
		}
		if notional/portfolio.TotalValue > m.cfg.MaxPositionPct {
			return validationErr("quantity", "单笔仓位占比 %.1f%% 超过上限 %.1f%%",
				notional/portfolio.TotalValue*100, m.cfg.MaxPositionPct*100)
		}
		if (exposure+notional)/portfolio.TotalValue > m.cfg.MaxExposurePct {
			return validationErr("quantity", "总敞口占比 %.1f%% 超过上限 %.1f%%",
				(exposure+notional)/portfolio.TotalValue*100, m.cfg.MaxExposurePct*100)
		}
	}

	return nil
}

// Execute 执行一笔订单。对非 PENDING 订单为幂等空操作，
// 行情不可用或入账失败时订单转入 REJECTED 并记录原因。
func (m *Manager) Execute(ctx context.Context, orderID string) error {
	m.mu.Lock()
	o, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("order: %w: %s", ErrOrderNotFound, orderID)
	}
	if o.Terminal() {
		m.mu.Unlock()
		return nil
	}
	symbol := o.Symbol
	m.mu.Unlock()

	quote, err := m.quotes.Quote(ctx, symbol)
	if err != nil {
		m.reject(ctx, orderID, fmt.Sprintf("行情不可用: %v", err))
		return nil
	}

	m.mu.Lock()
	// 撤单可能与触发竞争，入账前必须再次确认订单仍为 PENDING。
	if o.Terminal() {
		m.mu.Unlock()
		return nil
	}

	price := m.executionPrice(o, quote)
	commission := m.commission(price * o.Quantity)

	trade := &ledger.Trade{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		PortfolioID: o.PortfolioID,
		Symbol:      o.Symbol,
		Side:        o.Side,
		Quantity:    o.Quantity,
		Price:       price,
		Commission:  commission,
		ExecutedAt:  m.now(),
	}

	if applyErr := m.ledger.ApplyTrade(o.PortfolioID, trade); applyErr != nil {
		o.Status = StatusRejected
		o.RejectReason = applyErr.Error()
		o.UpdatedAt = m.now()
		m.stats.Rejected++
		m.mu.Unlock()

		m.logger.Warn("订单入账失败，已拒绝",
			zap.String("order_id", orderID),
			zap.Error(applyErr),
		)
		m.record(ctx, orderID)
		return nil
	}

	o.Status = StatusFilled
	o.FilledQuantity = o.Quantity
	o.FilledPrice = price
	o.Commission = commission
	o.UpdatedAt = m.now()
	m.stats.Filled++
	portfolioID := o.PortfolioID
	m.mu.Unlock()

	m.logger.Info("订单已成交",
		zap.String("order_id", orderID),
		zap.String("symbol", symbol),
		zap.Float64("price", price),
		zap.Float64("commission", commission),
	)

	if refreshErr := m.ledger.RefreshMetrics(portfolioID, m.quoteFn(ctx)); refreshErr != nil {
		m.logger.Warn("刷新账户指标失败", zap.Error(refreshErr))
	}

	m.record(ctx, orderID)
	if m.recorder != nil {
		m.recorder.RecordTrade(ctx, *trade)
	}
	return nil
}

// ShouldTrigger 为纯判定函数：给定最新行情，返回条件单是否应当执行。
func ShouldTrigger(o *Order, quote market.Quote) bool {
	switch o.Type {
	case TypeMarket:
		return true
	case TypeLimit:
		if o.Side == ledger.SideBuy {
			return quote.Price <= o.LimitPrice
		}
		return quote.Price >= o.LimitPrice
	case TypeStop, TypeStopLimit:
		if o.Side == ledger.SideBuy {
			return quote.Price >= o.StopPrice
		}
		return quote.Price <= o.StopPrice
	default:
		return false
	}
}

// Cancel 撤销 PENDING 订单，终态订单返回 ErrNotCancellable。
func (m *Manager) Cancel(ctx context.Context, orderID string) error {
	m.mu.Lock()
	o, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("order: %w: %s", ErrOrderNotFound, orderID)
	}
	if o.Terminal() {
		m.mu.Unlock()
		return fmt.Errorf("order: %w: 当前状态 %s", ErrNotCancellable, o.Status)
	}

	o.Status = StatusCancelled
	o.UpdatedAt = m.now()
	m.stats.Cancelled++

	if stop, exists := m.watchers[orderID]; exists {
		close(stop)
		delete(m.watchers, orderID)
	}
	m.mu.Unlock()

	m.logger.Info("订单已撤销", zap.String("order_id", orderID))
	m.record(ctx, orderID)
	return nil
}

// ClosePosition 以市价单平掉指定标的的全部持仓。
func (m *Manager) ClosePosition(ctx context.Context, portfolioID, symbol string) (Order, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	portfolio, err := m.ledger.Get(portfolioID)
	if err != nil {
		return Order{}, err
	}
	pos, ok := portfolio.Positions[symbol]
	if !ok {
		return Order{}, fmt.Errorf("order: %w: %s", ledger.ErrPositionNotFound, symbol)
	}

	return m.Submit(ctx, Request{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Side:        ledger.SideSell,
		Type:        TypeMarket,
		Quantity:    pos.Quantity,
	})
}

// SetStopLoss 在持仓上记录止损价并挂出对应的 STOP 卖单。
func (m *Manager) SetStopLoss(ctx context.Context, portfolioID, symbol string, stopPrice float64) (Order, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if stopPrice <= 0 {
		return Order{}, validationErr("stop_price", "止损价必须大于0")
	}

	portfolio, err := m.ledger.Get(portfolioID)
	if err != nil {
		return Order{}, err
	}
	pos, ok := portfolio.Positions[symbol]
	if !ok {
		return Order{}, fmt.Errorf("order: %w: %s", ledger.ErrPositionNotFound, symbol)
	}

	if err := m.ledger.SetProtectionLevels(portfolioID, symbol, stopPrice, 0); err != nil {
		return Order{}, err
	}

	return m.Submit(ctx, Request{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Side:        ledger.SideSell,
		Type:        TypeStop,
		Quantity:    pos.Quantity,
		StopPrice:   stopPrice,
	})
}

// Get 返回订单快照。
func (m *Manager) Get(orderID string) (Order, error) {
	return m.snapshot(orderID)
}

// ListByPortfolio 返回账户下全部订单，按创建时间升序。
func (m *Manager) ListByPortfolio(portfolioID string) []Order {
	m.mu.Lock()
	result := make([]Order, 0)
	for _, o := range m.orders {
		if o.PortfolioID == portfolioID {
			result = append(result, *o)
		}
	}
	m.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Stats 返回会话统计。
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) executionPrice(o *Order, quote market.Quote) float64 {
	switch o.Type {
	case TypeMarket:
		// 市价单按固定滑点模拟成交：买入略高、卖出略低于报价。
		if o.Side == ledger.SideBuy {
			return quote.Price * (1 + m.cfg.Slippage)
		}
		return quote.Price * (1 - m.cfg.Slippage)
	case TypeLimit:
		return o.LimitPrice
	default:
		return quote.Price
	}
}

func (m *Manager) commission(notional float64) float64 {
	c := m.cfg.CommissionRate * notional
	if c < m.cfg.MinCommission {
		c = m.cfg.MinCommission
	}
	return c
}

func (m *Manager) reject(ctx context.Context, orderID, reason string) {
	m.mu.Lock()
	o, ok := m.orders[orderID]
	if !ok || o.Terminal() {
		m.mu.Unlock()
		return
	}
	o.Status = StatusRejected
	o.RejectReason = reason
	o.UpdatedAt = m.now()
	m.stats.Rejected++
	m.mu.Unlock()

	m.logger.Warn("订单已拒绝",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
	)
	m.record(ctx, orderID)
}

func (m *Manager) snapshot(orderID string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("order: %w: %s", ErrOrderNotFound, orderID)
	}
	return *o, nil
}

func (m *Manager) record(ctx context.Context, orderID string) {
	if m.recorder == nil {
		return
	}
	if o, err := m.snapshot(orderID); err == nil {
		m.recorder.RecordOrder(ctx, o)
	}
}

func (m *Manager) quoteFn(ctx context.Context) ledger.QuoteFunc {
	return func(symbol string) (float64, error) {
		quote, err := m.quotes.Quote(ctx, symbol)
		if err != nil {
			return 0, err
		}
		return quote.Price, nil
	}
}
