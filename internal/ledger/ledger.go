package ledger

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 浮点持仓的归零判断阈值。
const quantityEpsilon = 1e-9

// QuoteFunc 返回标的当前价格，供指标刷新使用。
type QuoteFunc func(symbol string) (float64, error)

type entry struct {
	mu        sync.Mutex
	portfolio *Portfolio
}

// Ledger 维护账户到现金与持仓的映射，是账户状态的唯一事实来源。
// 每个账户持有独立互斥锁，保证同一账户的资金变更串行执行。
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *zap.Logger
	now     func() time.Time
}

// New 创建账本。
func New(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		entries: make(map[string]*entry),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreatePortfolio 以指定初始资金创建账户并返回其快照。
func (l *Ledger) CreatePortfolio(initialCapital float64) (Portfolio, error) {
	if initialCapital <= 0 {
		return Portfolio{}, fmt.Errorf("ledger: 初始资金必须大于0: %.2f", initialCapital)
	}

	now := l.now()
	p := &Portfolio{
		ID:             uuid.NewString(),
		Cash:           initialCapital,
		InitialCapital: initialCapital,
		Positions:      make(map[string]*Position),
		TotalValue:     initialCapital,
		CreatedAt:      now,
		UpdatedAt:      now,
		peakValue:      initialCapital,
	}

	l.mu.Lock()
	l.entries[p.ID] = &entry{portfolio: p}
	l.mu.Unlock()

	l.logger.Info("账户已创建",
		zap.String("portfolio_id", p.ID),
		zap.Float64("initial_capital", initialCapital),
	)

	return p.clone(), nil
}

// Get 返回账户快照。
func (l *Ledger) Get(portfolioID string) (Portfolio, error) {
	e, err := l.entry(portfolioID)
	if err != nil {
		return Portfolio{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolio.clone(), nil
}

// List 返回全部账户快照。
func (l *Ledger) List() []Portfolio {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	result := make([]Portfolio, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		result = append(result, e.portfolio.clone())
		e.mu.Unlock()
	}
	return result
}

// Reset 将账户恢复到初始状态，仅用于教学演示场景。
func (l *Ledger) Reset(portfolioID string) error {
	e, err := l.entry(portfolioID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.portfolio
	p.Cash = p.InitialCapital
	p.Positions = make(map[string]*Position)
	p.TotalValue = p.InitialCapital
	p.RealizedPnL = 0
	p.UnrealizedPnL = 0
	p.TotalPnL = 0
	p.TotalReturnPct = 0
	p.WinRate = 0
	p.SharpeRatio = 0
	p.MaxDrawdownPct = 0
	p.WinningTrades = 0
	p.LosingTrades = 0
	p.ClosedTrades = 0
	p.UpdatedAt = l.now()
	p.peakValue = p.InitialCapital

	l.logger.Info("账户已重置", zap.String("portfolio_id", portfolioID))
	return nil
}

// ApplyTrade 将一笔成交记入账本。
// 买入按数量加权摊薄持仓均价；卖出计算已实现盈亏并回补到成交记录上，
// 数量归零时移除持仓。
func (l *Ledger) ApplyTrade(portfolioID string, trade *Trade) error {
	e, err := l.entry(portfolioID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.portfolio

	switch trade.Side {
	case SideBuy:
		cost := trade.Quantity*trade.Price + trade.Commission
		if cost > p.Cash+quantityEpsilon {
			return fmt.Errorf("ledger: %w: 需要 %.2f，可用 %.2f", ErrInsufficientCash, cost, p.Cash)
		}

		pos, ok := p.Positions[trade.Symbol]
		if !ok {
			pos = &Position{
				Symbol:   trade.Symbol,
				AvgPrice: trade.Price,
				OpenedAt: trade.ExecutedAt,
			}
			p.Positions[trade.Symbol] = pos
		} else {
			pos.AvgPrice = (pos.Quantity*pos.AvgPrice + trade.Quantity*trade.Price) / (pos.Quantity + trade.Quantity)
		}
		pos.Quantity += trade.Quantity
		pos.LastPrice = trade.Price
		p.Cash -= cost

	case SideSell:
		pos, ok := p.Positions[trade.Symbol]
		if !ok {
			return fmt.Errorf("ledger: %w: %s", ErrPositionNotFound, trade.Symbol)
		}
		if pos.Quantity+quantityEpsilon < trade.Quantity {
			return fmt.Errorf("ledger: %w: 持有 %.6f，卖出 %.6f", ErrInsufficientShares, pos.Quantity, trade.Quantity)
		}

		realized := trade.Quantity*trade.Price - trade.Quantity*pos.AvgPrice - trade.Commission
		trade.RealizedPnL = &realized

		pos.Quantity -= trade.Quantity
		pos.LastPrice = trade.Price
		pos.RealizedPnL += realized
		p.Cash += trade.Quantity*trade.Price - trade.Commission
		p.RealizedPnL += realized

		p.ClosedTrades++
		if realized > 0 {
			p.WinningTrades++
		} else {
			p.LosingTrades++
		}

		if pos.Quantity <= quantityEpsilon {
			delete(p.Positions, trade.Symbol)
		}

	default:
		return fmt.Errorf("ledger: 未知成交方向 %q", trade.Side)
	}

	p.UpdatedAt = l.now()
	l.recalcLocked(p)

	l.logger.Debug("成交已入账",
		zap.String("portfolio_id", portfolioID),
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(trade.Side)),
		zap.Float64("quantity", trade.Quantity),
		zap.Float64("price", trade.Price),
		zap.Float64("cash", p.Cash),
	)

	return nil
}

// RefreshMetrics 用最新行情刷新持仓市值、未实现盈亏与账户衍生指标。
// 单个标的取价失败时沿用最近一次已知价格，不中断整体刷新。
func (l *Ledger) RefreshMetrics(portfolioID string, quoteFn QuoteFunc) error {
	e, err := l.entry(portfolioID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.portfolio
	for symbol, pos := range p.Positions {
		price, quoteErr := quoteFn(symbol)
		if quoteErr != nil || price <= 0 {
			l.logger.Warn("刷新持仓价格失败，沿用旧价",
				zap.String("portfolio_id", portfolioID),
				zap.String("symbol", symbol),
				zap.Error(quoteErr),
			)
			continue
		}
		pos.LastPrice = price
	}

	p.UpdatedAt = l.now()
	l.recalcLocked(p)
	return nil
}

// RiskMetrics 返回账户风险度量：单标的敞口占比、总风险度与可用购买力。
func (l *Ledger) RiskMetrics(portfolioID string) (RiskReport, error) {
	e, err := l.entry(portfolioID)
	if err != nil {
		return RiskReport{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.portfolio
	report := RiskReport{
		PortfolioID:           portfolioID,
		Exposure:              make(map[string]float64, len(p.Positions)),
		BuyingPower:           p.Cash,
		DayTradingBuyingPower: p.Cash * 4,
	}

	if p.TotalValue <= 0 {
		return report, nil
	}

	var aggregate float64
	for symbol, pos := range p.Positions {
		fraction := pos.MarketValue / p.TotalValue
		report.Exposure[symbol] = fraction
		aggregate += fraction
	}
	report.AggregateRisk = math.Min(aggregate, 1.0)

	return report, nil
}

// SetProtectionLevels 在持仓上记录止损/止盈价位。传入0表示保持原值。
func (l *Ledger) SetProtectionLevels(portfolioID, symbol string, stopLoss, takeProfit float64) error {
	e, err := l.entry(portfolioID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.portfolio.Positions[symbol]
	if !ok {
		return fmt.Errorf("ledger: %w: %s", ErrPositionNotFound, symbol)
	}

	if stopLoss > 0 {
		pos.StopLoss = stopLoss
	}
	if takeProfit > 0 {
		pos.TakeProfit = takeProfit
	}
	return nil
}

// recalcLocked 重算持仓市值与账户汇总指标，调用方需持有账户锁。
func (l *Ledger) recalcLocked(p *Portfolio) {
	var marketValue, unrealized float64
	for _, pos := range p.Positions {
		pos.MarketValue = pos.Quantity * pos.LastPrice
		pos.UnrealizedPnL = (pos.LastPrice - pos.AvgPrice) * pos.Quantity
		marketValue += pos.MarketValue
		unrealized += pos.UnrealizedPnL
	}

	p.UnrealizedPnL = unrealized
	p.TotalValue = p.Cash + marketValue
	p.TotalPnL = p.RealizedPnL + p.UnrealizedPnL
	p.TotalReturnPct = (p.TotalValue - p.InitialCapital) / p.InitialCapital * 100

	if p.ClosedTrades > 0 {
		p.WinRate = float64(p.WinningTrades) / float64(p.ClosedTrades)
	}

	if p.TotalValue > p.peakValue {
		p.peakValue = p.TotalValue
	}
	if p.peakValue > 0 {
		drawdown := (p.peakValue - p.TotalValue) / p.peakValue * 100
		if drawdown > p.MaxDrawdownPct {
			p.MaxDrawdownPct = drawdown
		}
	}

	// 简化的风险调整收益占位值，非严格的时间序列夏普比率。
	p.SharpeRatio = p.TotalReturnPct / math.Max(1, p.MaxDrawdownPct)
}

func (l *Ledger) entry(portfolioID string) (*entry, error) {
	l.mu.RLock()
	e, ok := l.entries[portfolioID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ledger: %w: %s", ErrPortfolioNotFound, portfolioID)
	}
	return e, nil
}
