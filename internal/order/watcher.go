package order

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultWatchInterval = 2 * time.Second

// startWatcher 为条件单启动盯盘任务，按固定间隔轮询行情并在满足触发条件时执行。
// 调用方需保证订单已登记且处于 PENDING 状态。
func (m *Manager) startWatcher(orderID string) {
	stop := make(chan struct{})

	m.mu.Lock()
	m.watchers[orderID] = stop
	m.mu.Unlock()

	m.wg.Add(1)
	go m.watch(orderID, stop)
}

func (m *Manager) watch(orderID string, stop chan struct{}) {
	defer m.wg.Done()

	ctx := context.Background()
	interval := m.cfg.WatchInterval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Debug("条件单盯盘启动", zap.String("order_id", orderID))

	for {
		select {
		case <-m.quit:
			return
		case <-stop:
			return
		case <-ticker.C:
		}

		o, err := m.snapshot(orderID)
		if err != nil || o.Terminal() {
			m.removeWatcher(orderID)
			return
		}

		quote, err := m.quotes.Quote(ctx, o.Symbol)
		if err != nil {
			// 行情抖动不应触发拒单，等待下一轮轮询。
			m.logger.Debug("盯盘取价失败",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			continue
		}

		if !ShouldTrigger(&o, quote) {
			continue
		}

		m.logger.Info("条件单已触发",
			zap.String("order_id", orderID),
			zap.String("symbol", o.Symbol),
			zap.Float64("quote", quote.Price),
		)

		if err := m.Execute(ctx, orderID); err != nil {
			m.logger.Warn("条件单执行失败", zap.String("order_id", orderID), zap.Error(err))
		}

		m.removeWatcher(orderID)
		return
	}
}

func (m *Manager) removeWatcher(orderID string) {
	m.mu.Lock()
	delete(m.watchers, orderID)
	m.mu.Unlock()
}
