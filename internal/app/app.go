package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"paper-trader/internal/api"
	"paper-trader/internal/config"
	"paper-trader/internal/journal"
	"paper-trader/internal/ledger"
	"paper-trader/internal/market"
	"paper-trader/internal/order"
	"paper-trader/internal/signal"
	"paper-trader/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 完成依赖装配并运行 HTTP 服务，阻塞直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("模拟交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Market.Exchange),
		zap.Float64("initial_capital", a.cfg.Trading.InitialCapital),
	)

	client, err := market.NewClient(a.cfg.Market, a.logger)
	if err != nil {
		return fmt.Errorf("app: 初始化行情客户端失败: %w", err)
	}
	provider := market.NewCachedProvider(client, a.cfg.Market.QuoteTTL)

	journalSvc, err := journal.NewService(a.store, a.logger)
	if err != nil {
		return fmt.Errorf("app: 初始化事件日志失败: %w", err)
	}

	book := ledger.New(a.logger)

	// 启动即创建默认账户，下单请求可省略 portfolio_id。
	defaultPortfolio, err := book.CreatePortfolio(a.cfg.Trading.InitialCapital)
	if err != nil {
		return fmt.Errorf("app: 创建默认账户失败: %w", err)
	}

	manager := order.NewManager(book, provider, a.cfg.Trading, journalSvc, a.logger)
	defer manager.Close()

	composer := signal.NewComposer(provider, a.cfg.Signals, a.logger)

	server := api.NewServer(a.cfg.Server, api.Deps{
		Ledger:             book,
		Orders:             manager,
		Signals:            composer,
		Journal:            journalSvc,
		Trading:            a.cfg.Trading,
		DefaultPortfolioID: defaultPortfolio.ID,
	}, a.logger)

	if err := server.Run(ctx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: 系统异常退出: %w", err)
	}

	a.logger.Info("系统收到退出信号，已停止")
	return nil
}
