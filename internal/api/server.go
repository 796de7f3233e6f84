package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paper-trader/internal/config"
	"paper-trader/internal/journal"
	"paper-trader/internal/ledger"
	"paper-trader/internal/order"
	"paper-trader/internal/signal"
)

// Server 对外暴露 REST 接口。
type Server struct {
	cfg    config.ServerConfig
	engine *gin.Engine
	srv    *http.Server
	logger *zap.Logger
}

// Deps 聚合接口层依赖。
type Deps struct {
	Ledger   *ledger.Ledger
	Orders   *order.Manager
	Signals  *signal.Composer
	Journal  *journal.Service
	Trading  config.TradingConfig
	// DefaultPortfolioID 为启动时创建的默认账户，下单请求可省略 portfolio_id。
	DefaultPortfolioID string
}

// NewServer 创建 HTTP 服务并注册全部路由。
func NewServer(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
	}

	h := &handler{deps: deps, logger: logger}

	engine.GET("/healthz", h.health)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/orders", h.submitOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.DELETE("/orders/:id", h.cancelOrder)

		v1.POST("/portfolios", h.createPortfolio)
		v1.GET("/portfolios", h.listPortfolios)
		v1.GET("/portfolios/:id", h.getPortfolio)
		v1.POST("/portfolios/:id/reset", h.resetPortfolio)
		v1.GET("/portfolios/:id/orders", h.listOrders)
		v1.GET("/portfolios/:id/risk", h.riskMetrics)
		v1.POST("/portfolios/:id/positions/:symbol/close", h.closePosition)
		v1.POST("/portfolios/:id/positions/:symbol/stop-loss", h.setStopLoss)

		v1.GET("/stats", h.stats)

		v1.GET("/signals/:symbol", h.getSignal)
		v1.POST("/signals/batch", h.batchSignals)

		v1.GET("/events", h.listEvents)
	}

	return s
}

// Run 启动服务并在 ctx 取消时优雅关停。
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("HTTP 服务已启动", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("api: 服务异常: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: 关闭服务失败: %w", err)
	}

	s.logger.Info("HTTP 服务已停止")
	return nil
}
