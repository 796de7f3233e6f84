package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Market   MarketConfig   `mapstructure:"market"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Signals  SignalConfig   `mapstructure:"signals"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// MarketConfig 描述行情数据源配置。
type MarketConfig struct {
	Exchange   string        `mapstructure:"exchange"`
	APIKey     string        `mapstructure:"api_key"`
	APISecret  string        `mapstructure:"api_secret"`
	UseSandbox bool          `mapstructure:"use_sandbox"`
	Timeframe  string        `mapstructure:"timeframe"`
	BarLimit   int           `mapstructure:"bar_limit"`
	QuoteTTL   time.Duration `mapstructure:"quote_ttl"`
	Retry      RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// TradingConfig 控制模拟撮合与账户行为。
type TradingConfig struct {
	InitialCapital float64       `mapstructure:"initial_capital"`
	CommissionRate float64       `mapstructure:"commission_rate"`
	MinCommission  float64       `mapstructure:"min_commission"`
	Slippage       float64       `mapstructure:"slippage"`
	WatchInterval  time.Duration `mapstructure:"watch_interval"`
	MaxPositionPct float64       `mapstructure:"max_position_pct"`
	MaxExposurePct float64       `mapstructure:"max_exposure_pct"`
}

// SignalConfig 控制信号生成。
type SignalConfig struct {
	Timeframe string `mapstructure:"timeframe"`
	BarLimit  int    `mapstructure:"bar_limit"`
	MaxBatch  int    `mapstructure:"max_batch"`
}

// ServerConfig 控制 HTTP 服务。
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Market.Exchange == "" {
		err = multierr.Append(err, errors.New("market.exchange 不能为空"))
	}
	if c.Market.Timeframe == "" {
		err = multierr.Append(err, errors.New("market.timeframe 不能为空"))
	}
	if c.Market.BarLimit <= 0 {
		err = multierr.Append(err, errors.New("market.bar_limit 必须大于0"))
	}
	if c.Market.QuoteTTL < 0 {
		err = multierr.Append(err, errors.New("market.quote_ttl 不能为负"))
	}
	if c.Market.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("market.retry.max_attempts 必须大于0"))
	}
	if c.Market.Retry.MinDelay <= 0 || c.Market.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("market.retry.delay 必须为正"))
	}
	if c.Market.Retry.MinDelay > c.Market.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("market.retry.min_delay 不能大于 max_delay"))
	}
	if c.Trading.InitialCapital <= 0 {
		err = multierr.Append(err, errors.New("trading.initial_capital 必须大于0"))
	}
	if c.Trading.CommissionRate < 0 || c.Trading.CommissionRate > 0.05 {
		err = multierr.Append(err, errors.New("trading.commission_rate 应位于[0,0.05]"))
	}
	if c.Trading.MinCommission < 0 {
		err = multierr.Append(err, errors.New("trading.min_commission 不能为负"))
	}
	if c.Trading.Slippage < 0 || c.Trading.Slippage > 0.05 {
		err = multierr.Append(err, errors.New("trading.slippage 应位于[0,0.05]"))
	}
	if c.Trading.WatchInterval <= 0 {
		err = multierr.Append(err, errors.New("trading.watch_interval 必须大于0"))
	}
	if c.Trading.MaxPositionPct <= 0 || c.Trading.MaxPositionPct > 1 {
		err = multierr.Append(err, errors.New("trading.max_position_pct 必须位于(0,1]"))
	}
	if c.Trading.MaxExposurePct <= 0 || c.Trading.MaxExposurePct > 1 {
		err = multierr.Append(err, errors.New("trading.max_exposure_pct 必须位于(0,1]"))
	}
	if c.Trading.MaxPositionPct > c.Trading.MaxExposurePct {
		err = multierr.Append(err, errors.New("trading.max_position_pct 不能大于 max_exposure_pct"))
	}
	if c.Signals.Timeframe == "" {
		err = multierr.Append(err, errors.New("signals.timeframe 不能为空"))
	}
	if c.Signals.BarLimit <= 0 {
		err = multierr.Append(err, errors.New("signals.bar_limit 必须大于0"))
	}
	if c.Signals.MaxBatch <= 0 || c.Signals.MaxBatch > 100 {
		err = multierr.Append(err, errors.New("signals.max_batch 必须位于(0,100]"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, errors.New("server.port 必须为合法端口"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("server.shutdown_timeout 必须大于0"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
