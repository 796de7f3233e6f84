package ledger

import "errors"

var (
	// ErrPortfolioNotFound 表示账户不存在。
	ErrPortfolioNotFound = errors.New("portfolio not found")
	// ErrPositionNotFound 表示目标持仓不存在。
	ErrPositionNotFound = errors.New("position not found")
	// ErrInsufficientCash 表示可用现金不足。
	ErrInsufficientCash = errors.New("insufficient cash")
	// ErrInsufficientShares 表示持仓数量不足。
	ErrInsufficientShares = errors.New("insufficient shares")
)
