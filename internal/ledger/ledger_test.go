package ledger

import (
	"errors"
	"math"
	"testing"
)

func TestCreatePortfolio_InitialState(t *testing.T) {
	book := New(nil)

	p, err := book.CreatePortfolio(100000)
	if err != nil {
		t.Fatalf("CreatePortfolio returned error: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected non-empty portfolio id")
	}
	if p.Cash != 100000 || p.TotalValue != 100000 {
		t.Errorf("unexpected initial balances: cash=%f total=%f", p.Cash, p.TotalValue)
	}
	if len(p.Positions) != 0 {
		t.Errorf("expected empty positions, got %d", len(p.Positions))
	}

	if _, err := book.CreatePortfolio(0); err == nil {
		t.Errorf("expected error for non-positive initial capital")
	}
}

func TestApplyTrade_BuyWeightedAverage(t *testing.T) {
	book := New(nil)
	p, _ := book.CreatePortfolio(100000)

	mustApply(t, book, p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 100, Price: 50, Commission: 1})
	mustApply(t, book, p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 100, Price: 70, Commission: 1})

	got, _ := book.Get(p.ID)
	pos, ok := got.Positions["AAPL"]
	if !ok {
		t.Fatalf("expected AAPL position")
	}
	if diff := math.Abs(pos.AvgPrice - 60); diff > 1e-9 {
		t.Errorf("expected avg price 60, got %f", pos.AvgPrice)
	}
	if pos.Quantity != 200 {
		t.Errorf("expected quantity 200, got %f", pos.Quantity)
	}

	wantCash := 100000.0 - 5001 - 7001
	if diff := math.Abs(got.Cash - wantCash); diff > 1e-9 {
		t.Errorf("expected cash %f, got %f", wantCash, got.Cash)
	}
}

func TestApplyTrade_RoundTripRealizedPnL(t *testing.T) {
	book := New(nil)
	p, _ := book.CreatePortfolio(100000)

	mustApply(t, book, p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 100, Price: 50, Commission: 1})

	sell := &Trade{Symbol: "AAPL", Side: SideSell, Quantity: 100, Price: 60, Commission: 1}
	mustApply(t, book, p.ID, sell)

	if sell.RealizedPnL == nil {
		t.Fatalf("expected realized pnl annotated on sell trade")
	}
	if diff := math.Abs(*sell.RealizedPnL - 999); diff > 1e-9 {
		t.Errorf("expected realized pnl 999, got %f", *sell.RealizedPnL)
	}

	got, _ := book.Get(p.ID)
	if _, ok := got.Positions["AAPL"]; ok {
		t.Errorf("expected position removed after full close")
	}
	if diff := math.Abs(got.RealizedPnL - 999); diff > 1e-9 {
		t.Errorf("expected portfolio realized pnl 999, got %f", got.RealizedPnL)
	}
	if got.ClosedTrades != 1 || got.WinningTrades != 1 {
		t.Errorf("unexpected trade counters: closed=%d winning=%d", got.ClosedTrades, got.WinningTrades)
	}
	if got.WinRate != 1 {
		t.Errorf("expected win rate 1, got %f", got.WinRate)
	}
}

func TestApplyTrade_Guards(t *testing.T) {
	book := New(nil)
	p, _ := book.CreatePortfolio(1000)

	err := book.ApplyTrade(p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 100, Price: 50, Commission: 1})
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}

	got, _ := book.Get(p.ID)
	if got.Cash != 1000 {
		t.Errorf("rejected trade must not mutate cash, got %f", got.Cash)
	}

	err = book.ApplyTrade(p.ID, &Trade{Symbol: "AAPL", Side: SideSell, Quantity: 1, Price: 50})
	if !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}

	mustApply(t, book, p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 10, Price: 50, Commission: 1})
	err = book.ApplyTrade(p.ID, &Trade{Symbol: "AAPL", Side: SideSell, Quantity: 20, Price: 50, Commission: 1})
	if !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}

	if err := book.ApplyTrade("missing", &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 1, Price: 1}); !errors.Is(err, ErrPortfolioNotFound) {
		t.Fatalf("expected ErrPortfolioNotFound, got %v", err)
	}
}

func TestRefreshMetrics_KeepsLastPriceOnFailure(t *testing.T) {
	book := New(nil)
	p, _ := book.CreatePortfolio(100000)
	mustApply(t, book, p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 100, Price: 50, Commission: 1})

	err := book.RefreshMetrics(p.ID, func(symbol string) (float64, error) {
		return 60, nil
	})
	if err != nil {
		t.Fatalf("RefreshMetrics returned error: %v", err)
	}

	got, _ := book.Get(p.ID)
	pos := got.Positions["AAPL"]
	if pos.LastPrice != 60 {
		t.Errorf("expected last price 60, got %f", pos.LastPrice)
	}
	if diff := math.Abs(pos.UnrealizedPnL - 1000); diff > 1e-9 {
		t.Errorf("expected unrealized pnl 1000, got %f", pos.UnrealizedPnL)
	}
	if diff := math.Abs(got.TotalValue - (got.Cash + 6000)); diff > 1e-9 {
		t.Errorf("total value must equal cash plus market value, got %f", got.TotalValue)
	}

	err = book.RefreshMetrics(p.ID, func(symbol string) (float64, error) {
		return 0, errors.New("feed down")
	})
	if err != nil {
		t.Fatalf("RefreshMetrics must not fail on per-symbol quote errors: %v", err)
	}

	got, _ = book.Get(p.ID)
	if got.Positions["AAPL"].LastPrice != 60 {
		t.Errorf("expected stale price kept on failure, got %f", got.Positions["AAPL"].LastPrice)
	}
}

func TestRiskMetrics(t *testing.T) {
	book := New(nil)
	p, _ := book.CreatePortfolio(100000)
	mustApply(t, book, p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 100, Price: 100, Commission: 1})

	report, err := book.RiskMetrics(p.ID)
	if err != nil {
		t.Fatalf("RiskMetrics returned error: %v", err)
	}

	got, _ := book.Get(p.ID)
	wantFraction := 10000.0 / got.TotalValue
	if diff := math.Abs(report.Exposure["AAPL"] - wantFraction); diff > 1e-9 {
		t.Errorf("expected AAPL exposure %f, got %f", wantFraction, report.Exposure["AAPL"])
	}
	if report.BuyingPower != got.Cash {
		t.Errorf("expected buying power %f, got %f", got.Cash, report.BuyingPower)
	}
	if report.DayTradingBuyingPower != got.Cash*4 {
		t.Errorf("expected day trading buying power %f, got %f", got.Cash*4, report.DayTradingBuyingPower)
	}
	if report.AggregateRisk > 1 {
		t.Errorf("aggregate risk must be capped at 1, got %f", report.AggregateRisk)
	}
}

func TestReset(t *testing.T) {
	book := New(nil)
	p, _ := book.CreatePortfolio(100000)
	mustApply(t, book, p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 100, Price: 50, Commission: 1})

	if err := book.Reset(p.ID); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}

	got, _ := book.Get(p.ID)
	if got.Cash != 100000 || got.TotalValue != 100000 {
		t.Errorf("expected balances restored, cash=%f total=%f", got.Cash, got.TotalValue)
	}
	if len(got.Positions) != 0 {
		t.Errorf("expected positions cleared, got %d", len(got.Positions))
	}
	if got.RealizedPnL != 0 || got.ClosedTrades != 0 {
		t.Errorf("expected pnl counters cleared")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	book := New(nil)
	p, _ := book.CreatePortfolio(100000)
	mustApply(t, book, p.ID, &Trade{Symbol: "AAPL", Side: SideBuy, Quantity: 10, Price: 50, Commission: 1})

	snap, _ := book.Get(p.ID)
	snap.Positions["AAPL"].Quantity = 999
	snap.Cash = -1

	got, _ := book.Get(p.ID)
	if got.Positions["AAPL"].Quantity != 10 {
		t.Errorf("snapshot mutation leaked into ledger state")
	}
	if got.Cash < 0 {
		t.Errorf("snapshot mutation leaked into ledger cash")
	}
}

func mustApply(t *testing.T, book *Ledger, portfolioID string, trade *Trade) {
	t.Helper()
	if err := book.ApplyTrade(portfolioID, trade); err != nil {
		t.Fatalf("ApplyTrade returned error: %v", err)
	}
}
