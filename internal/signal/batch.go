package signal

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"paper-trader/internal/indicator"
)

const batchConcurrency = 5

// GenerateBatch 并行生成一组标的的信号并汇总统计。
// 单个标的数据缺失只会降级该标的的信号，不影响整批结果。
func (c *Composer) GenerateBatch(ctx context.Context, symbols []string) (BatchResult, error) {
	if len(symbols) == 0 {
		return BatchResult{}, fmt.Errorf("signal: 标的列表不能为空")
	}
	if len(symbols) > c.cfg.MaxBatch {
		return BatchResult{}, fmt.Errorf("signal: 标的数量 %d 超过上限 %d", len(symbols), c.cfg.MaxBatch)
	}

	signals := make([]Signal, len(symbols))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(batchConcurrency)

	for i, symbol := range symbols {
		group.Go(func() error {
			signals[i] = c.Generate(groupCtx, symbol)
			return nil
		})
	}

	// Generate 自身降级、永不报错，Wait 仅同步完成。
	_ = group.Wait()

	return BatchResult{
		Signals: signals,
		Insight: buildInsight(signals),
	}, nil
}

func buildInsight(signals []Signal) Insight {
	insight := Insight{
		RiskDistribution: map[RiskLevel]int{
			RiskLow:    0,
			RiskMedium: 0,
			RiskHigh:   0,
		},
	}

	var confidenceSum float64
	var bestBuy, bestSell float64

	for _, sig := range signals {
		confidenceSum += sig.Confidence
		insight.RiskDistribution[sig.RiskLevel]++

		switch sig.Action {
		case indicator.ActionBuy:
			insight.BuyCount++
			if sig.Confidence > bestBuy {
				bestBuy = sig.Confidence
				insight.StrongestBuy = sig.Symbol
			}
		case indicator.ActionSell:
			insight.SellCount++
			if sig.Confidence > bestSell {
				bestSell = sig.Confidence
				insight.StrongestSell = sig.Symbol
			}
		default:
			insight.HoldCount++
		}
	}

	if len(signals) > 0 {
		insight.AvgConfidence = confidenceSum / float64(len(signals))
	}

	return insight
}
