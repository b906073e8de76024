package valuation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
)

// PerformerTolerance is the gain/loss percentage difference below which two
// positions rank as equal and are ordered by ticker.
var PerformerTolerance = decimal.RequireFromString("0.001")

// Aggregate totals positions that have already been converted to baseCurrency
// (their Base metrics) and fills in percent of portfolio, allocation and
// best/worst performers. The input slice is updated in place and returned in
// the summary. An empty input yields an all-zero summary without performers.
func Aggregate(baseCurrency string, positions []model.PositionValuation) model.PortfolioSummary {
	totalValue := decimal.Zero
	totalCost := decimal.Zero
	stale := false

	for _, p := range positions {
		totalValue = totalValue.Add(p.Base.CurrentValue)
		totalCost = totalCost.Add(p.Base.TotalCost)
		stale = stale || p.Base.RateStale
	}

	for i := range positions {
		positions[i].PercentOfPortfolio = money.Percent(positions[i].Base.CurrentValue, totalValue)
	}

	totalGainLoss := totalValue.Sub(totalCost)

	summary := model.PortfolioSummary{
		BaseCurrency:     baseCurrency,
		TotalValue:       totalValue,
		TotalCost:        totalCost,
		TotalGainLoss:    totalGainLoss,
		TotalGainLossPct: money.Percent(totalGainLoss, totalCost),
		Positions:        positions,
		Allocation:       Allocation(positions, totalValue),
		RateStale:        stale,
	}
	if summary.Positions == nil {
		summary.Positions = []model.PositionValuation{}
	}

	ranked := RankPerformers(positions)
	if len(ranked) > 0 {
		best := ranked[0]
		worst := ranked[len(ranked)-1]
		summary.BestPerformer = &best
		summary.WorstPerformer = &worst
	}

	return summary
}

// RankPerformers orders positions with a known price by gain/loss percentage,
// descending. Percentages within PerformerTolerance of each other are equal and
// fall back to ticker ascending. The result does not depend on input order:
// candidates are put in ticker order first and then stably sorted.
func RankPerformers(positions []model.PositionValuation) []model.Performer {
	ranked := make([]model.Performer, 0, len(positions))
	for _, p := range positions {
		if !p.Base.HasPrice {
			continue
		}
		ranked = append(ranked, model.Performer{
			InvestmentID: p.InvestmentID,
			Ticker:       p.Ticker,
			GainLossPct:  p.Base.GainLossPct,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Ticker != ranked[j].Ticker {
			return ranked[i].Ticker < ranked[j].Ticker
		}
		return ranked[i].InvestmentID < ranked[j].InvestmentID
	})

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].GainLossPct, ranked[j].GainLossPct
		if money.ApproxEqual(a, b, PerformerTolerance) {
			return ranked[i].Ticker < ranked[j].Ticker
		}
		return a.GreaterThan(b)
	})

	return ranked
}

// Allocation sums current value per asset class. Classes are returned in
// name order; classes without positions are omitted.
func Allocation(positions []model.PositionValuation, totalValue decimal.Decimal) []model.AllocationEntry {
	byClass := make(map[model.AssetClass]decimal.Decimal)
	for _, p := range positions {
		byClass[p.AssetClass] = byClass[p.AssetClass].Add(p.Base.CurrentValue)
	}

	entries := make([]model.AllocationEntry, 0, len(byClass))
	for class, value := range byClass {
		entries = append(entries, model.AllocationEntry{
			AssetClass: class,
			Value:      value,
			Percent:    money.Percent(value, totalValue),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AssetClass < entries[j].AssetClass
	})

	return entries
}
