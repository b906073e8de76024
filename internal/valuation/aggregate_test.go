package valuation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
	"github.com/ndewijer/portfolio-valuation-backend/internal/valuation"
)

func position(id, ticker string, class model.AssetClass, value, cost string, hasPrice bool) model.PositionValuation {
	v, c := d(value), d(cost)
	gl := v.Sub(c)
	return model.PositionValuation{
		InvestmentID: id,
		Ticker:       ticker,
		AssetClass:   class,
		Base: model.InvestmentMetrics{
			Currency:     "USD",
			CurrentValue: v,
			TotalCost:    c,
			GainLoss:     gl,
			GainLossPct:  money.Percent(gl, c),
			HasPrice:     hasPrice,
			Rate:         decimal.NewFromInt(1),
		},
	}
}

func withPct(p model.PositionValuation, pct string) model.PositionValuation {
	p.Base.GainLossPct = d(pct)
	return p
}

func TestAggregate(t *testing.T) {
	t.Run("empty portfolio", func(t *testing.T) {
		s := valuation.Aggregate("USD", nil)

		assert.True(t, s.TotalValue.IsZero())
		assert.True(t, s.TotalCost.IsZero())
		assert.True(t, s.TotalGainLoss.IsZero())
		assert.True(t, s.TotalGainLossPct.IsZero())
		assert.Nil(t, s.BestPerformer)
		assert.Nil(t, s.WorstPerformer)
		assert.Empty(t, s.Positions)
		assert.Empty(t, s.Allocation)
	})

	t.Run("60/20/15/5 split", func(t *testing.T) {
		positions := []model.PositionValuation{
			position("1", "AAPL", model.AssetClassStock, "6000", "5000", true),
			position("2", "VTI", model.AssetClassETF, "2000", "2100", true),
			position("3", "BTC", model.AssetClassCrypto, "1500", "1000", true),
			position("4", "VFIAX", model.AssetClassMutualFund, "500", "500", true),
		}

		s := valuation.Aggregate("USD", positions)

		assert.True(t, s.TotalValue.Equal(d("10000")))
		assert.True(t, s.TotalCost.Equal(d("8600")))
		assert.True(t, s.TotalGainLoss.Equal(d("1400")))

		want := []string{"60", "20", "15", "5"}
		sum := decimal.Zero
		for i, p := range s.Positions {
			assert.True(t, p.PercentOfPortfolio.Equal(d(want[i])), "position %s: %s", p.Ticker, p.PercentOfPortfolio)
			sum = sum.Add(p.PercentOfPortfolio)
		}
		assert.True(t, sum.Equal(d("100")))

		require.NotNil(t, s.BestPerformer)
		require.NotNil(t, s.WorstPerformer)
		assert.Equal(t, "BTC", s.BestPerformer.Ticker)
		assert.Equal(t, "VTI", s.WorstPerformer.Ticker)

		require.Len(t, s.Allocation, 4)
		assert.Equal(t, model.AssetClassCrypto, s.Allocation[0].AssetClass)
		assert.True(t, s.Allocation[0].Percent.Equal(d("15")))
	})

	// Percentages must sum to 100 within rounding for awkward thirds too.
	t.Run("percent of portfolio sums to 100", func(t *testing.T) {
		positions := []model.PositionValuation{
			position("1", "A", model.AssetClassStock, "1", "1", true),
			position("2", "B", model.AssetClassStock, "1", "1", true),
			position("3", "C", model.AssetClassStock, "1", "1", true),
		}

		s := valuation.Aggregate("USD", positions)

		sum := decimal.Zero
		for _, p := range s.Positions {
			sum = sum.Add(p.PercentOfPortfolio)
		}
		assert.True(t, money.ApproxEqual(sum, d("100"), d("1e-10")))
	})

	t.Run("missing price is valued at zero and not ranked", func(t *testing.T) {
		positions := []model.PositionValuation{
			position("1", "AAPL", model.AssetClassStock, "1500", "1000", true),
			position("2", "NOPE", model.AssetClassStock, "0", "500", false),
		}

		s := valuation.Aggregate("USD", positions)

		assert.True(t, s.TotalValue.Equal(d("1500")))
		assert.True(t, s.TotalCost.Equal(d("1500")))
		assert.True(t, s.Positions[1].PercentOfPortfolio.IsZero())
		require.NotNil(t, s.BestPerformer)
		assert.Equal(t, "AAPL", s.BestPerformer.Ticker)
		assert.Equal(t, "AAPL", s.WorstPerformer.Ticker)
	})

	t.Run("no priced positions means no performers", func(t *testing.T) {
		s := valuation.Aggregate("USD", []model.PositionValuation{
			position("1", "X", model.AssetClassStock, "0", "100", false),
		})

		assert.Nil(t, s.BestPerformer)
		assert.Nil(t, s.WorstPerformer)
		assert.True(t, s.Positions[0].PercentOfPortfolio.IsZero())
	})

	t.Run("stale rate propagates", func(t *testing.T) {
		p := position("1", "X", model.AssetClassStock, "10", "10", true)
		p.Base.RateStale = true

		assert.True(t, valuation.Aggregate("EUR", []model.PositionValuation{p}).RateStale)
	})
}

func TestRankPerformers(t *testing.T) {
	// Percentages closer than 0.001 tie and are ordered by ticker.
	t.Run("tie break by ticker regardless of input order", func(t *testing.T) {
		msft := withPct(position("1", "MSFT", model.AssetClassStock, "1", "1", true), "10.0000")
		aapl := withPct(position("2", "AAPL", model.AssetClassStock, "1", "1", true), "10.0005")
		low := withPct(position("3", "ZZZ", model.AssetClassStock, "1", "1", true), "-4")

		orders := [][]model.PositionValuation{
			{msft, aapl, low},
			{aapl, msft, low},
			{low, msft, aapl},
			{low, aapl, msft},
		}

		for _, in := range orders {
			ranked := valuation.RankPerformers(in)
			require.Len(t, ranked, 3)
			assert.Equal(t, "AAPL", ranked[0].Ticker)
			assert.Equal(t, "MSFT", ranked[1].Ticker)
			assert.Equal(t, "ZZZ", ranked[2].Ticker)
		}
	})

	t.Run("differences at the tolerance are not ties", func(t *testing.T) {
		b := withPct(position("1", "BBB", model.AssetClassStock, "1", "1", true), "5.001")
		a := withPct(position("2", "AAA", model.AssetClassStock, "1", "1", true), "5.000")

		ranked := valuation.RankPerformers([]model.PositionValuation{a, b})

		assert.Equal(t, "BBB", ranked[0].Ticker)
		assert.Equal(t, "AAA", ranked[1].Ticker)
	})

	t.Run("tied bottom group puts last ticker last", func(t *testing.T) {
		a := withPct(position("1", "AAA", model.AssetClassStock, "1", "1", true), "-2")
		b := withPct(position("2", "BBB", model.AssetClassStock, "1", "1", true), "-2.0001")
		top := withPct(position("3", "TOP", model.AssetClassStock, "1", "1", true), "3")

		s := valuation.Aggregate("USD", []model.PositionValuation{b, top, a})

		assert.Equal(t, "TOP", s.BestPerformer.Ticker)
		assert.Equal(t, "BBB", s.WorstPerformer.Ticker)
	})
}
