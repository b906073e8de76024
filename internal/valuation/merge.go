// Package valuation is the pure numeric core: merging purchases into
// weighted-average positions, per-position metrics and currency conversion,
// and portfolio-level aggregation. Nothing here performs I/O.
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
)

// Holding is the stored state of a position before a merge.
type Holding struct {
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
}

// Lot is a single purchase: quantity units bought at Price per unit,
// in the position's currency.
type Lot struct {
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// MergeResult is the position after a purchase has been applied.
type MergeResult struct {
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
	Aggregated  bool
}

// Merge applies lot to an existing holding. With no holding, the lot becomes
// the position verbatim. Otherwise the new average cost is
//
//	(q0*c0 + q1*p1) / (q0 + q1)
//
// computed exactly except for the final division.
func Merge(existing *Holding, lot Lot) (MergeResult, error) {
	const op = "valuation.Merge"

	if !lot.Quantity.IsPositive() || !lot.Price.IsPositive() {
		return MergeResult{}, apperrors.E(apperrors.KindValidation, op, apperrors.ErrNonPositiveAmount)
	}

	if existing == nil {
		return MergeResult{
			Quantity:    lot.Quantity,
			AverageCost: lot.Price,
			Aggregated:  false,
		}, nil
	}

	if !existing.Quantity.IsPositive() || existing.AverageCost.IsNegative() {
		return MergeResult{}, apperrors.E(apperrors.KindPersistence, op,
			fmt.Errorf("%w: position quantity %s, average cost %s",
				apperrors.ErrDataInconsistency, existing.Quantity, existing.AverageCost))
	}

	totalQty := existing.Quantity.Add(lot.Quantity)
	totalCost := existing.Quantity.Mul(existing.AverageCost).Add(lot.Quantity.Mul(lot.Price))

	return MergeResult{
		Quantity:    totalQty,
		AverageCost: money.Div(totalCost, totalQty),
		Aggregated:  true,
	}, nil
}
