package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/request"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
)

const maxNoteLength = 500

var (
	tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,20}$`)
	notePolicy    = bluemonday.StrictPolicy()
)

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ValidTicker reports whether an already-normalized ticker is 1-20 characters of A-Z, 0-9, '.' or '-'.
func ValidTicker(ticker string) bool {
	return tickerPattern.MatchString(ticker)
}

// SanitizeNote strips all markup from a free-text note.
func SanitizeNote(note string) string {
	return strings.TrimSpace(notePolicy.Sanitize(note))
}

// NormalizePurchase returns req with ticker and currency upper-cased, asset
// class lower-cased and the note stripped of markup. Empty names default to the ticker.
func NormalizePurchase(req request.PurchaseRequest) request.PurchaseRequest {
	req.Ticker = NormalizeTicker(req.Ticker)
	req.Currency = money.NormalizeCurrency(req.Currency)
	req.AssetClass = strings.ToLower(strings.TrimSpace(req.AssetClass))
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = req.Ticker
	}
	req.Note = SanitizeNote(req.Note)
	return req
}

// ValidatePurchase checks a purchase after normalization.
func ValidatePurchase(req request.PurchaseRequest) error {
	req = NormalizePurchase(req)
	errs := fields{}

	if !ValidTicker(req.Ticker) {
		errs["ticker"] = "ticker must be 1-20 characters of A-Z, 0-9, '.' or '-'"
	}

	if !model.AssetClass(req.AssetClass).Valid() {
		errs["assetClass"] = fmt.Sprintf("assetClass must be one of %v", model.AssetClasses)
	}

	if !money.ValidCurrency(req.Currency) {
		errs["currency"] = "currency must be a 3-letter ISO 4217 code"
	}

	if err := money.CheckAmount(req.Quantity); err != nil {
		errs["quantity"] = amountMessage("quantity", err)
	}

	if err := money.CheckAmount(req.Price); err != nil {
		errs["price"] = amountMessage("price", err)
	}

	if utf8.RuneCountInString(req.Name) > maxNameLength {
		errs["name"] = "name must be 100 characters or less"
	}

	if utf8.RuneCountInString(req.Note) > maxNoteLength {
		errs["note"] = "note must be 500 characters or less"
	}

	return errs.err()
}

// ValidateCurrencyPair checks the query of an exchange-rate lookup.
func ValidateCurrencyPair(from, to string) error {
	errs := fields{}
	if !money.ValidCurrency(money.NormalizeCurrency(from)) {
		errs["from"] = "from must be a 3-letter ISO 4217 code"
	}
	if !money.ValidCurrency(money.NormalizeCurrency(to)) {
		errs["to"] = "to must be a 3-letter ISO 4217 code"
	}
	return errs.err()
}

func amountMessage(field string, err error) string {
	switch {
	case errors.Is(err, money.ErrNotPositive):
		return field + " must be greater than zero"
	case errors.Is(err, money.ErrTooManyDigits):
		return fmt.Sprintf("%s must have at most %d decimal places", field, money.MaxInputScale)
	default:
		return field + " must be a finite decimal number"
	}
}
