package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/request"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
)

func ValidateCreatePortfolio(req request.CreatePortfolioRequest) error {
	errs := fields{}

	// Required field
	validateName(errs, req.Name)

	// Optional but has constraints
	if utf8.RuneCountInString(req.Description) > maxDescriptionLength {
		errs["description"] = "description must be 500 characters or less"
	}

	if !money.ValidCurrency(money.NormalizeCurrency(req.BaseCurrency)) {
		errs["baseCurrency"] = "baseCurrency must be a 3-letter ISO 4217 code"
	}

	return errs.err()
}

func ValidateUpdatePortfolio(req request.UpdatePortfolioRequest) error {
	errs := fields{}

	// Only validate provided fields
	if req.Name != nil {
		validateName(errs, *req.Name)
	}

	if req.Description != nil && utf8.RuneCountInString(*req.Description) > maxDescriptionLength {
		errs["description"] = "description must be 500 characters or less"
	}

	if req.BaseCurrency != nil && !money.ValidCurrency(money.NormalizeCurrency(*req.BaseCurrency)) {
		errs["baseCurrency"] = "baseCurrency must be a 3-letter ISO 4217 code"
	}

	return errs.err()
}

func validateName(errs fields, name string) {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		errs["name"] = "name is required"
	case utf8.RuneCountInString(trimmed) > maxNameLength:
		errs["name"] = "name must be 100 characters or less"
	}
}
