package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/middleware"
	"github.com/ndewijer/portfolio-valuation-backend/internal/api/response"
	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/validation"
)

const (
	maxBodyBytes = 1 << 20

	// retryAfterSeconds is sent with concurrency timeouts; a lock is held for
	// at most a few seconds.
	retryAfterSeconds = "1"
)

// parseJSON decodes the request body into T. Unknown fields and trailing data are rejected.
func parseJSON[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil {
		return v, errors.New("request body is required")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, errors.New("request body is required")
		}
		return v, err
	}
	if dec.More() {
		return v, fmt.Errorf("unexpected data after JSON body")
	}
	return v, nil
}

// currentOwner returns the user id stored by middleware.RequireOwner, or
// writes 401 and reports false.
func currentOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		response.RespondError(w, http.StatusUnauthorized, apperrors.ErrMissingOwner.Error(), "")
		return "", false
	}
	return owner, true
}

// respondValidation writes 400 with per-field messages when err carries them.
func respondValidation(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		response.RespondError(w, http.StatusBadRequest, "validation failed", verr.Fields)
		return
	}
	response.RespondError(w, http.StatusBadRequest, "validation failed", cause(err))
}

// respondServiceError maps a classified service error to an HTTP response.
// message is the user-facing description used for failures the client cannot
// act on; storage and internal failures never expose driver detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		respondValidation(w, err)
	case apperrors.KindNotFound:
		response.RespondError(w, http.StatusNotFound, cause(err), "")
	case apperrors.KindExternalData:
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg(message)
		if apperrors.IsRetryable(err) {
			response.RespondRetryableError(w, http.StatusBadGateway, message, externalDetail(err))
			return
		}
		response.RespondError(w, http.StatusBadGateway, message, externalDetail(err))
	case apperrors.KindConcurrencyTimeout:
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg(message)
		w.Header().Set("Retry-After", retryAfterSeconds)
		response.RespondRetryableError(w, http.StatusConflict, message, apperrors.ErrLockTimeout.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg(message)
		response.RespondError(w, http.StatusInternalServerError, message, "")
	}
}

// externalDetail names the provider failure by its sentinel only. The wrapped
// transport error carries provider URLs and stays in the log.
func externalDetail(err error) string {
	for _, sentinel := range []error{
		apperrors.ErrSymbolNotFound,
		apperrors.ErrRateLimited,
		apperrors.ErrExchangeRateNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return apperrors.ErrProviderUnavailable.Error()
}

// cause returns the message of the innermost classified cause, without the
// operation prefixes added along the way.
func cause(err error) string {
	var e *apperrors.Error
	for errors.As(err, &e) {
		err = e.Err
	}
	return err.Error()
}
