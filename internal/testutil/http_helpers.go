package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/middleware"
)

// NewRequestWithURLParams creates a request carrying chi URL parameters, so
// handlers reading chi.URLParam can be called without a router.
//
//	req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/portfolio/"+id,
//	    map[string]string{"uuid": id})
func NewRequestWithURLParams(method, path string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range params {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req
}

// NewRequestWithQueryParams creates a request with the given query string,
// e.g. {"from": "USD", "to": "EUR"} for the exchange-rate lookup.
func NewRequestWithQueryParams(method, path string, queryParams map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)

	if len(queryParams) > 0 {
		q := req.URL.Query()
		for key, value := range queryParams {
			q.Add(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}

	return req
}

// NewOwnerRequest builds a request the way RequireOwner hands it to a
// handler: URL params set and owner stored in the context. body may be a raw
// JSON string, nil, or any value to marshal.
func NewOwnerRequest(t *testing.T, method, path, owner string, params map[string]string, body any) *http.Request {
	t.Helper()

	req := NewRequestWithURLParams(method, path, params)
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("Failed to marshal request body: %v", err)
			}
			raw = string(b)
		}
		req.Body = io.NopCloser(strings.NewReader(raw))
		req.ContentLength = int64(len(raw))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.WithOwner(req.Context(), owner))
}
