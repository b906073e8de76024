// Package telemetry publishes request and domain counters through expvar,
// served at /debug/vars.
package telemetry

import (
	"expvar"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

var (
	apiRequestsTotal         = expvar.NewInt("api_requests_total")
	apiRequestsErrorsTotal   = expvar.NewInt("api_requests_errors_total")
	apiRequestLatencyMsTotal = expvar.NewInt("api_request_latency_ms_total")
	apiRequestLatencySamples = expvar.NewInt("api_request_latency_samples_total")
	apiRequestsByRoute       = expvar.NewMap("api_requests_by_route")
	apiRequestErrorsByRoute  = expvar.NewMap("api_request_errors_by_route")

	purchasesAggregatedTotal = expvar.NewInt("purchases_aggregated_total")
	purchasesCreatedTotal    = expvar.NewInt("purchases_created_total")
	purchaseConflictsTotal   = expvar.NewInt("purchase_conflicts_retried_total")
	staleRatesServedTotal    = expvar.NewInt("stale_rates_served_total")
	cacheHitsByKind          = expvar.NewMap("cache_hits")
	cacheMissesByKind        = expvar.NewMap("cache_misses")
	refreshRunsTotal         = expvar.NewInt("refresh_runs_total")
	refreshFailuresTotal     = expvar.NewInt("refresh_failures_total")
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// APIRequestMetricsMiddleware records request volume, error rate, and latency for /api routes.
func APIRequestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		key := strings.TrimSpace(r.Method + " " + requestRoute(r))

		apiRequestsTotal.Add(1)
		apiRequestsByRoute.Add(key, 1)

		if recorder.status >= http.StatusBadRequest {
			apiRequestsErrorsTotal.Add(1)
			apiRequestErrorsByRoute.Add(key, 1)
		}

		apiRequestLatencyMsTotal.Add(time.Since(start).Milliseconds())
		apiRequestLatencySamples.Add(1)
	})
}

// requestRoute prefers the chi route pattern so ids do not explode the map.
func requestRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "/unknown"
}

func PurchaseAggregated() {
	purchasesAggregatedTotal.Add(1)
}

func PurchaseCreated() {
	purchasesCreatedTotal.Add(1)
}

func PurchaseConflictRetried() {
	purchaseConflictsTotal.Add(1)
}

func StaleRateServed() {
	staleRatesServedTotal.Add(1)
}

// CacheHit counts a fresh cache read; kind is "price" or "rate".
func CacheHit(kind string) {
	cacheHitsByKind.Add(kind, 1)
}

// CacheMiss counts a missing or stale cache read.
func CacheMiss(kind string) {
	cacheMissesByKind.Add(kind, 1)
}

func RefreshRun(failures int) {
	refreshRunsTotal.Add(1)
	refreshFailuresTotal.Add(int64(failures))
}

// PurchasesAggregated returns the current value of purchases_aggregated_total.
func PurchasesAggregated() int64 {
	return purchasesAggregatedTotal.Value()
}

// PurchasesCreated returns the current value of purchases_created_total.
func PurchasesCreated() int64 {
	return purchasesCreatedTotal.Value()
}
