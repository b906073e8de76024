package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 2 // requests per second

	// ProviderName identifies this client in the shared quota table.
	ProviderName = "yahoo"
)

// QuotaCounter counts outbound calls per window across every process.
// Implemented by repository.QuotaRepository.
type QuotaCounter interface {
	Increment(ctx context.Context, provider string, windowStart time.Time) (int, error)
}

// KeySource returns the API key to send with each request, or "" for none.
type KeySource func(ctx context.Context) (string, error)

// YahooClient fetches quotes from the Yahoo Finance chart API.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	quota      QuotaCounter
	quotaLimit int
	keySource  KeySource
	logger     zerolog.Logger
	now        func() time.Time
}

// YahooOption configures the client.
type YahooOption func(*YahooClient)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) YahooOption {
	return func(c *YahooClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) YahooOption {
	return func(c *YahooClient) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) YahooOption {
	return func(c *YahooClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the per-process request rate
func WithRateLimit(requestsPerSecond float64) YahooOption {
	return func(c *YahooClient) {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithQuota enforces a per-minute call limit shared through counter.
func WithQuota(counter QuotaCounter, perMinute int) YahooOption {
	return func(c *YahooClient) {
		c.quota = counter
		c.quotaLimit = perMinute
	}
}

// WithKeySource sends the key it returns in the X-API-KEY header.
func WithKeySource(src KeySource) YahooOption {
	return func(c *YahooClient) {
		c.keySource = src
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) YahooOption {
	return func(c *YahooClient) {
		c.logger = logger
	}
}

// NewYahooClient creates a new Yahoo Finance client.
func NewYahooClient(opts ...YahooOption) *YahooClient {
	c := &YahooClient{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  zerolog.Nop(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchPrice returns the latest regular-market price for ticker.
// Crypto tickers without a quote currency are queried as TICKER-CURRENCY (e.g. BTC-EUR).
func (c *YahooClient) FetchPrice(ctx context.Context, ticker string, class model.AssetClass, currency string) (model.PriceQuote, error) {
	const op = "marketdata.FetchPrice"

	symbol := ticker
	if class == model.AssetClassCrypto && !strings.Contains(ticker, "-") {
		symbol = ticker + "-" + currency
	}

	meta, err := c.queryChart(ctx, symbol)
	if err != nil {
		return model.PriceQuote{}, classify(op, err)
	}

	price, err := money.FromProviderFloat(meta.RegularMarketPrice)
	if err != nil || !price.IsPositive() {
		return model.PriceQuote{}, apperrors.E(apperrors.KindExternalData, op,
			fmt.Errorf("invalid price %v for %s", meta.RegularMarketPrice, symbol))
	}

	quoteCurrency, price := majorUnit(meta.Currency, price)
	if quoteCurrency == "" {
		quoteCurrency = currency
	}

	return model.PriceQuote{
		Ticker:    ticker,
		Price:     price,
		Currency:  quoteCurrency,
		FetchedAt: c.now().UTC(),
	}, nil
}

// subunitCurrencies maps the minor-unit codes some exchanges quote in to the
// ISO currency they divide. Keys are case sensitive: GBp is pence, GBP pounds.
var subunitCurrencies = map[string]string{
	"GBp": "GBP",
	"GBX": "GBP",
	"ZAc": "ZAR",
	"ZAC": "ZAR",
	"ILA": "ILS",
}

// majorUnit returns the ISO currency for a reported quote currency, with price
// divided by 100 when the quote is in a minor unit such as pence.
func majorUnit(reported string, price decimal.Decimal) (string, decimal.Decimal) {
	reported = strings.TrimSpace(reported)
	if major, ok := subunitCurrencies[reported]; ok {
		return major, price.Div(decimal.NewFromInt(100))
	}
	return money.NormalizeCurrency(reported), price
}

// FetchExchangeRate returns the rate for one unit of from in to, using the
// FROMTO=X currency-pair symbol.
func (c *YahooClient) FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	const op = "marketdata.FetchExchangeRate"

	meta, err := c.queryChart(ctx, from+to+"=X")
	if err != nil {
		return decimal.Zero, classify(op, err)
	}

	r, err := money.FromProviderFloat(meta.RegularMarketPrice)
	if err != nil || !r.IsPositive() {
		return decimal.Zero, apperrors.E(apperrors.KindExternalData, op,
			fmt.Errorf("invalid rate %v for %s/%s", meta.RegularMarketPrice, from, to))
	}
	return r, nil
}

// httpStatusError is returned for non-2xx responses.
type httpStatusError struct {
	StatusCode int
	Symbol     string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("yahoo returned status %d for %s", e.StatusCode, e.Symbol)
}

// queryChart executes a chart request for symbol and returns its metadata.
//
// The request passes the per-process limiter first and then the shared quota.
// It sets a browser User-Agent, without which the endpoint rejects requests.
func (c *YahooClient) queryChart(ctx context.Context, symbol string) (Meta, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Meta{}, fmt.Errorf("rate limit wait: %w", err)
	}
	if err := c.takeQuota(ctx); err != nil {
		return Meta{}, err
	}

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", c.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Meta{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	if c.keySource != nil {
		key, err := c.keySource(ctx)
		if err != nil && !errors.Is(err, apperrors.ErrSettingNotFound) {
			return Meta{}, fmt.Errorf("failed to load provider key: %w", err)
		}
		if key != "" {
			req.Header.Set("X-API-KEY", key)
		}
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Meta{}, err
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("symbol", symbol).
		Int("status", resp.StatusCode).
		Dur("duration", c.now().Sub(start)).
		Msg("market data request")

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Meta{}, err
	}

	var response Response
	if jsonErr := json.Unmarshal(data, &response); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return Meta{}, fmt.Errorf("failed to decode chart response: %w", jsonErr)
	}

	if response.Chart.Error != nil {
		if strings.EqualFold(response.Chart.Error.Code, "Not Found") {
			return Meta{}, fmt.Errorf("%w: %s", apperrors.ErrSymbolNotFound, symbol)
		}
		return Meta{}, fmt.Errorf("yahoo error: %s", response.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return Meta{}, &httpStatusError{StatusCode: resp.StatusCode, Symbol: symbol}
	}
	if len(response.Chart.Result) == 0 {
		return Meta{}, fmt.Errorf("%w: %s", apperrors.ErrSymbolNotFound, symbol)
	}

	return response.Chart.Result[0].Meta, nil
}

func (c *YahooClient) takeQuota(ctx context.Context) error {
	if c.quota == nil || c.quotaLimit <= 0 {
		return nil
	}
	window := c.now().UTC().Truncate(time.Minute)
	count, err := c.quota.Increment(ctx, ProviderName, window)
	if err != nil {
		return fmt.Errorf("failed to update provider quota: %w", err)
	}
	if count > c.quotaLimit {
		return fmt.Errorf("%w: %d calls in window starting %s", apperrors.ErrRateLimited, count-1, window.Format(time.RFC3339))
	}
	return nil
}

// classify maps a transport or API failure onto an external-data error,
// marking transient conditions retryable.
func classify(op string, err error) error {
	var statusErr *httpStatusError
	var netErr net.Error

	switch {
	case errors.Is(err, apperrors.ErrSymbolNotFound):
		return apperrors.E(apperrors.KindExternalData, op, err)
	case errors.Is(err, apperrors.ErrRateLimited):
		return apperrors.Retryable(apperrors.KindExternalData, op, err)
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return apperrors.E(apperrors.KindExternalData, op, fmt.Errorf("%w: %s", apperrors.ErrSymbolNotFound, statusErr.Symbol))
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return apperrors.Retryable(apperrors.KindExternalData, op, fmt.Errorf("%w: %v", apperrors.ErrRateLimited, err))
		case statusErr.StatusCode >= 500:
			return apperrors.Retryable(apperrors.KindExternalData, op, fmt.Errorf("%w: %v", apperrors.ErrProviderUnavailable, err))
		}
		return apperrors.E(apperrors.KindExternalData, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return apperrors.Retryable(apperrors.KindExternalData, op, fmt.Errorf("%w: %v", apperrors.ErrProviderUnavailable, err))
	}
	return apperrors.E(apperrors.KindExternalData, op, err)
}
