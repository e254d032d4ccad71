// Package fielddata fills missing INP values from the PageSpeed Insights
// field data (CrUX) of each page.
package fielddata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"perfsummary/internal/pkg/cache"
	"perfsummary/internal/pkg/circuitbreaker"
	"perfsummary/internal/pkg/logger"
	"perfsummary/internal/pkg/metrics"
	"perfsummary/internal/pkg/models"
)

const (
	DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	DefaultStrategy = "mobile"
	DefaultTimeout  = 30 * time.Second

	// Suffix appended to the percentile, which the API reports in milliseconds.
	Unit = " ms"

	serviceName = "pagespeed-insights"
)

// Paths of the live-user INP percentile, current name first.
var inpPaths = []string{
	"loadingExperience.metrics.INTERACTION_TO_NEXT_PAINT.percentile",
	"loadingExperience.metrics.EXPERIMENTAL_INTERACTION_TO_NEXT_PAINT.percentile",
}

// Outcome of one lookup. Value is only meaningful when Available.
type Result struct {
	Value     string
	Available bool
}

func Ok(value string) Result { return Result{Value: value, Available: true} }

func Unavailable() Result { return Result{} }

type Options struct {
	APIKey   string
	Endpoint string
	Strategy string
	// Bounds each request.
	Timeout time.Duration
	// Requests per second; zero or less means unlimited.
	RateLimit  float64
	HTTPClient *http.Client
	// Optional; successful lookups are stored and reused.
	Cache cache.Cache
}

type Enricher struct {
	apiKey         string
	endpoint       string
	strategy       string
	timeout        time.Duration
	client         *http.Client
	rateLimiter    *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	cache          cache.Cache
}

func New(opts Options) *Enricher {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Strategy == "" {
		opts.Strategy = DefaultStrategy
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Enricher{
		apiKey:         opts.APIKey,
		endpoint:       opts.Endpoint,
		strategy:       opts.Strategy,
		timeout:        opts.Timeout,
		client:         opts.HTTPClient,
		rateLimiter:    rate.NewLimiter(limit, 1),
		circuitBreaker: circuitbreaker.NewCircuitBreaker(serviceName, 5, time.Minute),
		cache:          opts.Cache,
	}
}

// Enrichment is disabled without a credential.
func (e *Enricher) Enabled() bool {
	return e != nil && e.apiKey != ""
}

// Fills INP on every record that needs field data, one page at a time.
// Records whose lookup fails are left unchanged. Returns the number filled.
func (e *Enricher) Enrich(ctx context.Context, records []models.PageRecord) int {
	if !e.Enabled() {
		return 0
	}
	filled := 0
	for i := range records {
		record := &records[i]
		if !record.NeedsFieldData() {
			continue
		}
		result := e.Lookup(ctx, record.URL)
		if !result.Available {
			continue
		}
		record.INP = result.Value
		filled++
	}
	return filled
}

// Looks up the live-user INP of pageURL. Never returns an error: any failure
// yields Unavailable.
func (e *Enricher) Lookup(ctx context.Context, pageURL string) Result {
	if !e.Enabled() || pageURL == "" {
		return Unavailable()
	}

	key := cache.Key(pageURL, e.strategy)
	if e.cache != nil {
		if value, found := e.cache.Get(ctx, key); found {
			metrics.FieldDataRequests.WithLabelValues("cached").Inc()
			return Ok(value)
		}
	}

	startTime := time.Now()
	var (
		body     []byte
		fetchErr error
	)
	err := e.circuitBreaker.Execute(func() error {
		body, fetchErr = e.fetch(ctx, pageURL)
		if fetchErr != nil && affectsService(fetchErr) {
			return fetchErr
		}
		return nil
	})
	metrics.FieldDataLatency.Observe(time.Since(startTime).Seconds())
	if err == nil {
		err = fetchErr
	}

	if err != nil {
		logger.Log.Debug("Field data unavailable", zap.String("url", pageURL), zap.Error(err))
		metrics.FieldDataRequests.WithLabelValues("unavailable").Inc()
		return Unavailable()
	}

	value, ok := ParseINP(body)
	if !ok {
		logger.Log.Debug("Field data has no INP percentile", zap.String("url", pageURL))
		metrics.FieldDataRequests.WithLabelValues("unavailable").Inc()
		return Unavailable()
	}

	metrics.FieldDataRequests.WithLabelValues("ok").Inc()
	if e.cache != nil {
		e.cache.Set(ctx, key, value)
	}
	return Ok(value)
}

func (e *Enricher) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit")
	}

	endpoint, err := e.requestURL(pageURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request field data")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read field data")
	}
	return body, nil
}

// A non-success answer from the field data endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("field data endpoint returned status %d", e.Code)
}

// Reports whether err says the endpoint itself is unusable, as opposed to a
// failure about one page. Only these count towards the circuit breaker:
// transport errors, rejected credentials and exhausted quota.
func affectsService(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return true
	}
	switch statusErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func (e *Enricher) requestURL(pageURL string) (string, error) {
	endpoint, err := url.Parse(e.endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse field data endpoint")
	}
	query := endpoint.Query()
	query.Set("url", pageURL)
	query.Set("category", "performance")
	query.Set("strategy", e.strategy)
	query.Set("key", e.apiKey)
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}

// Reads the INP percentile from a PageSpeed Insights response and renders it
// with its unit. Only numeric values count.
func ParseINP(body []byte) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	for _, path := range inpPaths {
		value := gjson.GetBytes(body, path)
		if value.Type == gjson.Number {
			return strconv.FormatFloat(value.Float(), 'f', -1, 64) + Unit, true
		}
	}
	return "", false
}
