package fielddata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/cache"
	"perfsummary/internal/pkg/logger"
	"perfsummary/internal/pkg/models"
)

func init() {
	logger.Log = zap.NewNop()
}

const psiResponse = `{
  "id": "https://shop.example.com/",
  "loadingExperience": {
    "metrics": {
      "INTERACTION_TO_NEXT_PAINT": {"percentile": 182, "category": "FAST"},
      "LARGEST_CONTENTFUL_PAINT_MS": {"percentile": 2100}
    }
  }
}`

func newServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func records() []models.PageRecord {
	return []models.PageRecord{
		{Name: "home", URL: "https://shop.example.com/", INP: models.Unknown},
		{Name: "cart", URL: "https://shop.example.com/cart", INP: "90 ms"},
		{Name: "orphan", URL: "", INP: models.Unknown},
	}
}

// Validates that only records missing INP with a known URL are looked up.
func TestEnrichFillsMissingINP(t *testing.T) {
	var hits int32
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		q := r.URL.Query()
		query = map[string]string{
			"url":      q.Get("url"),
			"category": q.Get("category"),
			"strategy": q.Get("strategy"),
			"key":      q.Get("key"),
		}
		_, _ = w.Write([]byte(psiResponse))
	}))
	defer server.Close()

	enricher := New(Options{APIKey: "secret", Endpoint: server.URL})
	recs := records()

	filled := enricher.Enrich(context.Background(), recs)
	assert.Equal(t, 1, filled)
	assert.Equal(t, "182 ms", recs[0].INP)
	assert.Equal(t, "90 ms", recs[1].INP)
	assert.Equal(t, models.Unknown, recs[2].INP)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	assert.Equal(t, map[string]string{
		"url":      "https://shop.example.com/",
		"category": "performance",
		"strategy": "mobile",
		"key":      "secret",
	}, query)
}

func TestEnrichDisabledWithoutKey(t *testing.T) {
	var hits int32
	server := newServer(t, http.StatusOK, psiResponse, &hits)

	enricher := New(Options{Endpoint: server.URL})
	recs := records()

	assert.False(t, enricher.Enabled())
	assert.Equal(t, 0, enricher.Enrich(context.Background(), recs))
	assert.Equal(t, records(), recs)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestFailuresLeaveRecordUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{}}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: ``},
		{name: "missing field", status: http.StatusOK, body: `{"loadingExperience":{"metrics":{}}}`},
		{name: "non numeric", status: http.StatusOK, body: `{"loadingExperience":{"metrics":{"INTERACTION_TO_NEXT_PAINT":{"percentile":"fast"}}}}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := newServer(t, tt.status, tt.body, &hits)
			enricher := New(Options{APIKey: "secret", Endpoint: server.URL})
			recs := records()

			assert.Equal(t, 0, enricher.Enrich(context.Background(), recs))
			assert.Equal(t, records(), recs)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "no retries")
		})
	}
}

func TestTimeoutLeavesRecordUnchanged(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	enricher := New(Options{APIKey: "secret", Endpoint: server.URL, Timeout: 50 * time.Millisecond})
	recs := records()

	assert.Equal(t, 0, enricher.Enrich(context.Background(), recs))
	assert.Equal(t, models.Unknown, recs[0].INP)
}

func TestUnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	result := New(Options{APIKey: "secret", Endpoint: endpoint}).Lookup(context.Background(), "https://shop.example.com/")
	assert.Equal(t, Unavailable(), result)
}

func TestLookupUsesCache(t *testing.T) {
	var hits int32
	server := newServer(t, http.StatusOK, psiResponse, &hits)
	store := cache.NewMemoryCache(time.Hour)

	enricher := New(Options{APIKey: "secret", Endpoint: server.URL, Cache: store})
	ctx := context.Background()

	require.Equal(t, Ok("182 ms"), enricher.Lookup(ctx, "https://shop.example.com/"))
	require.Equal(t, Ok("182 ms"), enricher.Lookup(ctx, "https://shop.example.com/"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

// Tests that failures are retried on the next lookup instead of served from the cache.
func TestFailedLookupIsNotCached(t *testing.T) {
	var hits int32
	server := newServer(t, http.StatusBadGateway, ``, &hits)
	store := cache.NewMemoryCache(time.Hour)

	enricher := New(Options{APIKey: "secret", Endpoint: server.URL, Cache: store})
	ctx := context.Background()

	assert.Equal(t, Unavailable(), enricher.Lookup(ctx, "https://shop.example.com/"))
	assert.Equal(t, Unavailable(), enricher.Lookup(ctx, "https://shop.example.com/"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestParseINP(t *testing.T) {
	value, ok := ParseINP([]byte(psiResponse))
	assert.True(t, ok)
	assert.Equal(t, "182 ms", value)

	value, ok = ParseINP([]byte(`{"loadingExperience":{"metrics":{"EXPERIMENTAL_INTERACTION_TO_NEXT_PAINT":{"percentile":240}}}}`))
	assert.True(t, ok)
	assert.Equal(t, "240 ms", value)

	_, ok = ParseINP([]byte(`{}`))
	assert.False(t, ok)
}

// Answers failStatus for every page except the one at goodURL.
func perPageServer(t *testing.T, failStatus int, goodURL string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Query().Get("url") != goodURL {
			w.WriteHeader(failStatus)
			return
		}
		_, _ = w.Write([]byte(psiResponse))
	}))
	t.Cleanup(server.Close)
	return server
}

func failingThenGood(goodURL string) []models.PageRecord {
	recs := make([]models.PageRecord, 0, 7)
	for i := 0; i < 6; i++ {
		recs = append(recs, models.PageRecord{
			Name: fmt.Sprintf("broken-%d", i),
			URL:  fmt.Sprintf("https://shop.example.com/broken-%d", i),
			INP:  models.Unknown,
		})
	}
	return append(recs, models.PageRecord{Name: "good", URL: goodURL, INP: models.Unknown})
}

// Validates that pages the endpoint cannot analyse do not stop lookups for
// the pages after them.
func TestPerPageFailuresDoNotBlockLaterPages(t *testing.T) {
	const goodURL = "https://shop.example.com/good"
	var hits int32
	server := perPageServer(t, http.StatusInternalServerError, goodURL, &hits)

	enricher := New(Options{APIKey: "secret", Endpoint: server.URL})
	recs := failingThenGood(goodURL)

	assert.Equal(t, 1, enricher.Enrich(context.Background(), recs))
	assert.Equal(t, int32(7), atomic.LoadInt32(&hits))
	assert.Equal(t, "182 ms", recs[6].INP)
	for _, rec := range recs[:6] {
		assert.Equal(t, models.Unknown, rec.INP, rec.Name)
	}
}

// Validates that an exhausted quota opens the breaker so later pages are not
// requested while it lasts.
func TestQuotaFailuresOpenBreaker(t *testing.T) {
	const goodURL = "https://shop.example.com/good"
	var hits int32
	server := perPageServer(t, http.StatusTooManyRequests, goodURL, &hits)

	enricher := New(Options{APIKey: "secret", Endpoint: server.URL})
	recs := failingThenGood(goodURL)

	assert.Equal(t, 0, enricher.Enrich(context.Background(), recs))
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
	assert.Equal(t, models.Unknown, recs[6].INP)
}

func TestAffectsService(t *testing.T) {
	assert.True(t, affectsService(fmt.Errorf("dial: %w", errTransport)))
	assert.True(t, affectsService(&StatusError{Code: http.StatusTooManyRequests}))
	assert.True(t, affectsService(&StatusError{Code: http.StatusForbidden}))
	assert.False(t, affectsService(&StatusError{Code: http.StatusBadRequest}))
	assert.False(t, affectsService(&StatusError{Code: http.StatusInternalServerError}))
	assert.Contains(t, (&StatusError{Code: 500}).Error(), "500")
}

var errTransport = fmt.Errorf("connection refused")
