package extractor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfsummary/internal/pkg/models"
)

func ptr(v float64) *float64 { return &v }

func decode(t *testing.T, raw string) *models.AuditResult {
	t.Helper()
	var result models.AuditResult
	require.NoError(t, json.Unmarshal([]byte(raw), &result))
	return &result
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		want  string
	}{
		{name: "fraction", score: ptr(0.73), want: "73"},
		{name: "absent", score: nil, want: models.Unknown},
		{name: "already percent", score: ptr(87), want: "87"},
		{name: "one", score: ptr(1), want: "100"},
		{name: "zero", score: ptr(0), want: "0"},
		{name: "half rounds up", score: ptr(72.5), want: "73"},
		{name: "above range", score: ptr(250), want: "100"},
		{name: "below range", score: ptr(-0.2), want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.score))
		})
	}
}

// Validates the PWA fallback built from the manifest and service worker audits.
func TestPWAScore(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "category present",
			raw:  `{"categories":{"pwa":{"score":0.3}},"audits":{"installable-manifest":{"score":1},"service-worker":{"score":1}}}`,
			want: "30",
		},
		{
			name: "both audits pass",
			raw:  `{"categories":{"pwa":{"score":null}},"audits":{"installable-manifest":{"score":1},"service-worker":{"score":1}}}`,
			want: "100",
		},
		{
			name: "one audit passes",
			raw:  `{"audits":{"installable-manifest":{"score":0},"service-worker":{"score":1}}}`,
			want: "50",
		},
		{
			name: "neither passes",
			raw:  `{"audits":{"installable-manifest":{"score":0},"service-worker":{"score":null}}}`,
			want: models.Unknown,
		},
		{
			name: "nothing at all",
			raw:  `{}`,
			want: models.Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(PWAScore(decode(t, tt.raw))))
		})
	}
}

func TestExtract(t *testing.T) {
	result := decode(t, `{
		"requestedUrl": "https://shop.example.com/",
		"finalUrl": "https://shop.example.com/home",
		"categories": {
			"performance": {"score": 0.73},
			"accessibility": {"score": 0.9},
			"best-practices": {"score": 1},
			"seo": {"score": null}
		},
		"audits": {
			"largest-contentful-paint": {"score": 0.5, "displayValue": "2.4 s"},
			"max-potential-fid": {"displayValue": "130 ms"},
			"experimental-interaction-to-next-paint": {"displayValue": "180 ms"},
			"cumulative-layout-shift": {"displayValue": "0.01"},
			"interactive": {"displayValue": "3.1 s"},
			"total-blocking-time": {"displayValue": ""}
		}
	}`)

	record := Extract("home", result)
	assert.Equal(t, models.PageRecord{
		Name:          "home",
		URL:           "https://shop.example.com/",
		Performance:   "73",
		Accessibility: "90",
		BestPractices: "100",
		SEO:           models.Unknown,
		PWA:           models.Unknown,
		LCP:           "2.4 s",
		FID:           "130 ms",
		INP:           "180 ms",
		CLS:           "0.01",
		TTI:           "3.1 s",
		TBT:           models.Unknown,
		LoadTestMean:  models.Unknown,
	}, record)
}

func TestExtractPrefersCurrentINPAudit(t *testing.T) {
	result := decode(t, `{"audits":{
		"interaction-to-next-paint": {"displayValue": "90 ms"},
		"experimental-interaction-to-next-paint": {"displayValue": "180 ms"}
	}}`)
	assert.Equal(t, "90 ms", Extract("p", result).INP)
}

func TestExtractURLFallback(t *testing.T) {
	assert.Equal(t, "https://a.example/final",
		Extract("p", decode(t, `{"finalUrl":"https://a.example/final"}`)).URL)
	assert.Equal(t, "https://a.example/shown",
		Extract("p", decode(t, `{"finalDisplayedUrl":"https://a.example/shown"}`)).URL)

	record := Extract("p", decode(t, `{}`))
	assert.Empty(t, record.URL)
	assert.False(t, record.NeedsFieldData())
}
