// Package extractor turns a decoded Lighthouse report into the score and
// display fields of a summary row.
package extractor

import (
	"math"
	"strconv"

	"perfsummary/internal/pkg/models"
)

// Audit ids read for display-only metrics.
const (
	AuditLCP             = "largest-contentful-paint"
	AuditFID             = "max-potential-fid"
	AuditINP             = "interaction-to-next-paint"
	AuditINPExperimental = "experimental-interaction-to-next-paint"
	AuditCLS             = "cumulative-layout-shift"
	AuditTTI             = "interactive"
	AuditTBT             = "total-blocking-time"

	AuditInstallableManifest = "installable-manifest"
	AuditServiceWorker       = "service-worker"
)

// Renders a score as an integer percentage. Scores up to 1 are fractions,
// larger ones are already percentages. The result is clamped to [0,100].
func Percent(score *float64) string {
	if score == nil || math.IsNaN(*score) {
		return models.Unknown
	}
	value := *score
	if value <= 1 {
		value *= 100
	}
	// Half rounds up, including for negative values.
	rounded := math.Floor(value + 0.5)
	rounded = math.Max(0, math.Min(100, rounded))
	return strconv.Itoa(int(rounded))
}

// Returns the PWA score. When the category score is absent, the installable
// manifest and service worker audits stand in for it: both passing count as
// 1, one as 0.5, none leaves the score absent.
func PWAScore(result *models.AuditResult) *float64 {
	if score := result.CategoryScore(models.CategoryPWA); score != nil {
		return score
	}
	installable := result.AuditPassed(AuditInstallableManifest)
	serviceWorker := result.AuditPassed(AuditServiceWorker)

	var synthesized float64
	switch {
	case installable && serviceWorker:
		synthesized = 1
	case installable || serviceWorker:
		synthesized = 0.5
	default:
		return nil
	}
	return &synthesized
}

// Returns the first non-empty display value among ids, or Unknown.
func Display(result *models.AuditResult, ids ...string) string {
	for _, id := range ids {
		if value := result.DisplayValue(id); value != "" {
			return value
		}
	}
	return models.Unknown
}

// Builds the record for one report. LoadTestMean is left Unknown for the
// caller to join.
func Extract(name string, result *models.AuditResult) models.PageRecord {
	return models.PageRecord{
		Name: name,
		URL:  result.URL(),

		Performance:   Percent(result.CategoryScore(models.CategoryPerformance)),
		Accessibility: Percent(result.CategoryScore(models.CategoryAccessibility)),
		BestPractices: Percent(result.CategoryScore(models.CategoryBestPractices)),
		SEO:           Percent(result.CategoryScore(models.CategorySEO)),
		PWA:           Percent(PWAScore(result)),

		LCP: Display(result, AuditLCP),
		FID: Display(result, AuditFID),
		INP: Display(result, AuditINP, AuditINPExperimental),
		CLS: Display(result, AuditCLS),
		TTI: Display(result, AuditTTI),
		TBT: Display(result, AuditTBT),

		LoadTestMean: models.Unknown,
	}
}
