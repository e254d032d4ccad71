package models

// Decoded Lighthouse JSON report. Only the fields the summary needs are
// modeled; every optional value is a pointer and nil means "absent".
type AuditResult struct {
	RequestedURL      *string             `json:"requestedUrl,omitempty"`
	FinalURL          *string             `json:"finalUrl,omitempty"`
	FinalDisplayedURL *string             `json:"finalDisplayedUrl,omitempty"`
	Categories        map[string]Category `json:"categories,omitempty"`
	Audits            map[string]Audit    `json:"audits,omitempty"`
}

type Category struct {
	Score *float64 `json:"score"`
}

type Audit struct {
	Score        *float64 `json:"score"`
	DisplayValue *string  `json:"displayValue,omitempty"`
}

// Category ids, as Lighthouse names them.
const (
	CategoryPerformance   = "performance"
	CategoryAccessibility = "accessibility"
	CategoryBestPractices = "best-practices"
	CategorySEO           = "seo"
	CategoryPWA           = "pwa"
)

// Categories every audit is configured with.
var AuditCategories = []string{
	CategoryPerformance,
	CategoryAccessibility,
	CategoryBestPractices,
	CategorySEO,
	CategoryPWA,
}

// Returns the category score, or nil when the category or its score is absent.
func (r *AuditResult) CategoryScore(id string) *float64 {
	if r == nil || r.Categories == nil {
		return nil
	}
	category, ok := r.Categories[id]
	if !ok {
		return nil
	}
	return category.Score
}

// Reports whether the audit exists and scored exactly 1.
func (r *AuditResult) AuditPassed(id string) bool {
	if r == nil || r.Audits == nil {
		return false
	}
	audit, ok := r.Audits[id]
	return ok && audit.Score != nil && *audit.Score == 1
}

// Returns the audit's display value; empty when absent.
func (r *AuditResult) DisplayValue(id string) string {
	if r == nil || r.Audits == nil {
		return ""
	}
	audit, ok := r.Audits[id]
	if !ok || audit.DisplayValue == nil {
		return ""
	}
	return *audit.DisplayValue
}

// Returns the audited URL: requested, then final, then the displayed final URL
// newer Lighthouse versions report.
func (r *AuditResult) URL() string {
	if r == nil {
		return ""
	}
	for _, candidate := range []*string{r.RequestedURL, r.FinalURL, r.FinalDisplayedURL} {
		if candidate != nil && *candidate != "" {
			return *candidate
		}
	}
	return ""
}
