package models

// Marker rendered for any value that could not be determined.
const Unknown = "—"

// One row of the summary: an audit result merged with its load-test mean and,
// optionally, field data. Built fresh per aggregation run and only rendered.
type PageRecord struct {
	Name string
	URL  string

	// Category scores as integer percentages, or Unknown.
	Performance   string
	Accessibility string
	BestPractices string
	SEO           string
	PWA           string

	// Display values copied from the audits, or Unknown.
	LCP string
	FID string
	INP string
	CLS string
	TTI string
	TBT string

	// Mean OK response time in milliseconds from the load test, or Unknown.
	LoadTestMean string
}

// Field data enrichment applies to records with no INP and a known URL.
func (r *PageRecord) NeedsFieldData() bool {
	return r.INP == Unknown && r.URL != ""
}
