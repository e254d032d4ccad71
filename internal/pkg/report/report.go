// Package report renders page records into the HTML summary.
package report

//go:generate templ generate

import (
	"bytes"
	"context"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-faster/errors"

	"perfsummary/internal/pkg/models"
)

const DefaultTitle = "Lighthouse Summary"

type Summary struct {
	Title string
	// Number of report files found, which can exceed len(Records) when some
	// could not be decoded.
	ReportCount int
	Records     []models.PageRecord
}

// Renders the summary document. The output depends only on the input, so
// unchanged inputs produce identical bytes.
func Render(ctx context.Context, s Summary) ([]byte, error) {
	if s.Title == "" {
		s.Title = DefaultTitle
	}
	var buf bytes.Buffer
	if err := SummaryPage(s).Render(ctx, &buf); err != nil {
		return nil, errors.Wrap(err, "render summary")
	}
	return buf.Bytes(), nil
}

// Link from a summary row to the page's own Lighthouse report, which sits
// next to the summary.
func reportLink(name string) templ.SafeURL {
	return templ.URL("./" + name + ".html")
}

func reportCount(n int) string {
	return strconv.Itoa(n)
}
