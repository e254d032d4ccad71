package audit

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Failure messages from the browser automation layer that usually clear up
// on a second attempt: the DevTools connection or the page target went away.
var DefaultTransientMarkers = []string{
	"target closed",
	"session closed",
	"protocol error",
	"websocket is not open",
	"websocket closed",
	"connection closed",
	"econnrefused",
	"econnreset",
	"socket hang up",
	"browser has disconnected",
	"devtools connection",
}

// Decides whether an audit failure is transient by matching its message
// against a fixed set of markers, case-insensitively.
type Classifier struct {
	matcher *ahocorasick.Matcher
	markers []string
}

// Creates a classifier for the given markers; DefaultTransientMarkers when
// none are given.
func NewClassifier(markers ...string) *Classifier {
	if len(markers) == 0 {
		markers = DefaultTransientMarkers
	}
	lowered := make([]string, len(markers))
	for i, marker := range markers {
		lowered[i] = strings.ToLower(marker)
	}
	return &Classifier{
		matcher: ahocorasick.NewStringMatcher(lowered),
		markers: lowered,
	}
}

// Reports whether err carries one of the transient markers.
func (c *Classifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	hits := c.matcher.MatchThreadSafe([]byte(strings.ToLower(err.Error())))
	return len(hits) > 0
}

// Returns the first marker found in err, for logging.
func (c *Classifier) Marker(err error) string {
	if err == nil {
		return ""
	}
	hits := c.matcher.MatchThreadSafe([]byte(strings.ToLower(err.Error())))
	if len(hits) == 0 {
		return ""
	}
	return c.markers[hits[0]]
}
