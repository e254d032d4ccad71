// Package loadtest reads Gatling statistics and extracts mean response times
// per page label.
package loadtest

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"

	"github.com/go-faster/errors"
)

// Gatling request names for page loads look like "GET - <label>".
var requestName = regexp.MustCompile(`^GET\s+-\s+(.*)$`)

// Gatling js/stats.json. Group entries carry their own nested contents.
type Stats struct {
	Contents map[string]Entry `json:"contents"`
}

type Entry struct {
	Stats    *EntryStats      `json:"stats,omitempty"`
	Contents map[string]Entry `json:"contents,omitempty"`
}

type EntryStats struct {
	Name             *string       `json:"name,omitempty"`
	MeanResponseTime *ResponseTime `json:"meanResponseTime,omitempty"`
}

// Gatling writes "-" instead of a number when a bucket is empty, so the
// values are kept raw and read on demand.
type ResponseTime struct {
	OK json.RawMessage `json:"ok,omitempty"`
}

func Parse(data []byte) (*Stats, error) {
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, errors.Wrap(err, "decode gatling stats")
	}
	return &stats, nil
}

// Returns the page label of a request name, and false when the name does not
// follow the "GET - <label>" convention.
func PageLabel(name string) (string, bool) {
	match := requestName.FindStringSubmatch(name)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Returns the mean OK response time in milliseconds, and false when absent
// or not a number.
func (e *Entry) MeanOK() (float64, bool) {
	if e.Stats == nil || e.Stats.MeanResponseTime == nil || len(e.Stats.MeanResponseTime.OK) == 0 {
		return 0, false
	}
	var mean float64
	if err := json.Unmarshal(e.Stats.MeanResponseTime.OK, &mean); err != nil {
		return 0, false
	}
	return mean, true
}

// Maps page label to mean OK response time. Entries whose name does not match
// the convention, or that have no numeric mean, are ignored. Keys are walked
// in sorted order so that a label appearing twice always resolves the same way.
func (s *Stats) MeansByLabel() map[string]float64 {
	means := make(map[string]float64)
	if s != nil {
		collect(s.Contents, means)
	}
	return means
}

func collect(contents map[string]Entry, means map[string]float64) {
	keys := make([]string, 0, len(contents))
	for key := range contents {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := contents[key]
		if entry.Stats != nil && entry.Stats.Name != nil {
			if label, ok := PageLabel(*entry.Stats.Name); ok {
				if mean, ok := entry.MeanOK(); ok {
					means[label] = mean
				}
			}
		}
		if len(entry.Contents) > 0 {
			collect(entry.Contents, means)
		}
	}
}

// Renders a mean the shortest way that round-trips: 842 -> "842", 842.5 -> "842.5".
func FormatMean(mean float64) string {
	return strconv.FormatFloat(mean, 'f', -1, 64)
}
