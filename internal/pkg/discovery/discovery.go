// Package discovery locates the most recent Gatling statistics file.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/logger"
)

const (
	DefaultRunPrefix = "run-"
)

// Relative location of the stats file inside a Gatling run directory.
var DefaultStatsSubPath = filepath.Join("gatling", "js", "stats.json")

// Finds zero or one load-test statistics document.
type Discovery struct {
	fs            afero.Fs
	wellKnownPath string
	reportsRoot   string
	runPrefix     string
	statsSubPath  string
}

// Creates a discovery over wellKnownPath (the collected snapshot) with a
// fallback scan of run directories under reportsRoot.
func New(fs afero.Fs, wellKnownPath, reportsRoot string) *Discovery {
	return &Discovery{
		fs:            fs,
		wellKnownPath: wellKnownPath,
		reportsRoot:   reportsRoot,
		runPrefix:     DefaultRunPrefix,
		statsSubPath:  DefaultStatsSubPath,
	}
}

type runDir struct {
	name    string
	modTime time.Time
}

// Returns the path of the stats file to use and true, or "" and false when
// none exists. I/O errors are logged and reported as absence.
func (d *Discovery) Latest() (string, bool) {
	if d.wellKnownPath != "" {
		found, err := d.isFile(d.wellKnownPath)
		if err != nil {
			logger.Log.Warn("Cannot inspect load-test stats snapshot",
				zap.String("path", d.wellKnownPath), zap.Error(err))
			return "", false
		}
		if found {
			return d.wellKnownPath, true
		}
	}

	if d.reportsRoot == "" {
		return "", false
	}
	entries, err := afero.ReadDir(d.fs, d.reportsRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log.Warn("Cannot list reports root",
				zap.String("path", d.reportsRoot), zap.Error(err))
		}
		return "", false
	}

	var runs []runDir
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), d.runPrefix) {
			continue
		}
		runs = append(runs, runDir{name: entry.Name(), modTime: entry.ModTime()})
	}
	// Newest first; equal times keep name order so the choice is stable.
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].modTime.After(runs[j].modTime)
	})

	for _, run := range runs {
		candidate := filepath.Join(d.reportsRoot, run.name, d.statsSubPath)
		found, err := d.isFile(candidate)
		if err != nil {
			logger.Log.Warn("Cannot inspect load-test stats candidate",
				zap.String("path", candidate), zap.Error(err))
			return "", false
		}
		if found {
			return candidate, true
		}
	}
	return "", false
}

func (d *Discovery) isFile(path string) (bool, error) {
	info, err := d.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
