package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

var (
	wellKnown = filepath.Join("reports", "gatling-json", "stats.json")
	base      = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
)

// Creates reports/<dir>/gatling/js/stats.json and sets the run directory's mtime.
func addRun(t *testing.T, fs afero.Fs, dir string, modTime time.Time, withStats bool) string {
	t.Helper()
	runDir := filepath.Join("reports", dir)
	require.NoError(t, fs.MkdirAll(filepath.Join(runDir, "gatling", "js"), 0o755))
	path := filepath.Join(runDir, "gatling", "js", "stats.json")
	if withStats {
		require.NoError(t, afero.WriteFile(fs, path, []byte(`{"contents":{}}`), 0o644))
	}
	require.NoError(t, fs.Chtimes(runDir, modTime, modTime))
	return path
}

func TestWellKnownPathWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, wellKnown, []byte(`{}`), 0o644))
	addRun(t, fs, "run-newer", base.Add(time.Hour), true)

	path, found := New(fs, wellKnown, "reports").Latest()
	assert.True(t, found)
	assert.Equal(t, wellKnown, path)
}

// Validates that the most recently modified run directory is picked when the well-known path is absent.
func TestNewestRunDirectoryIsUsed(t *testing.T) {
	fs := afero.NewMemMapFs()
	addRun(t, fs, "run-a", base, true)
	newest := addRun(t, fs, "run-b", base.Add(2*time.Hour), true)
	addRun(t, fs, "run-c", base.Add(time.Hour), true)

	path, found := New(fs, wellKnown, "reports").Latest()
	assert.True(t, found)
	assert.Equal(t, newest, path)
}

func TestRunWithoutStatsIsSkipped(t *testing.T) {
	fs := afero.NewMemMapFs()
	older := addRun(t, fs, "run-old", base, true)
	addRun(t, fs, "run-new", base.Add(time.Hour), false)

	path, found := New(fs, wellKnown, "reports").Latest()
	assert.True(t, found)
	assert.Equal(t, older, path)
}

func TestOnlyRunPrefixedDirectoriesCount(t *testing.T) {
	fs := afero.NewMemMapFs()
	addRun(t, fs, "archive-1", base.Add(time.Hour), true)
	require.NoError(t, afero.WriteFile(fs, filepath.Join("reports", "run-file"), []byte("x"), 0o644))

	path, found := New(fs, wellKnown, "reports").Latest()
	assert.False(t, found)
	assert.Empty(t, path)
}

func TestMissingRootIsAbsence(t *testing.T) {
	path, found := New(afero.NewMemMapFs(), wellKnown, "reports").Latest()
	assert.False(t, found)
	assert.Empty(t, path)
}

// Fails Stat for one path, as a permission problem would.
type statFailFs struct {
	afero.Fs
	path string
}

func (f *statFailFs) Stat(name string) (os.FileInfo, error) {
	if name == f.path {
		return nil, &os.PathError{Op: "stat", Path: name, Err: errors.New("permission denied")}
	}
	return f.Fs.Stat(name)
}

// Tests that a read error is reported as no stats rather than a failure.
func TestIOErrorIsAbsence(t *testing.T) {
	fs := afero.NewMemMapFs()
	addRun(t, fs, "run-a", base, true)

	path, found := New(&statFailFs{Fs: fs, path: wellKnown}, wellKnown, "reports").Latest()
	assert.False(t, found)
	assert.Empty(t, path)
}
