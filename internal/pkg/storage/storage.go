// Package storage persists audit artifacts and the rendered summary under a
// reports directory.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/logger"
	"perfsummary/internal/pkg/models"
)

const (
	htmlExt = ".html"
	jsonExt = ".json"
)

// Reads and writes per-page artifacts: <dir>/<name>.html and <dir>/<name>.json.
type ArtifactStore struct {
	fs  afero.Fs
	dir string
}

// A persisted JSON report found in the reports directory.
type ResultFile struct {
	Name string // file name without the .json extension
	Path string
}

func NewArtifactStore(fs afero.Fs, dir string) *ArtifactStore {
	return &ArtifactStore{fs: fs, dir: dir}
}

func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Paths of the two artifacts for a page name.
func (s *ArtifactStore) PairPaths(name string) (htmlPath, jsonPath string) {
	return filepath.Join(s.dir, name+htmlExt), filepath.Join(s.dir, name+jsonExt)
}

// Writes both artifacts of a pair. Each file is staged in a temp file and
// renamed into place; when the second rename fails both paths are removed,
// so a name never ends up with only one of its two reports.
func (s *ArtifactStore) WritePair(artifacts models.Artifacts) error {
	jsonData, err := EncodeJSONReport(artifacts.JSON)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "create reports directory")
	}

	htmlPath, jsonPath := s.PairPaths(artifacts.Name)

	htmlTmp, err := s.stage(artifacts.HTML)
	if err != nil {
		return err
	}
	jsonTmp, err := s.stage(jsonData)
	if err != nil {
		s.discard(htmlTmp)
		return err
	}

	if err := s.fs.Rename(htmlTmp, htmlPath); err != nil {
		s.discard(htmlTmp)
		s.discard(jsonTmp)
		return errors.Wrapf(err, "move %s into place", htmlPath)
	}
	if err := s.fs.Rename(jsonTmp, jsonPath); err != nil {
		s.discard(jsonTmp)
		s.discard(htmlPath)
		s.discard(jsonPath)
		return errors.Wrapf(err, "move %s into place", jsonPath)
	}
	return nil
}

// Writes content to a temp file inside the reports directory and returns its path.
func (s *ArtifactStore) stage(content []byte) (string, error) {
	file, err := afero.TempFile(s.fs, s.dir, ".staging-*")
	if err != nil {
		return "", errors.Wrap(err, "create staging file")
	}
	name := file.Name()
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		s.discard(name)
		return "", errors.Wrap(err, "write staging file")
	}
	if err := file.Close(); err != nil {
		s.discard(name)
		return "", errors.Wrap(err, "close staging file")
	}
	return name, nil
}

func (s *ArtifactStore) discard(path string) {
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn("Failed to remove file", zap.String("path", path), zap.Error(err))
	}
}

// Lists the JSON reports in the directory. Order follows the directory
// listing; callers must not rely on it beyond display.
func (s *ArtifactStore) ListResults() ([]ResultFile, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "list reports directory")
	}
	var results []ResultFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), jsonExt) || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		results = append(results, ResultFile{
			Name: strings.TrimSuffix(entry.Name(), jsonExt),
			Path: filepath.Join(s.dir, entry.Name()),
		})
	}
	return results, nil
}

func (s *ArtifactStore) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// Replaces the file at path with content.
func (s *ArtifactStore) WriteFile(path string, content []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	if err := afero.WriteFile(s.fs, path, content, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// Returns the machine-readable report as bytes. Text is used as-is; any
// other value is marshalled with indentation. encoding/json emits map keys in
// sorted order, so the output is stable for equal inputs.
func EncodeJSONReport(report any) ([]byte, error) {
	switch v := report.(type) {
	case nil:
		return nil, errors.New("empty json report")
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "marshal json report")
		}
		return data, nil
	}
}
