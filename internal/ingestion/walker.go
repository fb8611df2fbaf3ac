package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/aerial-view/internal/config"
)

// SourceEntry is an analysis input found on disk.
type SourceEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the path relative to the root.
	RelPath string

	// SHA256 is the hash of the file content.
	SHA256 string
}

// Files besides *.go whose changes affect an analysis.
var inputFiles = map[string]bool{
	"go.mod":        true,
	"go.sum":        true,
	"go.work":       true,
	config.FileName: true,
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	"vendor/",
	"testdata/",
	"node_modules/",
	config.DefaultOutputDir + "/",
	".idea/",
	".vscode/",
	".DS_Store",
}

// WalkSources walks root and returns every analysis input not ignored by
// the defaults or the root .gitignore, in lexical order.
func WalkSources(root string) ([]SourceEntry, error) {
	matcher, err := NewIgnoreMatcher(root)
	if err != nil {
		return nil, err
	}

	var entries []SourceEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isInputFile(d.Name()) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		hash := sha256.Sum256(content)

		entries = append(entries, SourceEntry{
			Path:    path,
			RelPath: relPath,
			SHA256:  hex.EncodeToString(hash[:]),
		})
		return nil
	})

	return entries, err
}

// Fingerprint summarizes entries into one hash that changes whenever a file
// is added, removed, renamed or edited.
func Fingerprint(entries []SourceEntry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.RelPath))
		h.Write([]byte{0})
		h.Write([]byte(e.SHA256))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewIgnoreMatcher combines the default ignore patterns with root/.gitignore.
func NewIgnoreMatcher(root string) (gitignore.Matcher, error) {
	patterns, err := loadGitignore(root)
	if err != nil {
		return nil, err
	}

	all := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		all = append(all, gitignore.ParsePattern(p, nil))
	}
	all = append(all, patterns...)
	return gitignore.NewMatcher(all), nil
}

// loadGitignore loads .gitignore patterns from the root directory.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// isInputFile checks whether a file name is an analysis input.
func isInputFile(name string) bool {
	return strings.HasSuffix(name, ".go") || inputFiles[name]
}

// shouldSkipDir checks if a directory should be skipped.
func shouldSkipDir(name, path, root string, matcher gitignore.Matcher) bool {
	if name == ".git" {
		return true
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matcher.Match(splitPath(relPath), true)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
