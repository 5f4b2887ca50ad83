package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tshard/internal/domain"
)

// Scanner scans for test files in a directory
type Scanner struct {
	projectRoot string
	skipDirs    map[string]bool
}

// NewScanner creates a new Scanner. Discovered tests carry paths relative to
// projectRoot so identical checkouts produce identical identifiers.
func NewScanner(projectRoot string, skipDirs []string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{projectRoot: projectRoot, skipDirs: skipMap}
}

// Scan finds all test files in the given root directory. WalkDir visits
// entries in lexical order, so every process scanning the same tree sees the
// same list in the same order.
func (s *Scanner) Scan(root string) ([]domain.Test, error) {
	var tests []domain.Test

	// Clean and validate the root path
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			// Skip hidden directories (starting with .)
			if strings.HasPrefix(name, ".") && name != "." && name != ".." {
				return filepath.SkipDir
			}

			if s.skipDirs[name] {
				return filepath.SkipDir
			}

			return nil
		}

		// Check if file ends with Test.php
		if strings.HasSuffix(d.Name(), "Test.php") {
			tests = append(tests, s.newTest(path, d.Name()))
			return nil
		}

		return nil
	})

	return tests, err
}

func (s *Scanner) newTest(path, name string) domain.Test {
	rel := path
	if s.projectRoot != "" {
		if r, err := filepath.Rel(s.projectRoot, path); err == nil {
			rel = r
		}
	}
	return domain.Test{Path: path, FilePath: rel, FileName: name}
}
