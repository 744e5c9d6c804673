// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// templateExtensions are the suffixes recognized as CloudFormation
// template files during directory discovery.
var templateExtensions = []string{".yaml", ".yml", ".json"}

// FindTemplates resolves a source path into the list of template files to
// convert. A file path returns itself; a directory is searched recursively
// for every file with a recognized template extension. Results are sorted
// so discovery order is stable across runs.
func FindTemplates(sourcePath string) ([]string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source path: %w", err)
	}

	if !info.IsDir() {
		return []string{sourcePath}, nil
	}

	var files []string
	err = filepath.WalkDir(sourcePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasTemplateExtension(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func hasTemplateExtension(name string) bool {
	for _, ext := range templateExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Stem returns the file name without its directory or extension, used to
// derive output and report file names.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
