// Package file loads raw tables from CSV and Excel files on disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/table"
)

// Extensions tried, in order, when a table name has none.
var extensions = []string{".csv", ".xlsx"}

// Source is a storage.TableSource over a directory.
//
// Load("sales") reads <dir>/sales.csv, falling back to <dir>/sales.xlsx.
// A name with an extension, or an absolute path, is used as-is.
type Source struct {
	dir   string
	sheet string
}

// NewSource creates a Source rooted at dir. sheet selects the worksheet of
// Excel files; empty means the first sheet.
func NewSource(dir, sheet string) *Source {
	return &Source{dir: dir, sheet: sheet}
}

// Compile-time interface check.
var _ storage.TableSource = (*Source)(nil)

// Load reads the named table from disk.
func (s *Source) Load(ctx context.Context, name string) (*table.Table, error) {
	if name == "" {
		return nil, storage.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return table.ReadXLSXFile(path, s.sheet)
	default:
		return table.ReadCSVFile(path)
	}
}

// Resolve returns the file path Load would read for name.
func (s *Source) Resolve(name string) (string, error) {
	base := name
	if !filepath.IsAbs(name) {
		base = filepath.Join(s.dir, name)
	}

	if filepath.Ext(name) != "" {
		if _, err := os.Stat(base); err != nil {
			return "", notFound(name, err)
		}
		return base, nil
	}

	for _, ext := range extensions {
		candidate := base + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("table %s (tried %s): %w", name, strings.Join(extensions, ", "), storage.ErrNotFound)
}

func notFound(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("table %s: %w", name, storage.ErrNotFound)
	}
	return fmt.Errorf("stat %s: %w", name, err)
}
