package rewrite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrPageNotFound is returned by ProcessPage for a missing page file.
var ErrPageNotFound = errors.New("page not found")

// BackupSuffix is appended to a page path for its backup copy.
const BackupSuffix = ".backup"

// Page is one source file and the namespace its keys live under.
type Page struct {
	Path      string
	Namespace string
}

// WriteOptions controls how ProcessPage touches the disk.
type WriteOptions struct {
	// Backup writes the original content to Path+BackupSuffix first.
	Backup bool
	// DryRun computes the result without writing anything.
	DryRun bool
}

// ProcessPage reads a page, rewrites it and writes it back when something
// changed. Text is still recorded into acc in dry-run mode.
func (p *Pipeline) ProcessPage(page Page, acc Accumulator, wo WriteOptions) (*Result, error) {
	info, err := os.Stat(page.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", page.Path, ErrPageNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", page.Path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", page.Path)
	}

	data, err := os.ReadFile(page.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", page.Path, err)
	}
	original := string(data)

	res, err := p.Rewrite(original, page.Namespace, acc)
	if err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", page.Path, err)
	}
	if res.Text == original || wo.DryRun {
		return res, nil
	}

	mode := info.Mode().Perm()
	if wo.Backup {
		if err := os.WriteFile(page.Path+BackupSuffix, data, mode); err != nil {
			return nil, fmt.Errorf("writing backup of %s: %w", page.Path, err)
		}
	}
	if err := os.WriteFile(page.Path, []byte(res.Text), mode); err != nil {
		return nil, fmt.Errorf("writing %s: %w", page.Path, err)
	}
	return res, nil
}
