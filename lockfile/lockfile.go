// Package lockfile implements pageloc.lock, a record of MD5 checksums of the
// source text each translation was made from. It lets `translate --changed`
// pick up keys whose source text moved after they were translated, and lets
// `extract` notice a key that now stands for different text than last time.
//
// The lock file lives in the project root next to .pageloc.yaml. Checksums
// are grouped by target: a language code, or SourceTarget for extraction.
package lockfile

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the lock file name inside the project root.
	FileName = "pageloc.lock"
	// Version is the newest format this package reads and writes.
	Version = 1
	// SourceTarget holds the text each key was extracted from.
	SourceTarget = "source"
)

// LockFile is the decoded pageloc.lock. The zero Checksums map is not
// usable; build one with Load or fill Checksums before use.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"`

	mu    sync.Mutex
	path  string
	dirty bool
}

// Load reads dir/pageloc.lock. A missing file yields an empty lock that
// Save will create.
func Load(dir string) (*LockFile, error) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      filepath.Join(dir, FileName),
	}

	data, err := os.ReadFile(lf.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		lf.dirty = true
		return lf, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", lf.path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lf.path, err)
	}
	if lf.Version > Version {
		return nil, fmt.Errorf("%s: format version %d is newer than supported version %d", lf.path, lf.Version, Version)
	}
	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}
	lf.Version = Version
	return lf, nil
}

// Path returns where Save writes.
func (lf *LockFile) Path() string {
	return lf.path
}

// Save writes the lock when it changed since Load. The file is replaced
// through a temporary sibling so a crash never leaves half a lock behind.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return errors.New("lock file has no path, use Load")
	}
	if !lf.dirty {
		return nil
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", lf.path, err)
	}
	tmp := lf.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, lf.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", lf.path, err)
	}
	lf.dirty = false
	return nil
}

// Sum returns the checksum recorded for text. Surrounding whitespace and
// Unicode normalisation form do not affect it.
func Sum(text string) string {
	sum := md5.Sum([]byte(norm.NFC.String(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}

func (lf *LockFile) lookup(target, key string) (string, bool) {
	sum, ok := lf.Checksums[target][key]
	return sum, ok
}

// Known reports whether target has a checksum for key.
func (lf *LockFile) Known(target, key string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	_, ok := lf.lookup(target, key)
	return ok
}

// IsChanged reports whether text differs from what target last recorded
// for key. A key without a checksum counts as changed.
func (lf *LockFile) IsChanged(target, key, text string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sum, ok := lf.lookup(target, key)
	return !ok || sum != Sum(text)
}

// Update records text as the source of key in target.
func (lf *LockFile) Update(target, key, text string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sum := Sum(text)
	if old, ok := lf.lookup(target, key); ok && old == sum {
		return
	}
	if lf.Checksums[target] == nil {
		lf.Checksums[target] = make(map[string]string)
	}
	lf.Checksums[target][key] = sum
	lf.dirty = true
}

// Prune drops the checksums of target whose key keep rejects and returns
// how many went. An emptied target is removed.
func (lf *LockFile) Prune(target string, keep func(key string) bool) int {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sums, ok := lf.Checksums[target]
	if !ok {
		return 0
	}
	n := 0
	for key := range sums {
		if !keep(key) {
			delete(sums, key)
			n++
		}
	}
	if len(sums) == 0 {
		delete(lf.Checksums, target)
	}
	if n > 0 {
		lf.dirty = true
	}
	return n
}

// Summary describes the lock in one line, e.g.
// "2 targets, 3 keys (ja: 2, source: 1)".
func (lf *LockFile) Summary() string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if len(lf.Checksums) == 0 {
		return "empty"
	}
	targets := make([]string, 0, len(lf.Checksums))
	total := 0
	for target, sums := range lf.Checksums {
		targets = append(targets, target)
		total += len(sums)
	}
	sort.Strings(targets)

	parts := make([]string, len(targets))
	for i, target := range targets {
		parts[i] = fmt.Sprintf("%s: %d", target, len(lf.Checksums[target]))
	}
	return fmt.Sprintf("%d targets, %d keys (%s)", len(targets), total, strings.Join(parts, ", "))
}
