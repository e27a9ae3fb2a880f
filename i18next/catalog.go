package i18next

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalog holds one Mapping per language, loaded from <Dir>/<lang>.json.
// It is the accumulator threaded through an extraction run.
type Catalog struct {
	Dir   string
	langs map[string]*Mapping
	order []string
}

// LoadCatalog reads the translation files for langs from dir. A missing file
// yields an empty mapping for that language.
func LoadCatalog(dir string, langs []string) (*Catalog, error) {
	c := &Catalog{Dir: dir, langs: make(map[string]*Mapping)}
	for _, lang := range langs {
		if _, ok := c.langs[lang]; ok {
			continue
		}
		m, err := ParseFile(c.Path(lang))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			m = New()
		}
		c.langs[lang] = m
		c.order = append(c.order, lang)
	}
	return c, nil
}

// DetectLanguages lists language codes that have a .json file in dir.
func DetectLanguages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		langs = append(langs, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(langs)
	return langs
}

// Path returns the translation file path for lang.
func (c *Catalog) Path(lang string) string {
	return filepath.Join(c.Dir, lang+".json")
}

// Languages returns the loaded languages in load order.
func (c *Catalog) Languages() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Lang returns the mapping for lang, adding an empty one if absent.
func (c *Catalog) Lang(lang string) *Mapping {
	m, ok := c.langs[lang]
	if !ok {
		m = New()
		c.langs[lang] = m
		c.order = append(c.order, lang)
	}
	return m
}

// Record stores text under key for lang. It reports the previous value when
// the key already held a different one.
func (c *Catalog) Record(lang, key, text string) (prev string, collided bool) {
	prev, existed := c.Lang(lang).Set(key, text)
	return prev, existed && prev != text
}

// RecordIfAbsent stores text under key for lang only when the key is missing.
func (c *Catalog) RecordIfAbsent(lang, key, text string) bool {
	m := c.Lang(lang)
	if _, ok := m.Get(key); ok {
		return false
	}
	m.Set(key, text)
	return true
}

// Save writes every loaded language back to disk.
func (c *Catalog) Save() error {
	for _, lang := range c.order {
		if err := c.SaveLang(lang); err != nil {
			return err
		}
	}
	return nil
}

// SaveLang writes a single language file.
func (c *Catalog) SaveLang(lang string) error {
	m, ok := c.langs[lang]
	if !ok {
		return fmt.Errorf("language %q not loaded", lang)
	}
	if err := m.WriteFile(c.Path(lang)); err != nil {
		return fmt.Errorf("writing %s: %w", c.Path(lang), err)
	}
	return nil
}
