// Package config loads the .pageloc.yaml project configuration.
//
// Every field has a built-in default, so a project without .pageloc.yaml
// works out of the box. When the file exists it is decoded on top of the
// defaults: fields it names replace the default, fields it omits keep it.
// An explicitly empty list (for example `pages: []`) is honoured as empty,
// and a `translate.languages` map replaces the default targets outright.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/apolnus/pageloc/extract"
	"github.com/apolnus/pageloc/filter"
	"github.com/apolnus/pageloc/keygen"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Config is the top-level .pageloc.yaml structure.
type Config struct {
	// PagesDir holds the page sources, relative to the project root.
	PagesDir string `yaml:"pages_dir"`
	// LocalesDir holds one <lang>.json per language.
	LocalesDir string `yaml:"locales_dir"`

	SourceLang string `yaml:"source_lang"`
	// PlaceholderLang receives PlaceholderPrefix+text for newly extracted
	// keys it does not have yet. Empty disables placeholders.
	PlaceholderLang   string `yaml:"placeholder_lang"`
	PlaceholderPrefix string `yaml:"placeholder_prefix"`

	// Pages lists the files to process. Empty means every page under PagesDir.
	Pages []Page `yaml:"pages"`
	// Attributes are the JSX attributes whose values are extracted.
	Attributes []string `yaml:"attributes"`

	Keys      Keys      `yaml:"keys"`
	Exclude   Exclude   `yaml:"exclude"`
	Backup    bool      `yaml:"backup"`
	Inject    Inject    `yaml:"inject"`
	Translate Translate `yaml:"translate"`

	// UILang selects the language of pageloc's own messages. Empty follows
	// the environment.
	UILang string `yaml:"ui_lang,omitempty"`
}

// Page is one configured page file.
type Page struct {
	// File is relative to PagesDir. A missing extension means .tsx.
	File string `yaml:"file"`
	// Namespace defaults to the file stem with a lower-cased first letter.
	Namespace string `yaml:"namespace,omitempty"`
}

// Keys configures key generation.
type Keys struct {
	Strategy      string `yaml:"strategy"`
	ReuseExisting bool   `yaml:"reuse_existing"`
	SlugLength    int    `yaml:"slug_length"`
	// Func is the translation function name used in references.
	Func string `yaml:"func"`
}

// Exclude configures the exclusion filter.
type Exclude struct {
	ClassAttrs       []string `yaml:"class_attrs"`
	UtilityClasses   []string `yaml:"utility_classes"`
	LinePatterns     []string `yaml:"line_patterns"`
	DataDeclarations []string `yaml:"data_declarations"`
}

// Inject configures boilerplate added to rewritten pages.
type Inject struct {
	Hook    bool `yaml:"hook"`
	SEOHead bool `yaml:"seo_head"`
}

// Translate configures the remote translation backfill.
type Translate struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	BatchSize int           `yaml:"batch_size"`
	Delay     time.Duration `yaml:"delay"`
	Timeout   time.Duration `yaml:"timeout"`
	// Prompt overrides the system prompt template.
	Prompt string `yaml:"prompt,omitempty"`
	// Proxy is an HTTP proxy URL; empty uses the environment.
	Proxy            string   `yaml:"proxy,omitempty"`
	IgnoreNamespaces []string `yaml:"ignore_namespaces"`
	// KeepTerms are brand names the model must leave untranslated.
	KeepTerms []string `yaml:"keep_terms,omitempty"`
	// Languages maps a target language code to its model instruction.
	// An empty instruction falls back to the built-in one for that language.
	// Without a languages entry the defaults apply, minus the source language.
	Languages Languages `yaml:"languages"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// FileName is the default config file name.
const FileName = ".pageloc.yaml"

// DefaultPages are the pages processed when no configuration names any.
var DefaultPages = []Page{
	{File: "WhereToBuy.tsx", Namespace: "whereToBuy"},
	{File: "ServiceCenters.tsx", Namespace: "serviceCenters"},
	{File: "About.tsx", Namespace: "about"},
	{File: "FAQ.tsx", Namespace: "faq"},
	{File: "Profile.tsx", Namespace: "profile"},
	{File: "WarrantyRegistration.tsx", Namespace: "warrantyRegistration"},
	{File: "SupportTicket.tsx", Namespace: "supportTicket"},
	{File: "Tickets.tsx", Namespace: "tickets"},
	{File: "Support.tsx", Namespace: "support"},
	{File: "PartnerProgram.tsx", Namespace: "partnerProgram"},
	{File: "Careers.tsx", Namespace: "careers"},
	{File: "Privacy.tsx", Namespace: "privacy"},
	{File: "Terms.tsx", Namespace: "terms"},
	{File: "NotFound.tsx", Namespace: "notFound"},
}

// Languages maps target language codes to model instructions.
type Languages map[string]string

func (l Languages) without(lang string) Languages {
	out := make(Languages, len(l))
	for k, v := range l {
		if k != lang {
			out[k] = v
		}
	}
	return out
}

// DefaultLanguages are the backfill targets and their model instructions.
var DefaultLanguages = Languages{
	"en":    "English (Natural, Professional)",
	"zh-CN": "Simplified Chinese (Mainland China usage, e.g., 軟體->软件, 透過->通过)",
	"ja":    "Japanese (Polite/Keigo, Premium home appliance tone)",
	"ko":    "Korean (Formal polite '합니다' style)",
	"de":    "German (Formal, Professional)",
	"fr":    "French (Elegant, Formal)",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PagesDir:          "client/src/pages",
		LocalesDir:        "client/src/i18n/locales",
		SourceLang:        "zh-TW",
		PlaceholderLang:   "en",
		PlaceholderPrefix: "[EN] ",
		Pages:             append([]Page(nil), DefaultPages...),
		Attributes:        append([]string(nil), extract.DefaultAttributes...),
		Keys: Keys{
			Strategy:      string(keygen.StrategySlug),
			ReuseExisting: true,
			SlugLength:    30,
			Func:          "t",
		},
		Exclude: Exclude{
			ClassAttrs:       append([]string(nil), filter.DefaultClassAttrs...),
			UtilityClasses:   append([]string(nil), filter.DefaultUtilityClasses...),
			LinePatterns:     append([]string(nil), filter.DefaultLinePatterns...),
			DataDeclarations: append([]string(nil), filter.DefaultDataDeclarations...),
		},
		Backup: true,
		Inject: Inject{Hook: true},
		Translate: Translate{
			BaseURL:          "https://forge.manus.im",
			Model:            "gemini-2.5-flash",
			BatchSize:        15,
			Delay:            time.Second,
			Timeout:          120 * time.Second,
			IgnoreNamespaces: []string{"admin*"},
			Languages:        DefaultLanguages.without(""),
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the configuration for the project at rootDir. When path is
// empty, rootDir/.pageloc.yaml is used if it exists and the defaults
// otherwise. An explicit path must exist.
func Load(rootDir, path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(rootDir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var named map[string]yaml.Node
	if err := yaml.Unmarshal(data, &named); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	// Maps would merge into the defaults, so start from none.
	cfg.Translate.Languages = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Translate.Languages == nil {
		cfg.Translate.Languages = DefaultLanguages.without(cfg.SourceLang)
	}
	if _, ok := named["placeholder_lang"]; !ok && cfg.PlaceholderLang == cfg.SourceLang {
		// The default placeholder language is the new source language.
		cfg.PlaceholderLang = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values. Errors name the offending field.
func (c *Config) Validate() error {
	if c.PagesDir == "" {
		return fmt.Errorf("pages_dir must not be empty")
	}
	if c.LocalesDir == "" {
		return fmt.Errorf("locales_dir must not be empty")
	}
	if c.SourceLang == "" {
		return fmt.Errorf("source_lang must not be empty")
	}
	if c.PlaceholderLang != "" && c.PlaceholderLang == c.SourceLang {
		return fmt.Errorf("placeholder_lang must differ from source_lang")
	}
	for i, p := range c.Pages {
		if p.File == "" {
			return fmt.Errorf("pages[%d]: file must not be empty", i)
		}
	}
	if _, err := keygen.ParseStrategy(c.Keys.Strategy); err != nil {
		return fmt.Errorf("keys.strategy: %w", err)
	}
	if c.Keys.SlugLength <= 0 {
		return fmt.Errorf("keys.slug_length must be positive, got %d", c.Keys.SlugLength)
	}
	if c.Keys.Func == "" {
		return fmt.Errorf("keys.func must not be empty")
	}
	if err := compileAll("exclude.line_patterns", c.Exclude.LinePatterns); err != nil {
		return err
	}
	if err := compileAll("exclude.data_declarations", c.Exclude.DataDeclarations); err != nil {
		return err
	}
	if c.Translate.BatchSize <= 0 {
		return fmt.Errorf("translate.batch_size must be positive, got %d", c.Translate.BatchSize)
	}
	if c.Translate.Delay < 0 {
		return fmt.Errorf("translate.delay must not be negative")
	}
	for i, p := range c.Translate.IgnoreNamespaces {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("translate.ignore_namespaces[%d]: %w", i, err)
		}
	}
	if _, ok := c.Translate.Languages[c.SourceLang]; ok {
		return fmt.Errorf("translate.languages must not contain source_lang %q", c.SourceLang)
	}
	return nil
}

func compileAll(field string, patterns []string) error {
	for i, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%s[%d]: %w", field, i, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolving
// ---------------------------------------------------------------------------

// ResolvedPage is a page with an absolute path and its namespace.
type ResolvedPage struct {
	Path      string
	Namespace string
}

// AbsPagesDir returns the absolute pages directory.
func (c *Config) AbsPagesDir(rootDir string) string {
	return absUnder(rootDir, c.PagesDir)
}

// AbsLocalesDir returns the absolute locales directory.
func (c *Config) AbsLocalesDir(rootDir string) string {
	return absUnder(rootDir, c.LocalesDir)
}

func absUnder(rootDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}

// ResolvePages returns the pages to process. Configured pages are returned
// as given (they may not exist); with none configured every page file
// below PagesDir is discovered.
func (c *Config) ResolvePages(rootDir string) ([]ResolvedPage, error) {
	dir := c.AbsPagesDir(rootDir)

	if len(c.Pages) == 0 {
		files, err := extract.FindPages([]string{dir})
		if err != nil {
			return nil, fmt.Errorf("finding pages in %s: %w", dir, err)
		}
		out := make([]ResolvedPage, len(files))
		for i, f := range files {
			out[i] = ResolvedPage{Path: f, Namespace: extract.Namespace(f)}
		}
		return out, nil
	}

	out := make([]ResolvedPage, 0, len(c.Pages))
	for _, p := range c.Pages {
		file := p.File
		if filepath.Ext(file) == "" {
			file += ".tsx"
		}
		path := absUnder(dir, file)
		ns := p.Namespace
		if ns == "" {
			ns = extract.Namespace(path)
		}
		out = append(out, ResolvedPage{Path: path, Namespace: ns})
	}
	return out, nil
}

// TargetLanguages returns the configured backfill languages, sorted.
func (c *Config) TargetLanguages() []string {
	langs := make([]string, 0, len(c.Translate.Languages))
	for lang := range c.Translate.Languages {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
