// pageloc: extracts embedded UI text from React pages into i18next JSON
// files and back-fills translations through a chat-completion model.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/apolnus/pageloc/config"
	"github.com/apolnus/pageloc/extract"
	"github.com/apolnus/pageloc/filter"
	"github.com/apolnus/pageloc/i18n"
	"github.com/apolnus/pageloc/i18next"
	"github.com/apolnus/pageloc/keygen"
	"github.com/apolnus/pageloc/langmeta"
	"github.com/apolnus/pageloc/lockfile"
	"github.com/apolnus/pageloc/rewrite"
	"github.com/apolnus/pageloc/settings"
	"github.com/apolnus/pageloc/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var log = logrus.New()

var (
	infoTag    = color.New(color.FgBlue).Sprint("[INFO]")
	okTag      = color.New(color.FgGreen).Sprint("[OK]")
	warnTag    = color.New(color.FgYellow, color.Bold).Sprint("[WARN]")
	errorTag   = color.New(color.FgRed).Sprint("[ERROR]")
	headerText = color.New(color.FgBlue).SprintFunc()
)

func setupLogging(out io.Writer, verbose bool) {
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

func logInfo(format string, args ...any) {
	log.Infof(infoTag+" "+format, args...)
}

func logSuccess(format string, args ...any) {
	log.Infof(okTag+" "+format, args...)
}

func logWarning(format string, args ...any) {
	log.Warnf(warnTag+" "+format, args...)
}

func logError(format string, args ...any) {
	log.Errorf(errorTag+" "+format, args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
	verbose    bool
	uiLang     string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pageloc",
		Short: "Extract page text into i18next files and back-fill translations",
		Long: `pageloc: i18n maintenance for React page sources.

Finds Chinese UI text embedded in page sources, moves it into i18next JSON
translation files, rewrites the pages to call t('<key>') and fills in the
missing translations of the other languages through an OpenAI-compatible
chat-completion endpoint.

Commands:
  extract     Rewrite pages and record their text in the source language file
  scan        Report candidate text and filter decisions without writing
  translate   Back-fill missing translations using the remote model
  status      Show per-language translation coverage
  check       List page lines that still contain untranslated text

Configuration is read from .pageloc.yaml in the project root when present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(os.Stderr, verbose)
			initMessages()
		},
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <root>/"+config.FileName+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")
	root.PersistentFlags().StringVar(&uiLang, "ui-lang", "", "Language of pageloc's own messages (default: ui_lang from config, then LANGUAGE/LC_ALL/LANG)")

	root.AddCommand(
		newExtractCmd(),
		newScanCmd(),
		newTranslateCmd(),
		newStatusCmd(),
		newCheckCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(rootDir, configPath)
}

// initMessages picks the message language from --ui-lang, then ui_lang in
// the config. A broken config is left for the command itself to report.
func initMessages() string {
	var configured string
	if cfg, err := loadConfig(); err == nil {
		configured = cfg.UILang
	}
	lang := i18n.Init(uiLang, configured)
	log.Debugf("message language: %s", lang)
	return lang
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pageloc version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Pipeline wiring
// ---------------------------------------------------------------------------

// newPipeline builds the scan/filter/key/rewrite pipeline for cfg. Keys are
// reused from source, which also receives the text extracted in this run.
func newPipeline(cfg *config.Config, source *i18next.Mapping) (*rewrite.Pipeline, error) {
	rules, err := filter.NewRules(cfg.Exclude.ClassAttrs, cfg.Exclude.UtilityClasses, cfg.Exclude.LinePatterns)
	if err != nil {
		return nil, err
	}
	// Fail on a bad declaration pattern before any page is touched.
	if _, err := filter.NewTracker(cfg.Exclude.DataDeclarations); err != nil {
		return nil, err
	}
	strategy, err := keygen.ParseStrategy(cfg.Keys.Strategy)
	if err != nil {
		return nil, err
	}

	return &rewrite.Pipeline{
		Scanner:      extract.NewScanner(cfg.Attributes),
		Rules:        rules,
		Declarations: cfg.Exclude.DataDeclarations,
		Keys: keygen.New(keygen.Options{
			Strategy:   strategy,
			SlugLength: cfg.Keys.SlugLength,
			Reuse:      cfg.Keys.ReuseExisting,
		}, source),
		Opts: rewrite.Options{
			SourceLang:        cfg.SourceLang,
			PlaceholderLang:   cfg.PlaceholderLang,
			PlaceholderPrefix: cfg.PlaceholderPrefix,
			TFunc:             cfg.Keys.Func,
			InjectHook:        cfg.Inject.Hook,
			InjectSEOHead:     cfg.Inject.SEOHead,
		},
		Log: log,
	}, nil
}

// selectPages keeps the pages named by filters (namespace or file stem,
// case-insensitive). No filters keeps everything.
func selectPages(pages []config.ResolvedPage, filters []string) []config.ResolvedPage {
	if len(filters) == 0 {
		return pages
	}
	want := lo.Map(filters, func(f string, _ int) string {
		return strings.ToLower(strings.TrimSuffix(f, filepath.Ext(f)))
	})
	return lo.Filter(pages, func(p config.ResolvedPage, _ int) bool {
		stem := strings.TrimSuffix(filepath.Base(p.Path), filepath.Ext(p.Path))
		return lo.Contains(want, strings.ToLower(p.Namespace)) || lo.Contains(want, strings.ToLower(stem))
	})
}

// inMapping reports whether a key still exists in m.
func inMapping(m *i18next.Mapping) func(key string) bool {
	return func(key string) bool {
		_, ok := m.Get(key)
		return ok
	}
}

func catalogLanguages(cfg *config.Config) []string {
	langs := []string{cfg.SourceLang}
	if cfg.PlaceholderLang != "" {
		langs = append(langs, cfg.PlaceholderLang)
	}
	return langs
}

// ---------------------------------------------------------------------------
// extract (rewrite pages, record text)
// ---------------------------------------------------------------------------

type extractArgs struct {
	pages    []string
	dryRun   bool
	noBackup bool
}

func newExtractCmd() *cobra.Command {
	var a extractArgs

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Rewrite pages and record their text in the source language file",
		Long: `Scan every configured page for embedded text, replace it with t('<key>')
references and record the text under its key in the source language file.
New keys also get a placeholder entry in the placeholder language.

A missing page is skipped with a warning. A page that fails is reported and
the run continues; the command exits non-zero when any page failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(a)
		},
	}

	cmd.Flags().StringSliceVar(&a.pages, "page", nil, "Only process these pages (namespace or file name, repeatable)")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Show what would change without writing files")
	cmd.Flags().BoolVar(&a.noBackup, "no-backup", false, "Do not write .backup copies of rewritten pages")

	return cmd
}

type extractSummary struct {
	succeeded, failed, skipped int
	replaced, collisions       int
}

func runExtract(a extractArgs) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pages, err := cfg.ResolvePages(rootDir)
	if err != nil {
		return err
	}
	pages = selectPages(pages, a.pages)
	if len(pages) == 0 {
		logWarning("%s", i18n.T("No pages to process"))
		return nil
	}

	localesDir := cfg.AbsLocalesDir(rootDir)
	cat, err := i18next.LoadCatalog(localesDir, catalogLanguages(cfg))
	if err != nil {
		return err
	}
	lock, err := lockfile.Load(rootDir)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, cat.Lang(cfg.SourceLang))
	if err != nil {
		return err
	}

	wo := rewrite.WriteOptions{Backup: cfg.Backup && !a.noBackup, DryRun: a.dryRun}
	sum := extractPages(pipeline, pages, cat, lock, wo)

	fmt.Fprintln(os.Stderr)
	if !a.dryRun {
		// Only a full run sees every key, so only a full run may forget one.
		if len(a.pages) == 0 && sum.failed == 0 {
			source := cat.Lang(cfg.SourceLang)
			if n := lock.Prune(lockfile.SourceTarget, inMapping(source)); n > 0 {
				log.Debugf("dropped %d stale source checksums", n)
			}
		}
		if err := cat.Save(); err != nil {
			return err
		}
		if err := lock.Save(); err != nil {
			return err
		}
		logSuccess(i18n.T("Translation files saved to %s"), localesDir)
	} else {
		logInfo("%s", i18n.T("Dry run, no files were written"))
	}

	logInfo(i18n.N("%d string replaced", "%d strings replaced", sum.replaced), sum.replaced)
	if sum.collisions > 0 {
		logWarning(i18n.N("%d key collision", "%d key collisions", sum.collisions), sum.collisions)
	}
	logInfo(i18n.T("Done: %d pages succeeded, %d failed, %d skipped"), sum.succeeded, sum.failed, sum.skipped)

	if sum.failed > 0 {
		return fmt.Errorf("%d of %d pages failed", sum.failed, len(pages))
	}
	return nil
}

// extractPages runs the pipeline over pages, recording into cat. Source
// checksums go into lock so a key that changes meaning between runs is
// reported.
func extractPages(p *rewrite.Pipeline, pages []config.ResolvedPage, cat *i18next.Catalog, lock *lockfile.LockFile, wo rewrite.WriteOptions) extractSummary {
	var sum extractSummary

	for _, page := range pages {
		res, err := p.ProcessPage(rewrite.Page{Path: page.Path, Namespace: page.Namespace}, cat, wo)
		if err != nil {
			if errors.Is(err, rewrite.ErrPageNotFound) {
				logWarning(i18n.T("Page not found, skipping: %s"), page.Path)
				sum.skipped++
				continue
			}
			logError(i18n.T("Failed to process %s: %v"), page.Path, err)
			sum.failed++
			continue
		}
		sum.succeeded++
		sum.replaced += res.Replaced
		sum.collisions += len(res.Collisions)

		for _, d := range res.Analysis.Accepted() {
			if lock.Known(lockfile.SourceTarget, d.Key) && lock.IsChanged(lockfile.SourceTarget, d.Key, d.Span.Text) {
				logWarning("%s: key %s held different text in an earlier run", page.Namespace, d.Key)
				sum.collisions++
			}
			lock.Update(lockfile.SourceTarget, d.Key, d.Span.Text)
		}

		if res.Replaced > 0 {
			logSuccess(i18n.T("%s: %d strings replaced"), page.Namespace, res.Replaced)
		} else {
			log.WithField("page", page.Namespace).Debug("nothing to replace")
		}
	}
	return sum
}

// ---------------------------------------------------------------------------
// scan (read-only report)
// ---------------------------------------------------------------------------

// pageReport is one page of the scan report.
type pageReport struct {
	Page      string             `json:"page"`
	Namespace string             `json:"namespace"`
	Missing   bool               `json:"missing,omitempty"`
	Accepted  int                `json:"accepted"`
	Rejected  int                `json:"rejected"`
	Decisions []rewrite.Decision `json:"decisions,omitempty"`
	Flags     []string           `json:"flags,omitempty"`
}

func newScanCmd() *cobra.Command {
	var (
		pages  []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Report candidate text and filter decisions without writing",
		Long: `Scan the configured pages and print, as JSON, every candidate text span
with the key it would get or the reason it was rejected. Nothing is written
except the report itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(pages, output)
		},
	}

	cmd.Flags().StringSliceVar(&pages, "page", nil, "Only scan these pages (namespace or file name, repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

func runScan(filters []string, output string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pages, err := cfg.ResolvePages(rootDir)
	if err != nil {
		return err
	}
	pages = selectPages(pages, filters)

	cat, err := i18next.LoadCatalog(cfg.AbsLocalesDir(rootDir), []string{cfg.SourceLang})
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, cat.Lang(cfg.SourceLang))
	if err != nil {
		return err
	}

	reports := scanPages(pipeline, pages)

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	total := lo.SumBy(reports, func(r pageReport) int { return r.Accepted })
	logInfo(i18n.T("%d candidate strings in %d pages"), total, len(reports))
	if output != "" {
		logSuccess(i18n.T("Report written to %s"), output)
	}
	return nil
}

func scanPages(p *rewrite.Pipeline, pages []config.ResolvedPage) []pageReport {
	reports := make([]pageReport, 0, len(pages))
	for _, page := range pages {
		r := pageReport{Page: page.Path, Namespace: page.Namespace}
		data, err := os.ReadFile(page.Path)
		if err != nil {
			r.Missing = true
			reports = append(reports, r)
			continue
		}
		a, err := p.Analyze(string(data), page.Namespace)
		if err != nil {
			logError(i18n.T("Failed to process %s: %v"), page.Path, err)
			continue
		}
		r.Decisions = a.Decisions
		r.Accepted = len(a.Accepted())
		r.Rejected = len(a.Decisions) - r.Accepted
		r.Flags = lo.Map(a.Flags, func(f filter.Ambiguity, _ int) string { return f.String() })
		reports = append(reports, r)
	}
	return reports
}

// ---------------------------------------------------------------------------
// translate (remote backfill)
// ---------------------------------------------------------------------------

type translateArgs struct {
	langs     []string
	changed   bool
	dryRun    bool
	batchSize int
	delay     time.Duration
	model     string
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Back-fill missing translations using the remote model",
		Long: `Send every source key that a target language lacks, or still holds as a
placeholder, to the chat-completion endpoint in batches and store the replies.

A batch that fails is logged and skipped; there are no retries. A fixed delay
separates requests. The API key is read from BUILT_IN_FORGE_API_KEY (or
VITE_APP_ID) in the environment or in <root>/.env; without one the command
stops before doing anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Flags(), a)
		},
	}

	cmd.Flags().StringSliceVarP(&a.langs, "lang", "l", nil, "Target languages (default: all configured)")
	cmd.Flags().BoolVar(&a.changed, "changed", false, "Also re-translate keys whose source text changed")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Count pending keys without calling the model")
	cmd.Flags().IntVar(&a.batchSize, "batch-size", 0, "Keys per request (default from config)")
	cmd.Flags().DurationVar(&a.delay, "delay", 0, "Pause between requests (default from config)")
	cmd.Flags().StringVar(&a.model, "model", "", "Model name (default from config)")

	return cmd
}

// applyTranslateFlags overrides cfg with the flags the user set.
func applyTranslateFlags(flags *pflag.FlagSet, cfg *config.Config, a translateArgs) {
	if flags.Changed("batch-size") && a.batchSize > 0 {
		cfg.Translate.BatchSize = a.batchSize
	}
	if flags.Changed("delay") {
		cfg.Translate.Delay = a.delay
	}
	if flags.Changed("model") && a.model != "" {
		cfg.Translate.Model = a.model
	}
}

// targetLanguages returns the canonical target codes, source excluded.
func targetLanguages(cfg *config.Config, requested []string) []string {
	langs := requested
	if len(langs) == 0 {
		langs = cfg.TargetLanguages()
	}
	langs = lo.Map(langs, func(l string, _ int) string { return langmeta.Canonicalize(l) })
	return lo.Filter(lo.Uniq(langs), func(l string, _ int) bool { return l != "" && l != cfg.SourceLang })
}

func instructionFor(cfg *config.Config, lang string) string {
	if s := cfg.Translate.Languages[lang]; s != "" {
		return s
	}
	return langmeta.Instruction(lang)
}

func runTranslate(flags *pflag.FlagSet, a translateArgs) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyTranslateFlags(flags, cfg, a)

	var api *settings.API
	if !a.dryRun {
		api, err = settings.LoadAPI(rootDir)
		if err != nil {
			return err
		}
		log.Debugf("API key from %s: %s", api.Source, settings.MaskKey(api.Key))
	}

	langs := targetLanguages(cfg, a.langs)
	if len(langs) == 0 {
		logWarning("%s", i18n.T("No target languages configured"))
		return nil
	}

	localesDir := cfg.AbsLocalesDir(rootDir)
	cat, err := i18next.LoadCatalog(localesDir, append([]string{cfg.SourceLang}, langs...))
	if err != nil {
		return err
	}
	source := cat.Lang(cfg.SourceLang)
	if source.Len() == 0 {
		logWarning(i18n.T("Source language file %s is empty, run extract first"), cat.Path(cfg.SourceLang))
		return nil
	}

	lock, err := lockfile.Load(rootDir)
	if err != nil {
		return err
	}
	ignore, err := translate.CompileIgnore(cfg.Translate.IgnoreNamespaces)
	if err != nil {
		return err
	}

	var tr translate.Translator
	if api != nil {
		baseURL := cfg.Translate.BaseURL
		if api.BaseURL != "" {
			baseURL = api.BaseURL
		}
		client := translate.NewClient(baseURL, api.Key, cfg.Translate.Model, cfg.Translate.Proxy, cfg.Translate.Timeout)
		if cfg.Translate.Prompt != "" {
			client.Prompt = cfg.Translate.Prompt
		}
		client.SourceLang = langmeta.Resolve(cfg.SourceLang).English
		client.KeepTerms = cfg.Translate.KeepTerms
		tr = client
	}

	// Setup signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logWarning("%s", i18n.T("Interrupted, saving progress..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	var failedBatches int
	for _, lang := range langs {
		meta := langmeta.Resolve(lang)
		logInfo("%s %s (%s)", meta.Flag, lang, meta.Name)

		b := &translate.Backfiller{
			Translator:        tr,
			BatchSize:         cfg.Translate.BatchSize,
			Delay:             cfg.Translate.Delay,
			Ignore:            ignore,
			PlaceholderPrefix: cfg.PlaceholderPrefix,
			Lock:              lock,
			Changed:           a.changed,
			DryRun:            a.dryRun,
			Log:               log,
		}
		sum, runErr := b.Run(ctx, source, cat.Lang(lang), lang, instructionFor(cfg, lang))
		failedBatches += sum.FailedBatches

		if !a.dryRun {
			lock.Prune(lang, inMapping(source))
			if sum.Translated > 0 {
				if err := cat.SaveLang(lang); err != nil {
					return err
				}
			}
		}
		if a.dryRun {
			logInfo(i18n.N("%s: %d key to translate", "%s: %d keys to translate", sum.Pending), lang, sum.Pending)
		} else {
			logSuccess(i18n.T("%s: %d of %d keys translated, %d batches failed"), lang, sum.Translated, sum.Pending, sum.FailedBatches)
		}

		if runErr != nil {
			if err := lock.Save(); err != nil {
				logError("%v", err)
			}
			return runErr
		}
	}

	if a.dryRun {
		logInfo("%s", i18n.T("Dry run, no files were written"))
		return nil
	}
	if err := lock.Save(); err != nil {
		return err
	}
	if failedBatches > 0 {
		logWarning("%s", i18n.T("Some batches failed; run translate again to retry the remaining keys"))
	}
	return nil
}

// ---------------------------------------------------------------------------
// status (read-only: translation coverage)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-language translation coverage",
		Long: `Show the configured directories and, for every language file found in the
locales directory, how many source keys it translates. Placeholder values
count as untranslated. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(os.Stderr)
		},
	}

	return cmd
}

// langStat is one row of the status table.
type langStat struct {
	lang                            string
	total, translated, untranslated int
}

func (s langStat) percent() int {
	if s.total == 0 {
		return 0
	}
	return s.translated * 100 / s.total
}

func runStatus(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	absRoot, _ := filepath.Abs(rootDir)
	localesDir := cfg.AbsLocalesDir(rootDir)

	fmt.Fprintf(w, "\n%s\n", headerText(i18n.T("Project")))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  Root:       %s\n", absRoot)
	fmt.Fprintf(w, "  Pages:      %s\n", cfg.AbsPagesDir(rootDir))
	fmt.Fprintf(w, "  Locales:    %s\n", localesDir)
	fmt.Fprintf(w, "  Source:     %s\n", cfg.SourceLang)
	if lf, err := lockfile.Load(rootDir); err == nil {
		fmt.Fprintf(w, "  Lock:       %s\n", lf.Summary())
	}
	fmt.Fprintln(w)

	langs := lo.Uniq(append([]string{cfg.SourceLang}, i18next.DetectLanguages(localesDir)...))
	cat, err := i18next.LoadCatalog(localesDir, langs)
	if err != nil {
		return err
	}
	source := cat.Lang(cfg.SourceLang)
	if source.Len() == 0 {
		logInfo(i18n.T("No source keys found in %s"), cat.Path(cfg.SourceLang))
		return nil
	}

	var stats []langStat
	for _, lang := range langs {
		if lang == cfg.SourceLang {
			continue
		}
		total, translated, untranslated := cat.Lang(lang).Stats(source, cfg.PlaceholderPrefix)
		stats = append(stats, langStat{lang: lang, total: total, translated: translated, untranslated: untranslated})
	}
	showStatsTable(w, stats)
	fmt.Fprintf(w, i18n.T("Source keys (%s): %d")+"\n\n", cfg.SourceLang, source.Len())
	return nil
}

func showStatsTable(w io.Writer, stats []langStat) {
	fmt.Fprintf(w, "%s\n", headerText(i18n.T("Translation Statistics")))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "\n%-8s %-12s %-10s %-24s %s\n", i18n.T("Lang"), i18n.T("Translated"), i18n.T("Untrans."), i18n.T("Percent"), "")
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for _, s := range stats {
		meta := langmeta.Resolve(s.lang)
		fmt.Fprintf(w, "%-8s %-12d %-10d %s  %s %s\n", s.lang, s.translated, s.untranslated, progressBar(s.percent(), 16), meta.Flag, meta.Name)
	}
	fmt.Fprintln(w, strings.Repeat("─", 60))
}

// progressBar renders a coloured bar and the percentage, e.g. "████░░░░  50%".
func progressBar(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100

	c := color.New(color.FgRed)
	switch {
	case percent >= 100:
		c = color.New(color.FgGreen)
	case percent >= 50:
		c = color.New(color.FgYellow)
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return c.Sprint(bar) + fmt.Sprintf(" %3d%%", percent)
}

// ---------------------------------------------------------------------------
// check (remaining untranslated text)
// ---------------------------------------------------------------------------

// leftover is a page line that still holds CJK text.
type leftover struct {
	path string
	line int
	text string
}

func newCheckCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "List page lines that still contain untranslated text",
		Long: `List every line of the page sources that still contains Chinese, Japanese
or Korean text outside comments. Locale files are never checked. With
--strict any finding makes the command exit non-zero, for use in CI.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(os.Stdout, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when untranslated text remains")

	return cmd
}

func runCheck(w io.Writer, strict bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := extract.FindPages([]string{cfg.AbsPagesDir(rootDir)})
	if err != nil {
		return err
	}
	localesDir := cfg.AbsLocalesDir(rootDir)
	files = lo.Reject(files, func(f string, _ int) bool {
		rel, err := filepath.Rel(localesDir, f)
		return err == nil && !strings.HasPrefix(rel, "..")
	})

	var found []leftover
	for _, f := range files {
		lines, err := findLeftovers(f, cfg.Keys.Func)
		if err != nil {
			logWarning("%v", err)
			continue
		}
		found = append(found, lines...)
	}

	for _, l := range found {
		rel, err := filepath.Rel(rootDir, l.path)
		if err != nil {
			rel = l.path
		}
		fmt.Fprintf(w, "%s:%d: %s\n", rel, l.line, l.text)
	}

	if len(found) == 0 {
		logSuccess("%s", i18n.T("No untranslated text found"))
		return nil
	}
	logWarning(i18n.N("%d line still contains untranslated text", "%d lines still contain untranslated text", len(found)), len(found))
	if strict {
		return fmt.Errorf("untranslated text remains in %d lines", len(found))
	}
	return nil
}

// findLeftovers returns the lines of path with CJK text, skipping line and
// block comments. Keys inside tfunc('...') calls do not count.
func findLeftovers(path, tfunc string) ([]leftover, error) {
	calls := regexp.MustCompile(`\b` + regexp.QuoteMeta(tfunc) + `\(\s*(?:'[^']*'|"[^"]*")`)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out []leftover
	inBlock := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if inBlock {
			if i := strings.Index(line, "*/"); i >= 0 {
				inBlock = false
				line = strings.TrimSpace(line[i+2:])
			} else {
				continue
			}
		}
		if strings.HasPrefix(line, "/*") || strings.HasPrefix(line, "{/*") {
			i := strings.Index(line, "*/")
			if i < 0 {
				inBlock = true
				continue
			}
			line = strings.TrimSpace(line[i+2:])
		}
		if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "*") {
			continue
		}
		if extract.ContainsCJK(calls.ReplaceAllString(line, "")) {
			out = append(out, leftover{path: path, line: n, text: line})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}
