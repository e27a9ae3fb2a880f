// Package rewrite replaces extracted text in page sources with t('key')
// lookups and records the extracted text into translation mappings.
package rewrite

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/apolnus/pageloc/extract"
	"github.com/apolnus/pageloc/filter"
	"github.com/apolnus/pageloc/keygen"
)

// Accumulator collects key/text pairs across pages. *i18next.Catalog
// implements it.
type Accumulator interface {
	Record(lang, key, text string) (prev string, collided bool)
	RecordIfAbsent(lang, key, text string) bool
}

// Options controls what the pipeline writes.
type Options struct {
	// SourceLang receives the extracted text.
	SourceLang string
	// PlaceholderLang receives PlaceholderPrefix+text for new keys. Empty
	// disables placeholders.
	PlaceholderLang   string
	PlaceholderPrefix string
	// TFunc is the lookup function name used in the rewritten source.
	TFunc string
	// InjectHook adds the useTranslation import and hook call.
	InjectHook bool
	// InjectSEOHead adds <SEOHead pageKey="..."/> as the first child of the
	// returned root element.
	InjectSEOHead bool
}

// Pipeline is one configured scan/filter/key/rewrite pass.
type Pipeline struct {
	Scanner      *extract.Scanner
	Rules        *filter.Rules
	Declarations []string
	Keys         *keygen.Generator
	Opts         Options
	Log          logrus.FieldLogger
}

// Decision is the outcome for one candidate span.
type Decision struct {
	Span     extract.Span  `json:"span"`
	Accepted bool          `json:"accepted"`
	Key      string        `json:"key,omitempty"`
	Reason   filter.Reason `json:"reason,omitempty"`
}

// Analysis is the read-only result of scanning a page.
type Analysis struct {
	Decisions []Decision         `json:"decisions"`
	Flags     []filter.Ambiguity `json:"flags,omitempty"`
}

// Accepted returns the accepted decisions in source order.
func (a *Analysis) Accepted() []Decision {
	var out []Decision
	for _, d := range a.Decisions {
		if d.Accepted {
			out = append(out, d)
		}
	}
	return out
}

// Collision records a key that already held different text.
type Collision struct {
	Key      string
	Previous string
	Text     string
	Line     int
}

// Result describes a rewritten page.
type Result struct {
	Text            string
	Analysis        *Analysis
	Replaced        int
	Collisions      []Collision
	HookInjected    bool
	SEOHeadInjected bool
}

func (p *Pipeline) log() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

func (p *Pipeline) tfunc() string {
	if p.Opts.TFunc == "" {
		return "t"
	}
	return p.Opts.TFunc
}

// Analyze scans text line by line and decides every candidate span without
// changing anything.
func (p *Pipeline) Analyze(text, namespace string) (*Analysis, error) {
	tracker, err := filter.NewTracker(p.Declarations)
	if err != nil {
		return nil, err
	}

	a := &Analysis{}
	offset := 0
	for i, line := range strings.Split(text, "\n") {
		suppressed := tracker.Feed(line)
		for _, sp := range p.Scanner.ScanLine(line, i+1, offset) {
			d := Decision{Span: sp}
			if suppressed {
				d.Reason = filter.ReasonDataBlock
			} else if reason, reject := p.Rules.Reject(sp.Text, sp.Context, line); reject {
				d.Reason = reason
			} else {
				d.Accepted = true
				d.Key = p.Keys.Key(namespace, sp.Text)
			}
			a.Decisions = append(a.Decisions, d)
		}
		offset += len(line) + 1
	}
	a.Flags = tracker.Finish()
	return a, nil
}

// Rewrite replaces every accepted span of text and records the extracted
// text into acc. Bytes outside the replaced spans are kept as they are,
// except for the optional hook and SEOHead insertions.
func (p *Pipeline) Rewrite(text, namespace string, acc Accumulator) (*Result, error) {
	a, err := p.Analyze(text, namespace)
	if err != nil {
		return nil, err
	}
	log := p.log().WithField("page", namespace)
	for _, f := range a.Flags {
		log.Warnf("ambiguous data block, %s", f)
	}

	res := &Result{Analysis: a}
	var b strings.Builder
	last := 0
	for _, d := range a.Accepted() {
		sp := d.Span
		b.WriteString(text[last:sp.Start])
		b.WriteString(p.reference(sp, d.Key))
		last = sp.End
		res.Replaced++

		if prev, collided := acc.Record(p.Opts.SourceLang, d.Key, sp.Text); collided {
			res.Collisions = append(res.Collisions, Collision{Key: d.Key, Previous: prev, Text: sp.Text, Line: sp.Line})
			log.WithField("key", d.Key).Warnf("key collision on line %d: %q replaces %q", sp.Line, sp.Text, prev)
		}
		if p.Opts.PlaceholderLang != "" && p.Opts.PlaceholderLang != p.Opts.SourceLang {
			acc.RecordIfAbsent(p.Opts.PlaceholderLang, d.Key, p.Opts.PlaceholderPrefix+sp.Text)
		}
	}
	b.WriteString(text[last:])
	res.Text = b.String()

	if res.Replaced == 0 {
		return res, nil
	}
	if p.Opts.InjectHook {
		res.Text, res.HookInjected = injectHook(res.Text, p.tfunc())
		if !res.HookInjected && !strings.Contains(res.Text, "useTranslation") {
			log.Warn("no component function found, useTranslation hook not added")
		}
	}
	if p.Opts.InjectSEOHead {
		res.Text, res.SEOHeadInjected = injectSEOHead(res.Text, namespace)
		if !res.SEOHeadInjected && !strings.Contains(res.Text, "<SEOHead") {
			log.Warn("no returned root element found, SEOHead not added")
		}
	}
	return res, nil
}

var keyQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func (p *Pipeline) reference(sp extract.Span, key string) string {
	call := "{" + p.tfunc() + "('" + keyQuoter.Replace(key) + "')}"
	if sp.Kind == extract.KindAttr {
		return sp.Attr + "=" + call
	}
	return call
}
