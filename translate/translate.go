// Package translate back-fills missing translations through a remote
// chat-completion model.
//
// For every namespace of the source mapping the Backfiller collects the keys
// the target language lacks (or still holds as a placeholder), sends them in
// fixed-size batches and applies whatever comes back. A failed batch is
// logged and skipped; there are no retries. A fixed delay separates batches.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/apolnus/pageloc/i18next"
	"github.com/apolnus/pageloc/lockfile"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// DefaultBatchSize is the number of keys sent per request.
const DefaultBatchSize = 15

// DefaultDelay is the pause between two requests.
const DefaultDelay = time.Second

// Backfiller fills one target mapping from a source mapping.
type Backfiller struct {
	Translator Translator
	// BatchSize is how many keys go into one request.
	BatchSize int
	// Delay is waited between consecutive requests.
	Delay time.Duration
	// Ignore holds namespace patterns that are never translated.
	Ignore []glob.Glob
	// PlaceholderPrefix marks values that still need a real translation.
	PlaceholderPrefix string
	// Lock, when set, records source checksums of translated keys.
	Lock *lockfile.LockFile
	// Changed also re-translates keys whose source text changed since the
	// checksum in Lock was recorded.
	Changed bool
	// DryRun counts pending keys without calling the Translator.
	DryRun bool
	Log    logrus.FieldLogger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// CompileIgnore compiles namespace glob patterns such as "admin*".
func CompileIgnore(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid namespace pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Summary reports what one Run did.
type Summary struct {
	Lang          string
	Namespaces    int
	Pending       int
	Translated    int
	Batches       int
	FailedBatches int
}

// Untranslated returns how many pending keys are still untranslated.
func (s Summary) Untranslated() int {
	return s.Pending - s.Translated
}

func (b *Backfiller) log() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}

func (b *Backfiller) batchSize() int {
	if b.BatchSize > 0 {
		return b.BatchSize
	}
	return DefaultBatchSize
}

func (b *Backfiller) ignored(ns string) bool {
	return lo.SomeBy(b.Ignore, func(g glob.Glob) bool { return g.Match(ns) })
}

// ---------------------------------------------------------------------------
// Pending keys
// ---------------------------------------------------------------------------

// pendingItem is one key to translate, relative to its namespace.
type pendingItem struct {
	rel  string
	text string
}

// pending returns the keys of namespace ns that need a translation in
// target, in source order. Keys are relative to ns.
func (b *Backfiller) pending(source, target *i18next.Mapping, lang, ns string) []pendingItem {
	var items []pendingItem
	seen := make(map[string]bool)

	if src := source.Namespace(ns); src != nil {
		src.Leaves(func(rel, text string) bool {
			full := ns + "." + rel
			cur, ok := target.Get(full)
			switch {
			case !ok:
			case b.PlaceholderPrefix != "" && strings.HasPrefix(cur, b.PlaceholderPrefix):
			case b.Changed && b.Lock != nil && b.Lock.IsChanged(lang, full, text):
			default:
				return true
			}
			seen[rel] = true
			items = append(items, pendingItem{rel: rel, text: text})
			return true
		})
	}

	// Placeholders without a source entry are translated from the text
	// after the prefix.
	if b.PlaceholderPrefix != "" {
		if tgt := target.Namespace(ns); tgt != nil {
			tgt.Leaves(func(rel, cur string) bool {
				if seen[rel] || !strings.HasPrefix(cur, b.PlaceholderPrefix) {
					return true
				}
				text := strings.TrimPrefix(cur, b.PlaceholderPrefix)
				if strings.TrimSpace(text) != "" {
					items = append(items, pendingItem{rel: rel, text: text})
				}
				return true
			})
		}
	}
	return items
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run translates every pending key of target. instruction describes the
// target language to the model. Only context cancellation aborts the run;
// any other failure skips the batch.
func (b *Backfiller) Run(ctx context.Context, source, target *i18next.Mapping, lang, instruction string) (Summary, error) {
	sum := Summary{Lang: lang}
	log := b.log().WithField("lang", lang)
	sleep := b.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	namespaces := lo.Uniq(append(source.Namespaces(), target.Namespaces()...))
	first := true
	for _, ns := range namespaces {
		if b.ignored(ns) {
			log.WithField("namespace", ns).Debug("namespace ignored")
			continue
		}
		items := b.pending(source, target, lang, ns)
		if len(items) == 0 {
			continue
		}
		sum.Namespaces++
		sum.Pending += len(items)
		log.WithField("namespace", ns).Infof("%d keys to translate", len(items))

		if b.DryRun {
			for _, it := range items {
				log.WithField("namespace", ns).Debugf("  %s: %s", it.rel, truncate(it.text, 60))
			}
			continue
		}

		chunks := lo.Chunk(items, b.batchSize())
		for i, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			if !first && b.Delay > 0 {
				if err := sleep(ctx, b.Delay); err != nil {
					return sum, err
				}
			}
			first = false
			sum.Batches++

			blog := log.WithFields(logrus.Fields{"namespace": ns, "batch": fmt.Sprintf("%d/%d", i+1, len(chunks))})
			n, err := b.translateBatch(ctx, target, lang, ns, chunk, instruction)
			if err != nil {
				if ctx.Err() != nil {
					return sum, ctx.Err()
				}
				sum.FailedBatches++
				blog.Warnf("batch skipped: %v", err)
				continue
			}
			sum.Translated += n
			if n < len(chunk) {
				blog.Warnf("%d of %d keys missing from the reply", len(chunk)-n, len(chunk))
			} else {
				blog.Debugf("%d keys translated", n)
			}
		}
	}
	return sum, nil
}

func (b *Backfiller) translateBatch(ctx context.Context, target *i18next.Mapping, lang, ns string, chunk []pendingItem, instruction string) (int, error) {
	batch := lo.SliceToMap(chunk, func(it pendingItem) (string, string) { return it.rel, it.text })

	got, err := b.Translator.Translate(ctx, batch, instruction)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, it := range chunk {
		v, ok := got[it.rel]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		full := ns + "." + it.rel
		target.Set(full, v)
		if b.Lock != nil {
			b.Lock.Update(lang, full, it.text)
		}
		n++
	}
	return n, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
