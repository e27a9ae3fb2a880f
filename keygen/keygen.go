// Package keygen derives translation keys for extracted text.
//
// Keys are namespaced ("whereToBuy.t_1a2b3c4d"). Within one Generator the
// same (namespace, text) pair always yields the same key. Different texts may
// map to the same key with the slug and hash strategies; callers decide what
// to do about that.
package keygen

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/apolnus/pageloc/i18next"
)

// Strategy selects how new keys are built.
type Strategy string

const (
	StrategySlug     Strategy = "slug"
	StrategyHash     Strategy = "hash"
	StrategySequence Strategy = "sequence"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategySlug:
		return StrategySlug, nil
	case StrategyHash:
		return StrategyHash, nil
	case StrategySequence:
		return StrategySequence, nil
	}
	return "", fmt.Errorf("unknown key strategy %q (valid: slug, hash, sequence)", s)
}

// Options configures a Generator.
type Options struct {
	Strategy Strategy
	// SlugLength is how many leading runes of the text feed the slug.
	SlugLength int
	// Reuse looks up an existing key holding the same text before building one.
	Reuse bool
}

type memoKey struct {
	namespace string
	text      string
}

// Generator hands out keys for one run.
type Generator struct {
	opts     Options
	existing *i18next.Mapping
	memo     map[memoKey]string
	seq      map[string]int

	lower cases.Caser
	title cases.Caser
}

// New returns a Generator. existing is the source-language mapping searched
// when Reuse is set; it may be nil.
func New(opts Options, existing *i18next.Mapping) *Generator {
	if opts.Strategy == "" {
		opts.Strategy = StrategySlug
	}
	if opts.SlugLength <= 0 {
		opts.SlugLength = 30
	}
	return &Generator{
		opts:     opts,
		existing: existing,
		memo:     make(map[memoKey]string),
		seq:      make(map[string]int),
		lower:    cases.Lower(language.English),
		title:    cases.Title(language.English),
	}
}

// Key returns the full dotted key for text in namespace.
func (g *Generator) Key(namespace, text string) string {
	text = strings.TrimSpace(text)
	mk := memoKey{namespace: namespace, text: text}
	if k, ok := g.memo[mk]; ok {
		return k
	}

	var key string
	if g.opts.Reuse && g.existing != nil {
		if found, ok := g.existing.FindValue(namespace, text); ok {
			key = found
		}
	}
	if key == "" {
		key = namespace + "." + g.build(namespace, text)
	}

	g.memo[mk] = key
	return key
}

func (g *Generator) build(namespace, text string) string {
	switch g.opts.Strategy {
	case StrategyHash:
		return Hash(text)
	case StrategySequence:
		return g.next(namespace)
	default:
		if s := g.slug(text); s != "" {
			return s
		}
		return Hash(text)
	}
}

// Hash returns "t_" followed by the first 8 hex digits of the MD5 of the
// NFC-normalised, trimmed text.
func Hash(text string) string {
	sum := md5.Sum([]byte(norm.NFC.String(strings.TrimSpace(text))))
	return "t_" + hex.EncodeToString(sum[:])[:8]
}

// slug builds a camelCase identifier from the leading SlugLength runes of
// text. Punctuation and symbols are dropped, whitespace separates words, and
// letters of any script are kept, so "購買通路" stays "購買通路" and
// "Free shipping 免運" becomes "freeShipping免運". It returns "" when no
// word character remains.
func (g *Generator) slug(text string) string {
	runes := []rune(text)
	if len(runes) > g.opts.SlugLength {
		runes = runes[:g.opts.SlugLength]
	}

	kept := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '_':
			return r
		}
		return -1
	}, string(runes))
	words := strings.Fields(kept)
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(g.lower.String(w))
		} else {
			b.WriteString(g.title.String(w))
		}
	}
	key := b.String()
	if r := []rune(key)[0]; unicode.IsDigit(r) {
		key = "k" + key
	}
	return key
}

// next returns the next free p_NN key in namespace.
func (g *Generator) next(namespace string) string {
	for {
		g.seq[namespace]++
		key := fmt.Sprintf("p_%02d", g.seq[namespace])
		if g.existing == nil {
			return key
		}
		if _, taken := g.existing.Get(namespace + "." + key); !taken {
			return key
		}
	}
}
