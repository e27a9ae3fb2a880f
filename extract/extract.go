// Package extract locates translatable CJK text in page sources.
//
// Scanning is line oriented pattern matching, not a markup parser. Two kinds
// of spans are reported: text between an opening and a closing tag on the
// same line, and the quoted value of a translatable attribute.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// PageExtensions lists the file extensions treated as page sources.
var PageExtensions = map[string]bool{
	".tsx": true,
	".jsx": true,
}

// skipDirs contains directory names to skip during page discovery.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"coverage":     true,
	"__tests__":    true,
}

// FindPages recursively finds page sources in dirs, sorted by path.
func FindPages(dirs []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if info.IsDir() {
				if skipDirs[info.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if PageExtensions[filepath.Ext(path)] && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Namespace derives a page namespace from its file name: the stem with a
// lower-cased first letter (WhereToBuy.tsx -> whereToBuy).
func Namespace(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if stem == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(stem)
	return strings.ToLower(string(r)) + stem[size:]
}

// cjkPattern matches Han, kana and Hangul characters.
var cjkPattern = regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}\p{Hangul}]`)

// ContainsCJK reports whether s contains at least one CJK character.
func ContainsCJK(s string) bool {
	return cjkPattern.MatchString(s)
}

// Kind distinguishes tag text from attribute values.
type Kind int

const (
	KindTag Kind = iota
	KindAttr
)

func (k Kind) String() string {
	if k == KindAttr {
		return "attr"
	}
	return "tag"
}

// MarshalText lets reports print the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Span is a candidate piece of translatable text.
//
// For tag spans Start/End cover exactly the trimmed text. For attribute spans
// they cover the whole assignment (name, equals sign and quoted value), which
// is what gets replaced. Offsets are byte offsets in the scanned text.
type Span struct {
	Kind    Kind   `json:"kind"`
	Attr    string `json:"attr,omitempty"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"text"`
	Context string `json:"context"`
	Line    int    `json:"line"`
}

// DefaultAttributes are the attributes whose values are user visible.
var DefaultAttributes = []string{"placeholder", "alt", "title", "aria-label"}

// tagPattern matches an opening tag, its text and a closing tag. Inside the
// opening tag, quoted values and {expressions} (one level of nested braces)
// may contain '>', as in onClick={() => setOpen(true)}. The text itself must
// hold no tag or expression delimiter.
var tagPattern = regexp.MustCompile(
	`(<[a-zA-Z](?:[^>{"']|"[^"]*"|'[^']*'|\{(?:[^{}]|\{[^{}]*\})*\})*>)` +
		`([^<>{}]+)` +
		`(</[a-zA-Z][^>]*>)`)

// Scanner finds candidate spans. Create it with NewScanner.
type Scanner struct {
	attrPattern *regexp.Regexp
}

// NewScanner returns a scanner for the given attribute names. An empty list
// uses DefaultAttributes.
func NewScanner(attrs []string) *Scanner {
	if len(attrs) == 0 {
		attrs = DefaultAttributes
	}
	quoted := make([]string, len(attrs))
	for i, a := range attrs {
		quoted[i] = regexp.QuoteMeta(a)
	}
	// The attribute name must not be the tail of a longer name (data-title).
	pattern := `(?:^|[^\w-])(` + strings.Join(quoted, "|") + `)\s*=\s*(?:"([^"]*)"|'([^']*)')`
	return &Scanner{attrPattern: regexp.MustCompile(pattern)}
}

// Scan returns the spans of text in source order.
func (s *Scanner) Scan(text string) []Span {
	var spans []Span
	offset := 0
	for i, line := range strings.Split(text, "\n") {
		spans = append(spans, s.ScanLine(line, i+1, offset)...)
		offset += len(line) + 1
	}
	return spans
}

// ScanLine returns the spans of a single line. lineNo is 1-based and offset
// is the byte offset of the line within the whole text.
func (s *Scanner) ScanLine(line string, lineNo, offset int) []Span {
	if !ContainsCJK(line) {
		return nil
	}

	var spans []Span
	for _, m := range tagPattern.FindAllStringSubmatchIndex(line, -1) {
		inner := line[m[4]:m[5]]
		text := strings.TrimSpace(inner)
		if !candidate(text) {
			continue
		}
		start := m[4] + len(inner) - len(strings.TrimLeft(inner, " \t\r\n"))
		spans = append(spans, Span{
			Kind:    KindTag,
			Start:   offset + start,
			End:     offset + start + len(text),
			Text:    text,
			Context: line,
			Line:    lineNo,
		})
	}

	for _, m := range s.attrPattern.FindAllStringSubmatchIndex(line, -1) {
		var raw string
		switch {
		case m[4] >= 0:
			raw = line[m[4]:m[5]]
		case m[6] >= 0:
			raw = line[m[6]:m[7]]
		}
		text := strings.TrimSpace(raw)
		if !candidate(text) {
			continue
		}
		spans = append(spans, Span{
			Kind:    KindAttr,
			Attr:    line[m[2]:m[3]],
			Start:   offset + m[2],
			End:     offset + m[1],
			Text:    text,
			Context: line[m[2]:m[1]],
			Line:    lineNo,
		})
	}

	return dropOverlaps(spans)
}

// candidate reports whether trimmed text is worth extracting.
func candidate(text string) bool {
	return utf8.RuneCountInString(text) > 1 && ContainsCJK(text)
}

// dropOverlaps sorts spans by start and keeps the first of any overlapping run.
func dropOverlaps(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	out := spans[:1]
	for _, sp := range spans[1:] {
		if sp.Start < out[len(out)-1].End {
			continue
		}
		out = append(out, sp)
	}
	return out
}
