// Package filter decides which candidate spans must not be translated.
//
// Rules are stateless checks on a span's text, its context and its line.
// Tracker is the stateful part: it follows multi-line data literals (arrays
// and objects of addresses, phone numbers, links) and suppresses every line
// inside them.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason names the rule that rejected a span.
type Reason string

const (
	ReasonURL          Reason = "url"
	ReasonPath         Reason = "path"
	ReasonClassAttr    Reason = "class-attr"
	ReasonUtilityClass Reason = "utility-class"
	ReasonPhoneLike    Reason = "phone-like"
	ReasonDataLine     Reason = "data-line"
	ReasonDataBlock    Reason = "data-block"
)

// Defaults used when the project configuration does not override them.
var (
	DefaultClassAttrs     = []string{"className"}
	DefaultUtilityClasses = []string{"px-", "py-", "bg-", "text-", "border-", "rounded-", "flex", "grid"}
	DefaultLinePatterns   = []string{
		`const\s+stores\s*=`,
		`const\s+dealers\s*=`,
		`const\s+onlinePlatforms\s*=`,
		`const\s+platforms\s*=`,
		`const\s+serviceCenters\s*=`,
		`address\s*:`,
		`phone\s*:`,
		`email\s*:`,
		`url\s*:`,
		`href\s*=`,
		`src\s*=`,
	}
	DefaultDataDeclarations = []string{
		`const\s+(?:stores|dealers|onlinePlatforms|platforms|serviceCenters)\s*(?::[^=]+)?=`,
		`const\s+\w+\s*(?::[^=]+)?=\s*[\[{]`,
	}
)

var (
	urlPattern   = regexp.MustCompile(`(?i)^(?:https?:|mailto:|tel:|www\.)`)
	phonePattern = regexp.MustCompile(`^[\p{Nd}\p{P}\p{Sm}\s]+$`)
)

// Rules is the ordered set of stateless exclusion checks.
type Rules struct {
	ClassAttrs     []string
	UtilityClasses []string
	LinePatterns   []*regexp.Regexp
}

// NewRules compiles a rule set. Nil slices select the defaults; empty
// non-nil slices disable the corresponding rule.
func NewRules(classAttrs, utilityClasses, linePatterns []string) (*Rules, error) {
	if classAttrs == nil {
		classAttrs = DefaultClassAttrs
	}
	if utilityClasses == nil {
		utilityClasses = DefaultUtilityClasses
	}
	if linePatterns == nil {
		linePatterns = DefaultLinePatterns
	}
	compiled, err := compileAll(linePatterns)
	if err != nil {
		return nil, err
	}
	return &Rules{
		ClassAttrs:     classAttrs,
		UtilityClasses: utilityClasses,
		LinePatterns:   compiled,
	}, nil
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *Rules {
	r, err := NewRules(nil, nil, nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Reject reports whether text must stay untouched, and why. context is the
// span's immediate surroundings (the line for tag text, the assignment for
// attributes); line is the full source line.
func (r *Rules) Reject(text, context, line string) (Reason, bool) {
	text = strings.TrimSpace(text)

	if urlPattern.MatchString(text) {
		return ReasonURL, true
	}
	if strings.Contains(text, "/") && !strings.Contains(text, " ") {
		return ReasonPath, true
	}
	for _, attr := range r.ClassAttrs {
		if strings.Contains(context, attr) {
			return ReasonClassAttr, true
		}
	}
	for _, cls := range r.UtilityClasses {
		if strings.Contains(text, cls) {
			return ReasonUtilityClass, true
		}
	}
	if phonePattern.MatchString(text) {
		return ReasonPhoneLike, true
	}
	for _, p := range r.LinePatterns {
		if p.MatchString(line) {
			return ReasonDataLine, true
		}
	}
	return "", false
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
