package filter

import (
	"fmt"
	"regexp"
)

// Ambiguity marks input the tracker could not follow with confidence. The
// tracker keeps going with a best guess; callers report these as warnings.
type Ambiguity struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (a Ambiguity) String() string {
	return fmt.Sprintf("line %d: %s", a.Line, a.Reason)
}

// Tracker follows data literals across lines with an explicit bracket stack.
// A line matching a declaration pattern opens a block; [ and { push, ] and }
// pop. Characters inside string literals and line comments are ignored.
// Template literals may span lines. Every line from the declaration up to
// the one that empties the stack is suppressed.
type Tracker struct {
	openers []*regexp.Regexp

	stack      []rune
	active     bool
	blockStart int
	template   bool // inside a backtick literal carried over from a previous line
	line       int
	flags      []Ambiguity
}

// NewTracker compiles the declaration patterns. Nil selects
// DefaultDataDeclarations.
func NewTracker(declarations []string) (*Tracker, error) {
	if declarations == nil {
		declarations = DefaultDataDeclarations
	}
	compiled, err := compileAll(declarations)
	if err != nil {
		return nil, err
	}
	return &Tracker{openers: compiled}, nil
}

// Depth returns the current bracket depth.
func (t *Tracker) Depth() int {
	return len(t.stack)
}

// Active reports whether the tracker is inside a data block.
func (t *Tracker) Active() bool {
	return t.active
}

// Feed consumes the next line and reports whether it is part of a data block.
func (t *Tracker) Feed(line string) bool {
	t.line++

	if !t.active {
		loc := t.match(line)
		if loc < 0 {
			return false
		}
		t.active = true
		t.blockStart = t.line
		t.stack = t.stack[:0]
		t.template = false
		t.count(line[loc:])
		if len(t.stack) == 0 && !t.template {
			// Declaration and literal fit on one line (or the literal opens later).
			if !t.opensLater(line[loc:]) {
				t.active = false
			}
		}
		return true
	}

	t.count(line)
	if len(t.stack) == 0 && !t.template {
		t.active = false
	}
	return true
}

// Finish flags a block still open at end of input and returns all flags.
func (t *Tracker) Finish() []Ambiguity {
	if t.active {
		t.flag(t.line, fmt.Sprintf("data block opened at line %d is never closed", t.blockStart))
		t.active = false
		t.stack = t.stack[:0]
		t.template = false
	}
	return t.Flags()
}

// Flags returns the ambiguities seen so far.
func (t *Tracker) Flags() []Ambiguity {
	out := make([]Ambiguity, len(t.flags))
	copy(out, t.flags)
	return out
}

func (t *Tracker) match(line string) int {
	for _, re := range t.openers {
		if loc := re.FindStringIndex(line); loc != nil {
			return loc[0]
		}
	}
	return -1
}

// opensLater reports whether a declaration line ends with "=" and so leaves
// its literal for the following line.
func (t *Tracker) opensLater(s string) bool {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ' ', '\t', '\r':
			continue
		case '=':
			return true
		default:
			return false
		}
	}
	return false
}

func (t *Tracker) count(line string) {
	var quote rune
	if t.template {
		quote = '`'
	}
	escaped := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'', '`':
			quote = r
		case '/':
			if i+1 < len(runes) && runes[i+1] == '/' {
				i = len(runes)
			}
		case '[', '{':
			t.stack = append(t.stack, r)
		case ']', '}':
			t.pop(r)
		}
	}

	t.template = quote == '`'
	if quote == '"' || quote == '\'' {
		t.flag(t.line, "string literal left open at end of line")
	}
}

func (t *Tracker) pop(closer rune) {
	if len(t.stack) == 0 {
		t.flag(t.line, fmt.Sprintf("unmatched %q closes nothing", closer))
		return
	}
	top := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	if (top == '[' && closer != ']') || (top == '{' && closer != '}') {
		t.flag(t.line, fmt.Sprintf("%q closes %q", closer, top))
	}
}

func (t *Tracker) flag(line int, reason string) {
	t.flags = append(t.flags, Ambiguity{Line: line, Reason: reason})
}
