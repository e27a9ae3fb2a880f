// Package i18next implements reading and writing of i18next JSON translation files.
//
// One file holds one language and nests keys by namespace:
//
//	{
//	  "whereToBuy": {
//	    "title": "哪裡買",
//	    "t_1a2b3c4d": "線上通路"
//	  }
//	}
//
// Keys are addressed with dotted paths ("whereToBuy.title"). Key order is
// preserved from the file, and values that are not strings or objects are
// kept verbatim so that a round trip never loses data.
package i18next

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Value is a single entry in a Mapping. Exactly one of Text, Map or Raw is
// meaningful: Map for nested objects, Raw for numbers/arrays/booleans/null,
// Text otherwise.
type Value struct {
	Text string
	Map  *Mapping
	Raw  json.RawMessage
}

// IsLeaf reports whether the value is a translatable string.
func (v *Value) IsLeaf() bool {
	return v.Map == nil && v.Raw == nil
}

// Mapping is an ordered, nested string mapping.
type Mapping struct {
	keys    []string
	entries map[string]*Value
}

// New returns an empty mapping.
func New() *Mapping {
	return &Mapping{entries: make(map[string]*Value)}
}

// ParseFile reads and parses an i18next JSON translation file.
func ParseFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// Parse parses i18next JSON data. An empty document yields an empty mapping.
func Parse(data []byte) (*Mapping, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	t, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parsing JSON: expected {, got %v", t)
	}
	m, err := parseObject(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if _, err := dec.Token(); err == nil {
		return nil, fmt.Errorf("parsing JSON: trailing data after top-level object")
	}
	return m, nil
}

// parseObject reads key/value pairs until the closing brace. The opening
// brace must already have been consumed.
func parseObject(dec *json.Decoder) (*Mapping, error) {
	m := New()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", kt)
		}

		v, err := parseValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		m.put(key, v)
	}
	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseValue(dec *json.Decoder) (*Value, error) {
	if !dec.More() {
		return nil, fmt.Errorf("missing value")
	}
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return &Value{Text: s}, nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		sub := json.NewDecoder(bytes.NewReader(trimmed))
		sub.UseNumber()
		if _, err := sub.Token(); err != nil {
			return nil, err
		}
		child, err := parseObject(sub)
		if err != nil {
			return nil, err
		}
		return &Value{Map: child}, nil
	default:
		return &Value{Raw: append(json.RawMessage(nil), trimmed...)}, nil
	}
}

func (m *Mapping) put(key string, v *Value) {
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = v
}

// Keys returns the top-level keys in file order.
func (m *Mapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Lookup returns the raw value stored under key at this level.
func (m *Mapping) Lookup(key string) (*Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Get returns the string stored at a dotted path.
func (m *Mapping) Get(path string) (string, bool) {
	cur := m
	parts := strings.Split(path, ".")
	for i, p := range parts {
		v, ok := cur.entries[p]
		if !ok {
			return "", false
		}
		if i == len(parts)-1 {
			if !v.IsLeaf() {
				return "", false
			}
			return v.Text, true
		}
		if v.Map == nil {
			return "", false
		}
		cur = v.Map
	}
	return "", false
}

// Set stores value at a dotted path, creating intermediate objects as needed.
// It returns the previous string value and whether one existed. A non-object
// value found on the way is replaced by an object.
func (m *Mapping) Set(path, value string) (prev string, existed bool) {
	cur := m
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		v, ok := cur.entries[p]
		if !ok || v.Map == nil {
			v = &Value{Map: New()}
			cur.put(p, v)
		}
		cur = v.Map
	}
	last := parts[len(parts)-1]
	if old, ok := cur.entries[last]; ok && old.IsLeaf() {
		prev, existed = old.Text, true
	}
	cur.put(last, &Value{Text: value})
	return prev, existed
}

// Namespace returns the nested mapping stored under a top-level key, or nil.
func (m *Mapping) Namespace(ns string) *Mapping {
	v, ok := m.entries[ns]
	if !ok || v.Map == nil {
		return nil
	}
	return v.Map
}

// Namespaces returns the top-level keys holding objects, in file order.
func (m *Mapping) Namespaces() []string {
	var out []string
	for _, k := range m.keys {
		if m.entries[k].Map != nil {
			out = append(out, k)
		}
	}
	return out
}

// Leaves calls fn for every string value in document order with its full
// dotted path. Returning false stops the walk.
func (m *Mapping) Leaves(fn func(path, value string) bool) {
	m.walk("", fn)
}

func (m *Mapping) walk(prefix string, fn func(path, value string) bool) bool {
	for _, k := range m.keys {
		v := m.entries[k]
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch {
		case v.Map != nil:
			if !v.Map.walk(path, fn) {
				return false
			}
		case v.IsLeaf():
			if !fn(path, v.Text) {
				return false
			}
		}
	}
	return true
}

// Len returns the number of string leaves.
func (m *Mapping) Len() int {
	n := 0
	m.Leaves(func(string, string) bool {
		n++
		return true
	})
	return n
}

// FindValue returns the first dotted path under namespace ns whose value
// equals text. The returned path includes the namespace.
func (m *Mapping) FindValue(ns, text string) (string, bool) {
	sub := m.Namespace(ns)
	if sub == nil {
		return "", false
	}
	var found string
	sub.walk(ns, func(path, value string) bool {
		if value == text {
			found = path
			return false
		}
		return true
	})
	return found, found != ""
}

// Stats compares m against a source mapping and returns (total, translated,
// untranslated) counts over the source leaves. A leaf counts as untranslated
// when it is missing, empty, or starts with placeholderPrefix.
func (m *Mapping) Stats(source *Mapping, placeholderPrefix string) (total, translated, untranslated int) {
	source.Leaves(func(path, _ string) bool {
		total++
		v, ok := m.Get(path)
		if !ok || v == "" || (placeholderPrefix != "" && strings.HasPrefix(v, placeholderPrefix)) {
			untranslated++
		} else {
			translated++
		}
		return true
	})
	return
}

// Equal reports whether two mappings hold the same keys in the same order
// with the same values.
func (m *Mapping) Equal(other *Mapping) bool {
	if len(m.keys) != len(other.keys) {
		return false
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		a, b := m.entries[k], other.entries[k]
		switch {
		case a.Map != nil || b.Map != nil:
			if a.Map == nil || b.Map == nil || !a.Map.Equal(b.Map) {
				return false
			}
		case a.Raw != nil || b.Raw != nil:
			if !bytes.Equal(a.Raw, b.Raw) {
				return false
			}
		default:
			if a.Text != b.Text {
				return false
			}
		}
	}
	return true
}

// WriteFile writes the mapping to disk, creating parent directories.
func (m *Mapping) WriteFile(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Marshal produces 2-space indented JSON in key order. Non-ASCII text and
// the characters <, > and & are written as-is.
func (m *Mapping) Marshal() ([]byte, error) {
	var b bytes.Buffer
	if err := m.marshalTo(&b, 0); err != nil {
		return nil, err
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (m *Mapping) marshalTo(b *bytes.Buffer, depth int) error {
	if len(m.keys) == 0 {
		b.WriteString("{}")
		return nil
	}
	indent := strings.Repeat("  ", depth+1)
	b.WriteString("{\n")
	for i, k := range m.keys {
		v := m.entries[k]
		b.WriteString(indent)
		b.WriteString(jsonString(k))
		b.WriteString(": ")
		switch {
		case v.Map != nil:
			if err := v.Map.marshalTo(b, depth+1); err != nil {
				return err
			}
		case v.Raw != nil:
			var raw bytes.Buffer
			if err := json.Indent(&raw, v.Raw, indent, "  "); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			b.Write(raw.Bytes())
		default:
			b.WriteString(jsonString(v.Text))
		}
		if i < len(m.keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteByte('}')
	return nil
}

// jsonString returns a JSON-encoded string without HTML escaping.
func jsonString(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}
