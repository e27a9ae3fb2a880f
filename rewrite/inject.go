package rewrite

import (
	"regexp"
	"strings"
)

const (
	hookImport    = `import { useTranslation } from "react-i18next";`
	seoHeadImport = `import SEOHead from "@/components/seo/SEOHead";`
)

const componentSignature = `function\s+[A-Z]\w*\s*\([^)]*\)\s*(?::\s*[\w.<>\[\]| ]+)?\{`

var (
	defaultComponentPattern = regexp.MustCompile(`(?m)^export\s+default\s+` + componentSignature)
	componentPattern        = regexp.MustCompile(`(?m)^(?:export\s+)?` + componentSignature)
	rootPattern             = regexp.MustCompile(`return\s*\(\s*<`)
	importFrom              = regexp.MustCompile(`\bfrom\s*["']|^\s*import\s*["']`)
)

// pageBody returns the offset just past the opening brace of the page
// component: the default export when the file has one, otherwise the first
// top-level component function. It returns -1 when there is neither.
func pageBody(src string) int {
	if loc := defaultComponentPattern.FindStringIndex(src); loc != nil {
		return loc[1]
	}
	if loc := componentPattern.FindStringIndex(src); loc != nil {
		return loc[1]
	}
	return -1
}

// injectHook adds the useTranslation import and the hook call at the top of
// the page component, unless the source mentions useTranslation already.
func injectHook(src, tfunc string) (string, bool) {
	if strings.Contains(src, "useTranslation") {
		return src, false
	}
	body := pageBody(src)
	if body < 0 {
		return src, false
	}
	call := "\n  const { " + tfunc + " } = useTranslation();"
	if tfunc != "t" {
		call = "\n  const { t: " + tfunc + " } = useTranslation();"
	}
	src = src[:body] + call + src[body:]
	return addImport(src, hookImport), true
}

// injectSEOHead adds an SEOHead element right after the opening tag of the
// root element the page component returns. The element goes after the tag's
// closing bracket, never inside the tag's attributes.
func injectSEOHead(src, namespace string) (string, bool) {
	if strings.Contains(src, "<SEOHead") {
		return src, false
	}
	body := pageBody(src)
	if body < 0 {
		return src, false
	}
	loc := rootPattern.FindStringIndex(src[body:])
	if loc == nil {
		return src, false
	}
	tagStart := body + loc[1] - 1
	end, selfClosing := openingTagEnd(src, tagStart)
	if end < 0 || selfClosing {
		return src, false
	}
	elem := "\n      <SEOHead pageKey=\"" + namespace + "\" />"
	src = src[:end] + elem + src[end:]
	return addImport(src, seoHeadImport), true
}

// openingTagEnd returns the index just past the '>' closing the tag that
// starts at src[start] == '<'. Brackets inside {expressions} and quoted
// attribute values are skipped.
func openingTagEnd(src string, start int) (int, bool) {
	depth := 0
	var quote byte
	for i := start + 1; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			if depth > 0 || c != '`' {
				quote = c
			}
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '>':
			if depth == 0 {
				return i + 1, i > start && src[i-1] == '/'
			}
		}
	}
	return -1, false
}

// addImport inserts line after the last import statement, or at the top of
// the file when there is none. Multi-line imports are followed to their end.
func addImport(src, line string) string {
	if strings.Contains(src, line) {
		return src
	}
	lines := strings.SplitAfter(src, "\n")
	insertAt := 0
	inImport := false
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if !inImport && strings.HasPrefix(trimmed, "import ") {
			inImport = true
		}
		if inImport {
			if importFrom.MatchString(trimmed) || strings.HasSuffix(trimmed, ";") {
				inImport = false
				insertAt = i + 1
			}
		}
	}
	out := strings.Join(lines[:insertAt], "")
	if insertAt > 0 && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + line + "\n" + strings.Join(lines[insertAt:], "")
}
