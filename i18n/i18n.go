// Package i18n translates pageloc's own console messages.
//
// Catalogs are gettext .po files embedded from
// locales/<lang>/LC_MESSAGES/pageloc.po. English is the message source and
// needs no catalog. The UI language comes from the --ui-lang flag, then
// ui_lang in .pageloc.yaml, then the usual gettext environment variables.
package i18n

import (
	"embed"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const domain = "pageloc"

// English is the language of the untranslated messages.
const English = "en"

var (
	po      *gotext.Locale
	current = English
)

// Available lists the embedded catalogs, e.g. ["zh_TW"].
func Available() []string {
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(locales, "locales/"+e.Name()+"/LC_MESSAGES/"+domain+".po"); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// Init selects the UI language and loads its catalog. explicit holds
// preferences in priority order (flag, then config); the first non-empty
// one decides. With none, the environment is consulted. Init returns the
// catalog in use, or English.
func Init(explicit ...string) string {
	lang := Select(explicit...)
	current = lang
	if lang == English {
		po = nil
		return lang
	}
	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
	return lang
}

// Current returns the language chosen by the last Init.
func Current() string {
	return current
}

// Select maps preferences onto an embedded catalog without loading it.
// Locale spellings such as "zh_TW.UTF-8", "zh-tw" or "zh-Hant-TW" are
// accepted. A preference without a matching catalog selects English.
func Select(explicit ...string) string {
	for _, p := range explicit {
		if p = clean(p); p != "" {
			return match(p)
		}
	}
	for _, p := range environment() {
		if lang := match(p); lang != English {
			return lang
		}
	}
	return English
}

// T translates msgid, returning it unchanged when there is no translation.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a message with a plural form chosen by n.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// environment returns the gettext preferences: every entry of LANGUAGE,
// then the first of LC_ALL, LC_MESSAGES and LANG that is set.
func environment() []string {
	var prefs []string
	for _, p := range strings.Split(os.Getenv("LANGUAGE"), ":") {
		if p = clean(p); p != "" {
			prefs = append(prefs, p)
		}
	}
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if p := clean(os.Getenv(env)); p != "" {
			return append(prefs, p)
		}
	}
	return prefs
}

// clean strips the codeset and modifier of a POSIX locale name. The C and
// POSIX locales mean "no translation" and clean to "".
func clean(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, ".@"); i >= 0 {
		p = p[:i]
	}
	if p == "C" || p == "POSIX" {
		return ""
	}
	return p
}

func match(pref string) string {
	tag, err := language.Parse(strings.ReplaceAll(pref, "_", "-"))
	if err != nil {
		return English
	}
	names := Available()
	supported := make([]language.Tag, 0, len(names)+1)
	supported = append(supported, language.English)
	for _, name := range names {
		supported = append(supported, language.Make(strings.ReplaceAll(name, "_", "-")))
	}
	_, i, conf := language.NewMatcher(supported).Match(tag)
	if i == 0 || conf == language.No {
		return English
	}
	return names[i-1]
}
