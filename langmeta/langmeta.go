// Package langmeta provides a shared language metadata registry
// (native names, English names and emoji flags) used by the status table
// and by translation prompts.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	Name    string
	English string
	Flag    string
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"ar":    {Name: "العربية", English: "Arabic", Flag: "🇸🇦"},
	"de":    {Name: "Deutsch", English: "German", Flag: "🇩🇪"},
	"en":    {Name: "English", English: "English", Flag: "🇺🇸"},
	"en-GB": {Name: "English (UK)", English: "British English", Flag: "🇬🇧"},
	"es":    {Name: "Español", English: "Spanish", Flag: "🇪🇸"},
	"fr":    {Name: "Français", English: "French", Flag: "🇫🇷"},
	"id":    {Name: "Bahasa Indonesia", English: "Indonesian", Flag: "🇮🇩"},
	"it":    {Name: "Italiano", English: "Italian", Flag: "🇮🇹"},
	"ja":    {Name: "日本語", English: "Japanese", Flag: "🇯🇵"},
	"ko":    {Name: "한국어", English: "Korean", Flag: "🇰🇷"},
	"ms":    {Name: "Bahasa Melayu", English: "Malay", Flag: "🇲🇾"},
	"nl":    {Name: "Nederlands", English: "Dutch", Flag: "🇳🇱"},
	"pt":    {Name: "Português", English: "Portuguese", Flag: "🇵🇹"},
	"pt-BR": {Name: "Português (Brasil)", English: "Brazilian Portuguese", Flag: "🇧🇷"},
	"ru":    {Name: "Русский", English: "Russian", Flag: "🇷🇺"},
	"th":    {Name: "ไทย", English: "Thai", Flag: "🇹🇭"},
	"vi":    {Name: "Tiếng Việt", English: "Vietnamese", Flag: "🇻🇳"},
	"zh":    {Name: "中文", English: "Chinese", Flag: "🇨🇳"},
	"zh-CN": {Name: "简体中文", English: "Simplified Chinese", Flag: "🇨🇳"},
	"zh-HK": {Name: "繁體中文（香港）", English: "Traditional Chinese (Hong Kong)", Flag: "🇭🇰"},
	"zh-TW": {Name: "繁體中文", English: "Traditional Chinese", Flag: "🇹🇼"},
}

// Canonicalize normalises a language code to BCP 47 form
// (zh_tw -> zh-TW, " EN-us " -> en-US). Codes the parser rejects are
// normalised by case only.
func Canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	if tag, err := language.Parse(normalized); err == nil {
		return tag.String()
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like zh_TW, zh-tw, and locale fallbacks. Unknown codes
// get their self-name from CLDR when it has one.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := Canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	if tag, err := language.Parse(normalized); err == nil {
		if name := display.Self.Name(tag); name != "" {
			return Meta{Name: name, English: display.English.Tags().Name(tag)}
		}
	}
	return Meta{Name: lang, English: lang}
}

// Instruction returns a default model instruction for lang, such as
// "Japanese (日本語)".
func Instruction(lang string) string {
	m := Resolve(lang)
	if m.English == "" || m.English == m.Name {
		return m.Name
	}
	return m.English + " (" + m.Name + ")"
}
