package rewrite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/apolnus/pageloc/extract"
	"github.com/apolnus/pageloc/filter"
	"github.com/apolnus/pageloc/i18next"
	"github.com/apolnus/pageloc/keygen"
)

func newPipeline(t *testing.T, cat *i18next.Catalog, opts Options) (*Pipeline, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	if opts.SourceLang == "" {
		opts.SourceLang = "zh-TW"
	}
	return &Pipeline{
		Scanner: extract.NewScanner(nil),
		Rules:   filter.DefaultRules(),
		Keys:    keygen.New(keygen.Options{Strategy: keygen.StrategyHash, Reuse: true}, cat.Lang(opts.SourceLang)),
		Opts:    opts,
		Log:     logger,
	}, hook
}

func newCatalog(t *testing.T) *i18next.Catalog {
	t.Helper()
	cat, err := i18next.LoadCatalog(t.TempDir(), []string{"zh-TW", "en"})
	require.NoError(t, err)
	return cat
}

func TestRewrite_TagTextReusesExistingKey(t *testing.T) {
	cat := newCatalog(t)
	cat.Record("zh-TW", "whereToBuy.title", "購買通路")
	p, _ := newPipeline(t, cat, Options{})

	res, err := p.Rewrite("<h1>購買通路</h1>", "whereToBuy", cat)
	require.NoError(t, err)
	require.Equal(t, "<h1>{t('whereToBuy.title')}</h1>", res.Text)
	require.Equal(t, 1, res.Replaced)

	v, ok := cat.Lang("zh-TW").Get("whereToBuy.title")
	require.True(t, ok)
	require.Equal(t, "購買通路", v)
}

func TestRewrite_TagTextNewKey(t *testing.T) {
	cat := newCatalog(t)
	p, _ := newPipeline(t, cat, Options{PlaceholderLang: "en", PlaceholderPrefix: "[EN] "})

	res, err := p.Rewrite("  <h1>購買通路</h1>", "whereToBuy", cat)
	require.NoError(t, err)

	key := "whereToBuy." + keygen.Hash("購買通路")
	require.Equal(t, "  <h1>{t('"+key+"')}</h1>", res.Text)

	v, _ := cat.Lang("zh-TW").Get(key)
	require.Equal(t, "購買通路", v)
	en, _ := cat.Lang("en").Get(key)
	require.Equal(t, "[EN] 購買通路", en)
}

func TestRewrite_PlaceholderKeepsExistingTranslation(t *testing.T) {
	cat := newCatalog(t)
	key := "about." + keygen.Hash("關於我們")
	cat.Record("en", key, "About us")
	p, _ := newPipeline(t, cat, Options{PlaceholderLang: "en", PlaceholderPrefix: "[EN] "})

	_, err := p.Rewrite("<h2>關於我們</h2>", "about", cat)
	require.NoError(t, err)
	en, _ := cat.Lang("en").Get(key)
	require.Equal(t, "About us", en)
}

func TestRewrite_Attribute(t *testing.T) {
	cat := newCatalog(t)
	p, _ := newPipeline(t, cat, Options{})

	src := `<Input placeholder="搜尋經銷商名稱或地址" value={q} />`
	res, err := p.Rewrite(src, "whereToBuy", cat)
	require.NoError(t, err)

	key := "whereToBuy." + keygen.Hash("搜尋經銷商名稱或地址")
	require.Equal(t, `<Input placeholder={t('`+key+`')} value={q} />`, res.Text)
	v, _ := cat.Lang("zh-TW").Get(key)
	require.Equal(t, "搜尋經銷商名稱或地址", v)
}

func TestRewrite_DataLiteralUntouched(t *testing.T) {
	cat := newCatalog(t)
	p, _ := newPipeline(t, cat, Options{})

	src := `const dealers = [
  {
    name: "台北旗艦店",
    address: "台北市信義路五段7號",
    note: <p>營業時間請洽門市</p>,
  },
];`
	res, err := p.Rewrite(src, "whereToBuy", cat)
	require.NoError(t, err)
	require.Equal(t, src, res.Text)
	require.Zero(t, res.Replaced)
	require.Zero(t, cat.Lang("zh-TW").Len())

	require.Len(t, res.Analysis.Decisions, 1)
	require.Equal(t, filter.ReasonDataBlock, res.Analysis.Decisions[0].Reason)
}

func TestRewrite_NoCollateralChanges(t *testing.T) {
	cat := newCatalog(t)
	p, _ := newPipeline(t, cat, Options{})

	src := "import React from 'react';\n\n" +
		"export default function About() {\n" +
		"  const x = a < b ? 1 : 2; // 註解 stays\n" +
		"  return (\n" +
		"    <section>\n" +
		"      <h2>  關於我們 </h2>\n" +
		"      <p className=\"lead\">我們的故事</p>\n" +
		"      <img src=\"/logo.png\" alt=\"公司標誌\" />\n" +
		"    </section>\n" +
		"  );\n" +
		"}\n"

	res, err := p.Rewrite(src, "about", cat)
	require.NoError(t, err)

	var rebuilt strings.Builder
	last := 0
	accepted := res.Analysis.Accepted()
	require.Len(t, accepted, 1, "className and src lines are rejected")
	for _, d := range accepted {
		rebuilt.WriteString(src[last:d.Span.Start])
		rebuilt.WriteString(p.reference(d.Span, d.Key))
		last = d.Span.End
	}
	rebuilt.WriteString(src[last:])
	require.Equal(t, rebuilt.String(), res.Text)

	sp := accepted[0].Span
	require.Equal(t, src[:sp.Start], res.Text[:sp.Start])
	require.True(t, strings.HasSuffix(res.Text, src[sp.End:]))
}

func TestRewrite_Idempotent(t *testing.T) {
	cat := newCatalog(t)
	p, _ := newPipeline(t, cat, Options{PlaceholderLang: "en", PlaceholderPrefix: "[EN] ", InjectHook: true, InjectSEOHead: true})

	src := "import React from \"react\";\n\n" +
		"export default function Careers() {\n" +
		"  return (\n" +
		"    <div className=\"container\">\n" +
		"      <h1>加入我們</h1>\n" +
		"      <input placeholder=\"輸入職缺名稱\" />\n" +
		"    </div>\n" +
		"  );\n" +
		"}\n"

	first, err := p.Rewrite(src, "careers", cat)
	require.NoError(t, err)
	require.Equal(t, 2, first.Replaced)
	require.True(t, first.HookInjected)
	require.True(t, first.SEOHeadInjected)

	before := cat.Lang("zh-TW").Len()
	second, err := p.Rewrite(first.Text, "careers", cat)
	require.NoError(t, err)
	require.Zero(t, second.Replaced)
	require.Equal(t, first.Text, second.Text)
	require.Equal(t, before, cat.Lang("zh-TW").Len())
}

func TestRewrite_CollisionLastWriteWins(t *testing.T) {
	cat := newCatalog(t)
	logger, hook := test.NewNullLogger()
	p := &Pipeline{
		Scanner: extract.NewScanner(nil),
		Rules:   filter.DefaultRules(),
		Keys:    keygen.New(keygen.Options{Strategy: keygen.StrategySequence}, nil),
		Opts:    Options{SourceLang: "zh-TW"},
		Log:     logger,
	}
	// A fresh sequence without the existing mapping hands out p_01 again.
	cat.Record("zh-TW", "faq.p_01", "先前的文字")

	res, err := p.Rewrite("<p>新的問題</p>", "faq", cat)
	require.NoError(t, err)
	require.Len(t, res.Collisions, 1)
	require.Equal(t, "先前的文字", res.Collisions[0].Previous)

	v, _ := cat.Lang("zh-TW").Get("faq.p_01")
	require.Equal(t, "新的問題", v)

	require.NotNil(t, hook.LastEntry())
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Contains(t, hook.LastEntry().Message, "key collision")
}

func TestRewrite_FlagsAreLogged(t *testing.T) {
	cat := newCatalog(t)
	p, hook := newPipeline(t, cat, Options{})

	_, err := p.Rewrite("const stores = [\n  { name: '門市' },\n<p>尚未關閉</p>", "whereToBuy", cat)
	require.NoError(t, err)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "never closed") {
			warned = true
		}
	}
	require.True(t, warned)
}

func TestInjectHookAndSEOHead(t *testing.T) {
	src := "import {\n  Button,\n} from \"@/components/ui/button\";\n\n" +
		"export default function WhereToBuy() {\n" +
		"  return (\n" +
		"    <div className=\"min-h-screen\" onClick={() => a > b}>\n" +
		"      <h1>{t('whereToBuy.title')}</h1>\n" +
		"    </div>\n" +
		"  );\n" +
		"}\n"

	out, ok := injectHook(src, "t")
	require.True(t, ok)
	require.Contains(t, out, "} from \"@/components/ui/button\";\n"+hookImport+"\n")
	require.Contains(t, out, "export default function WhereToBuy() {\n  const { t } = useTranslation();")

	out, ok = injectSEOHead(out, "whereToBuy")
	require.True(t, ok)
	require.Contains(t, out, "<div className=\"min-h-screen\" onClick={() => a > b}>\n      <SEOHead pageKey=\"whereToBuy\" />")
	require.Contains(t, out, seoHeadImport)

	again, ok := injectSEOHead(out, "whereToBuy")
	require.False(t, ok)
	require.Equal(t, out, again)
}

func TestInjectSEOHead_Fragment(t *testing.T) {
	out, ok := injectSEOHead("function A() {\n  return (\n    <>\n      <p/>\n    </>\n  );\n}\n", "a")
	require.True(t, ok)
	require.Contains(t, out, "<>\n      <SEOHead pageKey=\"a\" />")
	require.True(t, strings.HasPrefix(out, seoHeadImport+"\n"))
}

const helperAbovePage = `import React from "react";

function Badge({ label }: { label: string }) {
  return (
    <span className="badge">{label}</span>
  );
}

export default function WhereToBuy() {
  return (
    <div className="container">
      <h1>購買通路</h1>
      <button onClick={() => setOpen(true)}>查看經銷商</button>
    </div>
  );
}
`

func TestInject_TargetsDefaultExportAfterHelper(t *testing.T) {
	out, ok := injectHook(helperAbovePage, "t")
	require.True(t, ok)
	require.Contains(t, out, "export default function WhereToBuy() {\n  const { t } = useTranslation();")
	require.Contains(t, out, "function Badge({ label }: { label: string }) {\n  return (")
	require.Equal(t, 1, strings.Count(out, "useTranslation();"))

	out, ok = injectSEOHead(out, "whereToBuy")
	require.True(t, ok)
	require.Contains(t, out, "<div className=\"container\">\n      <SEOHead pageKey=\"whereToBuy\" />")
	require.Contains(t, out, "<span className=\"badge\">{label}</span>")
}

func TestInject_FallsBackToFirstComponent(t *testing.T) {
	src := "const x = 1;\n\nexport function About() {\n  return (\n    <main>\n      <p/>\n    </main>\n  );\n}\n"
	require.Equal(t, len("const x = 1;\n\nexport function About() {"), pageBody(src))
	require.Equal(t, -1, pageBody("const About = () => <p/>;\n"))
}

func TestRewrite_HelperComponentAndArrowHandler(t *testing.T) {
	cat := newCatalog(t)
	p, _ := newPipeline(t, cat, Options{InjectHook: true})

	res, err := p.Rewrite(helperAbovePage, "whereToBuy", cat)
	require.NoError(t, err)
	require.True(t, res.HookInjected)
	require.Equal(t, 2, res.Replaced)

	key := "whereToBuy." + keygen.Hash("查看經銷商")
	require.Contains(t, res.Text, "<button onClick={() => setOpen(true)}>{t('"+key+"')}</button>")

	page := res.Text[strings.Index(res.Text, "export default function WhereToBuy"):]
	require.Contains(t, page, "const { t } = useTranslation();")
	helper := res.Text[:strings.Index(res.Text, "export default function WhereToBuy")]
	require.NotContains(t, helper, "useTranslation();")

	v, ok := cat.Lang("zh-TW").Get(key)
	require.True(t, ok)
	require.Equal(t, "查看經銷商", v)
}

func TestProcessPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Support.tsx")
	original := "<h1>技術支援</h1>\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0644))

	cat := newCatalog(t)
	p, _ := newPipeline(t, cat, Options{})

	t.Run("dry run leaves the file alone", func(t *testing.T) {
		res, err := p.ProcessPage(Page{Path: path, Namespace: "support"}, cat, WriteOptions{DryRun: true})
		require.NoError(t, err)
		require.Equal(t, 1, res.Replaced)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, original, string(data))
	})

	t.Run("writes backup and page", func(t *testing.T) {
		res, err := p.ProcessPage(Page{Path: path, Namespace: "support"}, cat, WriteOptions{Backup: true})
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, res.Text, string(data))

		backup, err := os.ReadFile(path + BackupSuffix)
		require.NoError(t, err)
		require.Equal(t, original, string(backup))
	})

	t.Run("missing page", func(t *testing.T) {
		_, err := p.ProcessPage(Page{Path: filepath.Join(dir, "Nope.tsx"), Namespace: "nope"}, cat, WriteOptions{})
		require.ErrorIs(t, err, ErrPageNotFound)
	})
}
