package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/apolnus/pageloc/config"
	"github.com/apolnus/pageloc/i18n"
	"github.com/apolnus/pageloc/i18next"
	"github.com/apolnus/pageloc/settings"
)

// setupProject creates a project root with the given files and points the
// global flags at it.
func setupProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	oldRoot, oldConfig := rootDir, configPath
	rootDir, configPath = root, ""
	t.Cleanup(func() { rootDir, configPath = oldRoot, oldConfig })

	setupLogging(io.Discard, false)
	return root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestProgressBar(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = old })

	tests := []struct {
		name    string
		percent int
		width   int
		want    string
	}{
		{"clamps below zero", -10, 4, "░░░░   0%"},
		{"mid range", 50, 4, "██░░  50%"},
		{"clamps above hundred", 120, 4, "████ 100%"},
	}
	for _, tc := range tests {
		if got := progressBar(tc.percent, tc.width); got != tc.want {
			t.Fatalf("%s: progressBar() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestSelectPages(t *testing.T) {
	pages := []config.ResolvedPage{
		{Path: "/p/WhereToBuy.tsx", Namespace: "whereToBuy"},
		{Path: "/p/FAQ.tsx", Namespace: "faq"},
		{Path: "/p/About.tsx", Namespace: "about"},
	}
	require.Equal(t, pages, selectPages(pages, nil))

	got := selectPages(pages, []string{"FAQ.tsx", "wheretobuy"})
	require.Equal(t, []config.ResolvedPage{pages[0], pages[1]}, got)
}

func TestTargetLanguages(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, []string{"de", "en", "fr", "ja", "ko", "zh-CN"}, targetLanguages(cfg, nil))
	require.Equal(t, []string{"zh-CN", "ja"}, targetLanguages(cfg, []string{"zh_cn", "ja", "zh-TW", "JA"}))
}

func TestInstructionFor(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, config.DefaultLanguages["ko"], instructionFor(cfg, "ko"))
	require.Equal(t, "Italian (Italiano)", instructionFor(cfg, "it"))
}

const wherePage = `import React from "react";

export default function WhereToBuy() {
  return (
    <div className="container mx-auto">
      <h1>購買通路</h1>
      <input placeholder="搜尋經銷商名稱或地址" />
    </div>
  );
}
`

const dealersPage = `const dealers = [
  { name: "台北旗艦店", note: <span>請先來電預約</span> },
];

export default function Dealers() {
  return <p>找到經銷商</p>;
}
`

func TestExtractEndToEnd(t *testing.T) {
	root := setupProject(t, map[string]string{
		"client/src/pages/WhereToBuy.tsx": wherePage,
		"client/src/pages/Dealers.tsx":    dealersPage,
		config.FileName: `pages:
  - file: WhereToBuy.tsx
  - file: Dealers.tsx
  - file: Missing.tsx
keys:
  strategy: hash
`,
		"client/src/i18n/locales/zh-TW.json": `{
  "whereToBuy": {
    "title": "購買通路"
  }
}
`,
	})

	require.NoError(t, runExtract(extractArgs{}))

	pagesDir := filepath.Join(root, "client", "src", "pages")
	where := readFile(t, filepath.Join(pagesDir, "WhereToBuy.tsx"))
	require.Contains(t, where, "<h1>{t('whereToBuy.title')}</h1>")
	require.Contains(t, where, "placeholder={t('whereToBuy.t_")
	require.Contains(t, where, `import { useTranslation } from "react-i18next";`)
	require.Contains(t, where, "const { t } = useTranslation();")
	require.Equal(t, wherePage, readFile(t, filepath.Join(pagesDir, "WhereToBuy.tsx.backup")))

	dealers := readFile(t, filepath.Join(pagesDir, "Dealers.tsx"))
	require.Contains(t, dealers, `{ name: "台北旗艦店", note: <span>請先來電預約</span> },`)
	require.Contains(t, dealers, "<p>{t('dealers.t_")

	localesDir := filepath.Join(root, "client", "src", "i18n", "locales")
	zh, err := i18next.ParseFile(filepath.Join(localesDir, "zh-TW.json"))
	require.NoError(t, err)
	v, ok := zh.Get("whereToBuy.title")
	require.True(t, ok)
	require.Equal(t, "購買通路", v)
	_, ok = zh.FindValue("whereToBuy", "搜尋經銷商名稱或地址")
	require.True(t, ok)
	_, ok = zh.FindValue("dealers", "台北旗艦店")
	require.False(t, ok, "data literal text is never extracted")

	raw := readFile(t, filepath.Join(localesDir, "zh-TW.json"))
	require.Contains(t, raw, "\n  \"whereToBuy\": {\n    \"title\": \"購買通路\",")

	en, err := i18next.ParseFile(filepath.Join(localesDir, "en.json"))
	require.NoError(t, err)
	key, _ := zh.FindValue("dealers", "找到經銷商")
	pv, _ := en.Get(key)
	require.Equal(t, "[EN] 找到經銷商", pv)

	_, err = os.Stat(filepath.Join(root, "pageloc.lock"))
	require.NoError(t, err)

	// A second run finds nothing left to do.
	before := readFile(t, filepath.Join(localesDir, "zh-TW.json"))
	require.NoError(t, runExtract(extractArgs{}))
	require.Equal(t, where, readFile(t, filepath.Join(pagesDir, "WhereToBuy.tsx")))
	require.Equal(t, before, readFile(t, filepath.Join(localesDir, "zh-TW.json")))
}

func TestExtractDryRunWritesNothing(t *testing.T) {
	root := setupProject(t, map[string]string{
		"client/src/pages/WhereToBuy.tsx": wherePage,
	})

	require.NoError(t, runExtract(extractArgs{pages: []string{"whereToBuy"}, dryRun: true}))
	require.Equal(t, wherePage, readFile(t, filepath.Join(root, "client", "src", "pages", "WhereToBuy.tsx")))
	_, err := os.Stat(filepath.Join(root, "client", "src", "i18n", "locales", "zh-TW.json"))
	require.True(t, os.IsNotExist(err))
}

func TestExtractPrunesStaleSourceChecksums(t *testing.T) {
	root := setupProject(t, map[string]string{
		"client/src/pages/WhereToBuy.tsx": wherePage,
		"pageloc.lock":                    "version: 1\nchecksums:\n  source:\n    gone.key: 0123456789abcdef0123456789abcdef\n",
	})

	require.NoError(t, runExtract(extractArgs{}))

	lock := readFile(t, filepath.Join(root, "pageloc.lock"))
	require.NotContains(t, lock, "gone.key")
	require.Contains(t, lock, "whereToBuy.")
}

func TestInitMessages(t *testing.T) {
	setupProject(t, map[string]string{config.FileName: "ui_lang: zh_TW\n"})
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		t.Setenv(env, "")
	}
	t.Cleanup(func() {
		uiLang = ""
		i18n.Init(i18n.English)
	})

	require.Equal(t, "zh_TW", initMessages())
	require.Equal(t, "專案", i18n.T("Project"))

	uiLang = "en"
	require.Equal(t, i18n.English, initMessages())
	require.Equal(t, "Project", i18n.T("Project"))
}

func TestScanReport(t *testing.T) {
	root := setupProject(t, map[string]string{
		"client/src/pages/Dealers.tsx": dealersPage,
		config.FileName:                "pages: []\n",
	})
	out := filepath.Join(root, "report.json")
	require.NoError(t, runScan(nil, out))

	var reports []struct {
		Namespace string `json:"namespace"`
		Accepted  int    `json:"accepted"`
		Rejected  int    `json:"rejected"`
		Decisions []struct {
			Reason string `json:"reason"`
		} `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal([]byte(readFile(t, out)), &reports))
	require.Len(t, reports, 1)
	require.Equal(t, "dealers", reports[0].Namespace)
	require.Equal(t, 1, reports[0].Accepted)
	require.Equal(t, 1, reports[0].Rejected)
	require.Equal(t, "data-block", reports[0].Decisions[0].Reason)

	// The page itself is untouched.
	require.Equal(t, dealersPage, readFile(t, filepath.Join(root, "client", "src", "pages", "Dealers.tsx")))
}

func TestTranslateRequiresAPIKey(t *testing.T) {
	setupProject(t, map[string]string{
		"client/src/i18n/locales/zh-TW.json": `{"home": {"title": "首頁"}}`,
	})
	t.Setenv(settings.EnvAPIKey, "")
	t.Setenv(settings.EnvAppID, "")

	err := runTranslate(newTranslateCmd().Flags(), translateArgs{langs: []string{"ja"}})
	require.ErrorIs(t, err, settings.ErrNoAPIKey)
}

func TestTranslateEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var batch map[string]string
		_ = json.Unmarshal([]byte(req.Messages[1].Content), &batch)
		out := map[string]string{}
		for k, v := range batch {
			out[k] = "JA:" + v
		}
		content, _ := json.Marshal(out)
		resp, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "```json\n" + string(content) + "\n```"}}},
		})
		_, _ = w.Write(resp)
	}))
	defer srv.Close()

	root := setupProject(t, map[string]string{
		"client/src/i18n/locales/zh-TW.json": `{"home": {"title": "首頁", "cta": "立即購買"}, "admin": {"users": "使用者"}}`,
		"client/src/i18n/locales/ja.json":    `{"home": {"title": "ホーム"}}`,
		".env":                               settings.EnvAPIKey + "=sk-test-123456\n",
	})
	t.Setenv(settings.EnvAPIKey, "")
	t.Setenv(settings.EnvAppID, "")
	t.Setenv(settings.EnvAPIURL, srv.URL)

	require.NoError(t, runTranslate(newTranslateCmd().Flags(), translateArgs{langs: []string{"ja"}}))

	ja, err := i18next.ParseFile(filepath.Join(root, "client", "src", "i18n", "locales", "ja.json"))
	require.NoError(t, err)
	v, _ := ja.Get("home.title")
	require.Equal(t, "ホーム", v)
	v, _ = ja.Get("home.cta")
	require.Equal(t, "JA:立即購買", v)
	_, ok := ja.Get("admin.users")
	require.False(t, ok, "admin namespaces are ignored")

	lock := readFile(t, filepath.Join(root, "pageloc.lock"))
	require.Contains(t, lock, "ja:")
}

func TestCheckFindsLeftovers(t *testing.T) {
	setupProject(t, map[string]string{
		"client/src/pages/Home.tsx": "// 註解不算\n" +
			"/* 區塊\n   註解 */\n" +
			"export default function Home() {\n" +
			"  return <p>{t('home.title')}</p>;\n" +
			"}\n" +
			"const note = \"尚未翻譯\";\n",
		"client/src/pages/Clean.tsx": "export const A = () => <p>{t('a.b')}</p>;\n",
	})

	var out strings.Builder
	require.NoError(t, runCheck(&out, false))
	require.Equal(t, filepath.Join("client", "src", "pages", "Home.tsx")+":7: const note = \"尚未翻譯\";\n", out.String())

	out.Reset()
	require.Error(t, runCheck(&out, true))
}

func TestFindLeftoversCommentOnSameLine(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "A.tsx")
	require.NoError(t, os.WriteFile(p, []byte("{/* 說明 */}\n/* a */ <p>文字</p>\n"), 0644))

	got, err := findLeftovers(p, "t")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 2, got[0].line)
}

func TestFindLeftoversIgnoresKeys(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "A.tsx")
	src := "<h1>{t('whereToBuy.購買通路')}</h1>\n" +
		"<input placeholder={t(\"whereToBuy.搜尋\")} />\n" +
		"<p>{tr('faq.常見問題')}</p>\n"
	require.NoError(t, os.WriteFile(p, []byte(src), 0644))

	got, err := findLeftovers(p, "t")
	require.NoError(t, err)
	require.Len(t, got, 1, "only the call to another function counts")
	require.Equal(t, 3, got[0].line)

	got, err = findLeftovers(p, "tr")
	require.NoError(t, err)
	require.Len(t, got, 2)
}
