package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultBaseURL is the chat-completion host used when none is configured.
const DefaultBaseURL = "https://forge.manus.im"

// DefaultModel is the model requested when none is configured.
const DefaultModel = "gemini-2.5-flash"

// DefaultPrompt is the system prompt. {{sourceLang}}, {{targetLang}} and
// {{keepTerms}} are substituted per request.
const DefaultPrompt = `You are a professional translator for a premium consumer brand website.
Translate {{sourceLang}} to {{targetLang}}.

RULES:
1. Output VALID JSON ONLY. No markdown.
2. Return an object with exactly the same keys as the input.
3. Keep these terms untranslated: {{keepTerms}}.
4. Professional tone.`

// Translator translates one batch of key -> text pairs.
type Translator interface {
	Translate(ctx context.Context, batch map[string]string, instruction string) (map[string]string, error)
}

// Client calls an OpenAI-compatible chat/completions endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	Prompt     string
	SourceLang string
	KeepTerms  []string
	HTTP       *http.Client
}

// NewClient returns a Client with an HTTP client honouring proxyURL (or the
// HTTP(S)_PROXY environment when empty).
func NewClient(baseURL, apiKey, model, proxyURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Prompt:  DefaultPrompt,
		HTTP:    makeHTTPClient(proxyURL, timeout),
	}
}

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Endpoint returns the full request URL. A base URL already ending in
// /completions is used as is.
func (c *Client) Endpoint() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if strings.HasSuffix(base, "/completions") {
		return base
	}
	return base + "/v1/chat/completions"
}

// SystemPrompt renders the prompt for one target language instruction.
func (c *Client) SystemPrompt(instruction string) string {
	prompt := c.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	src := c.SourceLang
	if src == "" {
		src = "Traditional Chinese"
	}
	terms := "none"
	if len(c.KeepTerms) > 0 {
		quoted := make([]string, len(c.KeepTerms))
		for i, t := range c.KeepTerms {
			quoted[i] = `"` + t + `"`
		}
		terms = strings.Join(quoted, ", ")
	}
	return strings.NewReplacer(
		"{{sourceLang}}", src,
		"{{targetLang}}", instruction,
		"{{keepTerms}}", terms,
	).Replace(prompt)
}

// Translate sends one batch and returns the parsed key -> translation map.
func (c *Client) Translate(ctx context.Context, batch map[string]string, instruction string) (map[string]string, error) {
	user, err := marshalBatch(batch)
	if err != nil {
		return nil, err
	}
	body, err := buildChatRequest(c.Model, c.SystemPrompt(instruction), user)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	text, err := extractResponseText(respBody)
	if err != nil {
		return nil, err
	}
	return parseTranslationMap(text)
}

func marshalBatch(batch map[string]string) (string, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(batch); err != nil {
		return "", fmt.Errorf("encoding batch: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

func buildChatRequest(model, systemPrompt, userPrompt string) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model    string `json:"model"`
		Messages []msg  `json:"messages"`
		Stream   bool   `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
	}
	return json.Marshal(req)
}

// extractResponseText returns choices[0].message.content, or the API error.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok && errObj != nil {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseTranslationMap extracts a flat JSON object of strings from the model
// reply. Non-string values are dropped.
func parseTranslationMap(content string) (map[string]string, error) {
	content = strings.TrimSpace(content)

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse translation response as JSON object: %w\nResponse: %s", err, truncate(content, 300))
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("response contained no translated strings")
	}
	return out, nil
}

// truncate shortens s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
