// Package scrape provides a tool that reads the visible text of one fixed
// web page.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/KamdynS/property-crew/tools"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Config configures a WebsiteTool.
type Config struct {
	// MaxChars truncates the extracted text; 0 means no limit.
	MaxChars  int
	Timeout   time.Duration
	UserAgent string
}

// WebsiteTool fetches a single URL, fixed at construction, and returns its
// text content. The model passes no arguments.
type WebsiteTool struct {
	url    string
	config Config
}

// NewWebsiteTool binds a scrape tool to url.
func NewWebsiteTool(url string, config Config) *WebsiteTool {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	return &WebsiteTool{url: url, config: config}
}

// URL returns the page the tool is bound to.
func (t *WebsiteTool) URL() string { return t.url }

// Name implements tools.Tool interface
func (t *WebsiteTool) Name() string { return "read_website_content" }

// Description implements tools.Tool interface
func (t *WebsiteTool) Description() string {
	return fmt.Sprintf("A tool that can be used to read %s's content.", t.url)
}

// Schema implements tools.Tool interface
func (t *WebsiteTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute implements tools.Tool interface. The input is ignored.
func (t *WebsiteTool) Execute(ctx context.Context, _ string) (string, error) {
	c := colly.NewCollector(
		colly.UserAgent(t.config.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(t.config.Timeout)

	var (
		text     string
		parseErr error
	)
	c.OnResponse(func(r *colly.Response) {
		text, parseErr = ExtractText(r.Body)
	})

	if err := c.Visit(t.url); err != nil {
		return "", fmt.Errorf("scrape %s: %w", t.url, err)
	}
	if parseErr != nil {
		return "", fmt.Errorf("parse %s: %w", t.url, parseErr)
	}
	return truncate(text, t.config.MaxChars), nil
}

// ExtractText returns the whitespace-collapsed visible text of an HTML page.
func ExtractText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, svg, template").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var parts []string
	collectText(root, &parts)
	return strings.Join(parts, " "), nil
}

// collectText walks s in document order, keeping non-empty text nodes.
func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if words := strings.Fields(c.Text()); len(words) > 0 {
				*parts = append(*parts, strings.Join(words, " "))
			}
			return
		}
		collectText(c, parts)
	})
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// back off to a rune boundary
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

var _ tools.Tool = (*WebsiteTool)(nil)
