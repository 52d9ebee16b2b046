// Package search provides a web search tool backed by the Serper.dev Google
// search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/property-crew/tools"
)

// DefaultBaseURL is the Serper search endpoint.
const DefaultBaseURL = "https://google.serper.dev/search"

// ErrMissingQuery is returned when the tool is called without a search query.
var ErrMissingQuery = errors.New("search_query is required")

// Config configures a SerperTool.
type Config struct {
	APIKey  string
	BaseURL string
	// Results is the number of organic results requested; 0 means 10.
	Results int
	Timeout time.Duration
}

// SerperTool searches the internet through Serper.dev.
type SerperTool struct {
	client *http.Client
	config Config
}

// NewSerperTool creates a search tool.
func NewSerperTool(config Config) *SerperTool {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Results <= 0 {
		config.Results = 10
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &SerperTool{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Name implements tools.Tool interface
func (t *SerperTool) Name() string { return "search_internet" }

// Description implements tools.Tool interface
func (t *SerperTool) Description() string {
	return "A tool that can be used to search the internet with a search_query."
}

// Schema implements tools.Tool interface
func (t *SerperTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"search_query": map[string]interface{}{
				"type":        "string",
				"description": "Mandatory search query you want to use to search the internet",
			},
		},
		"required": []string{"search_query"},
	}
}

type request struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type response struct {
	AnswerBox *struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox,omitempty"`
	KnowledgeGraph *struct {
		Title       string            `json:"title"`
		Type        string            `json:"type"`
		Description string            `json:"description"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"knowledgeGraph,omitempty"`
	Organic []organicResult `json:"organic"`
}

// Execute implements tools.Tool interface. input is either the JSON
// arguments object or a bare query string.
func (t *SerperTool) Execute(ctx context.Context, input string) (string, error) {
	query := parseQuery(input)
	if query == "" {
		return "", ErrMissingQuery
	}
	if t.config.APIKey == "" {
		return "", errors.New("serper API key is not configured")
	}

	body, err := json.Marshal(request{Q: query, Num: t.config.Results})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", t.config.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return format(parsed), nil
}

func parseQuery(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "{") {
		var args struct {
			SearchQuery string `json:"search_query"`
			Query       string `json:"query"`
		}
		if err := json.Unmarshal([]byte(input), &args); err == nil {
			if args.SearchQuery != "" {
				return strings.TrimSpace(args.SearchQuery)
			}
			return strings.TrimSpace(args.Query)
		}
	}
	return input
}

func format(r response) string {
	var b strings.Builder
	if ab := r.AnswerBox; ab != nil {
		answer := ab.Answer
		if answer == "" {
			answer = ab.Snippet
		}
		if answer != "" {
			fmt.Fprintf(&b, "Answer: %s\n---\n", answer)
		}
	}
	if kg := r.KnowledgeGraph; kg != nil && kg.Title != "" {
		fmt.Fprintf(&b, "Knowledge Graph: %s", kg.Title)
		if kg.Type != "" {
			fmt.Fprintf(&b, " (%s)", kg.Type)
		}
		b.WriteString("\n")
		if kg.Description != "" {
			fmt.Fprintf(&b, "%s\n", kg.Description)
		}
		for k, v := range kg.Attributes {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
		b.WriteString("---\n")
	}
	for _, o := range r.Organic {
		fmt.Fprintf(&b, "Title: %s\nLink: %s\nSnippet: %s\n---\n", o.Title, o.Link, o.Snippet)
	}
	if b.Len() == 0 {
		return "No results found."
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var _ tools.Tool = (*SerperTool)(nil)
