package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const maxSearchResults = 5

// SearchResult is a single related topic.
type SearchResult struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// SearchResponse is what web_search hands back to the model.
type SearchResponse struct {
	Query    string         `json:"query"`
	Abstract string         `json:"abstract,omitempty"`
	Source   string         `json:"source,omitempty"`
	Results  []SearchResult `json:"results"`
}

// DuckDuckGo queries the DuckDuckGo instant answer API.
type DuckDuckGo struct {
	BaseURL string

	http httpJSON
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	AbstractText   string     `json:"AbstractText"`
	AbstractSource string     `json:"AbstractSource"`
	AbstractURL    string     `json:"AbstractURL"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
}

// Search runs query and returns up to five related topics.
func (d *DuckDuckGo) Search(ctx context.Context, query string) (SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResponse{}, errors.New("parameter 'query' must not be empty")
	}

	var raw ddgResponse
	q := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	if err := d.http.get(ctx, d.BaseURL, "/", q, &raw); err != nil {
		return SearchResponse{}, fmt.Errorf("search %q: %w", query, err)
	}

	out := SearchResponse{
		Query:    query,
		Abstract: raw.AbstractText,
		Source:   raw.AbstractURL,
		Results:  make([]SearchResult, 0, maxSearchResults),
	}
	collectTopics(&out.Results, raw.RelatedTopics)
	return out, nil
}

// collectTopics flattens grouped topics in order until the limit is hit.
func collectTopics(dst *[]SearchResult, topics []ddgTopic) {
	for _, t := range topics {
		if len(*dst) >= maxSearchResults {
			return
		}
		if len(t.Topics) > 0 {
			collectTopics(dst, t.Topics)
			continue
		}
		if t.Text == "" {
			continue
		}
		*dst = append(*dst, SearchResult{Text: t.Text, URL: t.FirstURL})
	}
}

// SearchSupported reports whether web search should be offered to a model.
// Local Ollama models are excluded.
func SearchSupported(modelName string) bool {
	if modelName == "" {
		return true
	}
	return !strings.HasPrefix(strings.ToLower(modelName), "ollama")
}
