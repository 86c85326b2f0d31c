// Package websearch implements ports.WebSearch: site-restricted search
// queries of the form "{employer variant} {title} site:{profile host}".
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

const defaultPerQueryCap = 5

// Client implements ports.WebSearch over a generic search-engine HTTP API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	profileHost string
	perQueryCap int
	breaker     *resilience.Breaker
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	APIKey      string
	ProfileHost string // e.g. "www.linkedin.com"
	PerQueryCap int     // 0 uses defaultPerQueryCap
}

// New builds a web-search Client.
func New(httpClient *http.Client, opts Options) *Client {
	cap := opts.PerQueryCap
	if cap == 0 {
		cap = defaultPerQueryCap
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     opts.BaseURL,
		apiKey:      opts.APIKey,
		profileHost: opts.ProfileHost,
		perQueryCap: cap,
		breaker:     resilience.NewBreaker("websearch", 5, 30*time.Second),
	}
}

// BuildQuery forms the site-restricted query string for a (variant, title)
// pair, per spec.md §4.A.2.
func (c *Client) BuildQuery(variant, title string) string {
	return fmt.Sprintf("%s %s site:%s", variant, title, c.profileHost)
}

type searchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Rank    int    `json:"rank"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Search issues one query and returns up to PerQueryCap candidates,
// each lacking an attached Profile.
func (c *Client) Search(ctx context.Context, query string) ([]*model.Candidate, error) {
	results, err := resilience.Call(ctx, c.breaker, model.Stage1Acquire, resilience.DefaultPolicy, func(ctx context.Context) ([]searchResult, error) {
		return c.doSearch(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	if len(results) > c.perQueryCap {
		results = results[:c.perQueryCap]
	}

	candidates := make([]*model.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, &model.Candidate{
			ProfileURL: model.CanonicalizeProfileURL(r.URL),
			Source:     model.SourceSearch,
			HasProfile: false,
			RawMeta: map[string]string{
				"search_title":   r.Title,
				"search_snippet": r.Snippet,
			},
		})
	}
	return candidates, nil
}

func (c *Client) doSearch(ctx context.Context, query string) ([]searchResult, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(query))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "build search request: %v", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "search: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, resilience.NewRateLimited(model.Stage1Acquire, "web search rate-limited", 0)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindBadResponse, "search: status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindParseError, "decode search response: %v", err)
	}
	return out.Results, nil
}
