// Package datasetfilter implements ports.DatasetFilter against a
// Bright-Data-shaped "filter a dataset" API: submit a boolean filter
// expression, poll a snapshot until ready, download the result batch.
package datasetfilter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/titles"
)

const (
	pollInterval  = 10 * time.Second
	pollTimeout   = 5 * time.Minute
	defaultHardCap = 75
)

// Client implements ports.DatasetFilter over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	hardCap    int
	minConns   int
	titles     *titles.Set

	breaker               *resilience.Breaker
	downloadWarmupRetries int
}

// Options configures a Client.
type Options struct {
	BaseURL               string
	APIToken              string
	HardCap               int // 0 uses defaultHardCap
	MinConnections        int
	Titles                *titles.Set
	DownloadWarmupRetries int // retries for the "ready but download not yet warm" race
}

// New builds a dataset-filter Client.
func New(httpClient *http.Client, opts Options) *Client {
	hardCap := opts.HardCap
	if hardCap == 0 {
		hardCap = defaultHardCap
	}
	warmup := opts.DownloadWarmupRetries
	if warmup == 0 {
		warmup = 3
	}
	return &Client{
		httpClient:            httpClient,
		baseURL:               opts.BaseURL,
		apiToken:              opts.APIToken,
		hardCap:               hardCap,
		minConns:              opts.MinConnections,
		titles:                opts.Titles,
		breaker:               resilience.NewBreaker("datasetfilter", 5, 30*time.Second),
		downloadWarmupRetries: warmup,
	}
}

type filterRequest struct {
	CompanyNames   []string `json:"company_names"`
	TargetTitles   []string `json:"target_titles"`
	NegativeTitles []string `json:"negative_titles"`
	MinConnections int      `json:"min_connections"`
	IndustryHint   string   `json:"industry_hint,omitempty"`
	City           string   `json:"city,omitempty"`
}

type submitResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type statusResponse struct {
	Status        string `json:"status"` // "running" | "ready" | "failed"
	RecordCount   int    `json:"record_count"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type profileRecord struct {
	ProfileURL      string `json:"profile_url"`
	FullName        string `json:"full_name"`
	Headline        string `json:"headline"`
	CurrentTitle    string `json:"position"`
	CurrentEmployer string `json:"current_employer"`
	Location        string `json:"location"`
	Connections     int    `json:"connections"`
}

// SubmitAndCollect runs one dataset filter job end to end. cityFilter, when
// non-empty, is added to the filter expression as an optional "location
// includes" term (spec.md §4.A.1); an empty string leaves the dataset's
// own city matching disabled, matching Stage 2's off-by-default location
// filter (spec.md §4.D).
func (c *Client) SubmitAndCollect(ctx context.Context, names *model.CompanyNameSet, industryHint *string, cityFilter string) (string, []*model.Candidate, error) {
	req := filterRequest{
		CompanyNames:   names.Variants(),
		TargetTitles:   c.titles.Target,
		NegativeTitles: c.titles.Negative,
		MinConnections: c.minConns,
		City:           cityFilter,
	}
	if industryHint != nil {
		req.IndustryHint = *industryHint
	}

	snapshotID, err := resilience.Call(ctx, c.breaker, model.Stage1Acquire, resilience.DefaultPolicy, func(ctx context.Context) (string, error) {
		return c.submit(ctx, req)
	})
	if err != nil {
		return "", nil, err
	}

	status, err := c.pollUntilReady(ctx, snapshotID)
	if err != nil {
		return snapshotID, nil, err
	}

	if status.RecordCount > c.hardCap {
		return snapshotID, nil, model.NewStageError(model.Stage1Acquire, model.ErrKindOverflow,
			"dataset filter returned %d records, exceeding hard cap %d; tighten filters before retrying", status.RecordCount, c.hardCap)
	}

	records, err := c.downloadWithWarmupRetry(ctx, snapshotID)
	if err != nil {
		return snapshotID, nil, err
	}

	candidates := make([]*model.Candidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, recordToCandidate(rec))
	}
	return snapshotID, candidates, nil
}

func (c *Client) submit(ctx context.Context, req filterRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", model.NewStageError(model.Stage1Acquire, model.ErrKindBadResponse, "marshal filter request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/datasets/filter", bytes.NewReader(body))
	if err != nil {
		return "", model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "build request: %v", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "submit filter: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", resilience.NewRateLimited(model.Stage1Acquire, "dataset filter submit rate-limited", retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", model.NewStageError(model.Stage1Acquire, model.ErrKindBadResponse, "submit filter: status %d", resp.StatusCode)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", model.NewStageError(model.Stage1Acquire, model.ErrKindParseError, "decode submit response: %v", err)
	}
	return out.SnapshotID, nil
}

func (c *Client) pollUntilReady(ctx context.Context, snapshotID string) (*statusResponse, error) {
	deadline := time.Now().Add(pollTimeout)
	for {
		status, err := c.checkStatus(ctx, snapshotID)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case "ready":
			return status, nil
		case "failed":
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindBadResponse, "dataset filter job failed: %s", status.FailureReason)
		}
		if time.Now().After(deadline) {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindTimeout, "dataset filter job %s did not become ready within %s", snapshotID, pollTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindCancelled, "context cancelled while polling")
		case <-time.After(pollInterval):
		}
	}
}

func (c *Client) checkStatus(ctx context.Context, snapshotID string) (*statusResponse, error) {
	return resilience.Call(ctx, c.breaker, model.Stage1Acquire, resilience.DefaultPolicy, func(ctx context.Context) (*statusResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/datasets/filter/%s", c.baseURL, snapshotID), nil)
		if err != nil {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "build status request: %v", err)
		}
		c.authorize(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "check status: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindBadResponse, "check status: status %d", resp.StatusCode)
		}

		var out statusResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindParseError, "decode status response: %v", err)
		}
		return &out, nil
	})
}

// downloadWithWarmupRetry handles the "status=ready but download not yet
// warm" race (spec.md §9): the status endpoint can report ready slightly
// before the download endpoint actually serves the batch.
func (c *Client) downloadWithWarmupRetry(ctx context.Context, snapshotID string) ([]profileRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= c.downloadWarmupRetries; attempt++ {
		records, err := c.download(ctx, snapshotID)
		if err == nil {
			return records, nil
		}
		se, ok := model.AsStageError(err)
		if !ok || se.Kind != model.ErrKindBadResponse {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindCancelled, "context cancelled while waiting for download warmup")
		case <-time.After(pollInterval):
		}
	}
	return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "download never warmed up after %d retries: %v", c.downloadWarmupRetries, lastErr)
}

func (c *Client) download(ctx context.Context, snapshotID string) ([]profileRecord, error) {
	return resilience.Call(ctx, c.breaker, model.Stage1Acquire, resilience.DefaultPolicy, func(ctx context.Context) ([]profileRecord, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/datasets/filter/%s/download", c.baseURL, snapshotID), nil)
		if err != nil {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "build download request: %v", err)
		}
		c.authorize(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindTransport, "download: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusConflict {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindBadResponse, "download not yet warm: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindBadResponse, "download: status %d", resp.StatusCode)
		}

		var records []profileRecord
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			return nil, model.NewStageError(model.Stage1Acquire, model.ErrKindParseError, "decode download batch: %v", err)
		}
		return records, nil
	})
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := time.ParseDuration(v + "s"); err == nil {
		return secs
	}
	return 0
}

func recordToCandidate(rec profileRecord) *model.Candidate {
	profile := &model.Profile{
		ProfileURL:      rec.ProfileURL,
		FullName:        rec.FullName,
		Headline:        rec.Headline,
		CurrentTitle:    rec.CurrentTitle,
		CurrentEmployer: rec.CurrentEmployer,
		Location:        model.Location{Raw: rec.Location},
		Connections:     rec.Connections,
		HasConnections:  true,
	}
	profile.ComputeDerivedScores()
	return &model.Candidate{
		ProfileURL: model.CanonicalizeProfileURL(rec.ProfileURL),
		Source:     model.SourceDataset,
		HasProfile: true,
		Profile:    profile,
	}
}
