// Package scraper implements ports.ProfileScraper two ways: ActorClient
// submits one batch job for every URL and polls it to completion;
// RodScraper drives a single local headless-browser process with no batch
// endpoint to submit to, so it fans a batch out into per-URL scrapes
// internally instead.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

const (
	actorPollInterval = 5 * time.Second
	actorPollTimeout  = 5 * time.Minute // batch jobs cover many profiles, not one
)

// ActorClient implements ports.ProfileScraper by submitting a batch scrape
// job to a managed actor and polling until the whole batch completes, per
// spec.md §4.A.3 and §4.D step 2.
type ActorClient struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	breaker    *resilience.Breaker
}

// NewActorClient builds an ActorClient.
func NewActorClient(httpClient *http.Client, baseURL, apiToken string) *ActorClient {
	return &ActorClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiToken:   apiToken,
		breaker:    resilience.NewBreaker("scraper-actor", 5, 30*time.Second),
	}
}

type actorSubmitResponse struct {
	JobID string `json:"job_id"`
}

type actorBatchStatusResponse struct {
	Status   string        `json:"status"` // "running" | "done" | "failed"
	Profiles []*rawProfile `json:"profiles,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type rawProfile struct {
	ProfileURL      string   `json:"profile_url"`
	FullName        string   `json:"full_name"`
	GivenName       string   `json:"given_name"`
	FamilyName      string   `json:"family_name"`
	Headline        string   `json:"headline"`
	CurrentTitle    string   `json:"current_title"`
	CurrentEmployer string   `json:"current_employer"`
	Location        string   `json:"location"`
	Connections     int      `json:"connections"`
	HasConnections  bool     `json:"has_connections"`
	Followers       int      `json:"followers"`
	HasFollowers    bool     `json:"has_followers"`
	Biography       string   `json:"biography"`
	Skills          []string `json:"skills"`
	Experience      []struct {
		Title    string `json:"title"`
		Employer string `json:"employer"`
		Location string `json:"location"`
		Start    string `json:"start"`
		End      string `json:"end"`
	} `json:"experience"`
	Education []struct {
		School string `json:"school"`
		Degree string `json:"degree"`
		Field  string `json:"field"`
	} `json:"education"`
}

// ScrapeMany submits every profile URL as one batch job and polls until
// the actor finishes the whole batch, per spec.md §4.D step 2. A URL the
// actor could not resolve simply has no entry in rawProfile's source list
// and so is absent from the returned map; that is not itself an error for
// the batch as a whole.
func (c *ActorClient) ScrapeMany(ctx context.Context, profileURLs []string) (map[string]*model.Profile, error) {
	if len(profileURLs) == 0 {
		return map[string]*model.Profile{}, nil
	}

	jobID, err := resilience.Call(ctx, c.breaker, model.Stage2Validate, resilience.DefaultPolicy, func(ctx context.Context) (string, error) {
		return c.submitBatch(ctx, profileURLs)
	})
	if err != nil {
		return nil, err
	}

	raws, err := c.pollBatchUntilDone(ctx, jobID)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*model.Profile, len(raws))
	for _, raw := range raws {
		profiles[raw.ProfileURL] = rawToProfile(raw)
	}
	return profiles, nil
}

func (c *ActorClient) submitBatch(ctx context.Context, profileURLs []string) (string, error) {
	body, _ := json.Marshal(map[string][]string{"profile_urls": profileURLs})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape/batch", bytes.NewReader(body))
	if err != nil {
		return "", model.NewStageError(model.Stage2Validate, model.ErrKindTransport, "build batch scrape request: %v", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", model.NewStageError(model.Stage2Validate, model.ErrKindTransport, "submit batch scrape: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", resilience.NewRateLimited(model.Stage2Validate, "scraper batch submit rate-limited", 0)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", model.NewStageError(model.Stage2Validate, model.ErrKindBadResponse, "submit batch scrape: status %d", resp.StatusCode)
	}

	var out actorSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", model.NewStageError(model.Stage2Validate, model.ErrKindParseError, "decode batch submit response: %v", err)
	}
	return out.JobID, nil
}

func (c *ActorClient) pollBatchUntilDone(ctx context.Context, jobID string) ([]*rawProfile, error) {
	deadline := time.Now().Add(actorPollTimeout)
	for {
		status, err := c.checkBatchStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case "done":
			return status.Profiles, nil
		case "failed":
			return nil, model.NewStageError(model.Stage2Validate, model.ErrKindBadResponse, "batch scrape job %s failed: %s", jobID, status.Error)
		}
		if time.Now().After(deadline) {
			return nil, model.NewStageError(model.Stage2Validate, model.ErrKindTimeout, "batch scrape job %s did not complete within %s", jobID, actorPollTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, model.NewStageError(model.Stage2Validate, model.ErrKindCancelled, "context cancelled while polling batch scrape job")
		case <-time.After(actorPollInterval):
		}
	}
}

func (c *ActorClient) checkBatchStatus(ctx context.Context, jobID string) (*actorBatchStatusResponse, error) {
	return resilience.Call(ctx, c.breaker, model.Stage2Validate, resilience.DefaultPolicy, func(ctx context.Context) (*actorBatchStatusResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/scrape/batch/%s", c.baseURL, jobID), nil)
		if err != nil {
			return nil, model.NewStageError(model.Stage2Validate, model.ErrKindTransport, "build batch status request: %v", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, model.NewStageError(model.Stage2Validate, model.ErrKindTransport, "check batch status: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, model.NewStageError(model.Stage2Validate, model.ErrKindBadResponse, "check batch status: status %d", resp.StatusCode)
		}

		var out actorBatchStatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, model.NewStageError(model.Stage2Validate, model.ErrKindParseError, "decode batch status response: %v", err)
		}
		return &out, nil
	})
}

func rawToProfile(raw *rawProfile) *model.Profile {
	p := &model.Profile{
		ProfileURL:      raw.ProfileURL,
		FullName:        raw.FullName,
		GivenName:       raw.GivenName,
		FamilyName:      raw.FamilyName,
		Headline:        raw.Headline,
		CurrentTitle:    raw.CurrentTitle,
		CurrentEmployer: raw.CurrentEmployer,
		Location:        model.Location{Raw: raw.Location},
		Connections:     raw.Connections,
		HasConnections:  raw.HasConnections,
		Followers:       raw.Followers,
		HasFollowers:    raw.HasFollowers,
		Biography:       raw.Biography,
		Skills:          raw.Skills,
	}
	for _, e := range raw.Experience {
		p.Experience = append(p.Experience, model.ExperienceEntry{
			Title: e.Title, Employer: e.Employer, Location: e.Location, Start: e.Start, End: e.End,
		})
	}
	for _, e := range raw.Education {
		p.Education = append(p.Education, model.EducationEntry{School: e.School, Degree: e.Degree, Field: e.Field})
	}
	p.ReconcileCurrentEmployment()
	p.ComputeDerivedScores()
	return p
}
