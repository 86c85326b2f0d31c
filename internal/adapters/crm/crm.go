// Package crm implements the read-only slice of ports.CrmReader the core
// pipeline depends on. Write operations live in the surrounding repo and
// are out of scope here.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// Client implements ports.CrmReader over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *resilience.Breaker
}

// New builds a CRM read client.
func New(httpClient *http.Client, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		breaker:    resilience.NewBreaker("crm", 5, 30*time.Second),
	}
}

type accountResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ParentName *string `json:"parent_name"`
	City       *string `json:"city"`
	State      *string `json:"state"`
}

// GetAccount fetches an account by id.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*model.AccountRecord, error) {
	return resilience.Call(ctx, c.breaker, model.StageAccountResolve, resilience.DefaultPolicy, func(ctx context.Context) (*model.AccountRecord, error) {
		var out accountResponse
		if err := c.get(ctx, fmt.Sprintf("/accounts/%s", accountID), &out); err != nil {
			return nil, err
		}
		return &model.AccountRecord{
			ID: out.ID, Name: out.Name, ParentName: out.ParentName, City: out.City, State: out.State,
		}, nil
	})
}

// GetParentName looks up the current parent-organization name for an
// account, which may be more current than the account record's
// denormalized field.
func (c *Client) GetParentName(ctx context.Context, accountID string) (*string, error) {
	return resilience.Call(ctx, c.breaker, model.StageAccountResolve, resilience.DefaultPolicy, func(ctx context.Context) (*string, error) {
		var out struct {
			ParentName *string `json:"parent_name"`
		}
		if err := c.get(ctx, fmt.Sprintf("/accounts/%s/parent", accountID), &out); err != nil {
			return nil, err
		}
		return out.ParentName, nil
	})
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return model.NewStageError(model.StageAccountResolve, model.ErrKindTransport, "build request: %v", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.NewStageError(model.StageAccountResolve, model.ErrKindTransport, "crm request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return resilience.NewRateLimited(model.StageAccountResolve, "crm rate-limited", 0)
	}
	if resp.StatusCode != http.StatusOK {
		return model.NewStageError(model.StageAccountResolve, model.ErrKindBadResponse, "crm request: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.NewStageError(model.StageAccountResolve, model.ErrKindParseError, "decode crm response: %v", err)
	}
	return nil
}
