package normalizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
)

const normalizerSystemPrompt = `You are an expert at normalizing company names for professional-network profile searches. Your goal is to generate name variations that will match how employees actually list their employer on their profile, ordered by likelihood of appearing that way.`

type generativeVariantsResponse struct {
	Variations []string `json:"variations"`
}

// Generative calls the generative-text adapter for employer-name
// variants, grounded on the source's AI company-normalization prompt.
type Generative struct {
	text ports.GenerativeText
}

// NewGenerative builds a Generative normalizer over the given adapter.
func NewGenerative(text ports.GenerativeText) *Generative {
	return &Generative{text: text}
}

// Normalize asks the generative-text adapter for 5-10 likely employer-name
// forms and returns them as a CompanyNameSet. Any transport, parse, or
// validation failure is returned as an error for the caller (normally
// normalizer.WithFallback) to fall back on.
func (g *Generative) Normalize(ctx context.Context, account model.AccountRef) (*model.CompanyNameSet, error) {
	prompt := buildNormalizationPrompt(account)

	raw, err := g.text.Complete(ctx, normalizerSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generative normalizer: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var resp generativeVariantsResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, model.NewStageError(model.StageAccountResolve, model.ErrKindParseError, "normalizer: decode variants: %v", err)
	}
	if len(resp.Variations) == 0 {
		return nil, model.NewStageError(model.StageAccountResolve, model.ErrKindParseError, "normalizer: empty variations list")
	}

	return model.NewCompanyNameSet(account.Name, resp.Variations...)
}

func buildNormalizationPrompt(account model.AccountRef) string {
	p := fmt.Sprintf("Generate employer-name variations for: %s\n", account.Name)
	if account.ParentName != nil {
		p += fmt.Sprintf("Parent organization: %s\n", *account.ParentName)
	}
	if account.City != nil {
		p += fmt.Sprintf("City: %s\n", *account.City)
	}
	if account.State != nil {
		p += fmt.Sprintf("State: %s\n", *account.State)
	}
	p += "\nReturn ONLY a JSON object: {\"variations\": [\"most common form\", ...]}, 5-10 entries, ordered by likelihood of appearing on a profile."
	return p
}
