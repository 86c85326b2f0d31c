// Package qualify implements Stage 3: a single generative-text call that
// scores and ranks Stage 2 survivors, with strict response validation, a
// deterministic employment-match bonus, threshold filtering, and a stable
// tie-break.
package qualify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/validate"
)

// EmploymentBonus implements the deterministic bonus table spec.md §4.E
// describes in place of a second AI call: +5 for an exact company match,
// +3 for a variant match, +0 otherwise.
func EmploymentBonus(match model.EmploymentMatch) int {
	switch match {
	case model.EmploymentExact:
		return 5
	case model.EmploymentVariant:
		return 3
	default:
		return 0
	}
}

// Options configures Stage3.
type Options struct {
	Threshold int // minimum score to survive, default 65
	TopM      int // truncate to top-M, default 10
}

// DefaultOptions matches spec.md's stated defaults.
var DefaultOptions = Options{Threshold: 65, TopM: 10}

// Stage3 runs the qualification/ranking stage.
type Stage3 struct {
	Text    ports.GenerativeText
	Options Options
}

type qualificationSystemPromptData struct {
	AccountName string
}

const systemPromptTemplate = `You are qualifying professional-network prospects for %s as potential buyers of energy/facilities capital projects.

%s

Return ONLY a JSON object: {"prospects": [{"index": <int>, "score": <int 0-100>, "persona_tag": "<tag>", "rationale": "<one sentence>"}]}. index must reference the 0-based position in the input list below. Omit any input you cannot confidently score rather than guessing.`

type projectedProfile struct {
	Index       int      `json:"index"`
	FullName    string   `json:"full_name"`
	Title       string   `json:"title"`
	Employer    string   `json:"employer"`
	Location    string   `json:"location"`
	Connections int      `json:"connections"`
	Experience  []string `json:"recent_experience"`
	Summary     string   `json:"summary"`
}

type qualificationResponse struct {
	Prospects []struct {
		Index      int    `json:"index"`
		Score      int    `json:"score"`
		PersonaTag string `json:"persona_tag"`
		Rationale  string `json:"rationale"`
	} `json:"prospects"`
}

// Run issues the single qualification call and returns the final ranked,
// threshold-filtered, top-M-truncated QualifiedProspect list.
func (s *Stage3) Run(ctx context.Context, accountName string, survivors []*validate.Survivor) ([]*model.QualifiedProspect, *model.StageError) {
	if len(survivors) == 0 {
		return nil, nil
	}

	systemPrompt := fmt.Sprintf(systemPromptTemplate, accountName, BuyerPersonaRubric)
	userPrompt, err := buildUserPrompt(survivors)
	if err != nil {
		return nil, model.NewStageError(model.Stage3Qualify, model.ErrKindParseError, "build prompt: %v", err)
	}

	raw, callErr := s.Text.Complete(ctx, systemPrompt, userPrompt)
	if callErr != nil {
		if se, ok := model.AsStageError(callErr); ok {
			return nil, se
		}
		return nil, model.NewStageError(model.Stage3Qualify, model.ErrKindTransport, "%v", callErr)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var resp qualificationResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, model.NewStageError(model.Stage3Qualify, model.ErrKindParseError, "decode qualification response: %v", err)
	}

	results := make(map[int]*model.QualifiedProspect, len(survivors))
	seen := make(map[int]bool, len(resp.Prospects))
	for _, p := range resp.Prospects {
		if p.Index < 0 || p.Index >= len(survivors) {
			return nil, model.NewStageError(model.Stage3Qualify, model.ErrKindParseError, "qualification response index %d out of range [0,%d)", p.Index, len(survivors))
		}
		if seen[p.Index] {
			return nil, model.NewStageError(model.Stage3Qualify, model.ErrKindParseError, "qualification response duplicate index %d", p.Index)
		}
		seen[p.Index] = true

		sv := survivors[p.Index]
		score := p.Score + EmploymentBonus(sv.EmploymentMatch)
		results[p.Index] = &model.QualifiedProspect{
			Candidate:       sv.Candidate,
			Profile:         sv.Profile,
			EmploymentMatch: sv.EmploymentMatch,
			Score:           score,
			ScoreSet:        true,
			Rationale:       p.Rationale,
			Persona:         model.PersonaTag(p.PersonaTag),
			InputIndex:      p.Index,
		}
	}

	// Unranked inputs score 0 (dropped by threshold) per spec.md §4.E.
	for i, sv := range survivors {
		if _, ok := results[i]; ok {
			continue
		}
		results[i] = &model.QualifiedProspect{
			Candidate:       sv.Candidate,
			Profile:         sv.Profile,
			EmploymentMatch: sv.EmploymentMatch,
			Score:           0,
			ScoreSet:        false,
			Persona:         model.PersonaOther,
			InputIndex:      i,
		}
	}

	qualified := make([]*model.QualifiedProspect, 0, len(results))
	threshold := s.Options.Threshold
	if threshold == 0 {
		threshold = DefaultOptions.Threshold
	}
	for _, q := range results {
		if q.Score >= threshold {
			qualified = append(qualified, q)
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].Score != qualified[j].Score {
			return qualified[i].Score > qualified[j].Score
		}
		ci, cj := connections(qualified[i]), connections(qualified[j])
		if ci != cj {
			return ci > cj
		}
		return qualified[i].InputIndex < qualified[j].InputIndex
	})

	topM := s.Options.TopM
	if topM == 0 {
		topM = DefaultOptions.TopM
	}
	if len(qualified) > topM {
		qualified = qualified[:topM]
	}

	return qualified, nil
}

func connections(q *model.QualifiedProspect) int {
	if q.Profile == nil {
		return 0
	}
	return q.Profile.Connections
}

func buildUserPrompt(survivors []*validate.Survivor) (string, error) {
	projected := make([]projectedProfile, 0, len(survivors))
	for i, sv := range survivors {
		p := sv.Profile
		exp := make([]string, 0, 3)
		for j, e := range p.Experience {
			if j >= 3 {
				break
			}
			exp = append(exp, fmt.Sprintf("%s at %s", e.Title, e.Employer))
		}
		projected = append(projected, projectedProfile{
			Index:       i,
			FullName:    p.FullName,
			Title:       p.CurrentTitle,
			Employer:    p.CurrentEmployer,
			Location:    p.Location.Raw,
			Connections: p.Connections,
			Experience:  exp,
			Summary:     p.Headline,
		})
	}
	body, err := json.Marshal(projected)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Prospects to score:\n%s", string(body)), nil
}
