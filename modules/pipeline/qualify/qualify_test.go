package qualify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/validate"
)

type fakeText struct {
	response []byte
	err      error
}

func (f *fakeText) Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	return f.response, f.err
}

func survivor(url string, connections int) *validate.Survivor {
	return &validate.Survivor{
		Candidate:       &model.Candidate{ProfileURL: url},
		Profile:         &model.Profile{ProfileURL: url, Connections: connections},
		EmploymentMatch: model.EmploymentExact,
	}
}

func TestStage3_RejectsUnparseableResponse(t *testing.T) {
	stage := &Stage3{Text: &fakeText{response: []byte("not json")}, Options: DefaultOptions}

	_, stageErr := stage.Run(context.Background(), "Acme", []*validate.Survivor{survivor("u1", 100)})

	require.NotNil(t, stageErr)
	assert.Equal(t, model.ErrKindParseError, stageErr.Kind)
}

func TestStage3_RejectsOutOfRangeIndex(t *testing.T) {
	stage := &Stage3{Text: &fakeText{response: []byte(`{"prospects":[{"index":5,"score":80,"persona_tag":"other","rationale":"x"}]}`)}, Options: DefaultOptions}

	_, stageErr := stage.Run(context.Background(), "Acme", []*validate.Survivor{survivor("u1", 100)})

	require.NotNil(t, stageErr)
	assert.Equal(t, model.ErrKindParseError, stageErr.Kind)
}

func TestStage3_RejectsDuplicateIndex(t *testing.T) {
	resp := []byte(`{"prospects":[{"index":0,"score":80,"persona_tag":"other","rationale":"x"},{"index":0,"score":70,"persona_tag":"other","rationale":"y"}]}`)
	stage := &Stage3{Text: &fakeText{response: resp}, Options: DefaultOptions}

	_, stageErr := stage.Run(context.Background(), "Acme", []*validate.Survivor{survivor("u1", 100)})

	require.NotNil(t, stageErr)
	assert.Equal(t, model.ErrKindParseError, stageErr.Kind)
}

func TestStage3_TieBreakByConnectionsThenInputOrder(t *testing.T) {
	resp := []byte(`{"prospects":[
		{"index":0,"score":60,"persona_tag":"other","rationale":"a"},
		{"index":1,"score":60,"persona_tag":"other","rationale":"b"},
		{"index":2,"score":60,"persona_tag":"other","rationale":"c"}
	]}`)
	survivors := []*validate.Survivor{
		survivor("low", 50),
		survivor("high", 500),
		survivor("mid", 500),
	}
	stage := &Stage3{Text: &fakeText{response: resp}, Options: Options{Threshold: 60, TopM: 10}}

	qualified, stageErr := stage.Run(context.Background(), "Acme", survivors)

	require.Nil(t, stageErr)
	require.Len(t, qualified, 3)
	// all scored 65 after +5 exact-match bonus; tie broken by connections desc, then input order
	assert.Equal(t, "high", qualified[0].ProfileURL())
	assert.Equal(t, "mid", qualified[1].ProfileURL())
	assert.Equal(t, "low", qualified[2].ProfileURL())
}

func TestStage3_UnrankedInputScoresZeroAndIsDropped(t *testing.T) {
	resp := []byte(`{"prospects":[{"index":0,"score":90,"persona_tag":"facilities-decision-maker","rationale":"strong fit"}]}`)
	survivors := []*validate.Survivor{
		survivor("ranked", 500),
		survivor("unranked", 500),
	}
	stage := &Stage3{Text: &fakeText{response: resp}, Options: DefaultOptions}

	qualified, stageErr := stage.Run(context.Background(), "Acme", survivors)

	require.Nil(t, stageErr)
	require.Len(t, qualified, 1)
	assert.Equal(t, "ranked", qualified[0].ProfileURL())
}
