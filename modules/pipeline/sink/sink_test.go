package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

type fakeQueue struct {
	nextID  int
	failFor string
}

func (f *fakeQueue) Enqueue(ctx context.Context, update *model.PendingUpdate) (string, error) {
	if update.Fields["profile_url"] == f.failFor {
		return "", errors.New("queue unavailable")
	}
	f.nextID++
	return "queued-" + itoa(f.nextID), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func qualified(url string, score int) *model.QualifiedProspect {
	return &model.QualifiedProspect{
		Candidate: &model.Candidate{ProfileURL: url},
		Profile:   &model.Profile{ProfileURL: url, FullName: "Jane Doe"},
		Score:     score,
		ScoreSet:  true,
		Persona:   model.PersonaFacilities,
	}
}

func TestStage4_EnqueuesEveryProspectWithFieldMapping(t *testing.T) {
	queue := &fakeQueue{}
	stage := &Stage4{Queue: queue}

	outcomes := stage.Run(context.Background(), "run-1", []*model.QualifiedProspect{
		qualified("https://profiles.example/a", 90),
		qualified("https://profiles.example/b", 80),
	})

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		assert.NotEmpty(t, o.QueuedID)
		assert.Equal(t, o.QueuedID, o.Update.QueuedID)
		assert.Equal(t, "run-1", o.Update.Fields["source_run_id"])
		assert.Equal(t, "Jane Doe", o.Update.Fields["given_name"]+o.Update.Fields["family_name"])
	}
}

func TestStage4_ContinuesPastAFailedEnqueue(t *testing.T) {
	queue := &fakeQueue{failFor: "https://profiles.example/bad"}
	stage := &Stage4{Queue: queue}

	outcomes := stage.Run(context.Background(), "run-1", []*model.QualifiedProspect{
		qualified("https://profiles.example/bad", 90),
		qualified("https://profiles.example/ok", 80),
	})

	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	assert.Empty(t, outcomes[0].QueuedID)
	assert.NoError(t, outcomes[1].Err)
	assert.NotEmpty(t, outcomes[1].QueuedID)
}
