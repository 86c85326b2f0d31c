package runarchive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

type fakeStore struct {
	PutObjectFunc func(ctx context.Context, key string, body []byte, contentType string) error
}

func (f *fakeStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	return f.PutObjectFunc(ctx, key, body, contentType)
}

func TestClient_Archive_WritesKeyedByAccountAndRun(t *testing.T) {
	var gotKey, gotContentType string
	var gotBody []byte
	store := &fakeStore{
		PutObjectFunc: func(ctx context.Context, key string, body []byte, contentType string) error {
			gotKey = key
			gotBody = body
			gotContentType = contentType
			return nil
		},
	}

	run := model.NewPipelineRun("run-1", model.AccountRef{ID: "acct-1", Name: "Acme"}, model.ModeCombined, time.Now())
	run.Finish(time.Now(), model.RunOK)

	err := New(store).Archive(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, "runs/acct-1/run-1.json", gotKey)
	assert.Equal(t, "application/json", gotContentType)

	var roundTripped model.PipelineRun
	require.NoError(t, json.Unmarshal(gotBody, &roundTripped))
	assert.Equal(t, run.ID, roundTripped.ID)
	assert.Equal(t, run.Status, roundTripped.Status)
}

func TestClient_Archive_PropagatesStoreError(t *testing.T) {
	store := &fakeStore{
		PutObjectFunc: func(ctx context.Context, key string, body []byte, contentType string) error {
			return assert.AnError
		},
	}

	run := model.NewPipelineRun("run-1", model.AccountRef{ID: "acct-1"}, model.ModeCombined, time.Now())

	err := New(store).Archive(context.Background(), run)
	assert.Error(t, err)
}
