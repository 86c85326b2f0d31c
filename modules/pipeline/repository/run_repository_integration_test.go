package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// newTestPool starts a disposable Postgres container, applies the two
// pipeline migrations directly (no golang-migrate binary in the test
// process), and returns a pool against it.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed integration test in -short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("prospect_pipeline_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, upPipelineRuns+upPendingUpdates)
	require.NoError(t, err)

	return pool
}

const upPipelineRuns = `
CREATE TABLE pipeline_runs (
    id                     TEXT PRIMARY KEY,
    account_id             TEXT NOT NULL,
    account_name           TEXT NOT NULL,
    account_parent_name    TEXT,
    account_city           TEXT,
    account_state          TEXT,
    account_industry_hint  TEXT,
    mode                   TEXT NOT NULL,
    status                 TEXT NOT NULL,
    started_at             TIMESTAMPTZ NOT NULL,
    ended_at               TIMESTAMPTZ,
    stage1_snapshot_id     TEXT NOT NULL DEFAULT '',
    total_cost             DOUBLE PRECISION NOT NULL DEFAULT 0,
    first_error            JSONB,
    stage_timings          JSONB NOT NULL DEFAULT '{}',
    stage_counts           JSONB NOT NULL DEFAULT '{}',
    stage_cost             JSONB NOT NULL DEFAULT '{}',
    stage1_candidates      JSONB NOT NULL DEFAULT '[]',
    stage2_profiles        JSONB NOT NULL DEFAULT '[]',
    stage2_rejections      JSONB NOT NULL DEFAULT '[]',
    stage3_qualified       JSONB NOT NULL DEFAULT '[]'
);
`

const upPendingUpdates = `
CREATE TABLE pending_updates (
    id           TEXT PRIMARY KEY,
    run_id       TEXT NOT NULL REFERENCES pipeline_runs (id),
    target_type  TEXT NOT NULL,
    account_id   TEXT NOT NULL,
    fields       JSONB NOT NULL,
    provenance   JSONB NOT NULL DEFAULT '[]',
    queued_id    TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
);
`

func TestRunRepository_SaveAndGetByID_Integration(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRunRepository(pool)
	ctx := context.Background()

	run := model.NewPipelineRun("run-1", model.AccountRef{ID: "acct-1", Name: "Acme Health System"}, model.ModeDataset, time.Now().UTC())
	run.Stage1Candidates = []*model.Candidate{{ProfileURL: "https://profiles.example/jane", Source: model.SourceDataset}}
	run.Finish(time.Now().UTC(), model.RunOK)

	require.NoError(t, repo.Save(ctx, run))

	loaded, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, run.ID, loaded.ID)
	require.Equal(t, "Acme Health System", loaded.Account.Name)
	require.Len(t, loaded.Stage1Candidates, 1)
	require.Equal(t, model.RunOK, loaded.Status)

	// Save again with a changed status to exercise the upsert path.
	run.Status = model.RunPartial
	require.NoError(t, repo.Save(ctx, run))

	reloaded, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, model.RunPartial, reloaded.Status)
}

func TestRunRepository_GetByID_NotFound_Integration(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRunRepository(pool)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrRunNotFound)
}

func TestRunRepository_SavePendingUpdate_Integration(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRunRepository(pool)
	ctx := context.Background()

	run := model.NewPipelineRun("run-1", model.AccountRef{ID: "acct-1", Name: "Acme"}, model.ModeDataset, time.Now().UTC())
	require.NoError(t, repo.Save(ctx, run))

	update := &model.PendingUpdate{
		TargetType: model.CRMRecordLead,
		AccountID:  "acct-1",
		Fields:     map[string]string{"given_name": "Jane"},
		QueuedID:   "queued-1",
	}
	require.NoError(t, repo.SavePendingUpdate(ctx, "run-1", update))

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM pending_updates WHERE run_id = $1", "run-1").Scan(&count))
	require.Equal(t, 1, count)
}
