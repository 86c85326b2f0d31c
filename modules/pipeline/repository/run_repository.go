// Package repository persists PipelineRun state and staged PendingUpdate
// records so a finished run can be resumed from its stored stage
// artifacts and replayed for audit.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// RunRepository implements ports.RunStore over Postgres. Every
// stage-specific slice or map on PipelineRun is stored as a single JSONB
// column rather than normalized into its own table: these artifacts are
// written once per stage and always read back whole, so there is no query
// that benefits from relational decomposition.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository builds a RunRepository over the given pool.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

type runRow struct {
	ID               string
	AccountID        string
	AccountName      string
	AccountParent    *string
	AccountCity      *string
	AccountState     *string
	AccountIndustry  *string
	Mode             string
	Status           string
	StartedAt        time.Time
	EndedAt          *time.Time
	Stage1SnapshotID string
	TotalCost        float64
	FirstError       []byte
	StageTimings     []byte
	StageCounts      []byte
	StageCost        []byte
	Stage1Candidates []byte
	Stage2Profiles   []byte
	Stage2Rejections []byte
	Stage3Qualified  []byte
}

// Save upserts a PipelineRun by id. A run is written in full every call;
// the orchestrator calls Save once, at Finish, not incrementally per
// stage, so there is no partial-write race to guard against here.
func (r *RunRepository) Save(ctx context.Context, run *model.PipelineRun) error {
	row, err := marshalRun(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pipeline_runs (
			id, account_id, account_name, account_parent_name, account_city, account_state, account_industry_hint,
			mode, status, started_at, ended_at, stage1_snapshot_id, total_cost,
			first_error, stage_timings, stage_counts, stage_cost,
			stage1_candidates, stage2_profiles, stage2_rejections, stage3_qualified
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21
		)
		ON CONFLICT (id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			account_name = EXCLUDED.account_name,
			account_parent_name = EXCLUDED.account_parent_name,
			account_city = EXCLUDED.account_city,
			account_state = EXCLUDED.account_state,
			account_industry_hint = EXCLUDED.account_industry_hint,
			mode = EXCLUDED.mode,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			stage1_snapshot_id = EXCLUDED.stage1_snapshot_id,
			total_cost = EXCLUDED.total_cost,
			first_error = EXCLUDED.first_error,
			stage_timings = EXCLUDED.stage_timings,
			stage_counts = EXCLUDED.stage_counts,
			stage_cost = EXCLUDED.stage_cost,
			stage1_candidates = EXCLUDED.stage1_candidates,
			stage2_profiles = EXCLUDED.stage2_profiles,
			stage2_rejections = EXCLUDED.stage2_rejections,
			stage3_qualified = EXCLUDED.stage3_qualified
	`

	_, err = r.pool.Exec(ctx, query,
		row.ID, row.AccountID, row.AccountName, row.AccountParent, row.AccountCity, row.AccountState, row.AccountIndustry,
		row.Mode, row.Status, row.StartedAt, row.EndedAt, row.Stage1SnapshotID, row.TotalCost,
		row.FirstError, row.StageTimings, row.StageCounts, row.StageCost,
		row.Stage1Candidates, row.Stage2Profiles, row.Stage2Rejections, row.Stage3Qualified,
	)
	return err
}

// GetByID loads a PipelineRun by id.
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*model.PipelineRun, error) {
	query := `
		SELECT id, account_id, account_name, account_parent_name, account_city, account_state, account_industry_hint,
			mode, status, started_at, ended_at, stage1_snapshot_id, total_cost,
			first_error, stage_timings, stage_counts, stage_cost,
			stage1_candidates, stage2_profiles, stage2_rejections, stage3_qualified
		FROM pipeline_runs
		WHERE id = $1
	`

	var row runRow
	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&row.ID, &row.AccountID, &row.AccountName, &row.AccountParent, &row.AccountCity, &row.AccountState, &row.AccountIndustry,
		&row.Mode, &row.Status, &row.StartedAt, &row.EndedAt, &row.Stage1SnapshotID, &row.TotalCost,
		&row.FirstError, &row.StageTimings, &row.StageCounts, &row.StageCost,
		&row.Stage1Candidates, &row.Stage2Profiles, &row.Stage2Rejections, &row.Stage3Qualified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRunNotFound
		}
		return nil, err
	}

	return unmarshalRun(&row)
}

// List returns a page of runs for an account, most recent first, plus the
// total matching count for pagination.
func (r *RunRepository) List(ctx context.Context, accountID string, limit, offset int) ([]*model.PipelineRun, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pipeline_runs WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, account_id, account_name, account_parent_name, account_city, account_state, account_industry_hint,
			mode, status, started_at, ended_at, stage1_snapshot_id, total_cost,
			first_error, stage_timings, stage_counts, stage_cost,
			stage1_candidates, stage2_profiles, stage2_rejections, stage3_qualified
		FROM pipeline_runs
		WHERE account_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.PipelineRun
	for rows.Next() {
		var row runRow
		if err := rows.Scan(
			&row.ID, &row.AccountID, &row.AccountName, &row.AccountParent, &row.AccountCity, &row.AccountState, &row.AccountIndustry,
			&row.Mode, &row.Status, &row.StartedAt, &row.EndedAt, &row.Stage1SnapshotID, &row.TotalCost,
			&row.FirstError, &row.StageTimings, &row.StageCounts, &row.StageCost,
			&row.Stage1Candidates, &row.Stage2Profiles, &row.Stage2Rejections, &row.Stage3Qualified,
		); err != nil {
			return nil, 0, err
		}
		run, err := unmarshalRun(&row)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// SavePendingUpdate persists the sink's own copy of a queued update,
// independent of whatever external approval queue Enqueue wrote to.
func (r *RunRepository) SavePendingUpdate(ctx context.Context, runID string, update *model.PendingUpdate) error {
	fields, err := json.Marshal(update.Fields)
	if err != nil {
		return err
	}
	provenance, err := json.Marshal(update.Provenance)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pending_updates (id, run_id, target_type, account_id, fields, provenance, queued_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		uuid.NewString(), runID, string(update.TargetType), update.AccountID, fields, provenance, update.QueuedID, time.Now().UTC(),
	)
	return err
}

func marshalRun(run *model.PipelineRun) (*runRow, error) {
	firstError, err := marshalJSON(run.FirstError)
	if err != nil {
		return nil, err
	}
	stageTimings, err := marshalJSON(run.StageTimings)
	if err != nil {
		return nil, err
	}
	stageCounts, err := marshalJSON(run.StageCounts)
	if err != nil {
		return nil, err
	}
	stageCost, err := marshalJSON(run.StageCost)
	if err != nil {
		return nil, err
	}
	stage1Candidates, err := marshalJSON(run.Stage1Candidates)
	if err != nil {
		return nil, err
	}
	stage2Profiles, err := marshalJSON(run.Stage2Profiles)
	if err != nil {
		return nil, err
	}
	stage2Rejections, err := marshalJSON(run.Stage2Rejections)
	if err != nil {
		return nil, err
	}
	stage3Qualified, err := marshalJSON(run.Stage3Qualified)
	if err != nil {
		return nil, err
	}

	var endedAt *time.Time
	if !run.EndedAt.IsZero() {
		endedAt = &run.EndedAt
	}

	return &runRow{
		ID:               run.ID,
		AccountID:        run.Account.ID,
		AccountName:      run.Account.Name,
		AccountParent:    run.Account.ParentName,
		AccountCity:      run.Account.City,
		AccountState:     run.Account.State,
		AccountIndustry:  run.Account.IndustryHint,
		Mode:             string(run.Mode),
		Status:           string(run.Status),
		StartedAt:        run.StartedAt,
		EndedAt:          endedAt,
		Stage1SnapshotID: run.Stage1SnapshotID,
		TotalCost:        run.TotalCost,
		FirstError:       firstError,
		StageTimings:     stageTimings,
		StageCounts:      stageCounts,
		StageCost:        stageCost,
		Stage1Candidates: stage1Candidates,
		Stage2Profiles:   stage2Profiles,
		Stage2Rejections: stage2Rejections,
		Stage3Qualified:  stage3Qualified,
	}, nil
}

func unmarshalRun(row *runRow) (*model.PipelineRun, error) {
	run := model.NewPipelineRun(row.ID, model.AccountRef{
		ID:           row.AccountID,
		Name:         row.AccountName,
		ParentName:   row.AccountParent,
		City:         row.AccountCity,
		State:        row.AccountState,
		IndustryHint: row.AccountIndustry,
	}, model.RunMode(row.Mode), row.StartedAt)

	run.Status = model.RunStatus(row.Status)
	if row.EndedAt != nil {
		run.EndedAt = *row.EndedAt
	}
	run.Stage1SnapshotID = row.Stage1SnapshotID
	run.TotalCost = row.TotalCost

	if err := unmarshalJSON(row.FirstError, &run.FirstError); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.StageTimings, &run.StageTimings); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.StageCounts, &run.StageCounts); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.StageCost, &run.StageCost); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Stage1Candidates, &run.Stage1Candidates); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Stage2Profiles, &run.Stage2Profiles); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Stage2Rejections, &run.Stage2Rejections); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(row.Stage3Qualified, &run.Stage3Qualified); err != nil {
		return nil, err
	}

	return run, nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalJSON(raw []byte, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
