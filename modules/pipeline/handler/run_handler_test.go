package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/orchestrator"
)

// fakeRunner implements runner.
type fakeRunner struct {
	RunFunc    func(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun
	DryRunFunc func(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun
	ResumeFunc func(ctx context.Context, run *model.PipelineRun, opts orchestrator.Options) *model.PipelineRun
}

func (f *fakeRunner) Run(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun {
	if f.RunFunc != nil {
		return f.RunFunc(ctx, accountID, opts)
	}
	return model.NewPipelineRun("run-1", model.AccountRef{ID: accountID}, opts.Mode, time.Now())
}

func (f *fakeRunner) DryRun(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun {
	if f.DryRunFunc != nil {
		return f.DryRunFunc(ctx, accountID, opts)
	}
	return model.NewPipelineRun("run-1", model.AccountRef{ID: accountID}, opts.Mode, time.Now())
}

func (f *fakeRunner) Resume(ctx context.Context, run *model.PipelineRun, opts orchestrator.Options) *model.PipelineRun {
	if f.ResumeFunc != nil {
		return f.ResumeFunc(ctx, run, opts)
	}
	return run
}

// fakeRunStore implements ports.RunStore.
type fakeRunStore struct {
	SaveFunc              func(ctx context.Context, run *model.PipelineRun) error
	GetByIDFunc           func(ctx context.Context, runID string) (*model.PipelineRun, error)
	ListFunc              func(ctx context.Context, accountID string, limit, offset int) ([]*model.PipelineRun, int, error)
	SavePendingUpdateFunc func(ctx context.Context, runID string, update *model.PendingUpdate) error
}

func (f *fakeRunStore) Save(ctx context.Context, run *model.PipelineRun) error {
	if f.SaveFunc != nil {
		return f.SaveFunc(ctx, run)
	}
	return nil
}

func (f *fakeRunStore) GetByID(ctx context.Context, runID string) (*model.PipelineRun, error) {
	if f.GetByIDFunc != nil {
		return f.GetByIDFunc(ctx, runID)
	}
	return nil, model.ErrRunNotFound
}

func (f *fakeRunStore) List(ctx context.Context, accountID string, limit, offset int) ([]*model.PipelineRun, int, error) {
	if f.ListFunc != nil {
		return f.ListFunc(ctx, accountID, limit, offset)
	}
	return nil, 0, nil
}

func (f *fakeRunStore) SavePendingUpdate(ctx context.Context, runID string, update *model.PendingUpdate) error {
	if f.SavePendingUpdateFunc != nil {
		return f.SavePendingUpdateFunc(ctx, runID, update)
	}
	return nil
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestRunHandler_Create(t *testing.T) {
	t.Run("runs synchronously and returns the resulting run", func(t *testing.T) {
		var sawAccountID string
		var sawMode model.RunMode
		runner := &fakeRunner{
			RunFunc: func(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun {
				sawAccountID = accountID
				sawMode = opts.Mode
				run := model.NewPipelineRun("run-1", model.AccountRef{ID: accountID, Name: "Acme"}, opts.Mode, time.Now())
				run.Finish(time.Now(), model.RunOK)
				return run
			},
		}
		h := NewRunHandler(runner, &fakeRunStore{})

		router := setupTestRouter()
		router.POST("/runs", h.Create)

		body := `{"account_id":"acct-1","mode":"dataset"}`
		req, _ := http.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "acct-1", sawAccountID)
		assert.Equal(t, model.ModeDataset, sawMode)

		var got model.PipelineRun
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "run-1", got.ID)
		assert.Equal(t, model.RunOK, got.Status)
	})

	t.Run("dry_run calls DryRun instead of Run", func(t *testing.T) {
		var dryRunCalled, runCalled bool
		runner := &fakeRunner{
			RunFunc: func(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun {
				runCalled = true
				return model.NewPipelineRun("run-1", model.AccountRef{ID: accountID}, opts.Mode, time.Now())
			},
			DryRunFunc: func(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun {
				dryRunCalled = true
				return model.NewPipelineRun("run-1", model.AccountRef{ID: accountID}, opts.Mode, time.Now())
			},
		}
		h := NewRunHandler(runner, &fakeRunStore{})

		router := setupTestRouter()
		router.POST("/runs", h.Create)

		body := `{"account_id":"acct-1","dry_run":true}`
		req, _ := http.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, dryRunCalled)
		assert.False(t, runCalled)
	})

	t.Run("returns 400 for invalid request", func(t *testing.T) {
		h := NewRunHandler(&fakeRunner{}, &fakeRunStore{})

		router := setupTestRouter()
		router.POST("/runs", h.Create)

		body := `{"min_score": "not-a-number"}`
		req, _ := http.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns 400 when account_id is missing", func(t *testing.T) {
		h := NewRunHandler(&fakeRunner{}, &fakeRunStore{})

		router := setupTestRouter()
		router.POST("/runs", h.Create)

		body := `{}`
		req, _ := http.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRunHandler_Get(t *testing.T) {
	t.Run("returns the stored run", func(t *testing.T) {
		stored := model.NewPipelineRun("run-1", model.AccountRef{ID: "acct-1"}, model.ModeCombined, time.Now())
		store := &fakeRunStore{
			GetByIDFunc: func(ctx context.Context, runID string) (*model.PipelineRun, error) {
				assert.Equal(t, "run-1", runID)
				return stored, nil
			},
		}
		h := NewRunHandler(&fakeRunner{}, store)

		router := setupTestRouter()
		router.GET("/runs/:id", h.Get)

		req, _ := http.NewRequest(http.MethodGet, "/runs/run-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("returns 404 when the run does not exist", func(t *testing.T) {
		h := NewRunHandler(&fakeRunner{}, &fakeRunStore{})

		router := setupTestRouter()
		router.GET("/runs/:id", h.Get)

		req, _ := http.NewRequest(http.MethodGet, "/runs/missing", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRunHandler_List(t *testing.T) {
	t.Run("returns 400 without account_id", func(t *testing.T) {
		h := NewRunHandler(&fakeRunner{}, &fakeRunStore{})

		router := setupTestRouter()
		router.GET("/runs", h.List)

		req, _ := http.NewRequest(http.MethodGet, "/runs", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("paginates runs for the account", func(t *testing.T) {
		store := &fakeRunStore{
			ListFunc: func(ctx context.Context, accountID string, limit, offset int) ([]*model.PipelineRun, int, error) {
				assert.Equal(t, "acct-1", accountID)
				assert.Equal(t, 20, limit)
				return []*model.PipelineRun{
					model.NewPipelineRun("run-1", model.AccountRef{ID: accountID}, model.ModeCombined, time.Now()),
				}, 1, nil
			},
		}
		h := NewRunHandler(&fakeRunner{}, store)

		router := setupTestRouter()
		router.GET("/runs", h.List)

		req, _ := http.NewRequest(http.MethodGet, "/runs?account_id=acct-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRunHandler_Resume(t *testing.T) {
	t.Run("resumes a stored run", func(t *testing.T) {
		stored := model.NewPipelineRun("run-1", model.AccountRef{ID: "acct-1"}, model.ModeCombined, time.Now())
		var resumedID string
		runner := &fakeRunner{
			ResumeFunc: func(ctx context.Context, run *model.PipelineRun, opts orchestrator.Options) *model.PipelineRun {
				resumedID = run.ID
				run.Finish(time.Now(), model.RunOK)
				return run
			},
		}
		store := &fakeRunStore{
			GetByIDFunc: func(ctx context.Context, runID string) (*model.PipelineRun, error) {
				return stored, nil
			},
		}
		h := NewRunHandler(runner, store)

		router := setupTestRouter()
		router.POST("/runs/:id/resume", h.Resume)

		req, _ := http.NewRequest(http.MethodPost, "/runs/run-1/resume", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "run-1", resumedID)
	})

	t.Run("resume with an empty body uses defaults", func(t *testing.T) {
		stored := model.NewPipelineRun("run-1", model.AccountRef{ID: "acct-1"}, model.ModeCombined, time.Now())
		runner := &fakeRunner{
			ResumeFunc: func(ctx context.Context, run *model.PipelineRun, opts orchestrator.Options) *model.PipelineRun {
				assert.Equal(t, orchestrator.DefaultOptions().MinScore, opts.MinScore)
				return run
			},
		}
		store := &fakeRunStore{
			GetByIDFunc: func(ctx context.Context, runID string) (*model.PipelineRun, error) {
				return stored, nil
			},
		}
		h := NewRunHandler(runner, store)

		router := setupTestRouter()
		router.POST("/runs/:id/resume", h.Resume)

		req, _ := http.NewRequest(http.MethodPost, "/runs/run-1/resume", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("returns 404 when the run does not exist", func(t *testing.T) {
		h := NewRunHandler(&fakeRunner{}, &fakeRunStore{})

		router := setupTestRouter()
		router.POST("/runs/:id/resume", h.Resume)

		req, _ := http.NewRequest(http.MethodPost, "/runs/missing/resume", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
