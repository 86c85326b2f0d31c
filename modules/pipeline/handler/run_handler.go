// Package handler exposes the orchestrator over HTTP. It is the
// "surrounding CLI" analog spec.md §6 calls out as outside the core:
// a thin gin layer that binds a request, calls the orchestrator, and
// reports back whatever PipelineRun came out the other end.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	httpPlatform "github.com/benefis-partners/prospect-pipeline/internal/platform/http"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/orchestrator"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
)

// runner is the slice of *orchestrator.Orchestrator the handler depends
// on. Narrowed to an interface so tests can stand in a fake without
// constructing a full Orchestrator and its five adapter ports.
type runner interface {
	Run(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun
	DryRun(ctx context.Context, accountID string, opts orchestrator.Options) *model.PipelineRun
	Resume(ctx context.Context, run *model.PipelineRun, opts orchestrator.Options) *model.PipelineRun
}

// RunHandler handles pipeline run HTTP requests.
type RunHandler struct {
	orchestrator runner
	store        ports.RunStore
}

// NewRunHandler creates a new run handler.
func NewRunHandler(orchestrator runner, store ports.RunStore) *RunHandler {
	return &RunHandler{orchestrator: orchestrator, store: store}
}

// createRunRequest is the POST /v1/runs body: an account reference plus
// the subset of orchestrator.Options a caller may override. Fields left
// zero fall back to orchestrator.DefaultOptions.
type createRunRequest struct {
	AccountID         string  `json:"account_id" binding:"required"`
	DryRun            bool    `json:"dry_run"`
	Mode              string  `json:"mode"`
	MinScore          int     `json:"min_score"`
	MaxProspects      int     `json:"max_prospects"`
	CostCeiling       float64 `json:"cost_ceiling"`
	MinConnections    int     `json:"min_connections"`
	UseLocationFilter bool    `json:"use_location_filter"`
	CityFilter        string  `json:"city_filter"`
	RegionFilter      string  `json:"region_filter"`
	IndustryHint      *string `json:"industry_hint"`
}

func (r createRunRequest) toOptions() orchestrator.Options {
	opts := orchestrator.DefaultOptions()
	if r.Mode != "" {
		opts.Mode = model.RunMode(r.Mode)
	}
	if r.MinScore != 0 {
		opts.MinScore = r.MinScore
	}
	if r.MaxProspects != 0 {
		opts.MaxProspects = r.MaxProspects
	}
	if r.CostCeiling != 0 {
		opts.CostCeiling = resilience.Cost(r.CostCeiling)
	}
	opts.MinConnections = r.MinConnections
	opts.UseLocationFilter = r.UseLocationFilter
	opts.CityFilter = r.CityFilter
	opts.RegionFilter = r.RegionFilter
	opts.IndustryHint = r.IndustryHint
	return opts
}

// Create runs the orchestrator synchronously for the given account and
// returns the resulting PipelineRun. A queue-backed async variant is left
// to the surrounding job-queue system, genuinely out of scope here.
func (h *RunHandler) Create(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload")
		return
	}

	opts := req.toOptions()

	var run *model.PipelineRun
	if req.DryRun {
		run = h.orchestrator.DryRun(c.Request.Context(), req.AccountID, opts)
	} else {
		run = h.orchestrator.Run(c.Request.Context(), req.AccountID, opts)
	}

	httpPlatform.RespondWithData(c, http.StatusCreated, run)
}

// Get fetches a persisted PipelineRun by id.
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == model.ErrRunNotFound {
			httpPlatform.RespondWithError(c, http.StatusNotFound, "RUN_NOT_FOUND", "pipeline run not found")
			return
		}
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load pipeline run")
		return
	}

	httpPlatform.RespondWithData(c, http.StatusOK, run)
}

// List returns the paginated runs for an account.
func (h *RunHandler) List(c *gin.Context) {
	params, err := httpPlatform.ParsePaginationParams(c)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid pagination parameters")
		return
	}

	accountID := c.Query("account_id")
	if accountID == "" {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "account_id is required")
		return
	}

	runs, total, err := h.store.List(c.Request.Context(), accountID, params.Limit, params.Offset)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list pipeline runs")
		return
	}

	httpPlatform.RespondWithPagination(c, http.StatusOK, runs, params.Limit, params.Offset, total)
}

// resumeRunRequest is the POST /v1/runs/:id/resume body. Every field is
// optional, matching orchestrator.DefaultOptions's "all options have
// defaults."
type resumeRunRequest struct {
	MinScore          int     `json:"min_score"`
	MaxProspects      int     `json:"max_prospects"`
	CostCeiling       float64 `json:"cost_ceiling"`
	MinConnections    int     `json:"min_connections"`
	UseLocationFilter bool    `json:"use_location_filter"`
	CityFilter        string  `json:"city_filter"`
	RegionFilter      string  `json:"region_filter"`
}

// Resume loads the stored run and continues it from whichever stage
// artifacts it already has.
func (h *RunHandler) Resume(c *gin.Context) {
	run, err := h.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == model.ErrRunNotFound {
			httpPlatform.RespondWithError(c, http.StatusNotFound, "RUN_NOT_FOUND", "pipeline run not found")
			return
		}
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load pipeline run")
		return
	}

	var req resumeRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.Body != nil && err.Error() != "EOF" {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload")
		return
	}

	opts := orchestrator.DefaultOptions()
	opts.Mode = run.Mode
	if req.MinScore != 0 {
		opts.MinScore = req.MinScore
	}
	if req.MaxProspects != 0 {
		opts.MaxProspects = req.MaxProspects
	}
	if req.CostCeiling != 0 {
		opts.CostCeiling = resilience.Cost(req.CostCeiling)
	}
	opts.MinConnections = req.MinConnections
	opts.UseLocationFilter = req.UseLocationFilter
	opts.CityFilter = req.CityFilter
	opts.RegionFilter = req.RegionFilter

	resumed := h.orchestrator.Resume(c.Request.Context(), run, opts)

	httpPlatform.RespondWithData(c, http.StatusOK, resumed)
}

// RegisterRoutes registers pipeline run routes. There is no auth
// middleware here: the pipeline is invoked by internal batch/CLI callers,
// not by end users, per spec.md's scope.
func (h *RunHandler) RegisterRoutes(router *gin.RouterGroup) {
	runs := router.Group("/runs")
	{
		runs.POST("", h.Create)
		runs.GET("", h.List)
		runs.GET("/:id", h.Get)
		runs.POST("/:id/resume", h.Resume)
	}
}
