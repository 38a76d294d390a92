package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradesignal/internal/pipeline"
)

// PipelineRunner is the slice of *pipeline.Orchestrator the handler uses.
type PipelineRunner interface {
	RunOnce(ctx context.Context) (*pipeline.RunResult, error)
	Last() *pipeline.RunResult
}

type PipelineHandler struct {
	Runner PipelineRunner
	// Trigger wraps the manual run routes, typically a rate limiter.
	Trigger []gin.HandlerFunc
}

func (h *PipelineHandler) Register(r *gin.Engine) {
	run := append(append([]gin.HandlerFunc{}, h.Trigger...), h.run)
	r.POST("/api/data/sync", run...)
	r.POST("/api/pipeline/run", run...)
	r.GET("/api/pipeline/status", h.status)
}

// @Summary Run the pipeline now
// @Description Fetches the latest candle, predicts and stores a signal, exactly like a scheduled run.
// @Tags pipeline
// @Produce json
// @Success 200 {object} pipeline.RunResult
// @Failure 409 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/pipeline/run [post]
// @Router /api/data/sync [post]
func (h *PipelineHandler) run(c *gin.Context) {
	if h.Runner == nil {
		Error(c, http.StatusInternalServerError, "pipeline unavailable", nil)
		return
	}
	res, err := h.Runner.RunOnce(c.Request.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		var meta map[string]any
		if res != nil {
			meta = map[string]any{"run_id": res.ID, "stage": res.Stage}
		}
		Error(c, http.StatusBadGateway, err.Error(), meta)
		return
	}
	Ok(c, res, nil)
}

// @Summary Last pipeline run
// @Tags pipeline
// @Produce json
// @Success 200 {object} pipeline.RunResult
// @Failure 404 {object} map[string]any
// @Router /api/pipeline/status [get]
func (h *PipelineHandler) status(c *gin.Context) {
	if h.Runner == nil {
		Error(c, http.StatusInternalServerError, "pipeline unavailable", nil)
		return
	}
	last := h.Runner.Last()
	if last == nil {
		Error(c, http.StatusNotFound, "no run yet", nil)
		return
	}
	Ok(c, last, nil)
}
