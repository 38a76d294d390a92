package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradesignal/internal/predictor"
)

type Predictor interface {
	Train(ctx context.Context) error
	Predict(ctx context.Context) (*predictor.Prediction, error)
}

type PredictorHandler struct {
	Predictor Predictor
	Trigger   []gin.HandlerFunc
}

func (h *PredictorHandler) Register(r *gin.Engine) {
	g := r.Group("/api/predictor", h.Trigger...)
	g.POST("/train", h.train)
	g.POST("/predict", h.predict)
}

// @Summary Ensure the price model exists
// @Tags predictor
// @Success 200 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/predictor/train [post]
func (h *PredictorHandler) train(c *gin.Context) {
	if h.Predictor == nil {
		Error(c, http.StatusServiceUnavailable, "predictor disabled", nil)
		return
	}
	if err := h.Predictor.Train(c.Request.Context()); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"trained": true}, nil)
}

type predictResponse struct {
	PredictedClose string `json:"predicted_close"`
	BaseTime       string `json:"base_time"`
}

// @Summary Predict the next close
// @Tags predictor
// @Success 200 {object} predictResponse
// @Failure 500 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/predictor/predict [post]
func (h *PredictorHandler) predict(c *gin.Context) {
	if h.Predictor == nil {
		Error(c, http.StatusServiceUnavailable, "predictor disabled", nil)
		return
	}
	p, err := h.Predictor.Predict(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if p == nil {
		Error(c, http.StatusInternalServerError, "prediction failed or returned no result", nil)
		return
	}
	Ok(c, predictResponse{
		PredictedClose: p.PredictedClose.String(),
		BaseTime:       p.BaseTime.UTC().Format(time.RFC3339),
	}, nil)
}
