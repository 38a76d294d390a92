package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tradesignal/internal/repository"
	"tradesignal/internal/strategy"
)

type SignalHandler struct {
	Repo   repository.SignalRepository
	Symbol string
}

func (h *SignalHandler) Register(r *gin.Engine) {
	r.GET("/api/signal/latest", h.latest)
	r.GET("/api/signals", h.list)
}

// @Summary Latest trading signal
// @Tags signals
// @Produce json
// @Param symbol query string false "symbol, defaults to the configured one"
// @Success 200 {object} models.SignalRecord
// @Failure 404 {object} map[string]any
// @Router /api/signal/latest [get]
func (h *SignalHandler) latest(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	symbol := c.DefaultQuery("symbol", h.Symbol)
	item, err := h.Repo.LatestSignal(c.Request.Context(), symbol)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "no signal available", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List trading signals, newest first
// @Tags signals
// @Produce json
// @Param symbol query string false "symbol"
// @Param signal query string false "BUY, SELL or HOLD"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Param limit query int false "page size" default(50)
// @Param offset query int false "offset"
// @Success 200 {array} models.SignalRecord
// @Router /api/signals [get]
func (h *SignalHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var signal *string
	if raw := strings.TrimSpace(c.Query("signal")); raw != "" {
		s, err := strategy.ParseSignal(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		v := s.String()
		signal = &v
	}
	since, ok := timeQuery(c, "since")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid since", nil)
		return
	}
	until, ok := timeQuery(c, "until")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid until", nil)
		return
	}
	symbol := strQueryPtr(c, "symbol")
	if symbol == nil && h.Symbol != "" {
		s := h.Symbol
		symbol = &s
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSignalsParams{
		Limit:  limit,
		Offset: offset,
		Symbol: symbol,
		Signal: signal,
		Since:  since,
		Until:  until,
		Asc:    boolPtr(false),
	}
	items, err := h.Repo.ListSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
