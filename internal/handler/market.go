package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradesignal/internal/repository"
)

type MarketHandler struct {
	Repo   repository.CandleRepository
	Symbol string
}

func (h *MarketHandler) Register(r *gin.Engine) {
	r.GET("/api/price/latest", h.latest)
	r.GET("/api/candles", h.list)
}

// @Summary Latest stored candle
// @Tags market
// @Produce json
// @Param symbol query string false "symbol, defaults to the configured one"
// @Success 200 {object} models.Candle
// @Failure 404 {object} map[string]any
// @Router /api/price/latest [get]
func (h *MarketHandler) latest(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	symbol := c.DefaultQuery("symbol", h.Symbol)
	item, err := h.Repo.LatestCandle(c.Request.Context(), symbol)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "no price data available", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List stored candles, newest first
// @Tags market
// @Produce json
// @Param symbol query string false "symbol"
// @Param interval query string false "kline interval, e.g. 1m"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Param limit query int false "page size" default(100)
// @Param offset query int false "offset"
// @Success 200 {array} models.Candle
// @Router /api/candles [get]
func (h *MarketHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
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
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListCandlesParams{
		Limit:    limit,
		Offset:   offset,
		Symbol:   symbol,
		Interval: strQueryPtr(c, "interval"),
		Since:    since,
		Until:    until,
		Asc:      boolPtr(false),
	}
	items, err := h.Repo.ListCandles(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountCandles(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
