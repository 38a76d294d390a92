package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tradesignal/internal/repository"
	"tradesignal/internal/service"
)

type SystemSettingsHandler struct {
	Repo     repository.SettingsRepository
	Settings *service.SystemSettingsService
}

func (h *SystemSettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/system-settings")
	g.GET("/switches", h.listSwitches)
	g.GET("/switches/:name", h.getSwitch)
	g.PUT("/switches/:name", h.putSwitch)
}

type switchView struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// @Summary List feature switches
// @Tags system-settings
// @Produce json
// @Success 200 {array} switchView
// @Router /api/system-settings/switches [get]
func (h *SystemSettingsHandler) listSwitches(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	prefix := "feature."
	params := repository.ListSystemSettingsParams{
		Limit:   intQuery(c, "limit", 200),
		Offset:  intQuery(c, "offset", 0),
		Prefix:  &prefix,
		OrderBy: "key",
		Asc:     boolPtr(true),
	}
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]switchView, 0, len(items))
	for _, it := range items {
		enabled, _ := it.Bool()
		out = append(out, switchView{
			Name:    strings.TrimPrefix(it.Key, prefix),
			Key:     it.Key,
			Enabled: enabled,
		})
	}
	Ok(c, out, nil)
}

// @Summary Read a feature switch
// @Tags system-settings
// @Param name path string true "switch name, e.g. pipeline"
// @Success 200 {object} switchView
// @Router /api/system-settings/switches/{name} [get]
func (h *SystemSettingsHandler) getSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name, key, ok := switchParam(c)
	if !ok {
		return
	}
	fallback := service.DefaultFeatureSwitches()[key]
	Ok(c, switchView{
		Name:    name,
		Key:     key,
		Enabled: h.Settings.IsEnabled(c.Request.Context(), key, fallback),
	}, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// @Summary Turn a feature switch on or off
// @Tags system-settings
// @Accept json
// @Param name path string true "switch name, e.g. notify"
// @Param body body putSwitchRequest true "new state"
// @Success 200 {object} switchView
// @Router /api/system-settings/switches/{name} [put]
func (h *SystemSettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name, key, ok := switchParam(c)
	if !ok {
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, switchView{Name: name, Key: key, Enabled: *req.Enabled}, nil)
}

func switchParam(c *gin.Context) (name, key string, ok bool) {
	name = strings.TrimPrefix(strings.TrimSpace(c.Param("name")), "feature.")
	if name == "" {
		Error(c, http.StatusBadRequest, "invalid switch name", nil)
		return "", "", false
	}
	return name, service.SwitchKey(name), true
}
