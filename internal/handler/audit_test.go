package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteAudit(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(WriteAudit(zap.New(core)))
	r.GET("/api/signals", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/pipeline/run", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	do(t, r, http.MethodGet, "/api/signals", "")
	assert.Zero(t, logs.Len())

	do(t, r, http.MethodPost, "/api/pipeline/run", "")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "/api/pipeline/run", entries[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusBadGateway, entries[0].ContextMap()["status"])
}
