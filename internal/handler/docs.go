package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Trade Signal Service

Hourly BUY/SELL/HOLD advisory signals for one spot symbol, built from six
technical strategies plus a MindsDB price forecast.

## Auth

All /api/* routes and the swagger UI require "Authorization: Bearer <token>".
/healthz, /readyz and /metrics are public.

## Routes

- GET  /healthz
- GET  /readyz
- GET  /metrics
- GET  /swagger/index.html
- GET  /api/price/latest
- GET  /api/candles
- GET  /api/signal/latest
- GET  /api/signals?signal=BUY|SELL|HOLD
- POST /api/data/sync
- POST /api/pipeline/run
- GET  /api/pipeline/status
- POST /api/predictor/train
- POST /api/predictor/predict
- GET  /api/system-settings/switches
- GET  /api/system-settings/switches/{name}
- PUT  /api/system-settings/switches/{name}

## Feature switches

- pipeline: scheduled runs (manual triggers ignore it)
- notify: webhook, Slack and Kafka notifications
`)
	})
}
