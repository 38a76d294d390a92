package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tradesignal/internal/models"
)

type Webhook struct {
	HTTP *http.Client
	URL  string
}

func (w *Webhook) Notify(ctx context.Context, rec *models.SignalRecord) error {
	b, err := json.Marshal(NewPayload(rec))
	if err != nil {
		return err
	}
	client := w.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{StatusCode: resp.StatusCode}
	}
	return nil
}

type httpError struct {
	StatusCode int
}

func (e *httpError) Error() string {
	return "webhook http status " + http.StatusText(e.StatusCode)
}
