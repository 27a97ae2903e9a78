package eventsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient queries a tracker-compatible HTTP event log endpoint. The
// underlying transport is wrapped in otelhttp so every poll request carries
// a span and records request-duration metrics against the process's global
// OTel TracerProvider/MeterProvider. No OTLP exporter is installed by this
// daemon, so by default those go to the SDK's no-op providers; the
// telemetry package's own Provider is a separate, activity.Bus-driven
// fallback-to-JSON recorder, not a consumer of otelhttp's output.
type HTTPClient struct {
	baseURL    string
	scriptName string
	scriptKey  string
	batchSize  int
	http       *http.Client
}

// NewHTTPClient builds a client against baseURL, authenticated with the
// given script name/key pair (main passes the daemon's [shotgun] credentials).
func NewHTTPClient(baseURL, scriptName, scriptKey string, batchSize int) *HTTPClient {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &HTTPClient{
		baseURL:    baseURL,
		scriptName: scriptName,
		scriptKey:  scriptKey,
		batchSize:  batchSize,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type eventLogResponse struct {
	Events []wireEvent `json:"events"`
}

type wireEvent struct {
	ID            int64                  `json:"id"`
	EventType     string                 `json:"event_type"`
	AttributeName string                 `json:"attribute_name"`
	Meta          map[string]interface{} `json:"meta"`
	Entity        map[string]interface{} `json:"entity"`
	User          map[string]interface{} `json:"user"`
	Project       map[string]interface{} `json:"project"`
	SessionUUID   string                 `json:"session_uuid"`
}

func (w wireEvent) toEvent() Event {
	return Event{
		ID:            w.ID,
		EventType:     w.EventType,
		AttributeName: w.AttributeName,
		Meta:          w.Meta,
		Entity:        w.Entity,
		User:          w.User,
		Project:       w.Project,
		SessionUUID:   w.SessionUUID,
	}
}

// FetchSince implements Client.
func (c *HTTPClient) FetchSince(ctx context.Context, sinceID int64) ([]Event, error) {
	q := url.Values{}
	q.Set("script_name", c.scriptName)
	q.Set("script_key", c.scriptKey)
	q.Set("since_id", strconv.FormatInt(sinceID, 10))
	q.Set("limit", strconv.Itoa(c.batchSize))
	q.Set("order", "id_asc")

	var body eventLogResponse
	if err := c.getJSON(ctx, "/api/event_log", q, &body); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(body.Events))
	for _, w := range body.Events {
		events = append(events, w.toEvent())
	}
	return events, nil
}

// MostRecentID implements Client.
func (c *HTTPClient) MostRecentID(ctx context.Context) (int64, error) {
	q := url.Values{}
	q.Set("script_name", c.scriptName)
	q.Set("script_key", c.scriptKey)
	q.Set("limit", "1")
	q.Set("order", "id_desc")

	var body eventLogResponse
	if err := c.getJSON(ctx, "/api/event_log", q, &body); err != nil {
		return 0, err
	}
	if len(body.Events) == 0 {
		return 0, nil
	}
	return body.Events[0].ID, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransientError{Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network-level failures (socket errors, timeouts) are always
		// transient from the engine's retry policy's point of view.
		return &TransientError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &TransientError{Cause: fmt.Errorf("event source returned %s", resp.Status)}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("event source rejected request: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransientError{Cause: err}
	}
	return nil
}
