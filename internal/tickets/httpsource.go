package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"roadassist-platform/internal/eventlog"
)

// HTTPSource polls the server's event feed endpoint. It backs reconcilers
// running in a separate process from the event log owner (e.g. a desk
// dashboard session).
type HTTPSource struct {
	// BaseURL is the API root, e.g. "http://localhost:3002".
	BaseURL string

	// Token is an optional bearer token for the protected feed.
	Token string

	Client *http.Client
}

func (s HTTPSource) EventsSince(ctx context.Context, since time.Time, callID string) ([]eventlog.Record, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339Nano))
	if callID != "" {
		q.Set("call_id", callID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/v1/calls/events?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("event feed returned status %d", resp.StatusCode)
	}

	var body struct {
		Webhooks []eventlog.Record `json:"webhooks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Webhooks, nil
}
