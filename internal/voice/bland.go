package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"roadassist-platform/internal/config"
)

// BlandProvider drives the Bland-style outbound calling API: one POST to
// /v1/calls returning {call_id, status}, lifecycle and transcript events
// delivered later to the pre-registered webhook URL.
//
// The initiation request carries an explicit bounded timeout. The provider's
// synchronous acknowledgment is fast (the call itself proceeds async), so an
// unbounded wait buys nothing and ties up the UI request.
type BlandProvider struct {
	apiKey     string
	baseURL    string
	webhookURL string
	client     *http.Client
}

const defaultRequestTimeout = 15 * time.Second

func NewBlandProvider(cfg config.VoiceConfig) (*BlandProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("voice: api key is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.bland.ai"
	}
	return &BlandProvider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (p *BlandProvider) Name() string { return "bland" }

func (p *BlandProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/calls", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("voice: provider health returned status %d", resp.StatusCode)
	}
	return nil
}

// initiatePayload is the provider wire format. The webhook target binds the
// async event path to the call id up front.
type initiatePayload struct {
	PhoneNumber string `json:"phone_number"`
	Task        string `json:"task"`
	Voice       string `json:"voice"`
	Record      bool   `json:"record"`
	MaxDuration int    `json:"max_duration"`
	Language    string `json:"language"`
	Webhook     string `json:"webhook,omitempty"`
}

func (p *BlandProvider) InitiateCall(ctx context.Context, req CallRequest) (CallResult, error) {
	number, err := NormalizeNumber(req.PhoneNumber)
	if err != nil {
		return CallResult{}, err
	}

	payload := initiatePayload{
		PhoneNumber: number,
		Task:        BuildTask(req.Context),
		Voice:       "Paige",
		Record:      true,
		MaxDuration: 12,
		Language:    "en",
		Webhook:     p.webhookURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return CallResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/calls", bytes.NewReader(body))
	if err != nil {
		return CallResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CallResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return CallResult{}, &RejectionError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out CallResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return CallResult{}, fmt.Errorf("voice: unparseable provider response: %w", err)
	}
	if out.CallID == "" {
		return CallResult{}, &RejectionError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return out, nil
}
