package voice

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the provider-agnostic outbound calling interface used by the
// HTTP layer.
//
// Rules:
// - No provider HTTP calls outside voice adapters.
// - Request/response types stay provider-agnostic; raw provider error bodies
//   ride along on RejectionError for diagnostics only.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// InitiateCall places one outbound call. The webhook callback target is
	// registered on this request; there is no later re-registration.
	InitiateCall(ctx context.Context, req CallRequest) (CallResult, error)
}

var (
	// ErrInvalidNumber: the destination failed local normalization; no
	// network request was made.
	ErrInvalidNumber = errors.New("voice: invalid destination number")

	// ErrProviderUnavailable: the provider could not be reached at all.
	ErrProviderUnavailable = errors.New("voice: provider unreachable")
)

// RejectionError carries a non-2xx provider response. The caller should treat
// this as "call failed to start", not "call failed".
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("voice: provider rejected request (status %d): %s", e.StatusCode, e.Body)
}

// CallContext is descriptive context for the AI agent. Every field is
// optional; missing values degrade to generic defaults in the task prompt
// rather than failing validation, since this is narrative, not control data.
type CallContext struct {
	CustomerName    string   `json:"customer_name,omitempty"`
	Location        string   `json:"location,omitempty"`
	Vehicle         string   `json:"vehicle,omitempty"`
	Issue           string   `json:"issue,omitempty"`
	PreviousIssues  []string `json:"previous_issues,omitempty"`
	LastServiceDate string   `json:"last_service_date,omitempty"`
	Membership      string   `json:"membership,omitempty"`

	// ImageSummary is the opaque output of the image-understanding relay.
	ImageSummary string `json:"image_summary,omitempty"`
}

type CallRequest struct {
	// PhoneNumber is the raw destination; adapters normalize it before any
	// network call.
	PhoneNumber string
	Context     CallContext
}

type CallResult struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}
