package vision

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDisabled     = errors.New("vision: analysis is not configured")
	ErrEmptyImage   = errors.New("vision: image data is required")
	ErrNoAnalyses   = errors.New("vision: no analyses stored")
	ErrProviderDown = errors.New("vision: provider unreachable")
)

// RejectionError carries the provider's own refusal for diagnostics.
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("vision: provider rejected request (status %d): %s", e.StatusCode, e.Body)
}

// Analyzer turns image bytes into a short textual damage summary.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, image []byte, contentType string) (string, error)
}

// Analysis is one stored result. Summary is an opaque string downstream; the
// call gateway only threads it into the agent prompt.
type Analysis struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
