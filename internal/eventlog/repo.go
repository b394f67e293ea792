package eventlog

import (
	"context"
	"errors"
	"time"
)

// Repository is the persistence contract for the webhook event log.
//
// It MUST be append-only. No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, r Record) error

	// Since returns every record with ReceivedAt strictly after since,
	// in receipt order. callID, when non-empty, narrows the result to one
	// call. A window with no matching records returns an empty slice.
	Since(ctx context.Context, since time.Time, callID string) ([]Record, error)
}

var ErrInvalidRecord = errors.New("eventlog: invalid record")
