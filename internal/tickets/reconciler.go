package tickets

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roadassist-platform/internal/callsession"
	"roadassist-platform/internal/eventlog"
)

// EventSource supplies durably-logged events newer than a watermark.
// Implementations: LogSource (direct repository access, in-process) and
// HTTPSource (the poll endpoint, for detached UI sessions).
type EventSource interface {
	EventsSince(ctx context.Context, since time.Time, callID string) ([]eventlog.Record, error)
}

// Reconciler is the pull-based fallback for events the push channel missed
// (subscriber connected late, websocket dropped, tab closed).
//
// The watermark only advances after a poll window is fetched and fully
// applied; a failed tick retries the same window, so gaps are never lost.
// Replayed events are harmless because applying goes through the store's
// idempotent merge, same as the push path.
type Reconciler struct {
	store    *Store
	source   EventSource
	interval time.Duration

	watermark time.Time
}

func NewReconciler(store *Store, source EventSource, interval time.Duration, start time.Time) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{
		store:     store,
		source:    source,
		interval:  interval,
		watermark: start,
	}
}

// Run polls until ctx is canceled. A slow or failed tick never blocks
// anything else; it just tries again next interval.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				slog.Warn("reconcile tick failed", "err", err)
			}
		}
	}
}

// Tick fetches and applies one poll window. Exported for tests and for
// callers that want an immediate catch-up before subscribing to push.
func (r *Reconciler) Tick(ctx context.Context) error {
	records, err := r.source.EventsSince(ctx, r.watermark, "")
	if err != nil {
		// Watermark unchanged: the same window is retried next tick.
		return err
	}

	next := r.watermark
	for _, rec := range records {
		ev, err := callsession.ParseEvent(rec.Payload)
		if err != nil {
			slog.Warn("skipping unparseable logged event", "id", rec.ID, "err", err)
		} else if err := r.store.ApplyEvent(ev, rec.ReceivedAt); err != nil {
			if !errors.Is(err, ErrUnknownCall) {
				return err
			}
			slog.Warn("logged event references unknown call", "call_id", ev.CallID)
		}
		if rec.ReceivedAt.After(next) {
			next = rec.ReceivedAt
		}
	}
	r.watermark = next
	return nil
}

// Watermark reports the receipt time up to which events have been applied.
func (r *Reconciler) Watermark() time.Time { return r.watermark }

// LogSource reads directly from the event log repository.
type LogSource struct {
	Repo eventlog.Repository
}

func (s LogSource) EventsSince(ctx context.Context, since time.Time, callID string) ([]eventlog.Record, error) {
	return s.Repo.Since(ctx, since, callID)
}
