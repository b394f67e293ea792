package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func rec(id, callID string, at time.Time) Record {
	return Record{
		ID:         id,
		CallID:     callID,
		EventType:  "call.started",
		Payload:    json.RawMessage(`{"call_id":"` + callID + `"}`),
		ReceivedAt: at,
	}
}

func TestMemoryRepo_SinceFiltersStrictly(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Unix(1700000000, 0).UTC()

	for i := 0; i < 3; i++ {
		if err := repo.Append(context.Background(), rec("e"+string(rune('0'+i)), "c1", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// Strict > filter: the record at exactly `since` is excluded.
	got, err := repo.Since(context.Background(), base, "")
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
}

func TestMemoryRepo_SinceAfterEverythingIsEmptyNotError(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Unix(1700000000, 0).UTC()
	_ = repo.Append(context.Background(), rec("e1", "c1", base))

	got, err := repo.Since(context.Background(), base.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func TestMemoryRepo_SinceFiltersByCall(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Unix(1700000000, 0).UTC()
	_ = repo.Append(context.Background(), rec("e1", "c1", base.Add(time.Second)))
	_ = repo.Append(context.Background(), rec("e2", "c2", base.Add(2*time.Second)))

	got, err := repo.Since(context.Background(), base, "c2")
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(got) != 1 || got[0].CallID != "c2" {
		t.Fatalf("expected only c2 records, got %v", got)
	}
}

func TestMemoryRepo_AppendRejectsInvalid(t *testing.T) {
	repo := NewMemoryRepo()
	if err := repo.Append(context.Background(), Record{ID: "e1"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestMemoryRepo_PreservesReceiptOrder(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Unix(1700000000, 0).UTC()

	// Receipt order intentionally disagrees with payload chronology.
	_ = repo.Append(context.Background(), rec("late", "c1", base.Add(time.Second)))
	_ = repo.Append(context.Background(), rec("early", "c1", base.Add(2*time.Second)))

	got, _ := repo.Since(context.Background(), base, "")
	if got[0].ID != "late" || got[1].ID != "early" {
		t.Fatalf("expected receipt order preserved, got %v", got)
	}
}
