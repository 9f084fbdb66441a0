package outbox

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"boulderwall/internal/adapters/storage"
	domain "boulderwall/internal/domain/outbox"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("init db: %v", err)
	}
	return db
}

func sampleEntry(id string, createdAt time.Time) domain.Entry {
	return domain.Entry{
		ID:          id,
		ActionType:  domain.ActionTypeSheetRecord,
		Payload:     `{"name":"Maria"}`,
		Status:      domain.StatusPending,
		MaxAttempts: 5,
		CreatedAt:   createdAt,
	}
}

func TestSaveAndGetByID(t *testing.T) {
	store := NewSQLiteStore(newTestDB(t))
	ctx := context.Background()

	want := sampleEntry("entry-1", time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC))
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.GetByID(ctx, "entry-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ActionType != want.ActionType || got.Payload != want.Payload || got.Status != want.Status {
		t.Errorf("got %+v", got)
	}
	if !got.LastAttemptedAt.IsZero() {
		t.Errorf("LastAttemptedAt should stay zero, got %v", got.LastAttemptedAt)
	}
}

func TestSaveUpdatesExistingEntry(t *testing.T) {
	store := NewSQLiteStore(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)

	e := sampleEntry("entry-1", now)
	if err := store.Save(ctx, e); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	e.MarkAttempt(now.Add(time.Minute))
	e.MarkSuccess()
	if err := store.Save(ctx, e); err != nil {
		t.Fatalf("update Save failed: %v", err)
	}

	got, err := store.GetByID(ctx, "entry-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.StatusDone || got.Attempts != 1 {
		t.Errorf("got status=%q attempts=%d", got.Status, got.Attempts)
	}
	if got.LastAttemptedAt.IsZero() {
		t.Error("LastAttemptedAt not persisted")
	}
}

func TestListPendingExcludesTerminalStates(t *testing.T) {
	store := NewSQLiteStore(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)

	pending := sampleEntry("e-pending", now)
	retrying := sampleEntry("e-retrying", now.Add(time.Second))
	retrying.Status = domain.StatusRetrying
	done := sampleEntry("e-done", now.Add(2*time.Second))
	done.Status = domain.StatusDone
	failed := sampleEntry("e-failed", now.Add(3*time.Second))
	failed.Status = domain.StatusFailed

	for _, e := range []domain.Entry{pending, retrying, done, failed} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save %s failed: %v", e.ID, err)
		}
	}

	got, err := store.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "e-pending" || got[1].ID != "e-retrying" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
}

func TestDelete(t *testing.T) {
	store := NewSQLiteStore(newTestDB(t))
	ctx := context.Background()

	e := sampleEntry("entry-1", time.Now())
	if err := store.Save(ctx, e); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "entry-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetByID(ctx, "entry-1"); err == nil {
		t.Fatal("entry still present after delete")
	}
}
