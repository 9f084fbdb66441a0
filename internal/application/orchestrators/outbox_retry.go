package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "boulderwall/internal/adapters/email"
	"boulderwall/internal/adapters/sheets"
	outboxStore "boulderwall/internal/adapters/storage/outbox"
	domainOutbox "boulderwall/internal/domain/outbox"
	"boulderwall/internal/domain/waiver"
)

// OutboxRetryDeps provides the dependencies for retrying outbox entries.
type OutboxRetryDeps struct {
	OutboxStore outboxStore.Store
	SheetStore  sheets.Store
	EmailSender emailAdapter.Sender
	FromAddress string
	ReplyTo     string
	Now         func() time.Time
}

// ExecuteOutboxRetry processes pending and retryable outbox entries with
// exponential backoff.
// PRE: Deps are valid and store is connected
// POST: All eligible entries are attempted, results persisted and logged
func ExecuteOutboxRetry(ctx context.Context, deps OutboxRetryDeps) error {
	entries, err := deps.OutboxStore.ListPending(ctx, 100)
	if err != nil {
		return fmt.Errorf("failed to list retryable outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	slog.Info("outbox_retry_start", "count", len(entries))

	var succeeded, failed int
	baseDelay := 1 * time.Minute
	maxDelay := 1 * time.Hour
	now := deps.Now()

	for _, entry := range entries {
		if !entry.CanRetry() {
			continue
		}
		if !entry.LastAttemptedAt.IsZero() {
			nextRetry := entry.LastAttemptedAt.Add(entry.NextRetryDelay(baseDelay, maxDelay))
			if now.Before(nextRetry) {
				continue
			}
		}

		entry.MarkAttempt(now)

		var err error
		switch entry.ActionType {
		case domainOutbox.ActionTypeSheetRecord:
			err = retrySheetRecord(ctx, deps, entry)
		case domainOutbox.ActionTypeAdminEmail:
			err = retryAdminEmail(ctx, deps, entry)
		default:
			err = fmt.Errorf("unknown action type: %s", entry.ActionType)
		}

		if err != nil {
			entry.MarkFailed(err)
			failed++
			slog.Error("outbox_retry_failed", "entry_id", entry.ID, "action", entry.ActionType, "attempt", entry.Attempts, "error", err)
		} else {
			entry.MarkSuccess()
			succeeded++
			slog.Info("outbox_retry_succeeded", "entry_id", entry.ID, "action", entry.ActionType, "attempt", entry.Attempts)
		}

		if saveErr := deps.OutboxStore.Save(ctx, entry); saveErr != nil {
			slog.Error("outbox_retry_save_failed", "entry_id", entry.ID, "error", saveErr)
		}
	}

	slog.Info("outbox_retry_complete", "succeeded", succeeded, "failed", failed)
	return nil
}

// retrySheetRecord replays a failed spreadsheet append.
func retrySheetRecord(ctx context.Context, deps OutboxRetryDeps, entry domainOutbox.Entry) error {
	var record waiver.SheetRecord
	if err := json.Unmarshal([]byte(entry.Payload), &record); err != nil {
		return fmt.Errorf("failed to unmarshal sheet record payload: %w", err)
	}
	return deps.SheetStore.Append(ctx, record)
}

// retryAdminEmail replays a failed administrator notification.
func retryAdminEmail(ctx context.Context, deps OutboxRetryDeps, entry domainOutbox.Entry) error {
	var payload adminEmailPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal admin email payload: %w", err)
	}
	_, err := deps.EmailSender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{payload.To},
		From:    deps.FromAddress,
		Subject: payload.Subject,
		HTML:    payload.HTML,
		ReplyTo: deps.ReplyTo,
	})
	return err
}

// StartOutboxRetryWorker starts a background goroutine that periodically
// retries outbox entries until the context is cancelled.
// PRE: Context is valid, deps are initialized
// POST: Goroutine started, returns cancel function
func StartOutboxRetryWorker(ctx context.Context, deps OutboxRetryDeps, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ExecuteOutboxRetry(ctx, deps); err != nil {
					slog.Error("outbox_retry_worker_error", "error", err)
				}
			}
		}
	}()

	return cancel
}
