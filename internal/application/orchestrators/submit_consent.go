package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	emailAdapter "boulderwall/internal/adapters/email"
	"boulderwall/internal/adapters/sheets"
	outboxStore "boulderwall/internal/adapters/storage/outbox"
	submissionStore "boulderwall/internal/adapters/storage/submission"
	outboxDomain "boulderwall/internal/domain/outbox"
	"boulderwall/internal/domain/submission"
	"boulderwall/internal/domain/waiver"
)

// ErrParticipantEmailFailed is the fatal delivery failure: the visitor did not
// get their waiver copy, so the whole submission must be retried.
var ErrParticipantEmailFailed = errors.New("participant email delivery failed")

// SubmitConsentInput carries input for the orchestrator.
type SubmitConsentInput struct {
	Submission submission.Submission
}

// SubmitConsentDeps holds dependencies for SubmitConsent.
type SubmitConsentDeps struct {
	SubmissionStore submissionStore.Store
	SheetStore      sheets.Store
	OutboxStore     outboxStore.Store
	EmailSender     emailAdapter.Sender
	AdminEmails     []string
	FromAddress     string
	ReplyTo         string
	GenerateID      func() string
	Now             func() time.Time
}

// ExecuteSubmitConsent delivers a validated submission to its destinations.
// Delivery policy:
//  1. local ledger save — non-fatal, logged only;
//  2. spreadsheet web-hook — non-fatal, logged and queued for retry;
//  3. participant waiver email — fatal, aborts with ErrParticipantEmailFailed;
//  4. administrator notifications — concurrent, awaited together, failures
//     logged and queued for retry, never affect the outcome.
//
// PRE: input.Submission passed Validate and CanSubmit
// POST: Returns nil iff the participant received their waiver email
func ExecuteSubmitConsent(ctx context.Context, input SubmitConsentInput, deps SubmitConsentDeps) error {
	sub := input.Submission

	// Bookkeeping first; waiver delivery must not be blocked by it.
	if err := deps.SubmissionStore.Save(ctx, sub); err != nil {
		slog.Error("submission_ledger_save_failed", "submission_id", sub.ID, "error", err)
	}

	record := waiver.BuildSheetRecord(sub)
	if err := deps.SheetStore.Append(ctx, record); err != nil {
		slog.Error("sheet_append_failed", "submission_id", sub.ID, "error", err)
		enqueueSheetRetry(ctx, deps, record)
	}

	html, err := waiver.RenderEmailHTML(sub, sub.SubmittedAt)
	if err != nil {
		// Cannot build the waiver body, so the participant cannot get a copy.
		slog.Error("waiver_render_failed", "submission_id", sub.ID, "error", err)
		return ErrParticipantEmailFailed
	}

	_, err = deps.EmailSender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{sub.Email},
		From:    deps.FromAddress,
		Subject: waiver.ParticipantSubject,
		HTML:    html,
		ReplyTo: deps.ReplyTo,
	})
	if err != nil {
		slog.Error("participant_email_failed", "submission_id", sub.ID, "error", err)
		return ErrParticipantEmailFailed
	}

	notifyAdmins(ctx, deps, sub, html)

	slog.Info("consent_submitted", "submission_id", sub.ID, "register_minors", sub.RegisterMinors, "admin_count", len(deps.AdminEmails))
	return nil
}

// notifyAdmins sends one notification per administrator, concurrently. The
// participant's copy already succeeded, so individual failures are swallowed
// after being queued for retry.
func notifyAdmins(ctx context.Context, deps SubmitConsentDeps, sub submission.Submission, html string) {
	subject := waiver.AdminSubject(sub.FullName)

	var wg sync.WaitGroup
	for _, admin := range deps.AdminEmails {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			_, err := deps.EmailSender.Send(ctx, emailAdapter.SendRequest{
				To:      []string{addr},
				From:    deps.FromAddress,
				Subject: subject,
				HTML:    html,
				ReplyTo: deps.ReplyTo,
			})
			if err != nil {
				slog.Error("admin_email_failed", "submission_id", sub.ID, "admin", addr, "error", err)
				enqueueAdminEmailRetry(ctx, deps, addr, subject, html)
			}
		}(admin)
	}
	wg.Wait()
}

// adminEmailPayload is the outbox replay payload for a failed admin send.
type adminEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func enqueueSheetRetry(ctx context.Context, deps SubmitConsentDeps, record waiver.SheetRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		slog.Error("outbox_payload_marshal_failed", "action", outboxDomain.ActionTypeSheetRecord, "error", err)
		return
	}
	enqueue(ctx, deps, outboxDomain.ActionTypeSheetRecord, string(payload))
}

func enqueueAdminEmailRetry(ctx context.Context, deps SubmitConsentDeps, to, subject, html string) {
	payload, err := json.Marshal(adminEmailPayload{To: to, Subject: subject, HTML: html})
	if err != nil {
		slog.Error("outbox_payload_marshal_failed", "action", outboxDomain.ActionTypeAdminEmail, "error", err)
		return
	}
	enqueue(ctx, deps, outboxDomain.ActionTypeAdminEmail, string(payload))
}

func enqueue(ctx context.Context, deps SubmitConsentDeps, actionType, payload string) {
	entry := outboxDomain.Entry{
		ID:          deps.GenerateID(),
		ActionType:  actionType,
		Payload:     payload,
		Status:      outboxDomain.StatusPending,
		MaxAttempts: outboxDomain.DefaultMaxAttempts,
		CreatedAt:   deps.Now(),
	}
	if err := entry.Validate(); err != nil {
		slog.Error("outbox_entry_invalid", "action", actionType, "error", err)
		return
	}
	if err := deps.OutboxStore.Save(ctx, entry); err != nil {
		slog.Error("outbox_enqueue_failed", "action", actionType, "error", err)
		return
	}
	slog.Info("outbox_enqueued", "entry_id", entry.ID, "action", actionType)
}
