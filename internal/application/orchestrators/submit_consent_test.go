package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	emailAdapter "boulderwall/internal/adapters/email"
	submissionStore "boulderwall/internal/adapters/storage/submission"
	outboxDomain "boulderwall/internal/domain/outbox"
	"boulderwall/internal/domain/submission"
)

// --- Mock submission ledger ---

type mockSubmissionStore struct {
	saved   []submission.Submission
	saveErr error
}

func (m *mockSubmissionStore) GetByID(_ context.Context, id string) (submission.Submission, error) {
	for _, s := range m.saved {
		if s.ID == id {
			return s, nil
		}
	}
	return submission.Submission{}, errors.New("not found")
}

func (m *mockSubmissionStore) Save(_ context.Context, s submission.Submission) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, s)
	return nil
}

func (m *mockSubmissionStore) List(_ context.Context, _ submissionStore.ListFilter) ([]submission.Submission, error) {
	return m.saved, nil
}

// --- Mock sheet store ---

type mockSheetStore struct {
	appended  []any
	appendErr error
}

func (m *mockSheetStore) Append(_ context.Context, record any) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, record)
	return nil
}

func (m *mockSheetStore) Forward(_ context.Context, body []byte) ([]byte, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	return []byte(`{}`), nil
}

// --- Mock email sender ---

// mockEmailSender records sends; guarded by a mutex because admin
// notifications arrive from concurrent goroutines.
type mockEmailSender struct {
	mu      sync.Mutex
	sent    []emailAdapter.SendRequest
	failFor map[string]error // recipient address -> error
}

func (m *mockEmailSender) Send(_ context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, to := range req.To {
		if err, ok := m.failFor[to]; ok {
			return emailAdapter.SendResult{}, err
		}
	}
	m.sent = append(m.sent, req)
	return emailAdapter.SendResult{MessageID: fmt.Sprintf("msg-%d", len(m.sent))}, nil
}

func (m *mockEmailSender) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, req := range m.sent {
		out = append(out, req.To...)
	}
	sort.Strings(out)
	return out
}

// --- Mock outbox store ---

type mockOutboxStore struct {
	mu      sync.Mutex
	entries map[string]outboxDomain.Entry
}

func newMockOutboxStore() *mockOutboxStore {
	return &mockOutboxStore{entries: make(map[string]outboxDomain.Entry)}
}

func (m *mockOutboxStore) GetByID(_ context.Context, id string) (outboxDomain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return outboxDomain.Entry{}, errors.New("not found")
	}
	return e, nil
}

func (m *mockOutboxStore) Save(_ context.Context, e outboxDomain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *mockOutboxStore) ListPending(_ context.Context, limit int) ([]outboxDomain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outboxDomain.Entry
	for _, e := range m.entries {
		if e.Status == outboxDomain.StatusPending || e.Status == outboxDomain.StatusRetrying {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockOutboxStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *mockOutboxStore) byAction(actionType string) []outboxDomain.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outboxDomain.Entry
	for _, e := range m.entries {
		if e.ActionType == actionType {
			out = append(out, e)
		}
	}
	return out
}

// --- Fixtures ---

var testNow = time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)

func validInput() SubmitConsentInput {
	return SubmitConsentInput{Submission: submission.Submission{
		ID:             "sub-1",
		FullName:       "Maria Oliveira",
		Email:          "maria@example.com",
		BirthDate:      time.Date(1990, time.May, 10, 0, 0, 0, 0, time.UTC),
		IDDocument:     "123.456.789-00",
		EmergencyPhone: "+55 12 99999-0000",
		AcceptsTerms:   true,
		SignatureImage: "data:image/png;base64,iVBORw0KGgo=",
		SubmittedAt:    testNow,
	}}
}

func testDeps(ledger *mockSubmissionStore, sheet *mockSheetStore, sender *mockEmailSender, outbox *mockOutboxStore, admins ...string) SubmitConsentDeps {
	id := 0
	return SubmitConsentDeps{
		SubmissionStore: ledger,
		SheetStore:      sheet,
		OutboxStore:     outbox,
		EmailSender:     sender,
		AdminEmails:     admins,
		FromAddress:     "Form Boulder <noreply@formboulder.com>",
		ReplyTo:         "admin@example.com",
		GenerateID:      func() string { id++; return fmt.Sprintf("id-%d", id) },
		Now:             func() time.Time { return testNow },
	}
}

// --- Tests ---

func TestSubmitConsent_HappyPath(t *testing.T) {
	ledger := &mockSubmissionStore{}
	sheet := &mockSheetStore{}
	sender := &mockEmailSender{}
	outbox := newMockOutboxStore()
	deps := testDeps(ledger, sheet, sender, outbox, "admin@example.com")

	if err := ExecuteSubmitConsent(context.Background(), validInput(), deps); err != nil {
		t.Fatalf("ExecuteSubmitConsent failed: %v", err)
	}

	if len(ledger.saved) != 1 {
		t.Errorf("ledger saves = %d, want 1", len(ledger.saved))
	}
	if len(sheet.appended) != 1 {
		t.Errorf("sheet appends = %d, want 1", len(sheet.appended))
	}
	got := sender.recipients()
	want := []string{"admin@example.com", "maria@example.com"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("recipients = %v, want %v", got, want)
	}
	if len(outbox.entries) != 0 {
		t.Errorf("outbox entries = %d, want 0", len(outbox.entries))
	}
}

func TestSubmitConsent_SheetFailureIsNonFatal(t *testing.T) {
	ledger := &mockSubmissionStore{}
	sheet := &mockSheetStore{appendErr: errors.New("webhook down")}
	sender := &mockEmailSender{}
	outbox := newMockOutboxStore()
	deps := testDeps(ledger, sheet, sender, outbox, "admin@example.com")

	if err := ExecuteSubmitConsent(context.Background(), validInput(), deps); err != nil {
		t.Fatalf("sheet failure must not fail the submission: %v", err)
	}

	entries := outbox.byAction(outboxDomain.ActionTypeSheetRecord)
	if len(entries) != 1 {
		t.Fatalf("sheet outbox entries = %d, want 1", len(entries))
	}
	if !strings.Contains(entries[0].Payload, "Maria Oliveira") {
		t.Errorf("payload missing record data: %q", entries[0].Payload)
	}
	if len(sender.recipients()) != 2 {
		t.Errorf("emails still expected after sheet failure, got %v", sender.recipients())
	}
}

func TestSubmitConsent_LedgerFailureIsNonFatal(t *testing.T) {
	ledger := &mockSubmissionStore{saveErr: errors.New("disk full")}
	sheet := &mockSheetStore{}
	sender := &mockEmailSender{}
	outbox := newMockOutboxStore()
	deps := testDeps(ledger, sheet, sender, outbox, "admin@example.com")

	if err := ExecuteSubmitConsent(context.Background(), validInput(), deps); err != nil {
		t.Fatalf("ledger failure must not fail the submission: %v", err)
	}
}

func TestSubmitConsent_ParticipantEmailFailureIsFatal(t *testing.T) {
	ledger := &mockSubmissionStore{}
	sheet := &mockSheetStore{}
	sender := &mockEmailSender{failFor: map[string]error{"maria@example.com": errors.New("provider 500")}}
	outbox := newMockOutboxStore()
	deps := testDeps(ledger, sheet, sender, outbox, "admin@example.com")

	err := ExecuteSubmitConsent(context.Background(), validInput(), deps)
	if !errors.Is(err, ErrParticipantEmailFailed) {
		t.Fatalf("err = %v, want ErrParticipantEmailFailed", err)
	}

	// No admin notifications when the participant copy failed.
	if got := sender.recipients(); len(got) != 0 {
		t.Errorf("admin emails sent despite fatal failure: %v", got)
	}
}

func TestSubmitConsent_AdminFailuresAreSwallowedAndOutboxed(t *testing.T) {
	ledger := &mockSubmissionStore{}
	sheet := &mockSheetStore{}
	sender := &mockEmailSender{failFor: map[string]error{"admin2@example.com": errors.New("provider 500")}}
	outbox := newMockOutboxStore()
	deps := testDeps(ledger, sheet, sender, outbox, "admin1@example.com", "admin2@example.com", "admin3@example.com")

	if err := ExecuteSubmitConsent(context.Background(), validInput(), deps); err != nil {
		t.Fatalf("admin failure must not fail the submission: %v", err)
	}

	got := sender.recipients()
	if len(got) != 3 { // participant + 2 admins
		t.Errorf("recipients = %v", got)
	}

	entries := outbox.byAction(outboxDomain.ActionTypeAdminEmail)
	if len(entries) != 1 {
		t.Fatalf("admin outbox entries = %d, want 1", len(entries))
	}
	if !strings.Contains(entries[0].Payload, "admin2@example.com") {
		t.Errorf("outboxed payload = %q", entries[0].Payload)
	}
}

func TestSubmitConsent_AllAdminsNotified(t *testing.T) {
	ledger := &mockSubmissionStore{}
	sheet := &mockSheetStore{}
	sender := &mockEmailSender{}
	outbox := newMockOutboxStore()
	admins := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}
	deps := testDeps(ledger, sheet, sender, outbox, admins...)

	if err := ExecuteSubmitConsent(context.Background(), validInput(), deps); err != nil {
		t.Fatalf("ExecuteSubmitConsent failed: %v", err)
	}
	if got := sender.recipients(); len(got) != len(admins)+1 {
		t.Errorf("recipients = %v, want participant + %d admins", got, len(admins))
	}
}
