package web

import (
	"net/http"
	"time"

	"boulderwall/internal/adapters/email"
	"boulderwall/internal/adapters/http/middleware"
	"boulderwall/internal/adapters/sheets"
	outboxStore "boulderwall/internal/adapters/storage/outbox"
	submissionStore "boulderwall/internal/adapters/storage/submission"
)

// Stores holds all storage dependencies.
type Stores struct {
	SubmissionStore submissionStore.Store
	OutboxStore     outboxStore.Store
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global sheet web-hook client (set by SetSheetStore)
var sheetStore sheets.Store

// Global email sender instance (set by SetEmailSender)
var emailSender email.Sender

// Email configuration
var emailFromAddress string
var emailReplyTo string

// adminEmails is the static administrator notification list. It is read-only
// after startup.
var adminEmails []string

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// SetEmailSender sets the global email sender for the application.
func SetEmailSender(sender email.Sender, from, replyTo string) {
	emailSender = sender
	emailFromAddress = from
	emailReplyTo = replyTo
}

// SetSheetStore sets the spreadsheet web-hook client.
func SetSheetStore(s sheets.Store) {
	sheetStore = s
}

// SetAdminEmails sets the administrator notification list.
func SetAdminEmails(emails []string) {
	adminEmails = emails
}

// NewMux wires HTTP handlers for the app.
func NewMux(staticDir string, s *Stores, csrfKey []byte) http.Handler {
	stores = s

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	registerRoutes(mux)

	// Rate limiter: configurable requests per second per IP (OWASP A04)
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: SecurityHeaders -> CSRF -> RateLimit -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey),
		middleware.RateLimit(limiter),
	)
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sheets", handleSheetsProxy)
	mux.HandleFunc("/api/send-email", handleSendEmail)
	mux.HandleFunc("/healthz", handleHealthz)
}
