package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"log"
	"log/slog"
	"net/http"
	"time"

	_ "modernc.org/sqlite"

	emailPkg "boulderwall/internal/adapters/email"
	web "boulderwall/internal/adapters/http"
	"boulderwall/internal/adapters/sheets"
	"boulderwall/internal/adapters/storage"
	outboxStorePkg "boulderwall/internal/adapters/storage/outbox"
	submissionStorePkg "boulderwall/internal/adapters/storage/submission"
	"boulderwall/internal/application/orchestrators"
	"boulderwall/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize database with WAL mode, foreign keys, and busy timeout
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}

	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	log.Println("Database initialized successfully!")

	stores := &web.Stores{
		SubmissionStore: submissionStorePkg.NewSQLiteStore(db),
		OutboxStore:     outboxStorePkg.NewSQLiteStore(db),
	}

	// Configure email sender
	if cfg.ResendKey != "" {
		web.SetEmailSender(emailPkg.NewResendSender(cfg.ResendKey, cfg.ResendFrom), cfg.ResendFrom, cfg.ReplyTo)
		log.Println("Email sender configured (Resend)")
	} else {
		web.SetEmailSender(emailPkg.NewNoopSender(), cfg.ResendFrom, cfg.ReplyTo)
		log.Println("Email sender configured (noop — set BOULDER_RESEND_KEY for real delivery)")
	}

	// Spreadsheet web-hook client. An empty URL leaves sheet delivery disabled;
	// the client reports that per call and submissions still go through.
	sheetStore := sheets.NewClient(cfg.SheetsWebhookURL)
	web.SetSheetStore(sheetStore)
	if cfg.SheetsWebhookURL == "" {
		log.Println("Sheets web-hook not configured — sheet delivery disabled")
	}

	web.SetAdminEmails(cfg.AdminEmails)

	// Start outbox background worker for retrying failed external integrations
	retryDeps := orchestrators.OutboxRetryDeps{
		OutboxStore: stores.OutboxStore,
		SheetStore:  sheetStore,
		EmailSender: emailSenderFor(cfg),
		FromAddress: cfg.ResendFrom,
		ReplyTo:     cfg.ReplyTo,
		Now:         time.Now,
	}
	stopWorker := orchestrators.StartOutboxRetryWorker(context.Background(), retryDeps, time.Minute)
	defer stopWorker()

	mux := web.NewMux(cfg.StaticDir, stores, csrfKey(cfg))

	log.Printf("Boulderwall %s starting on %s (env=%s)", version, cfg.Addr, cfg.Env)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// emailSenderFor builds the sender used by the retry worker. It mirrors the
// startup wiring so replayed admin emails use the same provider.
func emailSenderFor(cfg config.Config) emailPkg.Sender {
	if cfg.ResendKey != "" {
		return emailPkg.NewResendSender(cfg.ResendKey, cfg.ResendFrom)
	}
	return emailPkg.NewNoopSender()
}

// csrfKey decodes the configured 32-byte hex key, or generates an ephemeral
// one. Ephemeral keys invalidate form tokens across restarts, which is
// acceptable outside production.
func csrfKey(cfg config.Config) []byte {
	if cfg.CSRFKey != "" {
		key, err := hex.DecodeString(cfg.CSRFKey)
		if err != nil || len(key) != 32 {
			log.Fatalf("BOULDER_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if cfg.IsProduction() {
		log.Fatalf("BOULDER_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	slog.Warn("csrf_key_ephemeral", "reason", "BOULDER_CSRF_KEY not set")
	return key
}
