package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"boulderwall/internal/application/orchestrators"
	"boulderwall/internal/domain/submission"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// maxSubmitBody bounds the submission payload: a 2 MB signature data URI plus
// form fields and JSON overhead.
const maxSubmitBody = 3 << 20

// maxProxyBody bounds the raw record forwarded to the sheets web-hook.
const maxProxyBody = 1 << 20

// birthDateLayout is the wire format of the HTML date input.
const birthDateLayout = "2006-01-02"

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// setCORSHeaders adds the fixed cross-origin headers the sheets proxy answers
// with on every response, including errors.
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// submitRequest is the wire shape of a consent-form submission. Unknown and
// missing fields are rejected at this boundary rather than trusting the
// caller-supplied shape.
type submitRequest struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	BirthDate      string `json:"birthDate"` // yyyy-mm-dd from the date input
	IDDocument     string `json:"idDocument"`
	EmergencyPhone string `json:"emergencyPhone"`
	RegisterMinors bool   `json:"registerMinors"`
	MinorNames     string `json:"minorNames"`
	AcceptsTerms   bool   `json:"acceptsTerms"`
	SignatureImage string `json:"signatureImage"`
}

// handleSendEmail handles POST /api/send-email: the server-side submission
// endpoint. It freezes the request into a Submission, re-runs the eligibility
// gate, and hands delivery to the orchestrator.
// POST: 200 {"success":true} when the participant email went out; 400 with an
// inline message on validation failure; 500 {"error":"Error sending email"}
// on delivery failure
func handleSendEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)
	var req submitRequest
	if err := strictDecode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request"})
		return
	}

	birthDate, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid birth date"})
		return
	}

	now := timeNow()
	sub := submission.Submission{
		ID:             generateID(),
		FullName:       req.FullName,
		Email:          req.Email,
		BirthDate:      birthDate,
		IDDocument:     req.IDDocument,
		EmergencyPhone: req.EmergencyPhone,
		RegisterMinors: req.RegisterMinors,
		MinorNames:     req.MinorNames,
		AcceptsTerms:   req.AcceptsTerms,
		SignatureImage: req.SignatureImage,
		SubmittedAt:    now,
	}

	if err := sub.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if err := sub.CanSubmit(now); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	deps := orchestrators.SubmitConsentDeps{
		SubmissionStore: stores.SubmissionStore,
		SheetStore:      sheetStore,
		OutboxStore:     stores.OutboxStore,
		EmailSender:     emailSender,
		AdminEmails:     adminEmails,
		FromAddress:     emailFromAddress,
		ReplyTo:         emailReplyTo,
		GenerateID:      generateID,
		Now:             timeNow,
	}
	if err := orchestrators.ExecuteSubmitConsent(ctx, orchestrators.SubmitConsentInput{Submission: sub}, deps); err != nil {
		// Provider internals stay in the logs; the visitor gets a retry prompt.
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Error sending email"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSheetsProxy handles /api/sheets: a stateless relay to the spreadsheet
// web-hook. OPTIONS answers the cross-origin pre-flight without touching the
// backend; POST forwards the JSON body verbatim and relays the response.
func handleSheetsProxy(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	switch r.Method {
	case "OPTIONS":
		writeJSON(w, http.StatusOK, map[string]any{})
	case "POST":
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Failed to save to Google Sheets"})
			return
		}

		resp, err := sheetStore.Forward(r.Context(), body)
		if err != nil {
			slog.Error("sheets_proxy_failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to save to Google Sheets"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(resp)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleHealthz reports process liveness.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
