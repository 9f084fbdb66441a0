package submission

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength      = 200
	MaxMinorNames      = 1000
	MaxSignatureBytes  = 2 << 20 // 2 MB rendered data URI
	signatureURIPrefix = "data:image/"
)

// MinimumAge is the youngest age allowed to sign the waiver.
const MinimumAge = 18

// Validation errors surfaced to the visitor, checked in this order by CanSubmit.
// Messages are the pt-BR strings shown inline on the form.
var (
	ErrUnderage         = errors.New("Apenas maiores de 18 anos podem assinar.")
	ErrTermsNotAccepted = errors.New("Você precisa aceitar os termos para continuar.")
	ErrSignatureMissing = errors.New("Por favor, adicione sua assinatura.")
)

// Submission is a frozen consent-form entry. It is built once per submit
// attempt and never mutated after construction.
type Submission struct {
	ID             string
	FullName       string
	Email          string
	BirthDate      time.Time
	IDDocument     string
	EmergencyPhone string
	RegisterMinors bool
	MinorNames     string
	AcceptsTerms   bool
	SignatureImage string // data:image/... URI exported from the signature pad
	SubmittedAt    time.Time
}

// ComputeAge returns whole years elapsed between birth and now, decremented
// by one if now's month/day precedes the birth month/day.
// INVARIANT: a person whose 18th birthday is exactly today is 18
func ComputeAge(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// IsEligible reports whether someone born on birth may sign the waiver as of now.
func IsEligible(birth, now time.Time) bool {
	return ComputeAge(birth, now) >= MinimumAge
}

// Validate checks if the Submission has valid data at the construction boundary.
// PRE: Submission struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: all required fields present, minor names present when minors registered
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.FullName) == "" {
		return errors.New("full name cannot be empty")
	}
	if len(s.FullName) > MaxNameLength {
		return errors.New("full name is too long")
	}
	if !strings.Contains(s.Email, "@") {
		return errors.New("email must be valid")
	}
	if s.BirthDate.IsZero() {
		return errors.New("birth date must be set")
	}
	if strings.TrimSpace(s.IDDocument) == "" {
		return errors.New("identification document cannot be empty")
	}
	if strings.TrimSpace(s.EmergencyPhone) == "" {
		return errors.New("emergency phone cannot be empty")
	}
	if s.RegisterMinors && strings.TrimSpace(s.MinorNames) == "" {
		return errors.New("minor names are required when registering minors")
	}
	if len(s.MinorNames) > MaxMinorNames {
		return errors.New("minor names are too long")
	}
	if s.SignatureImage != "" && !strings.HasPrefix(s.SignatureImage, signatureURIPrefix) {
		return errors.New("signature must be an image data URI")
	}
	if len(s.SignatureImage) > MaxSignatureBytes {
		return errors.New("signature image is too large")
	}
	return nil
}

// CanSubmit gates the delivery workflow. Checks run in a fixed order and only
// the first failing reason is reported.
// PRE: Submission passed Validate
// POST: Returns ErrUnderage, ErrTermsNotAccepted or ErrSignatureMissing, else nil
func (s *Submission) CanSubmit(now time.Time) error {
	if !IsEligible(s.BirthDate, now) {
		return ErrUnderage
	}
	if !s.AcceptsTerms {
		return ErrTermsNotAccepted
	}
	if s.SignatureImage == "" {
		return ErrSignatureMissing
	}
	return nil
}
