package submission

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "boulderwall/internal/domain/submission"
)

const dateLayout = time.RFC3339Nano

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new submission ledger store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const columns = "id, full_name, email, birth_date, id_document, emergency_phone, register_minors, minor_names, accepts_terms, signature_image, submitted_at"

// GetByID retrieves a Submission by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM submission WHERE id = ?", id)

	entity, err := scanSubmission(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Submission{}, fmt.Errorf("submission not found: %w", err)
	}
	return entity, err
}

// Save persists a Submission to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Submission) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submission (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   full_name=excluded.full_name, email=excluded.email, birth_date=excluded.birth_date,
		   id_document=excluded.id_document, emergency_phone=excluded.emergency_phone,
		   register_minors=excluded.register_minors, minor_names=excluded.minor_names,
		   accepts_terms=excluded.accepts_terms, signature_image=excluded.signature_image,
		   submitted_at=excluded.submitted_at`,
		entity.ID,
		entity.FullName,
		entity.Email,
		entity.BirthDate.Format(dateLayout),
		entity.IDDocument,
		entity.EmergencyPhone,
		entity.RegisterMinors,
		entity.MinorNames,
		entity.AcceptsTerms,
		entity.SignatureImage,
		entity.SubmittedAt.Format(dateLayout),
	)
	return err
}

// List retrieves submissions, newest first.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM submission ORDER BY submitted_at DESC LIMIT ? OFFSET ?",
		filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Submission
	for rows.Next() {
		entity, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

func scanSubmission(scan func(dest ...any) error) (domain.Submission, error) {
	var entity domain.Submission
	var birthDateStr, submittedAtStr string
	err := scan(
		&entity.ID,
		&entity.FullName,
		&entity.Email,
		&birthDateStr,
		&entity.IDDocument,
		&entity.EmergencyPhone,
		&entity.RegisterMinors,
		&entity.MinorNames,
		&entity.AcceptsTerms,
		&entity.SignatureImage,
		&submittedAtStr,
	)
	if err != nil {
		return domain.Submission{}, err
	}
	if entity.BirthDate, err = time.Parse(dateLayout, birthDateStr); err != nil {
		return domain.Submission{}, fmt.Errorf("failed to parse birth_date: %w", err)
	}
	if entity.SubmittedAt, err = time.Parse(dateLayout, submittedAtStr); err != nil {
		return domain.Submission{}, fmt.Errorf("failed to parse submitted_at: %w", err)
	}
	return entity, nil
}
