package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stockify/contact-api/internal/models"
)

// SubmissionRepository persists contact submissions in SQLite. An email
// has at most one outstanding (pending or verified) submission; Create
// replaces any prior one, mirroring the OTP overwrite semantics.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission in pending_verification status,
// replacing any outstanding submission for the same email in the same
// transaction.
func (r *SubmissionRepository) Create(ctx context.Context, contact models.ContactData) (*models.Submission, error) {
	now := time.Now().UTC()
	sub := &models.Submission{
		ID:        uuid.NewString(),
		Contact:   contact,
		Status:    models.StatusPendingVerification,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM submissions WHERE email = ? AND status IN (?, ?)`,
		contact.Identity(), models.StatusPendingVerification, models.StatusVerified,
	)
	if err != nil {
		return nil, fmt.Errorf("replacing outstanding submission: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (
			id, name, email, phone, company, subject, message,
			status, degraded, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		sub.ID, contact.Name, contact.Identity(), contact.Phone,
		contact.Company, contact.Subject, contact.Message,
		sub.Status, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing submission: %w", err)
	}
	return sub, nil
}

// Get retrieves a submission by id.
func (r *SubmissionRepository) Get(ctx context.Context, id string) (*models.Submission, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT * FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("getting submission %s: %w", id, err)
	}
	return sub, nil
}

// GetOutstandingByEmail retrieves the pending or verified submission for
// a normalized email, if one exists.
func (r *SubmissionRepository) GetOutstandingByEmail(ctx context.Context, email string) (*models.Submission, error) {
	row := r.db.QueryRowxContext(ctx, `
		SELECT * FROM submissions
		WHERE email = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		models.NormalizeIdentity(email), models.StatusPendingVerification, models.StatusVerified,
	)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("getting outstanding submission for email: %w", err)
	}
	return sub, nil
}

// Transition moves a submission to newStatus, enforcing the
// forward-only progression. A disallowed transition returns
// ErrInvalidTransition, distinct from ErrNotFound.
func (r *SubmissionRepository) Transition(ctx context.Context, id string, newStatus models.SubmissionStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.SubmissionStatus
	err = tx.GetContext(ctx, &current, `SELECT status FROM submissions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("reading submission status: %w", err)
	}

	if !current.CanTransitionTo(newStatus) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current, newStatus)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE submissions SET status = ?, updated_at = ? WHERE id = ?`,
		newStatus, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating submission status: %w", err)
	}

	return tx.Commit()
}

// SetDegraded flags a submission whose notification emails partially
// failed after a successful verification.
func (r *SubmissionRepository) SetDegraded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET degraded = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking submission degraded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateContact replaces the contact fields of a submission with the
// values the user last entered.
func (r *SubmissionRepository) UpdateContact(ctx context.Context, id string, contact models.ContactData) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions
		SET name = ?, phone = ?, company = ?, subject = ?, message = ?, updated_at = ?
		WHERE id = ?`,
		contact.Name, contact.Phone, contact.Company,
		contact.Subject, contact.Message, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating submission contact data: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Count returns the total number of stored submissions.
func (r *SubmissionRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM submissions`); err != nil {
		return 0, fmt.Errorf("counting submissions: %w", err)
	}
	return count, nil
}

// Recent returns the n most recent submissions, newest first.
func (r *SubmissionRepository) Recent(ctx context.Context, n int) ([]models.Submission, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT * FROM submissions ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying recent submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmissionRows(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// PruneAbandoned deletes pending submissions older than the cutoff;
// their OTP window has long passed and they will never verify.
func (r *SubmissionRepository) PruneAbandoned(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM submissions WHERE status = ? AND created_at < ?`,
		models.StatusPendingVerification, olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning abandoned submissions: %w", err)
	}
	return res.RowsAffected()
}

type submissionScanner interface {
	Scan(dest ...any) error
}

func scan(s submissionScanner) (*models.Submission, error) {
	var (
		sub      models.Submission
		degraded int
	)
	err := s.Scan(
		&sub.ID, &sub.Contact.Name, &sub.Contact.Email, &sub.Contact.Phone,
		&sub.Contact.Company, &sub.Contact.Subject, &sub.Contact.Message,
		&sub.Status, &degraded, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Degraded = degraded != 0
	return &sub, nil
}

func scanSubmission(row *sqlx.Row) (*models.Submission, error)  { return scan(row) }
func scanSubmissionRows(rows *sqlx.Rows) (*models.Submission, error) { return scan(rows) }
