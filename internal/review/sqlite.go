package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/protocol-evidence-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite review store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanReview scans a row into a Review struct.
func scanReview(s scanner) (*Review, error) {
	rv := &Review{}
	var systemGrade, reviewerGrade string

	err := s.Scan(
		&rv.ID, &rv.SynthesisID, &rv.Condition,
		&systemGrade, &reviewerGrade, &rv.ReviewerID, &rv.ReviewerAgreed,
		&rv.Notes, &rv.CreatedAt, &rv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rv.SystemGrade = domain.QualityGrade(systemGrade)
	rv.ReviewerGrade = domain.QualityGrade(reviewerGrade)
	return rv, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		synthesis_id TEXT NOT NULL,
		condition_name TEXT DEFAULT '',
		system_grade TEXT NOT NULL,
		reviewer_grade TEXT NOT NULL,
		reviewer_id TEXT NOT NULL,
		reviewer_agreed INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(synthesis_id, reviewer_id)
	);

	CREATE INDEX IF NOT EXISTS idx_synthesis_id ON reviews(synthesis_id);
	CREATE INDEX IF NOT EXISTS idx_reviewer_id ON reviews(reviewer_id);
	CREATE INDEX IF NOT EXISTS idx_created_at ON reviews(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates a clinician review.
func (s *SQLiteStore) Save(ctx context.Context, review *Review) error {
	now := time.Now()

	// Check if exists
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM reviews WHERE synthesis_id = ? AND reviewer_id = ?",
		review.SynthesisID, review.ReviewerID,
	).Scan(&existingID)

	if err == nil {
		// Update existing
		review.ID = existingID
		review.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE reviews SET
				condition_name = ?,
				system_grade = ?,
				reviewer_grade = ?,
				reviewer_agreed = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			review.Condition,
			string(review.SystemGrade),
			string(review.ReviewerGrade),
			review.ReviewerAgreed,
			review.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	// Insert new
	review.CreatedAt = now
	review.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (
			synthesis_id, condition_name, system_grade,
			reviewer_grade, reviewer_id, reviewer_agreed,
			notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		review.SynthesisID,
		review.Condition,
		string(review.SystemGrade),
		string(review.ReviewerGrade),
		review.ReviewerID,
		review.ReviewerAgreed,
		review.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	review.ID = id

	return nil
}

// Get retrieves a reviewer's review for a synthesis.
func (s *SQLiteStore) Get(ctx context.Context, synthesisID, reviewerID string) (*Review, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, synthesis_id, condition_name,
			system_grade, reviewer_grade, reviewer_id, reviewer_agreed,
			notes, created_at, updated_at
		FROM reviews
		WHERE synthesis_id = ? AND reviewer_id = ?
		LIMIT 1
	`, synthesisID, reviewerID)

	rv, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rv, nil
}

// List returns all review entries with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, synthesis_id, condition_name,
			system_grade, reviewer_grade, reviewer_id, reviewer_agreed,
			notes, created_at, updated_at
		FROM reviews
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rv)
	}
	return result, rows.Err()
}

// Count returns the total number of review entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&count)
	return count, err
}

// Delete removes a review entry by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all reviews to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}

	export := &ReviewExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Reviews:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports reviews from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export ReviewExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rv := range export.Reviews {
		// Check if exists
		existing, err := s.Get(ctx, rv.SynthesisID, rv.ReviewerID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := s.Save(ctx, rv); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
