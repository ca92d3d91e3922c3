// Package review provides clinician review storage for protocol evidence
// syntheses. It stores clinician agreements and corrections to the system's
// GRADE assignments for later calibration of the grading thresholds.
package review

import (
	"context"
	"io"
	"time"

	"github.com/protocol-evidence-server/internal/domain"
)

// Review represents a clinician's review of a synthesis grade.
type Review struct {
	ID             int64               `json:"id,omitempty"`
	SynthesisID    string              `json:"synthesis_id"`
	Condition      string              `json:"condition,omitempty"`
	SystemGrade    domain.QualityGrade `json:"system_grade"`    // Engine's GRADE assignment
	ReviewerGrade  domain.QualityGrade `json:"reviewer_grade"`  // Clinician's decision
	ReviewerID     string              `json:"reviewer_id"`
	ReviewerAgreed bool                `json:"reviewer_agreed"` // Did the clinician agree?
	Notes          string              `json:"notes,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Store defines the interface for review storage operations.
type Store interface {
	// Save stores or updates a clinician review.
	// If a review for the same synthesis+reviewer exists, it will be updated.
	Save(ctx context.Context, review *Review) error

	// Get retrieves a reviewer's review for a synthesis.
	// Returns nil without error when no review exists.
	Get(ctx context.Context, synthesisID, reviewerID string) (*Review, error)

	// List returns all review entries with pagination.
	List(ctx context.Context, limit, offset int) ([]*Review, error)

	// Count returns the total number of review entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes a review entry by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all reviews to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports reviews from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ReviewExport represents the JSON export format.
type ReviewExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Reviews    []*Review `json:"reviews"`
}
