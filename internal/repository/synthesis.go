package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/protocol-evidence-server/internal/domain"
)

// SynthesisRepository handles protocol evidence synthesis persistence.
// Component rows and contradiction flags are stored as JSONB documents;
// syntheses are immutable once written, so there is no update path.
type SynthesisRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewSynthesisRepository creates a new synthesis repository
func NewSynthesisRepository(db *pgxpool.Pool, logger *logrus.Logger) *SynthesisRepository {
	return &SynthesisRepository{
		db:  db,
		log: logger,
	}
}

// Save inserts a completed synthesis
func (r *SynthesisRepository) Save(ctx context.Context, synthesis *domain.ProtocolEvidenceSynthesis) error {
	components, err := json.Marshal(synthesis.Components)
	if err != nil {
		return fmt.Errorf("marshaling synthesis components: %w", err)
	}
	contradictions, err := json.Marshal(synthesis.Contradictions)
	if err != nil {
		return fmt.Errorf("marshaling contradictions: %w", err)
	}

	query := `
		INSERT INTO protocol_syntheses (
			id, condition, components, contradictions,
			overall_score, overall_grade, synthesized_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err = r.db.Exec(ctx, query,
		synthesis.ID,
		synthesis.Condition,
		components,
		contradictions,
		synthesis.OverallQuality.Score,
		string(synthesis.OverallQuality.Grade),
		synthesis.SynthesisTimestamp,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"synthesis_id": synthesis.ID,
			"condition":    synthesis.Condition,
			"error":        err,
		}).Error("Failed to save synthesis")
		return fmt.Errorf("saving synthesis: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"synthesis_id": synthesis.ID,
		"condition":    synthesis.Condition,
	}).Info("Synthesis saved successfully")

	return nil
}

// GetByID retrieves a synthesis by its ID
func (r *SynthesisRepository) GetByID(ctx context.Context, id string) (*domain.ProtocolEvidenceSynthesis, error) {
	query := `
		SELECT id, condition, components, contradictions,
			   overall_score, overall_grade, synthesized_at
		FROM protocol_syntheses
		WHERE id = $1`

	synthesis, err := r.scanSynthesis(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("synthesis not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"synthesis_id": id,
			"error":        err,
		}).Error("Failed to get synthesis by ID")
		return nil, fmt.Errorf("getting synthesis by ID: %w", err)
	}

	return synthesis, nil
}

// ListByCondition retrieves syntheses for a condition, newest first, with
// pagination
func (r *SynthesisRepository) ListByCondition(ctx context.Context, condition string, limit, offset int) ([]*domain.ProtocolEvidenceSynthesis, error) {
	query := `
		SELECT id, condition, components, contradictions,
			   overall_score, overall_grade, synthesized_at
		FROM protocol_syntheses
		WHERE condition = $1
		ORDER BY synthesized_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, condition, limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"condition": condition,
			"error":     err,
		}).Error("Failed to list syntheses by condition")
		return nil, fmt.Errorf("listing syntheses by condition: %w", err)
	}
	defer rows.Close()

	var syntheses []*domain.ProtocolEvidenceSynthesis
	for rows.Next() {
		synthesis, err := r.scanSynthesis(rows)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"condition": condition,
				"error":     err,
			}).Error("Failed to scan synthesis row")
			return nil, fmt.Errorf("scanning synthesis row: %w", err)
		}
		syntheses = append(syntheses, synthesis)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating synthesis rows: %w", err)
	}

	return syntheses, nil
}

// scanSynthesis reads one synthesis row and unpacks its JSONB columns.
func (r *SynthesisRepository) scanSynthesis(row pgx.Row) (*domain.ProtocolEvidenceSynthesis, error) {
	var synthesis domain.ProtocolEvidenceSynthesis
	var components, contradictions []byte
	var grade string

	err := row.Scan(
		&synthesis.ID,
		&synthesis.Condition,
		&components,
		&contradictions,
		&synthesis.OverallQuality.Score,
		&grade,
		&synthesis.SynthesisTimestamp,
	)
	if err != nil {
		return nil, err
	}

	synthesis.OverallQuality.Grade = domain.QualityGrade(grade)
	if err := json.Unmarshal(components, &synthesis.Components); err != nil {
		return nil, fmt.Errorf("unmarshaling synthesis components: %w", err)
	}
	if err := json.Unmarshal(contradictions, &synthesis.Contradictions); err != nil {
		return nil, fmt.Errorf("unmarshaling contradictions: %w", err)
	}

	return &synthesis, nil
}
