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

// AssessmentRepository handles patient risk assessment persistence.
// Category scores and contributing factors are JSONB documents keyed by
// risk category.
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

// Save inserts a completed risk assessment
func (r *AssessmentRepository) Save(ctx context.Context, assessment *domain.RiskAssessment) error {
	categoryRisks, err := json.Marshal(assessment.CategoryRisks)
	if err != nil {
		return fmt.Errorf("marshaling category risks: %w", err)
	}
	factors, err := json.Marshal(assessment.ContributingFactors)
	if err != nil {
		return fmt.Errorf("marshaling contributing factors: %w", err)
	}

	query := `
		INSERT INTO risk_assessments (
			id, category_risks, overall_risk_category,
			risk_benefit_ratio, contributing_factors, assessed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)`

	_, err = r.db.Exec(ctx, query,
		assessment.ID,
		categoryRisks,
		string(assessment.OverallRiskCategory),
		assessment.RiskBenefitRatio,
		factors,
		assessment.AssessedAt,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": assessment.ID,
			"error":         err,
		}).Error("Failed to save risk assessment")
		return fmt.Errorf("saving risk assessment: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"assessment_id": assessment.ID,
		"risk_bucket":   assessment.OverallRiskCategory.String(),
	}).Info("Risk assessment saved successfully")

	return nil
}

// GetByID retrieves a risk assessment by its ID
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*domain.RiskAssessment, error) {
	query := `
		SELECT id, category_risks, overall_risk_category,
			   risk_benefit_ratio, contributing_factors, assessed_at
		FROM risk_assessments
		WHERE id = $1`

	var assessment domain.RiskAssessment
	var categoryRisks, factors []byte
	var bucket string

	err := r.db.QueryRow(ctx, query, id).Scan(
		&assessment.ID,
		&categoryRisks,
		&bucket,
		&assessment.RiskBenefitRatio,
		&factors,
		&assessment.AssessedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("risk assessment not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"assessment_id": id,
			"error":         err,
		}).Error("Failed to get risk assessment by ID")
		return nil, fmt.Errorf("getting risk assessment by ID: %w", err)
	}

	assessment.OverallRiskCategory = domain.RiskBucket(bucket)
	if err := json.Unmarshal(categoryRisks, &assessment.CategoryRisks); err != nil {
		return nil, fmt.Errorf("unmarshaling category risks: %w", err)
	}
	if err := json.Unmarshal(factors, &assessment.ContributingFactors); err != nil {
		return nil, fmt.Errorf("unmarshaling contributing factors: %w", err)
	}

	return &assessment, nil
}
