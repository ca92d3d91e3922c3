package service

import (
	"github.com/sirupsen/logrus"

	"github.com/protocol-evidence-server/internal/domain"
)

// EvidenceGrader aggregates classified studies into an overall evidence
// level, quality score, and bias-risk label for one protocol component.
// Grading depends only on bucket counts, never on input order.
type EvidenceGrader struct {
	logger     *logrus.Logger
	classifier *StudyClassifier
}

// NewEvidenceGrader creates a new evidence grader.
func NewEvidenceGrader(logger *logrus.Logger) *EvidenceGrader {
	return &EvidenceGrader{
		logger:     logger,
		classifier: NewStudyClassifier(),
	}
}

// sampleSizeBonusCap limits how much large cohorts can raise the score.
const sampleSizeBonusCap = 0.2

// Grade converts a set of literature records into an EvidenceGrade.
// An empty study list yields the terminal worst-case grade: Level IV,
// quality 0.0, high bias risk.
func (g *EvidenceGrader) Grade(studies []domain.StudyRecord) domain.EvidenceGrade {
	if len(studies) == 0 {
		return domain.EvidenceGrade{
			OverallLevel:       domain.LEVEL_IV,
			QualityScore:       0.0,
			BiasRisk:           domain.BIAS_HIGH,
			StudyTypeBreakdown: map[domain.StudyType]int{},
		}
	}

	breakdown := make(map[domain.StudyType]int, 5)
	totalSampleSize := 0
	weightSum := 0.0

	for _, study := range studies {
		classification := g.classifier.Classify(study)
		breakdown[classification.StudyType]++
		weightSum += classification.QualityWeight
		if classification.SampleSize != nil {
			totalSampleSize += *classification.SampleSize
		}
	}

	level := determineLevel(breakdown)

	sampleBonus := float64(totalSampleSize) / 1000.0
	if sampleBonus > sampleSizeBonusCap {
		sampleBonus = sampleSizeBonusCap
	}

	qualityScore := weightSum/float64(len(studies)) + sampleBonus
	if qualityScore > 1.0 {
		qualityScore = 1.0
	}

	grade := domain.EvidenceGrade{
		OverallLevel:       level,
		QualityScore:       qualityScore,
		BiasRisk:           biasRiskForScore(qualityScore),
		StudyTypeBreakdown: breakdown,
		TotalSampleSize:    totalSampleSize,
	}

	g.logger.WithFields(logrus.Fields{
		"study_count":       len(studies),
		"overall_level":     grade.OverallLevel.String(),
		"quality_score":     grade.QualityScore,
		"bias_risk":         grade.BiasRisk.String(),
		"total_sample_size": grade.TotalSampleSize,
	}).Debug("Graded evidence body")

	return grade
}

// determineLevel applies the ordered level precedence; the first satisfied
// rule wins. Ties depend only on per-bucket counts.
func determineLevel(breakdown map[domain.StudyType]int) domain.EvidenceLevel {
	switch {
	case breakdown[domain.META_ANALYSIS] >= 1:
		return domain.LEVEL_I
	case breakdown[domain.RCT] >= 2:
		return domain.LEVEL_I
	case breakdown[domain.RCT] >= 1:
		return domain.LEVEL_II
	case breakdown[domain.COHORT] >= 2:
		return domain.LEVEL_II
	case breakdown[domain.COHORT] >= 1 || breakdown[domain.CASE_SERIES] >= 3:
		return domain.LEVEL_III
	default:
		return domain.LEVEL_IV
	}
}

func biasRiskForScore(score float64) domain.BiasRisk {
	switch {
	case score >= 0.8:
		return domain.BIAS_LOW
	case score >= 0.6:
		return domain.BIAS_MEDIUM
	default:
		return domain.BIAS_HIGH
	}
}
