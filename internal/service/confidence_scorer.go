package service

import (
	"math"
	"strconv"
	"time"

	"github.com/protocol-evidence-server/internal/domain"
)

// ConfidenceScorer combines an evidence grade with study-count, consistency,
// and recency signals into a single confidence score for one protocol
// component. Scores are clamped to [0,1] and rounded to three decimals.
type ConfidenceScorer struct {
	// now is injectable so recency is testable against a fixed date.
	now func() time.Time
}

// NewConfidenceScorer creates a new confidence scorer.
func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{now: time.Now}
}

const (
	studyCountBonusCap = 0.2
	consistencyBonus   = 0.1
	recencyBonusCap    = 0.1
)

// Score computes the confidence for one component. More studies never
// reduce the score when the grade is held fixed.
func (s *ConfidenceScorer) Score(grade domain.EvidenceGrade, studies []domain.StudyRecord) float64 {
	score := grade.QualityScore

	countBonus := float64(len(studies)) / 10.0
	if countBonus > studyCountBonusCap {
		countBonus = studyCountBonusCap
	}
	score += countBonus

	if len(studies) >= 3 {
		score += consistencyBonus
	}

	score += s.recencyBonus(studies)

	if score > 1.0 {
		score = 1.0
	}

	return math.Round(score*1000) / 1000
}

// recencyBonus rewards bodies of evidence with recent publications. Studies
// without a parseable year contribute nothing; an empty list yields zero to
// avoid dividing by zero.
func (s *ConfidenceScorer) recencyBonus(studies []domain.StudyRecord) float64 {
	if len(studies) == 0 {
		return 0
	}

	cutoff := s.now().Year() - domain.RecencyYears
	recent := 0
	for _, study := range studies {
		year, err := strconv.Atoi(study.Year)
		if err != nil {
			continue
		}
		if year >= cutoff {
			recent++
		}
	}

	bonus := float64(recent) / float64(len(studies))
	if bonus > recencyBonusCap {
		bonus = recencyBonusCap
	}
	return bonus
}

// Contributions decomposes a confidence score into per-factor deltas.
// Each delta is the exact additive term that factor contributed before
// clamping; when the unclamped sum exceeds 1.0 the overflow is reported as
// a separate negative "clamp" entry so the deltas always sum to the final
// score. Attribution is reproducible from the inputs; nothing is sampled.
func (s *ConfidenceScorer) Contributions(grade domain.EvidenceGrade, studies []domain.StudyRecord) []domain.FactorContribution {
	countBonus := float64(len(studies)) / 10.0
	if countBonus > studyCountBonusCap {
		countBonus = studyCountBonusCap
	}

	contributions := []domain.FactorContribution{
		{Factor: "base_quality", Delta: round3(grade.QualityScore)},
		{Factor: "study_count", Delta: round3(countBonus)},
	}

	total := grade.QualityScore + countBonus

	if len(studies) >= 3 {
		contributions = append(contributions, domain.FactorContribution{
			Factor: "consistency", Delta: consistencyBonus,
		})
		total += consistencyBonus
	}
	if rb := s.recencyBonus(studies); rb > 0 {
		contributions = append(contributions, domain.FactorContribution{
			Factor: "recency", Delta: round3(rb),
		})
		total += rb
	}

	if total > 1.0 {
		contributions = append(contributions, domain.FactorContribution{
			Factor: "clamp", Delta: round3(1.0 - total),
		})
	}

	return contributions
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
