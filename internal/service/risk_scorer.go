package service

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/protocol-evidence-server/internal/domain"
)

// RiskScorer stratifies a patient profile into per-category risk scores and
// an overall risk-benefit bucket using additive rule-based deltas from fixed
// base rates. Every adjustment is a named contributing factor recorded on
// the assessment for traceability.
//
// The scorer never fails: missing or unparsable profile fields contribute
// neutrally instead of erroring.
type RiskScorer struct {
	logger *logrus.Logger
}

// NewRiskScorer creates a new risk scorer.
func NewRiskScorer(logger *logrus.Logger) *RiskScorer {
	return &RiskScorer{logger: logger}
}

// Base rates and per-category caps. Success is a probability, the rest are
// complication risks; each category clamps independently.
var riskBases = map[domain.RiskCategory]float64{
	domain.RISK_TREATMENT_SUCCESS: 0.75,
	domain.RISK_ADVERSE_EVENT:     0.15,
	domain.RISK_BLEEDING:          0.03,
	domain.RISK_INFECTION:         0.02,
	domain.RISK_CARDIOVASCULAR:    0.05,
}

var riskCaps = map[domain.RiskCategory]float64{
	domain.RISK_TREATMENT_SUCCESS: 0.95,
	domain.RISK_ADVERSE_EVENT:     0.50,
	domain.RISK_BLEEDING:          0.25,
	domain.RISK_INFECTION:         0.15,
	domain.RISK_CARDIOVASCULAR:    0.30,
}

// Medication classes that shift category risks. Matching is substring-based
// over lower-cased medication names, the same normalization external chart
// parsers apply.
var (
	anticoagulants = []string{
		"warfarin", "apixaban", "rivaroxaban", "dabigatran", "heparin",
		"clopidogrel", "aspirin",
	}
	immunosuppressives = []string{
		"methotrexate", "azathioprine", "tacrolimus", "cyclosporine",
		"mycophenolate", "adalimumab", "etanercept", "infliximab",
	}
	steroids = []string{
		"prednisone", "prednisolone", "dexamethasone", "cortisone",
		"methylprednisolone", "hydrocortisone",
	}
)

// Assess computes the risk stratification for one patient profile. The
// returned assessment holds no reference back to the profile.
func (r *RiskScorer) Assess(profile *domain.PatientRiskProfile) *domain.RiskAssessment {
	scores := make(map[domain.RiskCategory]float64, len(riskBases))
	factors := make(map[domain.RiskCategory][]string)
	for category, base := range riskBases {
		scores[category] = base
	}

	adjust := func(category domain.RiskCategory, delta float64, factor string) {
		scores[category] += delta
		factors[category] = append(factors[category], factor)
	}

	r.applyAgeFactors(profile, adjust)
	r.applySeverityFactors(profile, adjust)
	r.applyComorbidityFactors(profile, adjust)
	r.applyMedicationFactors(profile, adjust)

	for category, score := range scores {
		scores[category] = clamp(score, 0, riskCaps[category])
	}

	success := scores[domain.RISK_TREATMENT_SUCCESS]
	adverse := scores[domain.RISK_ADVERSE_EVENT]
	complication := scores[domain.RISK_BLEEDING] + scores[domain.RISK_INFECTION] + scores[domain.RISK_CARDIOVASCULAR]

	assessment := &domain.RiskAssessment{
		ID:                  uuid.New().String(),
		CategoryRisks:       scores,
		OverallRiskCategory: riskBucket(success, adverse+complication),
		RiskBenefitRatio:    round3(success / math.Max(0.01, adverse+complication)),
		ContributingFactors: factors,
		AssessedAt:          time.Now().UTC(),
	}

	r.logger.WithFields(logrus.Fields{
		"assessment_id":      assessment.ID,
		"risk_bucket":        assessment.OverallRiskCategory.String(),
		"risk_benefit_ratio": assessment.RiskBenefitRatio,
		"success":            success,
	}).Info("Patient risk assessment completed")

	return assessment
}

type adjustFunc func(category domain.RiskCategory, delta float64, factor string)

// applyAgeFactors shifts risks by age bracket. An absent age is neutral.
func (r *RiskScorer) applyAgeFactors(profile *domain.PatientRiskProfile, adjust adjustFunc) {
	if profile.Age == nil {
		return
	}

	switch age := *profile.Age; {
	case age < 40:
		adjust(domain.RISK_TREATMENT_SUCCESS, 0.05, "age under 40")
	case age >= 75:
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.10, "age 75 or older")
		adjust(domain.RISK_ADVERSE_EVENT, 0.05, "age 75 or older")
		adjust(domain.RISK_CARDIOVASCULAR, 0.07, "age 75 or older")
		adjust(domain.RISK_BLEEDING, 0.02, "age 75 or older")
	case age >= 60:
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.05, "age 60-74")
		adjust(domain.RISK_ADVERSE_EVENT, 0.03, "age 60-74")
		adjust(domain.RISK_CARDIOVASCULAR, 0.03, "age 60-74")
	}
}

func (r *RiskScorer) applySeverityFactors(profile *domain.PatientRiskProfile, adjust adjustFunc) {
	switch profile.SymptomSeverity {
	case domain.SEVERITY_SEVERE:
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.08, "severe symptoms")
		adjust(domain.RISK_ADVERSE_EVENT, 0.04, "severe symptoms")
	case domain.SEVERITY_CHRONIC:
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.05, "chronic symptoms")
	case domain.SEVERITY_MODERATE:
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.02, "moderate symptoms")
	}
}

func (r *RiskScorer) applyComorbidityFactors(profile *domain.PatientRiskProfile, adjust adjustFunc) {
	switch count := len(profile.Comorbidities); {
	case count >= 3:
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.08, "three or more comorbidities")
		adjust(domain.RISK_ADVERSE_EVENT, 0.05, "three or more comorbidities")
		adjust(domain.RISK_INFECTION, 0.03, "three or more comorbidities")
		adjust(domain.RISK_CARDIOVASCULAR, 0.04, "three or more comorbidities")
	case count >= 1:
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.03, "one or two comorbidities")
		adjust(domain.RISK_ADVERSE_EVENT, 0.02, "one or two comorbidities")
		adjust(domain.RISK_INFECTION, 0.01, "one or two comorbidities")
	}
}

func (r *RiskScorer) applyMedicationFactors(profile *domain.PatientRiskProfile, adjust adjustFunc) {
	if matchesClass(profile.Medications, anticoagulants) {
		adjust(domain.RISK_BLEEDING, 0.05, "anticoagulant therapy")
		adjust(domain.RISK_ADVERSE_EVENT, 0.02, "anticoagulant therapy")
	}
	if matchesClass(profile.Medications, immunosuppressives) {
		adjust(domain.RISK_INFECTION, 0.04, "immunosuppressive therapy")
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.04, "immunosuppressive therapy")
	}
	if matchesClass(profile.Medications, steroids) {
		adjust(domain.RISK_INFECTION, 0.02, "systemic steroid therapy")
		adjust(domain.RISK_TREATMENT_SUCCESS, -0.03, "systemic steroid therapy")
		adjust(domain.RISK_ADVERSE_EVENT, 0.02, "systemic steroid therapy")
	}
}

// riskBucket applies the ordered composite thresholds; the first satisfied
// rule wins, mirroring the evidence-level precedence.
func riskBucket(success, combinedRisk float64) domain.RiskBucket {
	composite := success - combinedRisk
	switch {
	case composite > 0.50 && success > 0.80:
		return domain.LOW_RISK_HIGH_BENEFIT
	case composite > 0.30 && success > 0.65:
		return domain.MODERATE_RISK_MODERATE_BENEFIT
	case composite > 0.10:
		return domain.MODERATE_RISK_UNCERTAIN_BENEFIT
	default:
		return domain.HIGH_RISK_LOW_BENEFIT
	}
}

func matchesClass(medications, class []string) bool {
	for _, med := range medications {
		lower := strings.ToLower(med)
		for _, name := range class {
			if strings.Contains(lower, name) {
				return true
			}
		}
	}
	return false
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
