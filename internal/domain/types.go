// Package domain contains core business entities and types for literature
// evidence grading and protocol confidence scoring.
//
// Evidence levels follow an Oxford/GRADE-inspired hierarchy of study-design
// rigor (Level I strongest); overall protocol quality uses the GRADE
// High/Moderate/Low/Very Low vocabulary.
package domain

// StudyType is the design bucket a literature record is classified into.
// Buckets are ordered by methodological rigor; each carries a fixed base
// quality weight used by the evidence grader.
type StudyType string

const (
	META_ANALYSIS StudyType = "meta_analysis"
	RCT           StudyType = "rct"
	COHORT        StudyType = "cohort"
	CASE_SERIES   StudyType = "case_series"
	CASE_REPORT   StudyType = "case_report"
)

// EvidenceLevel is the aggregate evidence level for one protocol component.
type EvidenceLevel string

const (
	LEVEL_I   EvidenceLevel = "Level I"
	LEVEL_II  EvidenceLevel = "Level II"
	LEVEL_III EvidenceLevel = "Level III"
	LEVEL_IV  EvidenceLevel = "Level IV"
)

// BiasRisk labels the risk of bias in a graded body of evidence.
type BiasRisk string

const (
	BIAS_LOW    BiasRisk = "Low"
	BIAS_MEDIUM BiasRisk = "Medium"
	BIAS_HIGH   BiasRisk = "High"
)

// QualityGrade is the GRADE-style label for overall protocol quality.
type QualityGrade string

const (
	GRADE_HIGH     QualityGrade = "High"
	GRADE_MODERATE QualityGrade = "Moderate"
	GRADE_LOW      QualityGrade = "Low"
	GRADE_VERY_LOW QualityGrade = "Very Low"
)

// RiskCategory names one independently scored patient risk dimension.
type RiskCategory string

const (
	RISK_TREATMENT_SUCCESS RiskCategory = "treatment_success"
	RISK_ADVERSE_EVENT     RiskCategory = "adverse_event"
	RISK_BLEEDING          RiskCategory = "bleeding"
	RISK_INFECTION         RiskCategory = "infection"
	RISK_CARDIOVASCULAR    RiskCategory = "cardiovascular"
)

// RiskBucket is the overall risk-benefit stratification for a patient.
type RiskBucket string

const (
	LOW_RISK_HIGH_BENEFIT           RiskBucket = "low_risk_high_benefit"
	MODERATE_RISK_MODERATE_BENEFIT  RiskBucket = "moderate_risk_moderate_benefit"
	MODERATE_RISK_UNCERTAIN_BENEFIT RiskBucket = "moderate_risk_uncertain_benefit"
	HIGH_RISK_LOW_BENEFIT           RiskBucket = "high_risk_low_benefit"
)

// SymptomSeverity describes reported symptom severity in a patient profile.
type SymptomSeverity string

const (
	SEVERITY_MILD        SymptomSeverity = "mild"
	SEVERITY_MODERATE    SymptomSeverity = "moderate"
	SEVERITY_SEVERE      SymptomSeverity = "severe"
	SEVERITY_CHRONIC     SymptomSeverity = "chronic"
	SEVERITY_UNSPECIFIED SymptomSeverity = "unspecified"
)

// QualityWeight returns the fixed base weight for a study type.
// Unknown types weigh the same as a case report, the lowest bucket.
func (st StudyType) QualityWeight() float64 {
	switch st {
	case META_ANALYSIS:
		return 0.9
	case RCT:
		return 0.8
	case COHORT:
		return 0.6
	case CASE_SERIES:
		return 0.4
	default:
		return 0.2
	}
}

// IsValid validates the study type bucket.
func (st StudyType) IsValid() bool {
	switch st {
	case META_ANALYSIS, RCT, COHORT, CASE_SERIES, CASE_REPORT:
		return true
	default:
		return false
	}
}

// String returns the string representation of the study type.
func (st StudyType) String() string {
	return string(st)
}

// IsValid validates the evidence level.
func (el EvidenceLevel) IsValid() bool {
	switch el {
	case LEVEL_I, LEVEL_II, LEVEL_III, LEVEL_IV:
		return true
	default:
		return false
	}
}

// String returns the string representation of the evidence level.
func (el EvidenceLevel) String() string {
	return string(el)
}

// Rank returns the numeric rank of the level, 1 being strongest.
// Used to compare levels; lower rank means stronger evidence.
func (el EvidenceLevel) Rank() int {
	switch el {
	case LEVEL_I:
		return 1
	case LEVEL_II:
		return 2
	case LEVEL_III:
		return 3
	default:
		return 4
	}
}

// IsValid validates the bias risk label.
func (br BiasRisk) IsValid() bool {
	switch br {
	case BIAS_LOW, BIAS_MEDIUM, BIAS_HIGH:
		return true
	default:
		return false
	}
}

// String returns the string representation of the bias risk.
func (br BiasRisk) String() string {
	return string(br)
}

// IsValid validates the quality grade.
func (qg QualityGrade) IsValid() bool {
	switch qg {
	case GRADE_HIGH, GRADE_MODERATE, GRADE_LOW, GRADE_VERY_LOW:
		return true
	default:
		return false
	}
}

// String returns the string representation of the quality grade.
func (qg QualityGrade) String() string {
	return string(qg)
}

// IsValid validates the risk category.
func (rc RiskCategory) IsValid() bool {
	switch rc {
	case RISK_TREATMENT_SUCCESS, RISK_ADVERSE_EVENT, RISK_BLEEDING,
		RISK_INFECTION, RISK_CARDIOVASCULAR:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk category.
func (rc RiskCategory) String() string {
	return string(rc)
}

// IsValid validates the risk bucket.
func (rb RiskBucket) IsValid() bool {
	switch rb {
	case LOW_RISK_HIGH_BENEFIT, MODERATE_RISK_MODERATE_BENEFIT,
		MODERATE_RISK_UNCERTAIN_BENEFIT, HIGH_RISK_LOW_BENEFIT:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk bucket.
func (rb RiskBucket) String() string {
	return string(rb)
}

// LogFields returns structured logging fields for audit trails.
// Clinical decision-support output must be traceable per request.
func (rb RiskBucket) LogFields() map[string]any {
	return map[string]any{
		"risk_bucket":      string(rb),
		"is_valid":         rb.IsValid(),
		"requires_consult": rb.RequiresConsult(),
	}
}

// RequiresConsult reports whether the stratification warrants clinician
// review before protocol acceptance.
func (rb RiskBucket) RequiresConsult() bool {
	switch rb {
	case MODERATE_RISK_UNCERTAIN_BENEFIT, HIGH_RISK_LOW_BENEFIT:
		return true
	default:
		return false
	}
}

// IsValid validates the symptom severity.
// Unrecognized severities are treated as unspecified by the risk scorer
// rather than rejected; validity only matters at the API boundary.
func (ss SymptomSeverity) IsValid() bool {
	switch ss {
	case SEVERITY_MILD, SEVERITY_MODERATE, SEVERITY_SEVERE,
		SEVERITY_CHRONIC, SEVERITY_UNSPECIFIED:
		return true
	default:
		return false
	}
}

// String returns the string representation of the symptom severity.
func (ss SymptomSeverity) String() string {
	return string(ss)
}

// GradeForScore maps an overall quality score onto a GRADE label.
func GradeForScore(score float64) QualityGrade {
	switch {
	case score >= 0.8:
		return GRADE_HIGH
	case score >= 0.6:
		return GRADE_MODERATE
	case score >= 0.4:
		return GRADE_LOW
	default:
		return GRADE_VERY_LOW
	}
}

// RecencyYears is how far back a study's publication year may lie while
// still counting toward the confidence recency bonus.
const RecencyYears = 5
