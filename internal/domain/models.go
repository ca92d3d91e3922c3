package domain

import (
	"errors"
	"fmt"
	"time"
)

// StudyRecord is one literature item as returned by a search collaborator.
// Records are immutable once fetched; SampleSize is nil (not zero) when no
// cohort size could be extracted from the abstract, so absent values are
// never added into aggregate totals.
type StudyRecord struct {
	Title      string `json:"title"`
	Abstract   string `json:"abstract,omitempty"`
	Year       string `json:"year,omitempty"`
	SampleSize *int   `json:"sample_size,omitempty"`
	PMID       string `json:"pmid,omitempty"`
	NCTID      string `json:"nct_id,omitempty"`
	Journal    string `json:"journal,omitempty"`
	Source     string `json:"source,omitempty"` // PubMed, ClinicalTrials.gov
}

// CitationID returns the strongest available identifier for the record.
func (s *StudyRecord) CitationID() string {
	if s.PMID != "" {
		return "PMID:" + s.PMID
	}
	if s.NCTID != "" {
		return s.NCTID
	}
	return s.Title
}

// StudyClassification is the derived design bucket and base weight for a
// single study. Computed purely from title+abstract text.
type StudyClassification struct {
	StudyType     StudyType `json:"study_type"`
	QualityWeight float64   `json:"quality_weight"`
	SampleSize    *int      `json:"sample_size,omitempty"`
}

// EvidenceGrade aggregates a set of study classifications for one protocol
// component.
//
// Invariant: QualityScore of 0 implies zero supporting studies, and
// OverallLevel never weakens as stronger study types are added.
type EvidenceGrade struct {
	OverallLevel       EvidenceLevel     `json:"overall_level"`
	QualityScore       float64           `json:"quality_score"`
	BiasRisk           BiasRisk          `json:"bias_risk"`
	StudyTypeBreakdown map[StudyType]int `json:"study_type_breakdown"`
	TotalSampleSize    int               `json:"total_sample_size"`
}

// ProtocolComponent is one therapy element of a treatment protocol
// submitted for evidence synthesis.
type ProtocolComponent struct {
	ID      string `json:"id"`
	Name    string `json:"name" validate:"required"`
	Therapy string `json:"therapy"`
}

// ComponentEvidence is one row of a protocol's evidence table. Created once
// per synthesis request and never mutated; a re-synthesis supersedes it with
// a fresh row rather than updating in place.
type ComponentEvidence struct {
	ComponentID          string        `json:"component_id"`
	ComponentName        string        `json:"component_name"`
	EvidenceLevel        EvidenceLevel `json:"evidence_level"`
	QualityScore         float64       `json:"quality_score"`
	ConfidenceScore      float64       `json:"confidence_score"`
	SupportingStudyCount int           `json:"supporting_study_count"`
	KeyFindings          []string      `json:"key_findings"`
	CitationIDs          []string      `json:"citation_ids"`
}

// OverallQuality is the GRADE-style summary for a whole synthesis.
type OverallQuality struct {
	Score float64      `json:"score"`
	Grade QualityGrade `json:"grade"`
}

// ProtocolEvidenceSynthesis owns the evidence table produced for one
// protocol-synthesis request. Read-only after creation; persisted keyed by
// protocol/condition.
type ProtocolEvidenceSynthesis struct {
	ID                 string              `json:"id"`
	Condition          string              `json:"condition"`
	Components         []ComponentEvidence `json:"components"`
	Contradictions     []string            `json:"contradictions"`
	OverallQuality     OverallQuality      `json:"overall_quality"`
	SynthesisTimestamp time.Time           `json:"synthesis_timestamp"`
}

// Finding is one extracted finding fed to the contradiction detector.
type Finding struct {
	ComponentName string  `json:"component_name"`
	FindingText   string  `json:"finding_text"`
	QualityScore  float64 `json:"quality_score"`
}

// MedicalHistory is the normalized patient history shape. External chart and
// file parsers must normalize into this struct before data reaches the
// scoring engine; the engine never accepts loosely shaped history payloads.
type MedicalHistory struct {
	Conditions  []string `json:"conditions"`
	Medications []string `json:"medications"`
	Allergies   []string `json:"allergies"`
}

// PatientRiskProfile is the per-call input to the risk scorer. The scorer
// retains no reference to it after assessment. Age is nil when unknown or
// unparsable and degrades to a neutral contribution.
type PatientRiskProfile struct {
	Age             *int            `json:"age,omitempty"`
	Comorbidities   []string        `json:"comorbidities"`
	Medications     []string        `json:"medications"`
	SymptomSeverity SymptomSeverity `json:"symptom_severity"`
}

// RiskAssessment is the immutable output of one risk-scoring call.
type RiskAssessment struct {
	ID                  string                    `json:"id"`
	CategoryRisks       map[RiskCategory]float64  `json:"category_risks"`
	OverallRiskCategory RiskBucket                `json:"overall_risk_category"`
	RiskBenefitRatio    float64                   `json:"risk_benefit_ratio"`
	ContributingFactors map[RiskCategory][]string `json:"contributing_factors,omitempty"`
	AssessedAt          time.Time                 `json:"assessed_at"`
}

// FactorContribution is one factor's ablation-derived share of a confidence
// score. Contributions are reproducible; removing the factor from the
// calculation changes the score by exactly Delta.
type FactorContribution struct {
	Factor string  `json:"factor"`
	Delta  float64 `json:"delta"`
}

// SynthesisRequest is the validated input for a protocol evidence synthesis.
type SynthesisRequest struct {
	Condition  string              `json:"condition" validate:"required"`
	Components []ProtocolComponent `json:"components" validate:"required,min=1"`
}

// Validate ensures a synthesis request is well formed. This is the only
// failure that crosses the engine boundary; everything downstream degrades
// to worst-case-but-valid output instead of erroring.
func (r *SynthesisRequest) Validate() error {
	if r.Condition == "" {
		return &ValidationError{Field: "condition", Message: "condition is required"}
	}
	if len(r.Components) == 0 {
		return &ValidationError{Field: "components", Message: "at least one protocol component is required"}
	}
	for i, c := range r.Components {
		if c.Name == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("components[%d].name", i),
				Message: "component name is required",
			}
		}
	}
	return nil
}

// Validate ensures the profile carries no structurally invalid values.
// The scorer itself never errors; this guard belongs to the API boundary.
func (p *PatientRiskProfile) Validate() error {
	if p.Age != nil && (*p.Age < 0 || *p.Age > 130) {
		return &ValidationError{Field: "age", Message: "age out of range", Value: *p.Age}
	}
	if p.SymptomSeverity != "" && !p.SymptomSeverity.IsValid() {
		return &ValidationError{
			Field:   "symptom_severity",
			Message: "unknown symptom severity",
			Value:   string(p.SymptomSeverity),
		}
	}
	return nil
}

// SearchQuery identifies the literature lookup for one protocol component.
type SearchQuery struct {
	Therapy    string `json:"therapy"`
	Condition  string `json:"condition"`
	MaxResults int    `json:"max_results,omitempty"`
}

// Terms renders the query as a free-text search expression.
func (q SearchQuery) Terms() string {
	if q.Therapy == "" {
		return q.Condition
	}
	if q.Condition == "" {
		return q.Therapy
	}
	return q.Therapy + " " + q.Condition
}

// Validate ensures the query has at least one term.
func (q SearchQuery) Validate() error {
	if q.Therapy == "" && q.Condition == "" {
		return errors.New("search query requires a therapy or condition term")
	}
	return nil
}
