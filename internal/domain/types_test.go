package domain

import (
	"testing"
)

func TestStudyTypeQualityWeight(t *testing.T) {
	tests := []struct {
		name     string
		value    StudyType
		expected float64
	}{
		{"Meta-analysis", META_ANALYSIS, 0.9},
		{"RCT", RCT, 0.8},
		{"Cohort", COHORT, 0.6},
		{"Case series", CASE_SERIES, 0.4},
		{"Case report", CASE_REPORT, 0.2},
		{"Unknown falls to lowest bucket", StudyType("editorial"), 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.QualityWeight(); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestEvidenceLevelRank(t *testing.T) {
	tests := []struct {
		name     string
		value    EvidenceLevel
		expected int
	}{
		{"Level I", LEVEL_I, 1},
		{"Level II", LEVEL_II, 2},
		{"Level III", LEVEL_III, 3},
		{"Level IV", LEVEL_IV, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Rank(); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestEvidenceLevelConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    EvidenceLevel
		expected string
	}{
		{"Level I", LEVEL_I, "Level I"},
		{"Level II", LEVEL_II, "Level II"},
		{"Level III", LEVEL_III, "Level III"},
		{"Level IV", LEVEL_IV, "Level IV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
		})
	}
}

func TestGradeForScore(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		expected QualityGrade
	}{
		{"High at threshold", 0.8, GRADE_HIGH},
		{"Moderate", 0.65, GRADE_MODERATE},
		{"Moderate at threshold", 0.6, GRADE_MODERATE},
		{"Low", 0.45, GRADE_LOW},
		{"Very low", 0.2, GRADE_VERY_LOW},
		{"Zero", 0.0, GRADE_VERY_LOW},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeForScore(tt.score); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestRiskBucketRequiresConsult(t *testing.T) {
	tests := []struct {
		name     string
		value    RiskBucket
		expected bool
	}{
		{"Low risk high benefit", LOW_RISK_HIGH_BENEFIT, false},
		{"Moderate risk moderate benefit", MODERATE_RISK_MODERATE_BENEFIT, false},
		{"Moderate risk uncertain benefit", MODERATE_RISK_UNCERTAIN_BENEFIT, true},
		{"High risk low benefit", HIGH_RISK_LOW_BENEFIT, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.RequiresConsult(); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestSymptomSeverityIsValid(t *testing.T) {
	valid := []SymptomSeverity{SEVERITY_MILD, SEVERITY_MODERATE, SEVERITY_SEVERE, SEVERITY_CHRONIC, SEVERITY_UNSPECIFIED}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}
	if SymptomSeverity("terminal").IsValid() {
		t.Error("Expected unknown severity to be invalid")
	}
}
