package domain

import (
	"testing"
)

func TestSynthesisRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		request SynthesisRequest
		wantErr bool
	}{
		{
			name: "valid request",
			request: SynthesisRequest{
				Condition:  "knee osteoarthritis",
				Components: []ProtocolComponent{{ID: "c1", Name: "PRP injection", Therapy: "PRP"}},
			},
			wantErr: false,
		},
		{
			name: "missing condition",
			request: SynthesisRequest{
				Components: []ProtocolComponent{{ID: "c1", Name: "PRP injection"}},
			},
			wantErr: true,
		},
		{
			name:    "empty component list",
			request: SynthesisRequest{Condition: "knee osteoarthritis"},
			wantErr: true,
		},
		{
			name: "unnamed component",
			request: SynthesisRequest{
				Condition:  "knee osteoarthritis",
				Components: []ProtocolComponent{{ID: "c1"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("Expected a ValidationError, got %T", err)
			}
		})
	}
}

func TestPatientRiskProfileValidate(t *testing.T) {
	age := 54
	negative := -3

	tests := []struct {
		name    string
		profile PatientRiskProfile
		wantErr bool
	}{
		{"empty profile is valid", PatientRiskProfile{}, false},
		{"with age", PatientRiskProfile{Age: &age, SymptomSeverity: SEVERITY_MODERATE}, false},
		{"negative age", PatientRiskProfile{Age: &negative}, true},
		{"unknown severity", PatientRiskProfile{SymptomSeverity: SymptomSeverity("catastrophic")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStudyRecordCitationID(t *testing.T) {
	tests := []struct {
		name     string
		record   StudyRecord
		expected string
	}{
		{"prefers PMID", StudyRecord{PMID: "12345", NCTID: "NCT001", Title: "A trial"}, "PMID:12345"},
		{"falls back to NCT", StudyRecord{NCTID: "NCT001", Title: "A trial"}, "NCT001"},
		{"falls back to title", StudyRecord{Title: "A trial"}, "A trial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.CitationID(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSearchQueryTerms(t *testing.T) {
	q := SearchQuery{Therapy: "platelet-rich plasma", Condition: "knee osteoarthritis"}
	if got := q.Terms(); got != "platelet-rich plasma knee osteoarthritis" {
		t.Errorf("unexpected terms: %q", got)
	}

	if err := (SearchQuery{}).Validate(); err == nil {
		t.Error("Expected empty query to be invalid")
	}
}
