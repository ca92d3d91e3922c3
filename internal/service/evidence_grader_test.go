package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocol-evidence-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestEvidenceGrader_EmptyInput(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())

	grade := grader.Grade(nil)

	assert.Equal(t, domain.LEVEL_IV, grade.OverallLevel)
	assert.Equal(t, 0.0, grade.QualityScore)
	assert.Equal(t, domain.BIAS_HIGH, grade.BiasRisk)
	assert.Equal(t, 0, grade.TotalSampleSize)
	assert.Empty(t, grade.StudyTypeBreakdown)
}

func TestEvidenceGrader_SingleRCT(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())

	grade := grader.Grade([]domain.StudyRecord{
		{
			Title:    "A randomized controlled trial of PRP",
			Abstract: "double blind placebo controlled study of 120 patients",
			Year:     "2023",
		},
	})

	assert.Equal(t, domain.LEVEL_II, grade.OverallLevel)
	assert.Equal(t, 1, grade.StudyTypeBreakdown[domain.RCT])
	assert.Equal(t, 120, grade.TotalSampleSize)
	// weight 0.8 + sample bonus 120/1000
	assert.InDelta(t, 0.92, grade.QualityScore, 1e-9)
	assert.Equal(t, domain.BIAS_LOW, grade.BiasRisk)
}

func TestEvidenceGrader_LevelPrecedence(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())

	meta := domain.StudyRecord{Title: "Meta-analysis of injection therapy"}
	rct := domain.StudyRecord{Title: "A randomized trial"}
	cohort := domain.StudyRecord{Title: "A prospective cohort study"}
	series := domain.StudyRecord{Title: "A case series of outcomes"}
	report := domain.StudyRecord{Title: "An unusual single case"}

	tests := []struct {
		name     string
		studies  []domain.StudyRecord
		expected domain.EvidenceLevel
	}{
		{"meta-analysis alone", []domain.StudyRecord{meta}, domain.LEVEL_I},
		{"meta-analysis beats case report", []domain.StudyRecord{meta, report}, domain.LEVEL_I},
		{"two RCTs", []domain.StudyRecord{rct, rct}, domain.LEVEL_I},
		{"one RCT", []domain.StudyRecord{rct}, domain.LEVEL_II},
		{"two cohorts", []domain.StudyRecord{cohort, cohort}, domain.LEVEL_II},
		{"one cohort", []domain.StudyRecord{cohort}, domain.LEVEL_III},
		{"three case series", []domain.StudyRecord{series, series, series}, domain.LEVEL_III},
		{"two case series", []domain.StudyRecord{series, series}, domain.LEVEL_IV},
		{"case reports only", []domain.StudyRecord{report, report}, domain.LEVEL_IV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grade := grader.Grade(tt.studies)
			assert.Equal(t, tt.expected, grade.OverallLevel)
		})
	}
}

func TestEvidenceGrader_AddingMetaAnalysisNeverWeakensLevel(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())
	meta := domain.StudyRecord{Title: "A meta-analysis"}

	bases := [][]domain.StudyRecord{
		nil,
		{{Title: "A case series"}},
		{{Title: "A prospective cohort"}},
		{{Title: "A randomized trial"}},
		{{Title: "A randomized trial"}, {Title: "Another randomized trial"}},
	}

	for _, base := range bases {
		before := grader.Grade(base).OverallLevel
		after := grader.Grade(append(append([]domain.StudyRecord{}, base...), meta)).OverallLevel
		assert.LessOrEqual(t, after.Rank(), before.Rank(),
			"adding a meta-analysis must not weaken the level")
	}
}

func TestEvidenceGrader_QualityScoreBounds(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())

	large := 5000
	grade := grader.Grade([]domain.StudyRecord{
		{Title: "Meta-analysis with a huge pooled cohort", SampleSize: &large},
	})

	require.LessOrEqual(t, grade.QualityScore, 1.0)
	require.GreaterOrEqual(t, grade.QualityScore, 0.0)
	// 0.9 base weight + capped 0.2 bonus clamps at 1.0
	assert.Equal(t, 1.0, grade.QualityScore)
}

func TestEvidenceGrader_MissingSampleSizesAreNotZeros(t *testing.T) {
	grader := NewEvidenceGrader(testLogger())

	grade := grader.Grade([]domain.StudyRecord{
		{Title: "A randomized trial", Abstract: "no enrollment figure stated"},
		{Title: "A cohort study", Abstract: "we followed 40 patients"},
	})

	// Only the parseable size contributes to the total.
	assert.Equal(t, 40, grade.TotalSampleSize)
}

func TestEvidenceGrader_BiasRiskThresholds(t *testing.T) {
	tests := []struct {
		score    float64
		expected domain.BiasRisk
	}{
		{0.85, domain.BIAS_LOW},
		{0.8, domain.BIAS_LOW},
		{0.7, domain.BIAS_MEDIUM},
		{0.6, domain.BIAS_MEDIUM},
		{0.4, domain.BIAS_HIGH},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, biasRiskForScore(tt.score), "score %v", tt.score)
	}
}
