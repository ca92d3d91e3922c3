package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/protocol-evidence-server/internal/domain"
)

// ProtocolSynthesizer orchestrates the evidence pipeline over a full
// treatment protocol: per-component literature search, grading, confidence
// scoring, key-finding extraction, then a cross-component contradiction
// pass and an overall GRADE summary.
//
// The synthesizer is stateless per call and safe for concurrent use. The
// search collaborator is injected per instance; its lifecycle belongs to
// the surrounding application.
type ProtocolSynthesizer struct {
	logger   *logrus.Logger
	search   domain.LiteratureSearchPort
	grader   *EvidenceGrader
	scorer   *ConfidenceScorer
	detector *ContradictionDetector
}

// NewProtocolSynthesizer creates a new protocol evidence synthesizer.
func NewProtocolSynthesizer(logger *logrus.Logger, search domain.LiteratureSearchPort) *ProtocolSynthesizer {
	return &ProtocolSynthesizer{
		logger:   logger,
		search:   search,
		grader:   NewEvidenceGrader(logger),
		scorer:   NewConfidenceScorer(),
		detector: NewContradictionDetector(),
	}
}

// componentResult carries one component's evidence row plus the finding
// strings fed to the contradiction pass.
type componentResult struct {
	evidence domain.ComponentEvidence
	findings []domain.Finding
}

// Synthesize produces the evidence table for one protocol. Component
// searches run concurrently; a failed or empty search degrades that
// component to the Level IV / quality 0 placeholder instead of failing the
// synthesis. Only request validation errors cross this boundary.
func (s *ProtocolSynthesizer) Synthesize(ctx context.Context, req *domain.SynthesisRequest) (*domain.ProtocolEvidenceSynthesis, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	s.logger.WithFields(logrus.Fields{
		"condition":       req.Condition,
		"component_count": len(req.Components),
	}).Info("Starting protocol evidence synthesis")

	results := make([]componentResult, len(req.Components))

	var wg sync.WaitGroup
	for i, component := range req.Components {
		wg.Add(1)
		go func(idx int, comp domain.ProtocolComponent) {
			defer wg.Done()
			results[idx] = s.synthesizeComponent(ctx, comp, req.Condition)
		}(i, component)
	}
	wg.Wait()

	components := make([]domain.ComponentEvidence, 0, len(results))
	allFindings := make([]domain.Finding, 0, len(results)*maxKeyFindings)
	for _, r := range results {
		components = append(components, r.evidence)
		allFindings = append(allFindings, r.findings...)
	}

	synthesis := &domain.ProtocolEvidenceSynthesis{
		ID:                 uuid.New().String(),
		Condition:          req.Condition,
		Components:         components,
		Contradictions:     s.detector.Detect(allFindings),
		OverallQuality:     overallQuality(components),
		SynthesisTimestamp: time.Now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"synthesis_id":    synthesis.ID,
		"condition":       synthesis.Condition,
		"overall_grade":   synthesis.OverallQuality.Grade.String(),
		"overall_score":   synthesis.OverallQuality.Score,
		"contradictions":  len(synthesis.Contradictions),
		"processing_time": time.Since(startTime),
	}).Info("Protocol evidence synthesis completed")

	return synthesis, nil
}

// synthesizeComponent runs search → grade → score → findings for a single
// protocol component. A search failure is recovered locally: the component
// keeps its slot in the evidence table with the empty-evidence grade.
func (s *ProtocolSynthesizer) synthesizeComponent(ctx context.Context, component domain.ProtocolComponent, condition string) componentResult {
	query := domain.SearchQuery{Therapy: componentQueryTerm(component), Condition: condition}

	studies, err := s.search.Find(ctx, query)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"component": component.Name,
			"condition": condition,
		}).Warn("Literature search failed, substituting empty evidence")
		studies = nil
	}

	grade := s.grader.Grade(studies)
	confidence := s.scorer.Score(grade, studies)
	keyFindings := extractKeyFindings(studies)

	findings := make([]domain.Finding, 0, len(keyFindings))
	for _, text := range keyFindings {
		findings = append(findings, domain.Finding{
			ComponentName: component.Name,
			FindingText:   text,
			QualityScore:  grade.QualityScore,
		})
	}

	return componentResult{
		evidence: domain.ComponentEvidence{
			ComponentID:          component.ID,
			ComponentName:        component.Name,
			EvidenceLevel:        grade.OverallLevel,
			QualityScore:         grade.QualityScore,
			ConfidenceScore:      confidence,
			SupportingStudyCount: len(studies),
			KeyFindings:          keyFindings,
			CitationIDs:          citationIDs(studies),
		},
		findings: findings,
	}
}

// overallQuality computes the confidence-weighted mean quality across
// components and maps it onto a GRADE label. When no component carries any
// confidence the plain quality mean is used instead so an all-failed
// synthesis still grades as Very Low rather than dividing by zero.
func overallQuality(components []domain.ComponentEvidence) domain.OverallQuality {
	if len(components) == 0 {
		return domain.OverallQuality{Score: 0, Grade: domain.GRADE_VERY_LOW}
	}

	weightedSum := 0.0
	confidenceSum := 0.0
	qualitySum := 0.0
	for _, c := range components {
		weightedSum += c.QualityScore * c.ConfidenceScore
		confidenceSum += c.ConfidenceScore
		qualitySum += c.QualityScore
	}

	var score float64
	if confidenceSum > 0 {
		score = weightedSum / float64(len(components))
	} else {
		score = qualitySum / float64(len(components))
	}

	return domain.OverallQuality{
		Score: round3(score),
		Grade: domain.GradeForScore(score),
	}
}

// citationIDs collects unique citation identifiers in deterministic order.
func citationIDs(studies []domain.StudyRecord) []string {
	seen := make(map[string]bool, len(studies))
	ids := make([]string, 0, len(studies))
	for i := range studies {
		id := studies[i].CitationID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func componentQueryTerm(component domain.ProtocolComponent) string {
	if component.Therapy != "" {
		return component.Therapy
	}
	return component.Name
}
