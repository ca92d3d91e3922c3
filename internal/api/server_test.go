package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocol-evidence-server/internal/config"
	"github.com/protocol-evidence-server/internal/domain"
	"github.com/protocol-evidence-server/internal/review"
	"github.com/protocol-evidence-server/internal/service"
)

type stubSynthesizer struct {
	result *domain.ProtocolEvidenceSynthesis
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req *domain.SynthesisRequest) (*domain.ProtocolEvidenceSynthesis, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.result, nil
}

type stubSynthesisStore struct {
	mu     sync.Mutex
	stored map[string]*domain.ProtocolEvidenceSynthesis
	saved  chan string
}

func newStubSynthesisStore() *stubSynthesisStore {
	return &stubSynthesisStore{
		stored: make(map[string]*domain.ProtocolEvidenceSynthesis),
		saved:  make(chan string, 8),
	}
}

func (s *stubSynthesisStore) Save(_ context.Context, synthesis *domain.ProtocolEvidenceSynthesis) error {
	s.mu.Lock()
	s.stored[synthesis.ID] = synthesis
	s.mu.Unlock()
	s.saved <- synthesis.ID
	return nil
}

func (s *stubSynthesisStore) GetByID(_ context.Context, id string) (*domain.ProtocolEvidenceSynthesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	synthesis, ok := s.stored[id]
	if !ok {
		return nil, fmt.Errorf("synthesis not found: %w", domain.ErrNotFound)
	}
	return synthesis, nil
}

func (s *stubSynthesisStore) ListByCondition(_ context.Context, condition string, limit, offset int) ([]*domain.ProtocolEvidenceSynthesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ProtocolEvidenceSynthesis
	for _, synthesis := range s.stored {
		if synthesis.Condition == condition {
			out = append(out, synthesis)
		}
	}
	return out, nil
}

type stubAssessmentStore struct {
	mu     sync.Mutex
	stored map[string]*domain.RiskAssessment
	saved  chan string
}

func newStubAssessmentStore() *stubAssessmentStore {
	return &stubAssessmentStore{
		stored: make(map[string]*domain.RiskAssessment),
		saved:  make(chan string, 8),
	}
}

func (s *stubAssessmentStore) Save(_ context.Context, assessment *domain.RiskAssessment) error {
	s.mu.Lock()
	s.stored[assessment.ID] = assessment
	s.mu.Unlock()
	s.saved <- assessment.ID
	return nil
}

func (s *stubAssessmentStore) GetByID(_ context.Context, id string) (*domain.RiskAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assessment, ok := s.stored[id]
	if !ok {
		return nil, fmt.Errorf("assessment not found: %w", domain.ErrNotFound)
	}
	return assessment, nil
}

type stubHealth struct {
	err error
}

func (h *stubHealth) Health(context.Context) error { return h.err }

type stubBreakers struct{}

func (stubBreakers) BreakerStates() map[string]string {
	return map[string]string{"pubmed": "closed", "clinicaltrials": "closed"}
}

func testSynthesis() *domain.ProtocolEvidenceSynthesis {
	return &domain.ProtocolEvidenceSynthesis{
		ID:        "2a3c9a2e-5f04-4c23-93d8-1f6f3f1c2ab0",
		Condition: "knee osteoarthritis",
		Components: []domain.ComponentEvidence{
			{
				ComponentID:          "c1",
				ComponentName:        "PRP injection",
				EvidenceLevel:        domain.LEVEL_I,
				QualityScore:         0.85,
				ConfidenceScore:      0.9,
				SupportingStudyCount: 2,
				KeyFindings:          []string{"70% improvement in pain"},
				CitationIDs:          []string{"PMID:111"},
			},
		},
		Contradictions:     []string{},
		OverallQuality:     domain.OverallQuality{Score: 0.85, Grade: domain.GRADE_HIGH},
		SynthesisTimestamp: time.Now().UTC(),
	}
}

// newTestServer wires the server with stub collaborators plus a real risk
// scorer and a real SQLite review store.
func newTestServer(t *testing.T) (*Server, *stubSynthesisStore, *stubAssessmentStore, *stubHealth) {
	t.Helper()

	manager, err := config.NewManager()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	reviews, err := review.NewSQLiteStore(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reviews.Close() })

	syntheses := newStubSynthesisStore()
	assessments := newStubAssessmentStore()
	health := &stubHealth{}

	server := NewServer(manager, logger, Dependencies{
		Synthesizer: &stubSynthesizer{result: testSynthesis()},
		RiskScorer:  service.NewRiskScorer(logger),
		Syntheses:   syntheses,
		Assessments: assessments,
		Reviews:     reviews,
		Database:    health,
		Search:      stubBreakers{},
	})
	return server, syntheses, assessments, health
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleSynthesizeProtocol(t *testing.T) {
	server, syntheses, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/protocols/synthesize", domain.SynthesisRequest{
		Condition: "knee osteoarthritis",
		Components: []domain.ProtocolComponent{
			{ID: "c1", Name: "PRP injection", Therapy: "PRP"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.ProtocolEvidenceSynthesis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "knee osteoarthritis", got.Condition)
	assert.Equal(t, domain.GRADE_HIGH, got.OverallQuality.Grade)

	// Persistence is fire-and-forget but must still happen.
	select {
	case id := <-syntheses.saved:
		assert.Equal(t, got.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("synthesis was never persisted")
	}
}

func TestHandleSynthesizeProtocol_ValidationError(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/protocols/synthesize", domain.SynthesisRequest{
		Condition: "knee osteoarthritis",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ErrCodeInvalidInput, resp["code"])
	assert.NotEmpty(t, resp["correlation_id"])
}

func TestHandleAssessRisk(t *testing.T) {
	server, _, assessments, _ := newTestServer(t)

	age := 45
	rec := doJSON(t, server, http.MethodPost, "/api/v1/risk/assess", domain.PatientRiskProfile{
		Age:             &age,
		Comorbidities:   []string{"hypertension"},
		Medications:     []string{"lisinopril"},
		SymptomSeverity: domain.SEVERITY_MODERATE,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.Len(t, got.CategoryRisks, 5)
	assert.Greater(t, got.RiskBenefitRatio, 0.0)
	assert.True(t, got.OverallRiskCategory.IsValid())

	select {
	case id := <-assessments.saved:
		assert.Equal(t, got.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("assessment was never persisted")
	}
}

func TestHandleAssessRisk_InvalidAge(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	age := 200
	rec := doJSON(t, server, http.MethodPost, "/api/v1/risk/assess", domain.PatientRiskProfile{Age: &age})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ErrCodeInvalidInput, resp["code"])
}

func TestHandleGetSynthesis(t *testing.T) {
	server, syntheses, _, _ := newTestServer(t)

	stored := testSynthesis()
	syntheses.stored[stored.ID] = stored

	rec := doJSON(t, server, http.MethodGet, "/api/v1/syntheses/"+stored.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.ProtocolEvidenceSynthesis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stored.ID, got.ID)
}

func TestHandleGetSynthesis_NotFound(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/syntheses/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListSyntheses(t *testing.T) {
	server, syntheses, _, _ := newTestServer(t)

	stored := testSynthesis()
	syntheses.stored[stored.ID] = stored

	rec := doJSON(t, server, http.MethodGet, "/api/v1/syntheses?condition=knee+osteoarthritis", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Condition string                              `json:"condition"`
		Count     int                                 `json:"count"`
		Syntheses []*domain.ProtocolEvidenceSynthesis `json:"syntheses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "knee osteoarthritis", resp.Condition)
}

func TestHandleListSyntheses_MissingCondition(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/syntheses", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetAssessment_NotFound(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/assessments/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSaveReview(t *testing.T) {
	server, syntheses, _, _ := newTestServer(t)

	stored := testSynthesis()
	syntheses.stored[stored.ID] = stored

	rec := doJSON(t, server, http.MethodPost, "/api/v1/reviews", map[string]interface{}{
		"synthesis_id":    stored.ID,
		"reviewer_id":     "dr-lee",
		"reviewer_grade":  "Moderate",
		"reviewer_agreed": false,
		"notes":           "single-site trials only",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var got review.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stored.ID, got.SynthesisID)
	assert.Equal(t, domain.GRADE_HIGH, got.SystemGrade)
	assert.Equal(t, domain.GRADE_MODERATE, got.ReviewerGrade)
	assert.NotZero(t, got.ID)

	listRec := doJSON(t, server, http.MethodGet, "/api/v1/reviews", nil)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listResp struct {
		Total   int64            `json:"total"`
		Count   int              `json:"count"`
		Reviews []*review.Review `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listResp))
	assert.Equal(t, int64(1), listResp.Total)
	require.Len(t, listResp.Reviews, 1)
	assert.Equal(t, "dr-lee", listResp.Reviews[0].ReviewerID)
}

func TestHandleSaveReview_UnknownGrade(t *testing.T) {
	server, syntheses, _, _ := newTestServer(t)

	stored := testSynthesis()
	syntheses.stored[stored.ID] = stored

	rec := doJSON(t, server, http.MethodPost, "/api/v1/reviews", map[string]interface{}{
		"synthesis_id":   stored.ID,
		"reviewer_id":    "dr-lee",
		"reviewer_grade": "Excellent",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSaveReview_SynthesisNotFound(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/reviews", map[string]interface{}{
		"synthesis_id":   "no-such-id",
		"reviewer_id":    "dr-lee",
		"reviewer_grade": "Low",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleExportReviews(t *testing.T) {
	server, syntheses, _, _ := newTestServer(t)

	stored := testSynthesis()
	syntheses.stored[stored.ID] = stored

	saveRec := doJSON(t, server, http.MethodPost, "/api/v1/reviews", map[string]interface{}{
		"synthesis_id":   stored.ID,
		"reviewer_id":    "dr-lee",
		"reviewer_grade": "High",
	})
	require.Equal(t, http.StatusCreated, saveRec.Code)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/reviews/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var export review.ReviewExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, 1, export.Count)
}

func TestHandleHealth(t *testing.T) {
	server, _, _, health := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Checks struct {
			Database       string            `json:"database"`
			SearchBreakers map[string]string `json:"search_breakers"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Checks.Database)
	assert.Equal(t, "closed", resp.Checks.SearchBreakers["pubmed"])

	health.err = errors.New("connection refused")
	degraded := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, degraded.Code)
	require.NoError(t, json.Unmarshal(degraded.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}
