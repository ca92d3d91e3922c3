package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/protocol-evidence-server/internal/domain"
)

// ClinicalTrialsClient handles interactions with the ClinicalTrials.gov v2 API
type ClinicalTrialsClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxResults int
}

// NewClinicalTrialsClient creates a new ClinicalTrials.gov API client
func NewClinicalTrialsClient(config domain.ClinicalTrialsConfig, maxResults int) *ClinicalTrialsClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://clinicaltrials.gov/api/v2/"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	return &ClinicalTrialsClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		maxResults: maxResults,
	}
}

// studiesResponse represents the JSON response from the v2 studies endpoint
type studiesResponse struct {
	Studies []struct {
		ProtocolSection struct {
			IdentificationModule struct {
				NCTID      string `json:"nctId"`
				BriefTitle string `json:"briefTitle"`
			} `json:"identificationModule"`
			DescriptionModule struct {
				BriefSummary string `json:"briefSummary"`
			} `json:"descriptionModule"`
			DesignModule struct {
				StudyType  string `json:"studyType"`
				DesignInfo struct {
					Allocation string `json:"allocation"`
				} `json:"designInfo"`
				EnrollmentInfo struct {
					Count int `json:"count"`
				} `json:"enrollmentInfo"`
			} `json:"designModule"`
			StatusModule struct {
				StartDateStruct struct {
					Date string `json:"date"` // "2021-03" or "2021-03-15"
				} `json:"startDateStruct"`
			} `json:"statusModule"`
		} `json:"protocolSection"`
	} `json:"studies"`
}

// Search queries ClinicalTrials.gov for completed studies matching the
// therapy and condition.
func (c *ClinicalTrialsClient) Search(ctx context.Context, query domain.SearchQuery) ([]domain.StudyRecord, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"query.term": {query.Terms()},
		"pageSize":   {strconv.Itoa(c.maxResults)},
		"fields":     {"IdentificationModule,DescriptionModule,DesignModule,StatusModule"},
	}

	fullURL := fmt.Sprintf("%sstudies?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ClinicalTrials.gov returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var studiesResp studiesResponse
	if err := json.Unmarshal(body, &studiesResp); err != nil {
		return nil, fmt.Errorf("failed to parse studies response: %w", err)
	}

	return c.convertToStudies(studiesResp), nil
}

// convertToStudies converts registry entries to domain study records.
// Registered trial design and enrollment are authoritative, so the study
// type keyword and sample size are prepended to the abstract text the
// classifier later scans.
func (c *ClinicalTrialsClient) convertToStudies(resp studiesResponse) []domain.StudyRecord {
	var studies []domain.StudyRecord

	for _, s := range resp.Studies {
		ps := s.ProtocolSection

		record := domain.StudyRecord{
			Title:    ps.IdentificationModule.BriefTitle,
			Abstract: ps.DescriptionModule.BriefSummary,
			Year:     extractLeadingYear(ps.StatusModule.StartDateStruct.Date),
			NCTID:    ps.IdentificationModule.NCTID,
			Source:   "ClinicalTrials.gov",
		}

		if count := ps.DesignModule.EnrollmentInfo.Count; count > 0 {
			record.SampleSize = &count
		}
		if ps.DesignModule.DesignInfo.Allocation == "RANDOMIZED" {
			record.Abstract = "randomized controlled trial. " + record.Abstract
		} else if ps.DesignModule.StudyType == "OBSERVATIONAL" {
			record.Abstract = "observational study. " + record.Abstract
		}

		studies = append(studies, record)
	}

	return studies
}

// extractLeadingYear returns the year component of "YYYY-MM" style dates.
func extractLeadingYear(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}
