// Package search provides literature search clients for the evidence
// engine: NCBI PubMed via E-utilities and ClinicalTrials.gov, plus the
// caching and circuit-breaker wrapper that backs the search port.
package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/protocol-evidence-server/internal/domain"
)

// PubMedClient handles interactions with NCBI PubMed via E-utilities
type PubMedClient struct {
	baseURL    string
	apiKey     string
	email      string // Required by NCBI for large-scale queries
	httpClient *http.Client
	limiter    *rate.Limiter
	maxResults int
}

// NewPubMedClient creates a new PubMed API client
func NewPubMedClient(config domain.PubMedConfig, maxResults int) *PubMedClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 3 // NCBI allows 3 req/s without an API key
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	return &PubMedClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		email:   config.Email,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		maxResults: maxResults,
	}
}

// pubMedSearchResponse represents the XML response from esearch
type pubMedSearchResponse struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

// pubMedFetchResponse represents the XML response from efetch
type pubMedFetchResponse struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubMedArticle `xml:"PubmedArticle"`
}

// pubMedArticle represents a complete article from PubMed
type pubMedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			ArticleTitle string `xml:"ArticleTitle"`
			Abstract     struct {
				AbstractText []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			Journal struct {
				Title        string `xml:"Title"`
				JournalIssue struct {
					PubDate struct {
						Year        string `xml:"Year"`
						MedlineDate string `xml:"MedlineDate"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

// Search queries PubMed for studies matching the therapy and condition.
func (p *PubMedClient) Search(ctx context.Context, query domain.SearchQuery) ([]domain.StudyRecord, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	pmids, err := p.searchArticles(ctx, p.buildSearchTerm(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search PubMed: %w", err)
	}

	if len(pmids) == 0 {
		return nil, nil
	}

	if len(pmids) > p.maxResults {
		pmids = pmids[:p.maxResults]
	}

	articles, err := p.fetchArticles(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch PubMed articles: %w", err)
	}

	return p.convertToStudies(articles), nil
}

// searchArticles performs the initial esearch and returns PMIDs
func (p *PubMedClient) searchArticles(ctx context.Context, term string) ([]string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmode": {"xml"},
		"retmax":  {"100"},
		"sort":    {"relevance"},
	}

	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	if p.email != "" {
		params.Set("email", p.email)
	}

	body, err := p.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var searchResponse pubMedSearchResponse
	if err := xml.Unmarshal(body, &searchResponse); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return searchResponse.IDList.IDs, nil
}

// fetchArticles retrieves full article records for given PMIDs
func (p *PubMedClient) fetchArticles(ctx context.Context, pmids []string) ([]pubMedArticle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}

	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	body, err := p.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var fetchResponse pubMedFetchResponse
	if err := xml.Unmarshal(body, &fetchResponse); err != nil {
		return nil, fmt.Errorf("failed to parse fetch response: %w", err)
	}

	return fetchResponse.Articles, nil
}

func (p *PubMedClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	fullURL := fmt.Sprintf("%s%s?%s", p.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PubMed %s returned status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// buildSearchTerm constructs an E-utilities search expression for a
// therapy/condition pair, restricted to title and abstract.
func (p *PubMedClient) buildSearchTerm(query domain.SearchQuery) string {
	var terms []string
	if query.Therapy != "" {
		terms = append(terms, fmt.Sprintf("\"%s\"[tiab]", query.Therapy))
	}
	if query.Condition != "" {
		terms = append(terms, fmt.Sprintf("\"%s\"[tiab]", query.Condition))
	}
	return strings.Join(terms, " AND ")
}

// convertToStudies converts PubMed articles to domain study records
func (p *PubMedClient) convertToStudies(articles []pubMedArticle) []domain.StudyRecord {
	var studies []domain.StudyRecord

	for _, article := range articles {
		pubDate := article.MedlineCitation.Article.Journal.JournalIssue.PubDate
		year := pubDate.Year
		if year == "" {
			year = extractYear(pubDate.MedlineDate)
		}

		studies = append(studies, domain.StudyRecord{
			Title:    cleanXMLValue(article.MedlineCitation.Article.ArticleTitle),
			Abstract: cleanXMLValue(strings.Join(article.MedlineCitation.Article.Abstract.AbstractText, " ")),
			Year:     year,
			PMID:     article.MedlineCitation.PMID,
			Journal:  article.MedlineCitation.Article.Journal.Title,
			Source:   "PubMed",
		})
	}

	return studies
}

// extractYear pulls a 4-digit year out of a MedlineDate like "2022 Jan-Feb".
func extractYear(dateStr string) string {
	for _, part := range strings.Fields(dateStr) {
		if len(part) == 4 {
			numeric := true
			for _, r := range part {
				if r < '0' || r > '9' {
					numeric = false
					break
				}
			}
			if numeric {
				return part
			}
		}
	}
	return ""
}

// cleanXMLValue removes residual markup tags and cleans up text
func cleanXMLValue(value string) string {
	cleaners := []string{
		"<b>", "</b>",
		"<i>", "</i>",
		"<em>", "</em>",
		"<strong>", "</strong>",
	}

	result := value
	for _, cleaner := range cleaners {
		result = strings.ReplaceAll(result, cleaner, "")
	}

	return strings.TrimSpace(result)
}
