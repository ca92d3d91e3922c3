package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/protocol-evidence-server/internal/domain"
)

// backend is the common shape of the PubMed and ClinicalTrials clients.
type backend interface {
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.StudyRecord, error)
}

// ResilientSearchClient implements domain.LiteratureSearchPort over both
// literature backends with circuit breakers, a shared Redis cache and an
// in-process LRU in front of it. Backends are queried concurrently; results
// merge deduplicated by citation ID. The client fails only when every
// backend fails, wrapping the cause in a SearchUnavailableError.
type ResilientSearchClient struct {
	pubMed         backend
	clinicalTrials backend

	pubMedBreaker         *gobreaker.CircuitBreaker
	clinicalTrialsBreaker *gobreaker.CircuitBreaker

	cache      *CacheClient // nil when Redis caching is disabled
	localCache *expirable.LRU[string, []domain.StudyRecord]

	log *logrus.Logger
}

// NewResilientSearchClient creates the search port backing the synthesizer.
// cache may be nil when Redis is disabled; the local LRU is always active.
func NewResilientSearchClient(
	searchConfig *domain.SearchConfig,
	cacheConfig *domain.CacheConfig,
	cache *CacheClient,
	logger *logrus.Logger,
) *ResilientSearchClient {
	localSize := cacheConfig.LocalSize
	if localSize <= 0 {
		localSize = 512
	}
	localTTL := cacheConfig.LocalTTL
	if localTTL <= 0 {
		localTTL = 15 * time.Minute
	}

	return &ResilientSearchClient{
		pubMed:         NewPubMedClient(searchConfig.PubMed, searchConfig.MaxResults),
		clinicalTrials: NewClinicalTrialsClient(searchConfig.ClinicalTrials, searchConfig.MaxResults),
		pubMedBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "PubMed",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 2 && failureRatio >= 0.5
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		}),
		clinicalTrialsBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "ClinicalTrials",
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		}),
		cache:      cache,
		localCache: expirable.NewLRU[string, []domain.StudyRecord](localSize, nil, localTTL),
		log:        logger,
	}
}

// Find implements domain.LiteratureSearchPort.
func (r *ResilientSearchClient) Find(ctx context.Context, query domain.SearchQuery) ([]domain.StudyRecord, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	key := searchCacheKey(query)

	if studies, ok := r.localCache.Get(key); ok {
		return studies, nil
	}

	if r.cache != nil {
		if studies, found, err := r.cache.GetStudies(ctx, query); err == nil && found {
			r.localCache.Add(key, studies)
			return studies, nil
		}
	}

	var (
		wg        sync.WaitGroup
		pmStudies []domain.StudyRecord
		ctStudies []domain.StudyRecord
		pmErr     error
		ctErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		pmStudies, pmErr = r.query(ctx, r.pubMedBreaker, r.pubMed, query)
	}()
	go func() {
		defer wg.Done()
		ctStudies, ctErr = r.query(ctx, r.clinicalTrialsBreaker, r.clinicalTrials, query)
	}()
	wg.Wait()

	if pmErr != nil {
		r.log.WithError(pmErr).WithField("query", query.Terms()).Warn("PubMed search failed")
	}
	if ctErr != nil {
		r.log.WithError(ctErr).WithField("query", query.Terms()).Warn("ClinicalTrials search failed")
	}

	if pmErr != nil && ctErr != nil {
		return nil, &domain.SearchUnavailableError{
			Backend: "pubmed+clinicaltrials",
			Query:   query.Terms(),
			Err:     errors.Join(pmErr, ctErr),
		}
	}

	studies := mergeStudies(pmStudies, ctStudies)

	r.localCache.Add(key, studies)
	if r.cache != nil {
		if err := r.cache.SetStudies(ctx, query, studies, 0); err != nil {
			r.log.WithError(err).Warn("Failed to cache search results")
		}
	}

	return studies, nil
}

// query runs one backend call through its circuit breaker.
func (r *ResilientSearchClient) query(ctx context.Context, breaker *gobreaker.CircuitBreaker, b backend, query domain.SearchQuery) ([]domain.StudyRecord, error) {
	result, err := breaker.Execute(func() (interface{}, error) {
		return b.Search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.StudyRecord), nil
}

// mergeStudies concatenates backend results, dropping duplicate citations.
// PubMed records come first; an indexed publication beats its registry
// entry for the same study.
func mergeStudies(groups ...[]domain.StudyRecord) []domain.StudyRecord {
	seen := make(map[string]bool)
	var merged []domain.StudyRecord
	for _, group := range groups {
		for _, study := range group {
			id := study.CitationID()
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, study)
		}
	}
	return merged
}

// BreakerStates reports the current circuit breaker states for health
// reporting.
func (r *ResilientSearchClient) BreakerStates() map[string]string {
	return map[string]string{
		"pubmed":         r.pubMedBreaker.State().String(),
		"clinicaltrials": r.clinicalTrialsBreaker.State().String(),
	}
}
