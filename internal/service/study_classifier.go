package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/protocol-evidence-server/internal/domain"
)

// StudyClassifier buckets a single literature record into a study-design
// type by keyword matching over its title and abstract. Classification is a
// pure function of the record text; unparsable input falls into the lowest
// bucket rather than erroring.
type StudyClassifier struct{}

// NewStudyClassifier creates a new study classifier.
func NewStudyClassifier() *StudyClassifier {
	return &StudyClassifier{}
}

// keywordBucket pairs a study type with the terms that select it.
// Buckets are evaluated in order and the first match wins, so stronger
// designs take precedence when a record mentions several.
type keywordBucket struct {
	studyType domain.StudyType
	terms     []string
}

var classificationBuckets = []keywordBucket{
	{domain.META_ANALYSIS, []string{
		"meta-analysis", "meta analysis", "systematic review", "pooled analysis",
	}},
	{domain.RCT, []string{
		"randomized controlled trial", "randomised controlled trial",
		"randomized", "randomised", "rct",
		"double-blind", "double blind", "placebo-controlled", "placebo controlled",
	}},
	{domain.COHORT, []string{
		"cohort", "prospective study", "prospective", "longitudinal",
		"observational study",
	}},
	{domain.CASE_SERIES, []string{
		"case series", "case-control", "case control", "consecutive patients",
		"retrospective review",
	}},
}

// sampleSizeRe extracts cohort sizes from phrases like "120 patients" or
// "45 subjects". Only the first match is used.
var sampleSizeRe = regexp.MustCompile(`(\d+)\s+(?:patients|subjects|participants)`)

// Classify derives the study-type bucket and base quality weight for one
// record. The returned SampleSize is nil when the abstract carries no
// extractable cohort size; callers must not treat absence as zero.
func (c *StudyClassifier) Classify(study domain.StudyRecord) domain.StudyClassification {
	text := strings.ToLower(study.Title + " " + study.Abstract)

	studyType := domain.CASE_REPORT
	for _, bucket := range classificationBuckets {
		if containsAny(text, bucket.terms) {
			studyType = bucket.studyType
			break
		}
	}

	return domain.StudyClassification{
		StudyType:     studyType,
		QualityWeight: studyType.QualityWeight(),
		SampleSize:    extractSampleSize(text, study.SampleSize),
	}
}

// extractSampleSize prefers a size already supplied by the search
// collaborator, otherwise falls back to the abstract regex.
func extractSampleSize(text string, supplied *int) *int {
	if supplied != nil && *supplied > 0 {
		return supplied
	}

	match := sampleSizeRe.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	n, err := strconv.Atoi(match[1])
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
