package service

import (
	"fmt"
	"strings"

	"github.com/protocol-evidence-server/internal/domain"
)

// ContradictionDetector scans extracted findings across components for
// mutually opposing efficacy claims. This is a lexical-pattern check, not
// entailment: it pairs explicit negation phrases against the matching
// positive terms and flags each unordered pair once.
type ContradictionDetector struct{}

// NewContradictionDetector creates a new contradiction detector.
func NewContradictionDetector() *ContradictionDetector {
	return &ContradictionDetector{}
}

// opposition maps a negation phrase to the positive term it contradicts.
type opposition struct {
	negation string
	positive string
}

var oppositions = []opposition{
	{"no improvement", "improvement"},
	{"no significant improvement", "improvement"},
	{"ineffective", "effective"},
	{"not effective", "effective"},
	{"lack of efficacy", "efficacy"},
}

var efficacyTerms = []string{"improvement", "efficacy", "effective"}

// Detect returns one human-readable flag per contradictory pair of
// findings. Output pairs are independent of input order; empty or
// singleton input produces no flags.
func (d *ContradictionDetector) Detect(findings []domain.Finding) []string {
	relevant := make([]domain.Finding, 0, len(findings))
	for _, f := range findings {
		if containsAny(strings.ToLower(f.FindingText), efficacyTerms) {
			relevant = append(relevant, f)
		}
	}

	contradictions := make([]string, 0)
	for i := 0; i < len(relevant); i++ {
		for j := i + 1; j < len(relevant); j++ {
			if opposed(relevant[i].FindingText, relevant[j].FindingText) {
				first, second := relevant[i].ComponentName, relevant[j].ComponentName
				// Name order is normalized so the flag text does not depend
				// on input order.
				if second < first {
					first, second = second, first
				}
				contradictions = append(contradictions, fmt.Sprintf(
					"Potential contradiction between %s and %s findings",
					first, second,
				))
			}
		}
	}

	return contradictions
}

// opposed reports whether one finding negates an efficacy claim the other
// affirms. The affirmative side must carry the positive term without its
// negated form, so two negative findings never oppose each other.
func opposed(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)

	for _, opp := range oppositions {
		if strings.Contains(la, opp.negation) && affirms(lb, opp) {
			return true
		}
		if strings.Contains(lb, opp.negation) && affirms(la, opp) {
			return true
		}
	}
	return false
}

func affirms(text string, opp opposition) bool {
	if !strings.Contains(text, opp.positive) {
		return false
	}
	for _, other := range oppositions {
		if other.positive == opp.positive && strings.Contains(text, other.negation) {
			return false
		}
	}
	return true
}
