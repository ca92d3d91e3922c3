package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/protocol-evidence-server/internal/domain"
)

// maxKeyFindings caps the findings carried per evidence-table row.
const maxKeyFindings = 3

var (
	// percentFindingRe matches outcome statements like "70% improvement in
	// pain scores" or "45.5% reduction of symptoms".
	percentFindingRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%\s+(?:improvement|reduction|increase|decrease|success|relief)[^.;]*`)

	// pValueRe matches reported statistical significance like "p < 0.05".
	pValueRe = regexp.MustCompile(`p\s*[<=]\s*0?\.\d+`)
)

var safetyTerms = []string{
	"no adverse events", "no serious adverse", "well tolerated",
	"safe and effective", "good safety profile",
}

// negativeTerms are efficacy negations worth surfacing as findings in their
// own right. Longer phrases come first so "no significant improvement" is
// not reported as the weaker "no improvement".
var negativeTerms = []string{
	"no significant improvement", "no improvement",
	"not effective", "ineffective", "lack of efficacy",
}

// extractKeyFindings pulls up to three lexical findings from a body of
// studies: percentage outcomes first, then p-values, negative efficacy
// statements, then safety statements. When nothing matches, a single generic finding records that
// evidence exists so the evidence table never shows an empty cell for a
// component that had studies.
func extractKeyFindings(studies []domain.StudyRecord) []string {
	findings := make([]string, 0, maxKeyFindings)
	seen := make(map[string]bool)

	add := func(finding string) bool {
		finding = strings.TrimSpace(finding)
		if finding == "" || seen[finding] {
			return len(findings) >= maxKeyFindings
		}
		seen[finding] = true
		findings = append(findings, finding)
		return len(findings) >= maxKeyFindings
	}

	for _, study := range studies {
		text := strings.ToLower(study.Abstract)

		if match := percentFindingRe.FindString(text); match != "" {
			if add(match) {
				return findings
			}
		}
		if match := pValueRe.FindString(text); match != "" {
			if add(fmt.Sprintf("statistically significant result reported (%s)", match)) {
				return findings
			}
		}
		for _, term := range negativeTerms {
			if strings.Contains(text, term) {
				if add(fmt.Sprintf("negative outcome reported: %s", term)) {
					return findings
				}
				break
			}
		}
		for _, term := range safetyTerms {
			if strings.Contains(text, term) {
				if add(fmt.Sprintf("safety signal: %s", term)) {
					return findings
				}
				break
			}
		}
	}

	if len(findings) == 0 && len(studies) > 0 {
		findings = append(findings, fmt.Sprintf("evidence available from %d studies", len(studies)))
	}

	return findings
}
