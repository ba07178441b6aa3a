package services

import (
	"regexp"
	"strings"

	"ai-learning-platform/internal/telemetry"
	"ai-learning-platform/models"
)

// GroundingService checks whether a generated answer actually draws on the
// retrieved sources, so unused candidates are never surfaced as citations.
type GroundingService struct {
	citationRegex *regexp.Regexp
	metrics       *telemetry.Metrics
}

// Hedging phrases signal the generator is guessing rather than citing.
var hedgingPhrases = []string{
	"might be",
	"may be",
	"probably",
	"possibly",
	"perhaps",
	"i think",
	"i believe",
	"in my opinion",
	"it depends",
	"generally",
	"typically",
	"usually",
	"in general",
	"not sure",
}

// Disclaimers that admit the material does not cover the question. An answer
// that honestly says so is grounded even with zero used sources.
var noInfoDisclaimers = []string{
	"no information",
	"don't have information",
	"do not have information",
	"not covered in the course materials",
}

func NewGroundingService(metrics *telemetry.Metrics) *GroundingService {
	return &GroundingService{
		citationRegex: regexp.MustCompile(`\[Source:\s*([^\]]+)\]`),
		metrics:       metrics,
	}
}

// Verify classifies each candidate source as used or unused by the answer
// and derives the trust signals attached to the response.
func (gs *GroundingService) Verify(answer string, candidates []models.Source) models.GroundingReport {
	answerLower := strings.ToLower(answer)

	citedTitles := gs.extractCitations(answer)

	var used []models.Source
	for _, source := range candidates {
		citation := citedTitles[strings.ToLower(strings.TrimSpace(source.Title))]

		if citation || gs.titleAppears(answerLower, source.Title) {
			source.ActuallyUsed = true
			source.CitationFound = citation
			used = append(used, source)
		}
	}

	score := 0.0
	if len(candidates) > 0 {
		score = float64(len(used)) / float64(len(candidates))
	}

	risk := gs.hallucinationRisk(answerLower)

	grounded := score > 0.3
	if !grounded {
		for _, disclaimer := range noInfoDisclaimers {
			if strings.Contains(answerLower, disclaimer) {
				grounded = true
				break
			}
		}
	}

	if gs.metrics != nil {
		gs.metrics.RecordGroundingScore(score, risk)
	}

	return models.GroundingReport{
		UsedSources:       used,
		GroundingScore:    score,
		HallucinationRisk: risk,
		IsGrounded:        grounded,
	}
}

// extractCitations collects titles referenced by inline [Source: T] markers,
// keyed lowercase.
func (gs *GroundingService) extractCitations(answer string) map[string]bool {
	cited := make(map[string]bool)
	for _, match := range gs.citationRegex.FindAllStringSubmatch(answer, -1) {
		cited[strings.ToLower(strings.TrimSpace(match[1]))] = true
	}
	return cited
}

// titleAppears reports whether the answer contains the title verbatim or
// more than half of its significant words. Words of four letters and up
// count; short connectives do not.
func (gs *GroundingService) titleAppears(answerLower, title string) bool {
	titleLower := strings.ToLower(strings.TrimSpace(title))
	if titleLower == "" {
		return false
	}

	if strings.Contains(answerLower, titleLower) {
		return true
	}

	var significant, present int
	for _, word := range strings.Fields(titleLower) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if len(word) <= 3 {
			continue
		}
		significant++
		if strings.Contains(answerLower, word) {
			present++
		}
	}

	if significant == 0 {
		return false
	}
	return float64(present)/float64(significant) > 0.5
}

func (gs *GroundingService) hallucinationRisk(answerLower string) string {
	count := 0
	for _, phrase := range hedgingPhrases {
		count += strings.Count(answerLower, phrase)
	}

	switch {
	case count < 2:
		return models.RiskLow
	case count < 4:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}
