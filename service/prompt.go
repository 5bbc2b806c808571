package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"corpinsight-backend/models"
)

const (
	defaultYears = 3
	minYears     = 1
	maxYears     = 10
)

var (
	koreanYearsPattern  = regexp.MustCompile(`최근\s*(\d+)\s*년`)
	englishYearsPattern = regexp.MustCompile(`(?i)(?:last|past|recent)?\s*(\d+)\s*years?`)

	stopwords = map[string]bool{
		"the": true, "a": true, "an": true, "of": true, "for": true,
		"and": true, "or": true, "in": true, "on": true, "about": true,
		"what": true, "how": true, "is": true, "are": true, "to": true,
	}
)

// ExtractYears reads a time range from the query text, in Korean
// ("최근 3년") or English ("last 3 years"). Defaults to 3 years and clamps
// to 1..10.
func ExtractYears(query string) int {
	m := koreanYearsPattern.FindStringSubmatch(query)
	if m == nil {
		m = englishYearsPattern.FindStringSubmatch(query)
	}
	if m == nil {
		return defaultYears
	}

	years, err := strconv.Atoi(m[1])
	if err != nil {
		return defaultYears
	}
	if years < minYears {
		return minYears
	}
	if years > maxYears {
		return maxYears
	}
	return years
}

// ExtractKeywords derives topical keywords from the query: lowercased
// words with stopwords and single-character tokens dropped.
func ExtractKeywords(query string) []string {
	var keywords []string
	for _, word := range strings.Fields(query) {
		word = strings.ToLower(strings.Trim(word, ".,!?()\"'"))
		if len([]rune(word)) < 2 || stopwords[word] {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// BuildAnalysisPrompt assembles the generation prompt: the retrieved
// passages as numbered, citable context followed by the analysis task.
func BuildAnalysisPrompt(companyName, query string, years int, passages []models.RetrievedPassage, excludeOpinions bool) string {
	var contextText strings.Builder
	if len(passages) == 0 {
		contextText.WriteString("(no relevant passages were retrieved)\n")
	}
	for i, p := range passages {
		contextText.WriteString(fmt.Sprintf("[%d] (document %s)\n%s\n\n", i+1, p.DocumentID, p.Text))
	}

	sections := `1. Business overview and recent performance
2. Key risks disclosed in the source material
3. Outlook and investment opinion grounded in the sources`
	if excludeOpinions {
		sections = `1. Business overview and recent performance
2. Key risks disclosed in the source material`
	}

	return fmt.Sprintf(`You are a corporate analysis assistant. Answer using ONLY the source passages below.

COMPANY: %s
TIME RANGE: last %d years
QUESTION: %s

SOURCE PASSAGES:
%s
TASK:
Write a structured analysis with the following sections:
%s

OUTPUT REQUIREMENTS:
- Cite passages by number, e.g. [1], after each claim taken from them
- Use exact figures from the passages; never estimate or round
- State explicitly when the passages do not cover part of the question
- Answer in the language of the question

Write the analysis now:`,
		companyName,
		years,
		query,
		contextText.String(),
		sections,
	)
}
