package cite

import (
	"net/url"
	"strings"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// Quality labels assigned from a citation's metadata score.
const (
	LabelExcellent  = "excellent"
	LabelGood       = "good"
	LabelAcceptable = "acceptable"
	LabelPoor       = "poor"
	LabelVeryPoor   = "very_poor"
)

// Metadata completeness issues and their score deductions.
const (
	issueMissingTitle   = "missing_title"
	issueMissingAuthors = "missing_authors"
	issueMissingDate    = "missing_date"
	issueMissingVenue   = "missing_venue"
	issueMissingDOI     = "missing_doi"
	issueInvalidDOI     = "invalid_doi"
	issueBadURL         = "missing_or_malformed_url"
)

var deductions = map[string]int{
	issueMissingTitle:   30,
	issueMissingAuthors: 25,
	issueMissingDate:    15,
	issueMissingVenue:   10,
	issueMissingDOI:     5,
	issueInvalidDOI:     10,
	issueBadURL:         5,
}

// Score is the quality assessment of one citation's paper metadata.
type Score struct {
	PaperID string   `json:"paper_id"`
	Key     string   `json:"key"`
	Value   int      `json:"value"`
	Label   string   `json:"label"`
	Issues  []string `json:"issues,omitempty"`
}

// Report aggregates quality scores across a citation collection.
type Report struct {
	Scores       []Score        `json:"scores"`
	AverageScore float64        `json:"average_score"`
	IssueCounts  map[string]int `json:"issue_counts"`
}

// Assess scores one paper's citation metadata out of 100. Each missing or
// malformed field carries a fixed deduction; the floor is 0.
func Assess(p *research.Paper, key string) Score {
	var issues []string
	if strings.TrimSpace(p.Title) == "" {
		issues = append(issues, issueMissingTitle)
	}
	if len(p.Authors) == 0 {
		issues = append(issues, issueMissingAuthors)
	}
	if p.Published.IsZero() {
		issues = append(issues, issueMissingDate)
	}
	if strings.TrimSpace(p.Venue) == "" {
		issues = append(issues, issueMissingVenue)
	}
	switch {
	case p.DOI == "":
		issues = append(issues, issueMissingDOI)
	case !research.ValidDOI(p.DOI):
		issues = append(issues, issueInvalidDOI)
	}
	if !validURL(p.URL) {
		issues = append(issues, issueBadURL)
	}

	value := 100
	for _, issue := range issues {
		value -= deductions[issue]
	}
	if value < 0 {
		value = 0
	}

	return Score{
		PaperID: p.ID,
		Key:     key,
		Value:   value,
		Label:   label(value),
		Issues:  issues,
	}
}

// AssessAll builds the collection-level quality report for the papers
// behind a run's citations. keys maps paper id to citation key.
func AssessAll(papers []research.Paper, keys map[string]string) Report {
	report := Report{
		Scores:      make([]Score, 0, len(papers)),
		IssueCounts: make(map[string]int),
	}
	total := 0
	for i := range papers {
		s := Assess(&papers[i], keys[papers[i].ID])
		report.Scores = append(report.Scores, s)
		total += s.Value
		for _, issue := range s.Issues {
			report.IssueCounts[issue]++
		}
	}
	if len(report.Scores) > 0 {
		report.AverageScore = float64(total) / float64(len(report.Scores))
	}
	return report
}

func label(value int) string {
	switch {
	case value >= 90:
		return LabelExcellent
	case value >= 75:
		return LabelGood
	case value >= 60:
		return LabelAcceptable
	case value >= 40:
		return LabelPoor
	default:
		return LabelVeryPoor
	}
}

func validURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
