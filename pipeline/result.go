package pipeline

import (
	"time"

	"github.com/dshills/researchpipe-go/pipeline/cite"
	"github.com/dshills/researchpipe-go/pipeline/research"
)

// Statistics summarizes what a workflow run produced.
type Statistics struct {
	PapersFound        int `json:"papers_found"`
	NotesExtracted     int `json:"notes_extracted"`
	ThemesIdentified   int `json:"themes_identified"`
	GapsIdentified     int `json:"gaps_identified"`
	CitationsGenerated int `json:"citations_generated"`
}

// Result is the outcome of one workflow execution. On failure, Success
// is false, Error describes the terminal condition, and the lists carry
// whatever earlier stages produced.
type Result struct {
	Success        bool                `json:"success"`
	ResearchTopic  string              `json:"research_topic"`
	ExecutionTime  time.Duration       `json:"execution_time"`
	Statistics     Statistics          `json:"statistics"`
	Papers         []research.Paper    `json:"papers"`
	Notes          []research.Note     `json:"notes"`
	Themes         []research.Theme    `json:"themes"`
	Gaps           []string            `json:"gaps"`
	Citations      []research.Citation `json:"citations"`
	Draft          *Draft              `json:"draft,omitempty"`
	Bibliography   string              `json:"bibliography"`
	CitationReport cite.Report         `json:"citation_report"`
	Error          string              `json:"error,omitempty"`
}
