package research

import "time"

// NoteType classifies an extracted research note.
type NoteType string

// Note types produced by the extraction stage.
const (
	NoteAbstract     NoteType = "abstract"
	NoteIntroduction NoteType = "introduction"
	NoteMethodology  NoteType = "methodology"
	NoteFindings     NoteType = "findings"
	NoteLimitations  NoteType = "limitations"
	NoteFutureWork   NoteType = "future_work"
	NoteKeyFinding   NoteType = "key_finding"
)

// ValidNoteType reports whether t is one of the recognized note types.
func ValidNoteType(t NoteType) bool {
	switch t {
	case NoteAbstract, NoteIntroduction, NoteMethodology, NoteFindings,
		NoteLimitations, NoteFutureWork, NoteKeyFinding:
		return true
	}
	return false
}

// MaxNoteContent is the content clamp applied to every note.
const MaxNoteContent = 500

// Note is a structured fragment extracted from exactly one paper.
type Note struct {
	// ID uniquely identifies the note.
	ID string `json:"id"`

	// PaperID references the paper this note was extracted from.
	// The referenced paper always exists in the run's paper list.
	PaperID string `json:"paper_id"`

	// Content is the extracted text, clamped to MaxNoteContent characters.
	Content string `json:"content"`

	// Type classifies the note.
	Type NoteType `json:"type"`

	// Confidence is the extraction confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// CreatedAt records when the note was extracted.
	CreatedAt time.Time `json:"created_at"`
}

// ClampContent truncates s to MaxNoteContent characters, preserving whole
// runes.
func ClampContent(s string) string {
	if len(s) <= MaxNoteContent {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxNoteContent {
		return s
	}
	return string(runes[:MaxNoteContent])
}

// Theme is a synthesized cluster of related notes.
type Theme struct {
	// ID uniquely identifies the theme.
	ID string `json:"id"`

	// Title is the theme title, at most 100 characters.
	Title string `json:"title"`

	// Description summarizes the theme, at most 500 characters.
	Description string `json:"description"`

	// PaperIDs lists the distinct papers contributing notes to the cluster.
	PaperIDs []string `json:"paper_ids"`

	// Frequency is the number of notes in the cluster.
	Frequency int `json:"frequency"`

	// Confidence is the synthesis confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// RelatedThemeIDs optionally links related themes.
	RelatedThemeIDs []string `json:"related_theme_ids,omitempty"`
}

// Citation holds the formatted citation strings for one paper.
type Citation struct {
	// ID uniquely identifies the citation.
	ID string `json:"id"`

	// PaperID references the cited paper.
	PaperID string `json:"paper_id"`

	// Key is the citation key, unique within a workflow run
	// (e.g. "vaswani2017", "smith2020_a").
	Key string `json:"key"`

	// APA, MLA, BibTeX and Chicago are the formatted citation strings.
	// Chicago may be empty.
	APA     string `json:"apa"`
	MLA     string `json:"mla"`
	BibTeX  string `json:"bibtex"`
	Chicago string `json:"chicago,omitempty"`
}
