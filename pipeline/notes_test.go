package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/dshills/researchpipe-go/pipeline/llm"
	"github.com/dshills/researchpipe-go/pipeline/research"
)

func TestRunNotes_ExtractsPerPaper(t *testing.T) {
	w := newTestWorkflow(t, okProvider(), testAdapters())
	long := strings.Repeat("Graph neural networks learn structured representations. ", 3)
	papers := []research.Paper{
		stubPaper("arxiv", "1", "Paper One", long),
		stubPaper("arxiv", "2", "Paper Two", long),
		stubPaper("arxiv", "3", "Paper Three", long),
	}

	notes, err := w.runNotes(context.Background(), papers, "graph neural networks")
	if err != nil {
		t.Fatalf("runNotes() error: %v", err)
	}
	if len(notes) == 0 {
		t.Fatal("no notes extracted")
	}

	byPaper := make(map[string]int)
	for _, n := range notes {
		byPaper[n.PaperID]++
		if n.Confidence <= 0 || n.Confidence > 1 {
			t.Errorf("note %s confidence = %v", n.ID, n.Confidence)
		}
		if !research.ValidNoteType(n.Type) {
			t.Errorf("note %s type = %q", n.ID, n.Type)
		}
	}
	for _, p := range papers {
		if byPaper[p.ID] == 0 {
			t.Errorf("no notes for paper %s", p.ID)
		}
	}
}

func TestRunNotes_ThinPaperGetsMinimalNote(t *testing.T) {
	provider := okProvider()
	w := newTestWorkflow(t, provider, testAdapters())
	papers := []research.Paper{stubPaper("arxiv", "thin", "Short", "tiny")}

	notes, err := w.runNotes(context.Background(), papers, "topic")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1 minimal note", len(notes))
	}
	if notes[0].Confidence != minimalNoteConfidence {
		t.Errorf("confidence = %v, want %v", notes[0].Confidence, minimalNoteConfidence)
	}
	if notes[0].Type != research.NoteAbstract {
		t.Errorf("type = %q, want abstract", notes[0].Type)
	}
	// Thin papers never reach the LLM.
	if provider.CallCount() != 0 {
		t.Errorf("provider calls = %d, want 0", provider.CallCount())
	}
}

func TestExtractPaperNotes_FallbackYieldsMinimalNote(t *testing.T) {
	blocked := &llm.MockProvider{Responses: []llm.Response{{FinishReason: llm.FinishSafety}}}
	w := newTestWorkflow(t, blocked, testAdapters())
	p := stubPaper("arxiv", "x", "Blocked Paper",
		strings.Repeat("Substantial abstract content for extraction. ", 3))

	notes, err := w.extractPaperNotes(context.Background(), &p, research.DomainGeneric)
	if err != nil {
		t.Fatalf("extractPaperNotes() error: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1 minimal note after fallback", len(notes))
	}
	if notes[0].ID != p.ID+"_note_0" {
		t.Errorf("ID = %q", notes[0].ID)
	}
}

func TestParseSections(t *testing.T) {
	w := newTestWorkflow(t, okProvider(), testAdapters())
	p := stubPaper("arxiv", "1", "T", "a")

	text := `ABSTRACT: Surveys the field broadly.
INTRODUCTION: Not available
METHODOLOGY: Benchmarks three model families
across two datasets.
FINDINGS:
LIMITATIONS: Small sample size.`

	notes := w.parseSections(&p, text)
	if len(notes) != 3 {
		t.Fatalf("notes = %d, want 3 (not-available and empty dropped)", len(notes))
	}
	if notes[0].Type != research.NoteAbstract {
		t.Errorf("notes[0].Type = %q", notes[0].Type)
	}
	if notes[1].Type != research.NoteMethodology {
		t.Errorf("notes[1].Type = %q", notes[1].Type)
	}
	if want := "Benchmarks three model families across two datasets."; notes[1].Content != want {
		t.Errorf("continuation lines not joined: %q", notes[1].Content)
	}
	if notes[2].Type != research.NoteLimitations {
		t.Errorf("notes[2].Type = %q", notes[2].Type)
	}
	if notes[0].Confidence != sectionConfidence {
		t.Errorf("confidence = %v", notes[0].Confidence)
	}
}

func TestParseInsights(t *testing.T) {
	w := newTestWorkflow(t, okProvider(), testAdapters())
	p := stubPaper("arxiv", "1", "T", "a")

	t.Run("fields parsed and clamped", func(t *testing.T) {
		text := `CONTENT: Depth hurts accuracy on sparse graphs.
IMPORTANCE: Informs architecture choices.
TYPE: methodology
CONFIDENCE: 0.95

CONTENT: tiny
TYPE: key_finding
CONFIDENCE: 0.7

CONTENT: Attention variants transfer across domains cleanly.
TYPE: limitation
CONFIDENCE: bogus`

		notes := w.parseInsights(&p, text, 0)
		if len(notes) != 2 {
			t.Fatalf("notes = %d, want 2 (short content dropped)", len(notes))
		}
		if notes[0].Type != research.NoteMethodology {
			t.Errorf("notes[0].Type = %q", notes[0].Type)
		}
		if notes[0].Confidence != maxInsightConfidence {
			t.Errorf("high confidence not clamped: %v", notes[0].Confidence)
		}
		if !strings.Contains(notes[0].Content, "Importance: Informs architecture choices.") {
			t.Errorf("importance not folded into content: %q", notes[0].Content)
		}
		if notes[1].Type != research.NoteLimitations {
			t.Errorf("notes[1].Type = %q", notes[1].Type)
		}
		if notes[1].Confidence != minInsightConfidence {
			t.Errorf("unparseable confidence = %v, want floor", notes[1].Confidence)
		}
	})

	t.Run("capped at seven", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 10; i++ {
			b.WriteString("CONTENT: A sufficiently long distinct insight sentence.\nTYPE: key_finding\nCONFIDENCE: 0.7\n")
		}
		notes := w.parseInsights(&p, b.String(), 0)
		if len(notes) != maxInsightsPerPaper {
			t.Errorf("notes = %d, want %d", len(notes), maxInsightsPerPaper)
		}
	})

	t.Run("id offset", func(t *testing.T) {
		notes := w.parseInsights(&p, "CONTENT: Another full-length insight statement.\nTYPE: key_finding\nCONFIDENCE: 0.7", 4)
		if len(notes) != 1 || notes[0].ID != p.ID+"_note_4" {
			t.Errorf("notes = %+v, want offset id", notes)
		}
	})
}

func TestSplitLabeled(t *testing.T) {
	fields := splitLabeled("TITLE: Graph depth\nextra line\nDESCRIPTION: Notes on depth.",
		map[string]bool{"TITLE:": true, "DESCRIPTION:": true})
	if fields["TITLE:"] != "Graph depth extra line" {
		t.Errorf("TITLE = %q", fields["TITLE:"])
	}
	if fields["DESCRIPTION:"] != "Notes on depth." {
		t.Errorf("DESCRIPTION = %q", fields["DESCRIPTION:"])
	}
}
