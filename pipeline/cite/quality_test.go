package cite

import (
	"testing"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

func TestAssess(t *testing.T) {
	t.Run("complete metadata scores 100", func(t *testing.T) {
		s := Assess(fullPaper(), "vaswani2017")
		if s.Value != 100 {
			t.Errorf("Value = %d, want 100 (issues %v)", s.Value, s.Issues)
		}
		if s.Label != LabelExcellent {
			t.Errorf("Label = %q, want %q", s.Label, LabelExcellent)
		}
		if len(s.Issues) != 0 {
			t.Errorf("Issues = %v, want none", s.Issues)
		}
	})

	t.Run("missing title and authors", func(t *testing.T) {
		p := fullPaper()
		p.Title = ""
		p.Authors = nil
		s := Assess(p, "k")
		if s.Value != 45 {
			t.Errorf("Value = %d, want 45", s.Value)
		}
		if s.Label != LabelPoor {
			t.Errorf("Label = %q, want %q", s.Label, LabelPoor)
		}
	})

	t.Run("invalid doi", func(t *testing.T) {
		p := fullPaper()
		p.DOI = "not-a-doi"
		s := Assess(p, "k")
		if s.Value != 90 {
			t.Errorf("Value = %d, want 90", s.Value)
		}
		if len(s.Issues) != 1 || s.Issues[0] != "invalid_doi" {
			t.Errorf("Issues = %v, want [invalid_doi]", s.Issues)
		}
	})

	t.Run("bare identifier", func(t *testing.T) {
		s := Assess(&research.Paper{ID: "p9"}, "paper1")
		if s.Value != 10 {
			t.Errorf("Value = %d, want 10", s.Value)
		}
		if s.Label != LabelVeryPoor {
			t.Errorf("Label = %q, want %q", s.Label, LabelVeryPoor)
		}
	})

	t.Run("malformed url", func(t *testing.T) {
		p := fullPaper()
		p.URL = "ftp://mirror.example.org/x"
		s := Assess(p, "k")
		if s.Value != 95 {
			t.Errorf("Value = %d, want 95", s.Value)
		}
	})
}

func TestAssessAll(t *testing.T) {
	good := *fullPaper()
	good.ID = "a"
	bad := research.Paper{ID: "b", Title: "Only a Title", Published: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}

	report := AssessAll([]research.Paper{good, bad}, map[string]string{"a": "vaswani2017", "b": "paper2"})
	if len(report.Scores) != 2 {
		t.Fatalf("Scores = %d, want 2", len(report.Scores))
	}
	// bad: no authors (25), no venue (10), no doi (5), no url (5) -> 55.
	if report.Scores[1].Value != 55 {
		t.Errorf("bad score = %d, want 55", report.Scores[1].Value)
	}
	if want := (100.0 + 55.0) / 2; report.AverageScore != want {
		t.Errorf("AverageScore = %v, want %v", report.AverageScore, want)
	}
	if report.IssueCounts["missing_authors"] != 1 {
		t.Errorf("IssueCounts = %v", report.IssueCounts)
	}
	if report.Scores[0].Key != "vaswani2017" || report.Scores[1].Key != "paper2" {
		t.Errorf("keys not carried: %+v", report.Scores)
	}
}
