package llm

import (
	"strings"
	"testing"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

func TestShapePrompt(t *testing.T) {
	t.Run("domain terms rewritten", func(t *testing.T) {
		got := ShapePrompt("survey of attack techniques", research.DomainCybersecurity)
		if strings.Contains(got, "attack techniques") {
			t.Errorf("domain term survived shaping: %q", got)
		}
		if !strings.Contains(got, "security analysis techniques") {
			t.Errorf("replacement missing: %q", got)
		}
	})

	t.Run("whole word only", func(t *testing.T) {
		got := ShapePrompt("heart attack prevention via counterattack", research.DomainMedical)
		// "attack" is not in the medical table and "counterattack" must
		// never be split by a partial match.
		if !strings.Contains(got, "counterattack") {
			t.Errorf("partial-word substitution occurred: %q", got)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		got := ShapePrompt("Exploit development", research.DomainCybersecurity)
		if strings.Contains(strings.ToLower(got), "exploit development") {
			t.Errorf("capitalized term survived: %q", got)
		}
	})

	t.Run("universal table applies to all domains", func(t *testing.T) {
		got := ShapePrompt("dangerous chemicals", research.DomainGeneric)
		if strings.Contains(got, "dangerous") {
			t.Errorf("universal term survived: %q", got)
		}
		if !strings.Contains(got, "high-impact chemicals") {
			t.Errorf("universal replacement missing: %q", got)
		}
	})

	t.Run("academic preamble prepended", func(t *testing.T) {
		got := ShapePrompt("anything", research.DomainAIML)
		if !strings.HasPrefix(got, "The following is part of an academic literature survey") {
			t.Errorf("missing preamble: %q", got)
		}
		if !strings.Contains(got, "ai ml") {
			t.Errorf("domain name not humanized in preamble: %q", got)
		}
	})

	t.Run("tone normalized", func(t *testing.T) {
		got := ShapePrompt("URGENT!! do this NOW???", research.DomainGeneric)
		if strings.Contains(got, "URGENT") || strings.Contains(got, "!!") || strings.Contains(got, "???") {
			t.Errorf("shouting survived normalization: %q", got)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		in := "attack the exploit payload breach"
		a := ShapePrompt(in, research.DomainCybersecurity)
		b := ShapePrompt(in, research.DomainCybersecurity)
		if a != b {
			t.Error("shaping is not deterministic")
		}
	})

	t.Run("unknown domain falls back to generic", func(t *testing.T) {
		got := ShapePrompt("text", research.Domain("astrology"))
		if !strings.Contains(got, "generic") {
			t.Errorf("unknown domain not mapped to generic: %q", got)
		}
	})
}

func TestShapePrompt_MultiWordBeforeSuffix(t *testing.T) {
	got := ShapePrompt("adversarial attack on classifiers", research.DomainAIML)
	if !strings.Contains(got, "robustness evaluation on classifiers") {
		t.Errorf("multi-word entry lost to a shorter match: %q", got)
	}
}

func TestUltraSafePrompt(t *testing.T) {
	got := UltraSafePrompt("write a section and discuss results", research.DomainGeneric)
	if strings.Contains(got, "write a section") {
		t.Errorf("imperative verb survived: %q", got)
	}
	if !strings.Contains(got, "analyze a section") || !strings.Contains(got, "review results") {
		t.Errorf("verb rewrites missing: %q", got)
	}
}

func TestMinimalPrompt(t *testing.T) {
	got := MinimalPrompt(research.DomainComputerScience)
	if !strings.Contains(got, "computer science") {
		t.Errorf("domain missing from minimal prompt: %q", got)
	}
	if !strings.Contains(got, "educational") {
		t.Errorf("minimal prompt lost its framing: %q", got)
	}
}
