package cite

import (
	"testing"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

func paperBy(author string, year int) *research.Paper {
	p := &research.Paper{Title: "Some Paper"}
	if author != "" {
		p.Authors = []string{author}
	}
	if year > 0 {
		p.Published = time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC)
	}
	return p
}

func TestKeyGenerator_Key(t *testing.T) {
	t.Run("lastname plus year", func(t *testing.T) {
		g := NewKeyGenerator()
		if got := g.Key(paperBy("Ashish Vaswani", 2017), 0); got != "vaswani2017" {
			t.Errorf("Key() = %q, want vaswani2017", got)
		}
	})

	t.Run("no author", func(t *testing.T) {
		g := NewKeyGenerator()
		if got := g.Key(paperBy("", 2020), 4); got != "paper5" {
			t.Errorf("Key() = %q, want paper5", got)
		}
	})

	t.Run("no year", func(t *testing.T) {
		g := NewKeyGenerator()
		if got := g.Key(paperBy("Grace Hopper", 0), 0); got != "hopper0000" {
			t.Errorf("Key() = %q, want hopper0000", got)
		}
	})

	t.Run("collision suffixes", func(t *testing.T) {
		g := NewKeyGenerator()
		want := []string{"smith2021", "smith2021_a", "smith2021_b"}
		for i, w := range want {
			if got := g.Key(paperBy("Jane Smith", 2021), i); got != w {
				t.Errorf("key %d = %q, want %q", i, got, w)
			}
		}
	})

	t.Run("numeric suffixes after alphabet", func(t *testing.T) {
		g := NewKeyGenerator()
		var last string
		for i := 0; i < 29; i++ {
			last = g.Key(paperBy("Jane Smith", 2021), i)
		}
		if last != "smith2021_2" {
			t.Errorf("29th key = %q, want smith2021_2", last)
		}
	})
}
