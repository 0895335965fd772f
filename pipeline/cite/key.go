// Package cite generates citation keys, formats references in the four
// common academic styles, and scores citation metadata quality.
package cite

import (
	"fmt"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// KeyGenerator hands out citation keys unique within one workflow run.
//
// Keys are the first author's last name (lowercased, alphabetic only)
// joined with the publication year, e.g. "vaswani2017". Papers with no
// usable author name get "paperN" where N is their 1-indexed position.
// Collisions take a suffix from the sequence _a.._z, then _1, _2, ...
type KeyGenerator struct {
	used map[string]bool
}

// NewKeyGenerator returns a generator with no keys issued.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{used: make(map[string]bool)}
}

// Key returns a unique citation key for the paper at position index
// (0-based) in the run's paper list.
func (g *KeyGenerator) Key(p *research.Paper, index int) string {
	base := g.base(p, index)
	if !g.used[base] {
		g.used[base] = true
		return base
	}
	for c := 'a'; c <= 'z'; c++ {
		key := fmt.Sprintf("%s_%c", base, c)
		if !g.used[key] {
			g.used[key] = true
			return key
		}
	}
	for n := 1; ; n++ {
		key := fmt.Sprintf("%s_%d", base, n)
		if !g.used[key] {
			g.used[key] = true
			return key
		}
	}
}

func (g *KeyGenerator) base(p *research.Paper, index int) string {
	last := p.FirstAuthorLastName()
	if last == "" {
		return fmt.Sprintf("paper%d", index+1)
	}
	year := p.Year()
	if year == 0 {
		// Year-less keys still need to satisfy the name+digits shape.
		return fmt.Sprintf("%s0000", last)
	}
	return fmt.Sprintf("%s%d", last, year)
}
