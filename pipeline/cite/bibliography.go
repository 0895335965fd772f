package cite

import (
	"sort"
	"strings"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// Bibliography assembles the APA reference list for the given papers,
// sorted by first-author last name ascending. Papers without authors
// sort by title.
func Bibliography(papers []research.Paper) string {
	sorted := make([]research.Paper, len(papers))
	copy(sorted, papers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(&sorted[i]) < sortKey(&sorted[j])
	})

	entries := make([]string, 0, len(sorted)+1)
	entries = append(entries, "References")
	for i := range sorted {
		entries = append(entries, APA(&sorted[i]))
	}
	return strings.Join(entries, "\n\n")
}

func sortKey(p *research.Paper) string {
	if last := p.FirstAuthorLastName(); last != "" {
		return last
	}
	return strings.ToLower(strings.TrimSpace(p.Title))
}
