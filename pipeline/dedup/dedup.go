// Package dedup collapses papers discovered in multiple bibliographic
// sources into a single record per logical paper.
package dedup

import (
	"strings"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// titleSimilarityThreshold is the Jaccard similarity at which two titles,
// combined with a first-author last-name match, identify the same paper.
const titleSimilarityThreshold = 0.9

// stopwords removed from title word sets before comparison.
var stopwords = map[string]bool{
	"with": true, "from": true, "this": true, "that": true, "into": true,
	"over": true, "under": true, "between": true, "using": true, "based": true,
	"toward": true, "towards": true, "their": true, "about": true, "through": true,
}

// Merge returns papers with duplicates collapsed.
//
// Two papers are the same iff any of:
//   - non-empty DOIs equal (case-insensitive, whitespace trimmed)
//   - non-empty arXiv ids equal
//   - title Jaccard similarity >= 0.9 and first-author last names match
//
// When a duplicate is found, the preferred record is kept: non-empty DOI
// first, then longer abstract, then higher citation count. Fields missing in
// the preferred record are backfilled from the other. Input order of the
// surviving records is preserved.
func Merge(papers []research.Paper) []research.Paper {
	out := make([]research.Paper, 0, len(papers))
	for _, p := range papers {
		matched := false
		for i := range out {
			if !Same(&out[i], &p) {
				continue
			}
			out[i] = mergePair(out[i], p)
			matched = true
			break
		}
		if !matched {
			out = append(out, p)
		}
	}
	return out
}

// Same reports whether a and b identify the same logical paper.
func Same(a, b *research.Paper) bool {
	if ad, bd := normDOI(a.DOI), normDOI(b.DOI); ad != "" && ad == bd {
		return true
	}
	if a.ArxivID != "" && a.ArxivID == b.ArxivID {
		return true
	}
	if TitleSimilarity(a.Title, b.Title) >= titleSimilarityThreshold {
		al, bl := a.FirstAuthorLastName(), b.FirstAuthorLastName()
		if al != "" && al == bl {
			return true
		}
	}
	return false
}

// TitleSimilarity computes Jaccard similarity over the lowercased alphabetic
// word sets of the two titles. Words shorter than 4 characters and stopwords
// are discarded first.
func TitleSimilarity(a, b string) float64 {
	sa, sb := titleWords(a), titleWords(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if sb[w] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func titleWords(title string) map[string]bool {
	words := make(map[string]bool)
	var cur strings.Builder
	flush := func() {
		w := cur.String()
		cur.Reset()
		if len(w) >= 4 && !stopwords[w] {
			words[w] = true
		}
	}
	for _, r := range strings.ToLower(title) {
		if r >= 'a' && r <= 'z' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}

func normDOI(doi string) string {
	return strings.ToLower(strings.TrimSpace(doi))
}

// mergePair keeps the preferred record and backfills its empty fields from
// the other.
func mergePair(a, b research.Paper) research.Paper {
	keep, other := a, b
	if !preferred(&a, &b) {
		keep, other = b, a
	}
	if keep.DOI == "" {
		keep.DOI = other.DOI
	}
	if keep.ArxivID == "" {
		keep.ArxivID = other.ArxivID
	}
	if keep.Abstract == "" {
		keep.Abstract = other.Abstract
	}
	if keep.URL == "" {
		keep.URL = other.URL
	}
	if keep.Venue == "" {
		keep.Venue = other.Venue
	}
	if keep.Published.IsZero() {
		keep.Published = other.Published
	}
	if len(keep.Authors) == 0 {
		keep.Authors = other.Authors
	}
	if len(keep.Keywords) == 0 {
		keep.Keywords = other.Keywords
	}
	if keep.FullText == "" {
		keep.FullText = other.FullText
	}
	if other.Citations > keep.Citations {
		keep.Citations = other.Citations
	}
	return keep
}

// preferred reports whether a should be kept over b: non-empty DOI wins,
// then the longer abstract, then the higher citation count.
func preferred(a, b *research.Paper) bool {
	if (a.DOI != "") != (b.DOI != "") {
		return a.DOI != ""
	}
	if len(a.Abstract) != len(b.Abstract) {
		return len(a.Abstract) > len(b.Abstract)
	}
	return a.Citations >= b.Citations
}
