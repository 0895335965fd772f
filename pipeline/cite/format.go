package cite

import (
	"fmt"
	"strings"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// Maximum authors listed verbatim in an APA reference before "et al.".
const apaAuthorLimit = 20

// APA formats a paper as an APA 7 style reference.
func APA(p *research.Paper) string {
	var b strings.Builder

	authors := p.Authors
	switch {
	case len(authors) == 0:
		// Title moves into author position when no author is known.
	case len(authors) > apaAuthorLimit:
		names := make([]string, 0, apaAuthorLimit+1)
		for _, a := range authors[:apaAuthorLimit] {
			names = append(names, lastInitials(a))
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(", et al.")
	case len(authors) == 1:
		b.WriteString(lastInitials(authors[0]))
	default:
		names := make([]string, 0, len(authors))
		for _, a := range authors {
			names = append(names, lastInitials(a))
		}
		b.WriteString(strings.Join(names[:len(names)-1], ", "))
		b.WriteString(", & ")
		b.WriteString(names[len(names)-1])
	}

	if year := p.Year(); year > 0 {
		fmt.Fprintf(&b, " (%d).", year)
	} else {
		b.WriteString(" (n.d.).")
	}

	title := strings.TrimSpace(p.Title)
	if title != "" {
		b.WriteString(" " + ensurePeriod(title))
	}
	if venue := strings.TrimSpace(p.Venue); venue != "" {
		b.WriteString(" " + ensurePeriod(venue))
	}
	if p.DOI != "" {
		b.WriteString(" https://doi.org/" + p.DOI)
	} else if p.URL != "" {
		b.WriteString(" " + p.URL)
	}
	return strings.TrimSpace(b.String())
}

// MLA formats a paper as an MLA style reference. Works with more than
// one author cite the first author followed by "et al."
func MLA(p *research.Paper) string {
	var b strings.Builder

	switch {
	case len(p.Authors) == 0:
	case len(p.Authors) == 1:
		b.WriteString(lastFirst(p.Authors[0]) + ".")
	default:
		b.WriteString(lastFirst(p.Authors[0]) + ", et al.")
	}

	if title := strings.TrimSpace(p.Title); title != "" {
		fmt.Fprintf(&b, " %q", ensurePeriod(title))
	}
	if venue := strings.TrimSpace(p.Venue); venue != "" {
		b.WriteString(" " + venue + ",")
	}
	if year := p.Year(); year > 0 {
		fmt.Fprintf(&b, " %d.", year)
	} else {
		b.WriteString(" n.d.")
	}
	return strings.TrimSpace(b.String())
}

// BibTeX formats a paper as a BibTeX @article entry under the given key.
// All authors are listed, joined by "and".
func BibTeX(p *research.Paper, key string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@article{%s,\n", key)
	fmt.Fprintf(&b, "  title = {%s},\n", strings.TrimSpace(p.Title))
	if len(p.Authors) > 0 {
		fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(p.Authors, " and "))
	}
	if venue := strings.TrimSpace(p.Venue); venue != "" {
		fmt.Fprintf(&b, "  journal = {%s},\n", venue)
	}
	if year := p.Year(); year > 0 {
		fmt.Fprintf(&b, "  year = {%d},\n", year)
	}
	if p.DOI != "" {
		fmt.Fprintf(&b, "  doi = {%s},\n", p.DOI)
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "  url = {%s},\n", p.URL)
	}
	b.WriteString("}")
	return b.String()
}

// Chicago formats a paper as a Chicago style reference.
func Chicago(p *research.Paper) string {
	var b strings.Builder

	switch {
	case len(p.Authors) == 0:
	case len(p.Authors) == 1:
		b.WriteString(lastFirst(p.Authors[0]) + ".")
	default:
		rest := make([]string, 0, len(p.Authors)-1)
		for _, a := range p.Authors[1:] {
			rest = append(rest, a)
		}
		b.WriteString(lastFirst(p.Authors[0]) + ", and " + strings.Join(rest, ", ") + ".")
	}

	if title := strings.TrimSpace(p.Title); title != "" {
		fmt.Fprintf(&b, " %q", ensurePeriod(title))
	}
	if venue := strings.TrimSpace(p.Venue); venue != "" {
		b.WriteString(" " + venue)
	}
	if year := p.Year(); year > 0 {
		fmt.Fprintf(&b, " (%d).", year)
	} else {
		b.WriteString(".")
	}
	return strings.TrimSpace(b.String())
}

// lastInitials renders a display name as "Last, F. M." for APA.
func lastInitials(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	last := parts[len(parts)-1]
	initials := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		r := []rune(p)
		initials = append(initials, strings.ToUpper(string(r[0]))+".")
	}
	return last + ", " + strings.Join(initials, " ")
}

// lastFirst renders a display name as "Last, First Middle".
func lastFirst(name string) string {
	parts := strings.Fields(name)
	if len(parts) <= 1 {
		return name
	}
	last := parts[len(parts)-1]
	return last + ", " + strings.Join(parts[:len(parts)-1], " ")
}

func ensurePeriod(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "!") {
		return s
	}
	return s + "."
}
