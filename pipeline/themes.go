package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

const (
	minClusterSize       = 3
	clusterSampleSize    = 5
	synthesisSampleNotes = 8
	maxThemeTitle        = 100
	maxGaps              = 7
	noteKeywordLimit     = 20
	minKeywordLength     = 4
	lowThemeConfidence   = 0.6
)

// Research angles checked against the note corpus when identifying gaps.
var gapAngles = []string{
	"longitudinal studies",
	"cost-effectiveness",
	"ethical implications",
	"scalability",
	"reproducibility",
	"real-world validation",
	"interdisciplinary approaches",
	"standardized evaluation",
}

// themeStopwords extends common English stopwords with words that carry
// no signal in academic note text.
var themeStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "been": true, "were": true, "they": true,
	"their": true, "them": true, "this": true, "that": true, "these": true,
	"those": true, "with": true, "from": true, "into": true, "upon": true,
	"about": true, "above": true, "after": true, "again": true, "under": true,
	"over": true, "then": true, "than": true, "when": true, "where": true,
	"which": true, "while": true, "what": true, "will": true, "would": true,
	"could": true, "should": true, "shall": true, "might": true, "must": true,
	"also": true, "such": true, "some": true, "more": true, "most": true,
	"other": true, "another": true, "each": true, "both": true, "only": true,
	"very": true, "between": true, "through": true, "during": true,
	"before": true, "because": true, "however": true, "therefore": true,
	"thus": true, "hence": true, "among": true, "within": true, "without": true,
	"based": true, "using": true, "used": true, "uses": true, "show": true,
	"shows": true, "shown": true, "present": true, "presents": true,
	"presented": true, "propose": true, "proposed": true, "proposes": true,
	"provide": true, "provides": true, "provided": true, "various": true,
	"several": true, "many": true, "much": true, "there": true, "here": true,
	"being": true, "does": true, "done": true, "make": true, "makes": true,
	"made": true, "well": true, "since": true, "although": true, "given": true,
	// Meta-words ubiquitous in scholarly prose.
	"research": true, "paper": true, "papers": true, "study": true,
	"studies": true, "work": true, "works": true, "approach": true,
	"approaches": true, "method": true, "results": true, "result": true,
	"data": true, "analysis": true, "article": true, "author": true,
	"authors": true, "findings": true, "finding": true,
}

type noteCluster struct {
	name     string
	notes    []research.Note
	keywords []map[string]bool // per-note keyword sets, parallel to notes
}

// runThemes clusters note keywords greedily and synthesizes a theme per
// sufficiently large cluster, then derives research gaps.
func (w *Workflow) runThemes(ctx context.Context, notes []research.Note, papers []research.Paper, topic string) ([]research.Theme, []string, error) {
	domain := research.DetectDomain(topic)

	clusters := clusterNotes(notes, w.cfg.themeSimilarity)

	var themes []research.Theme
	for _, c := range clusters {
		if len(c.notes) < minClusterSize {
			continue
		}
		theme, err := w.synthesizeTheme(ctx, c, domain, len(themes))
		if err != nil {
			return nil, nil, err
		}
		themes = append(themes, theme)
	}

	// No cluster was large enough: group by note type instead.
	if len(themes) == 0 {
		themes = themesByNoteType(notes)
	}

	gaps := identifyGaps(notes, themes)
	return themes, gaps, nil
}

// clusterNotes assigns each note to the existing cluster with the best
// average keyword similarity, or starts a new one. Comparison samples at
// most clusterSampleSize notes per cluster to bound cost.
func clusterNotes(notes []research.Note, threshold float64) []*noteCluster {
	var clusters []*noteCluster

	for _, note := range notes {
		kws := noteKeywords(note.Content)

		best := -1
		bestScore := 0.0
		for i, c := range clusters {
			score := 0.0
			n := len(c.keywords)
			if n > clusterSampleSize {
				n = clusterSampleSize
			}
			if n == 0 {
				continue
			}
			for _, other := range c.keywords[:n] {
				score += jaccard(kws, other)
			}
			score /= float64(n)
			if score > bestScore {
				bestScore = score
				best = i
			}
		}

		if best >= 0 && bestScore >= threshold {
			clusters[best].notes = append(clusters[best].notes, note)
			clusters[best].keywords = append(clusters[best].keywords, kws)
			continue
		}
		clusters = append(clusters, &noteCluster{
			name:     clusterName(note, kws),
			notes:    []research.Note{note},
			keywords: []map[string]bool{kws},
		})
	}
	return clusters
}

// clusterName joins a note's top three keywords, prefixed with the note
// type when the type carries meaning beyond a generic finding.
func clusterName(note research.Note, kws map[string]bool) string {
	top := topKeywords(kws, 3)
	name := strings.Join(top, "-")
	if name == "" {
		name = "misc"
	}
	t := string(note.Type)
	if t != "general" && t != string(research.NoteKeyFinding) {
		name = t + "-" + name
	}
	return name
}

// synthesizeTheme asks the LLM to title and describe a cluster; on
// unusable output it falls back to a keyword-derived title.
func (w *Workflow) synthesizeTheme(ctx context.Context, c *noteCluster, domain research.Domain, index int) (research.Theme, error) {
	sample := c.notes
	if len(sample) > synthesisSampleNotes {
		sample = sample[:synthesisSampleNotes]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The following %d research notes form one cluster (%s).\n", len(c.notes), c.name)
	b.WriteString("Synthesize them into a single research theme. Output exactly:\n")
	b.WriteString("TITLE: <at most 100 characters>\nDESCRIPTION: <at most 500 characters>\n\n")
	for i, n := range sample {
		fmt.Fprintf(&b, "Note %d: %s\n", i+1, n.Content)
	}

	res, err := w.gateway.Generate(ctx, b.String(), "", domain)
	if err != nil {
		return research.Theme{}, err
	}
	w.recordGenerate(res)

	title, desc := parseThemeResponse(res.Text)
	if res.Fallback || title == "" {
		w.metrics.DroppedField("theme", "unparseable_synthesis")
		title = fallbackThemeTitle(c)
		desc = fmt.Sprintf("A recurring theme across %d notes concerning %s.", len(c.notes), strings.ReplaceAll(c.name, "-", " "))
	}

	confidence := 0.4 + 0.05*float64(len(c.notes))
	if confidence > 0.9 {
		confidence = 0.9
	}

	return research.Theme{
		ID:          fmt.Sprintf("theme_%d", index+1),
		Title:       truncate(title, maxThemeTitle),
		Description: research.ClampContent(desc),
		PaperIDs:    clusterPaperIDs(c),
		Frequency:   len(c.notes),
		Confidence:  confidence,
	}, nil
}

func parseThemeResponse(text string) (title, description string) {
	fields := splitLabeled(text, map[string]bool{"TITLE:": true, "DESCRIPTION:": true})
	return strings.TrimSpace(fields["TITLE:"]), strings.TrimSpace(fields["DESCRIPTION:"])
}

func fallbackThemeTitle(c *noteCluster) string {
	counts := make(map[string]int)
	for _, kws := range c.keywords {
		for k := range kws {
			counts[k]++
		}
	}
	top := topByCount(counts, 3)
	if len(top) == 0 {
		return "Emerging research directions"
	}
	for i, t := range top {
		top[i] = strings.ToUpper(t[:1]) + t[1:]
	}
	return strings.Join(top, " and ")
}

// themesByNoteType is the fallback grouping when keyword clustering
// produced no cluster of minimum size.
func themesByNoteType(notes []research.Note) []research.Theme {
	byType := make(map[research.NoteType][]research.Note)
	var order []research.NoteType
	for _, n := range notes {
		if _, seen := byType[n.Type]; !seen {
			order = append(order, n.Type)
		}
		byType[n.Type] = append(byType[n.Type], n)
	}

	var themes []research.Theme
	for _, t := range order {
		group := byType[t]
		if len(group) < minClusterSize {
			continue
		}
		c := &noteCluster{notes: group}
		label := strings.ReplaceAll(string(t), "_", " ")
		themes = append(themes, research.Theme{
			ID:          fmt.Sprintf("theme_%d", len(themes)+1),
			Title:       truncate("Common "+label+" across the literature", maxThemeTitle),
			Description: research.ClampContent(fmt.Sprintf("%d notes of type %s share observations across the surveyed papers.", len(group), t)),
			PaperIDs:    clusterPaperIDs(c),
			Frequency:   len(group),
			Confidence:  0.5,
		})
	}
	return themes
}

// identifyGaps emits a gap for every common research angle missing from
// the note corpus and for every low-confidence theme, capped at maxGaps.
func identifyGaps(notes []research.Note, themes []research.Theme) []string {
	var corpus strings.Builder
	for _, n := range notes {
		corpus.WriteString(strings.ToLower(n.Content))
		corpus.WriteString(" ")
	}
	text := corpus.String()

	var gaps []string
	for _, angle := range gapAngles {
		if len(gaps) >= maxGaps {
			return gaps
		}
		if !strings.Contains(text, angle) {
			gaps = append(gaps, fmt.Sprintf("Limited coverage of %s in the surveyed literature", angle))
		}
	}
	for _, t := range themes {
		if len(gaps) >= maxGaps {
			break
		}
		if t.Confidence < lowThemeConfidence {
			gaps = append(gaps, fmt.Sprintf("Theme %q is weakly supported and needs further evidence", t.Title))
		}
	}
	return gaps
}

func clusterPaperIDs(c *noteCluster) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, n := range c.notes {
		if !seen[n.PaperID] {
			seen[n.PaperID] = true
			ids = append(ids, n.PaperID)
		}
	}
	return ids
}

// noteKeywords extracts the note's top keyword set: lowercased alphabetic
// words of minimum length with stopwords removed, top noteKeywordLimit
// by frequency.
func noteKeywords(content string) map[string]bool {
	counts := make(map[string]int)
	for _, word := range strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return r < 'a' || r > 'z'
	}) {
		if len(word) < minKeywordLength || themeStopwords[word] {
			continue
		}
		counts[word]++
	}

	top := topByCount(counts, noteKeywordLimit)
	set := make(map[string]bool, len(top))
	for _, w := range top {
		set[w] = true
	}
	return set
}

func topKeywords(set map[string]bool, n int) []string {
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// topByCount returns the n highest-frequency keys, ties broken
// alphabetically for determinism.
func topByCount(counts map[string]int, n int) []string {
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
