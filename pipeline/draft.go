package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/researchpipe-go/pipeline/llm"
	"github.com/dshills/researchpipe-go/pipeline/research"
)

const maxDraftThemes = 5

// citationPlaceholder marks an unresolved citation site in generated prose.
const citationPlaceholder = "[Citation]"

// DraftSection is one titled body section of the survey draft.
type DraftSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DraftMetadata records how the draft was produced.
type DraftMetadata struct {
	Domain           research.Domain `json:"domain"`
	GenerationLog    []string        `json:"generation_log"`
	SafetyValidated  bool            `json:"safety_validated"`
	FallbackSections []string        `json:"fallback_sections"`
}

// Draft is the structured survey document produced by the final stage.
type Draft struct {
	Title        string                  `json:"title"`
	Abstract     string                  `json:"abstract"`
	Introduction string                  `json:"introduction"`
	Sections     map[string]DraftSection `json:"sections"`
	Discussion   string                  `json:"discussion"`
	Conclusion   string                  `json:"conclusion"`
	Metadata     DraftMetadata           `json:"metadata"`
}

// Domain-specific patterns that disqualify a generated section. A match
// substitutes the domain fallback template.
var unsafePatterns = map[research.Domain][]*regexp.Regexp{
	research.DomainCybersecurity: {
		regexp.MustCompile(`(?i)\bhow to hack\b`),
		regexp.MustCompile(`(?i)\bworking exploit\b`),
		regexp.MustCompile(`(?i)\bstep[- ]by[- ]step attack\b`),
	},
	research.DomainMedical: {
		regexp.MustCompile(`(?i)\bself[- ]medicat\w*\b`),
		regexp.MustCompile(`(?i)\bwithout consulting\b`),
	},
	research.DomainChemistry: {
		regexp.MustCompile(`(?i)\bsynthesis route for\b.{0,40}\bexplosive\b`),
	},
	research.DomainBiology: {
		regexp.MustCompile(`(?i)\bgain[- ]of[- ]function protocol\b`),
	},
}

// runDraft produces the survey document section by section, validating
// each against domain safety patterns and resolving citation
// placeholders against the run's citation keys.
func (w *Workflow) runDraft(ctx context.Context, topic string, themes []research.Theme, papers []research.Paper, notes []research.Note, gaps []string, citations []research.Citation) (*Draft, error) {
	domainTexts := []string{topic}
	for i := range papers {
		if i >= 10 {
			break
		}
		domainTexts = append(domainTexts, papers[i].Title, papers[i].Abstract)
	}
	domain := research.DetectDomain(domainTexts...)

	draft := &Draft{
		Title:    fmt.Sprintf("A Survey of %s", titleCase(topic)),
		Sections: make(map[string]DraftSection),
		Metadata: DraftMetadata{
			Domain:          domain,
			SafetyValidated: true,
		},
	}

	bodyThemes := themes
	if len(bodyThemes) > maxDraftThemes {
		bodyThemes = bodyThemes[:maxDraftThemes]
	}

	themeSummary := summarizeThemes(bodyThemes)

	abstract, err := w.draftSection(ctx, draft, "abstract", domain, fmt.Sprintf(
		"Write a survey abstract (150-250 words) for the topic %q covering %d papers and these themes: %s.",
		topic, len(papers), themeSummary))
	if err != nil {
		return nil, err
	}
	draft.Abstract = abstract

	intro, err := w.draftSection(ctx, draft, "introduction", domain, fmt.Sprintf(
		"Write the introduction of an academic survey on %q. Motivate the area, state the scope (%d papers), and preview the themes: %s. Mark points needing a reference with %s.",
		topic, len(papers), themeSummary, citationPlaceholder))
	if err != nil {
		return nil, err
	}
	draft.Introduction = intro

	for i, theme := range bodyThemes {
		key := fmt.Sprintf("theme_%d", i+1)
		body, err := w.draftSection(ctx, draft, key, domain, fmt.Sprintf(
			"Write a survey body section about the theme %q. Description: %s. It spans %d notes across %d papers. Mark claims needing a reference with %s.",
			theme.Title, theme.Description, theme.Frequency, len(theme.PaperIDs), citationPlaceholder))
		if err != nil {
			return nil, err
		}
		draft.Sections[key] = DraftSection{
			Title:   theme.Title,
			Content: resolveCitations(body, citations, papers),
		}
	}
	draft.Introduction = resolveCitations(draft.Introduction, citations, papers)

	discussion, err := w.draftSection(ctx, draft, "discussion", domain, fmt.Sprintf(
		"Write the discussion section of a survey on %q. Contrast the themes (%s) and address these research gaps: %s.",
		topic, themeSummary, strings.Join(gaps, "; ")))
	if err != nil {
		return nil, err
	}
	draft.Discussion = discussion

	conclusion, err := w.draftSection(ctx, draft, "conclusion", domain, fmt.Sprintf(
		"Write a concise conclusion for a survey on %q summarizing the main findings and future directions.", topic))
	if err != nil {
		return nil, err
	}
	draft.Conclusion = conclusion

	return draft, nil
}

// draftSection generates one section, records its generation log, and
// substitutes the domain fallback when the text is a gateway fallback or
// trips a safety pattern.
func (w *Workflow) draftSection(ctx context.Context, draft *Draft, name string, domain research.Domain, prompt string) (string, error) {
	res, err := w.gateway.Generate(ctx, prompt, draftSystemPrompt, domain)
	if err != nil {
		return "", err
	}
	w.recordGenerate(res)
	draft.Metadata.GenerationLog = append(draft.Metadata.GenerationLog, res.Log...)

	text := res.Text
	fallback := res.Fallback
	if !fallback && unsafeSection(domain, text) {
		text = llm.FallbackText(domain, name)
		fallback = true
	}
	if fallback {
		draft.Metadata.FallbackSections = append(draft.Metadata.FallbackSections, name)
		w.metrics.LLMFallback(string(domain))
	}
	return text, nil
}

const draftSystemPrompt = "You are an academic writer producing neutral, " +
	"well-structured survey prose. Do not include headings; write flowing " +
	"paragraphs."

func unsafeSection(domain research.Domain, text string) bool {
	for _, re := range unsafePatterns[domain] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// resolveCitations replaces [Citation] placeholders with the key of the
// paper whose title best matches the preceding sentence. Placeholders
// with no plausible match are left in place.
func resolveCitations(text string, citations []research.Citation, papers []research.Paper) string {
	if len(citations) == 0 {
		return text
	}
	keyByPaper := make(map[string]string, len(citations))
	for _, c := range citations {
		keyByPaper[c.PaperID] = c.Key
	}

	var b strings.Builder
	rest := text
	for {
		idx := strings.Index(rest, citationPlaceholder)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		before := rest[:idx]
		b.WriteString(before)

		sentence := lastSentence(before)
		if paperID := bestTitleMatch(sentence, papers); paperID != "" {
			b.WriteString("[" + keyByPaper[paperID] + "]")
		} else {
			b.WriteString(citationPlaceholder)
		}
		rest = rest[idx+len(citationPlaceholder):]
	}
	return b.String()
}

// lastSentence returns the text after the final sentence boundary.
func lastSentence(s string) string {
	cut := strings.LastIndexAny(s, ".!?")
	if cut >= 0 && cut+1 < len(s) {
		return s[cut+1:]
	}
	if cut < 0 {
		return s
	}
	// Placeholder directly after the period: use the sentence it ends.
	prev := strings.LastIndexAny(s[:cut], ".!?")
	return s[prev+1 : cut]
}

// bestTitleMatch finds the paper whose title shares the most tokens with
// the sentence, requiring at least two shared tokens.
func bestTitleMatch(sentence string, papers []research.Paper) string {
	sentenceTokens := make(map[string]bool)
	for _, t := range tokenize(sentence) {
		if len(t) >= 4 {
			sentenceTokens[t] = true
		}
	}
	if len(sentenceTokens) == 0 {
		return ""
	}

	bestID := ""
	bestScore := 1 // require >= 2 shared tokens
	for i := range papers {
		score := 0
		for _, t := range tokenize(papers[i].Title) {
			if len(t) >= 4 && sentenceTokens[t] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestID = papers[i].ID
		}
	}
	return bestID
}

// summarizeThemes renders theme titles as a single prompt-friendly list.
func summarizeThemes(themes []research.Theme) string {
	titles := make([]string, 0, len(themes))
	for _, t := range themes {
		titles = append(titles, t.Title)
	}
	return strings.Join(titles, "; ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
