package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

const (
	// Papers with less content than this skip LLM extraction entirely.
	minContentForExtraction = 50

	// Insight parsing bounds.
	minInsightContent    = 10
	maxInsightsPerPaper  = 7
	minInsightConfidence = 0.6
	maxInsightConfidence = 0.9

	sectionConfidence     = 0.8
	minimalNoteConfidence = 0.5

	batchWorkers = 2
)

var sectionLabels = []struct {
	label    string
	noteType research.NoteType
}{
	{"ABSTRACT:", research.NoteAbstract},
	{"INTRODUCTION:", research.NoteIntroduction},
	{"METHODOLOGY:", research.NoteMethodology},
	{"FINDINGS:", research.NoteFindings},
	{"LIMITATIONS:", research.NoteLimitations},
	{"FUTURE_WORK:", research.NoteFutureWork},
}

// runNotes extracts structured notes from each paper in batches. Paper
// failures are isolated: a paper that cannot be processed is skipped and
// the stage continues.
func (w *Workflow) runNotes(ctx context.Context, papers []research.Paper, topic string) ([]research.Note, error) {
	domainTexts := []string{topic}
	for i := range papers {
		if i >= 10 {
			break
		}
		domainTexts = append(domainTexts, papers[i].Title, papers[i].Abstract)
	}
	domain := research.DetectDomain(domainTexts...)

	var (
		mu    sync.Mutex
		notes []research.Note
	)

	batchSize := w.cfg.noteBatchSize
	if w.cfg.memoryPressure != nil && w.cfg.memoryPressure() {
		batchSize = 1
	}

	for batchIdx, start := 0, 0; start < len(papers); batchIdx, start = batchIdx+1, start+batchSize {
		if batchIdx > 0 {
			pause := 2 * time.Second * time.Duration(batchIdx)
			if pause > 6*time.Second {
				pause = 6 * time.Second
			}
			if err := w.sleep(ctx, pause); err != nil {
				return notes, err
			}
		}

		end := start + batchSize
		if end > len(papers) {
			end = len(papers)
		}
		batch := papers[start:end]

		workers := 1
		if w.cfg.parallelProcessing {
			workers = batchWorkers
			if workers > len(batch) {
				workers = len(batch)
			}
		}

		jobs := make(chan int, len(batch))
		for i := range batch {
			jobs <- i
		}
		close(jobs)

		var wg sync.WaitGroup
		for wk := 0; wk < workers; wk++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					paperNotes, err := w.extractPaperNotes(ctx, &batch[i], domain)
					if err != nil {
						w.emitEvent(topic, stageNotes, 2, "paper_skipped", map[string]interface{}{
							"paper": batch[i].ID,
							"error": err.Error(),
						})
						continue
					}
					mu.Lock()
					notes = append(notes, paperNotes...)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if ctx.Err() != nil {
			return notes, ctx.Err()
		}
	}
	return notes, nil
}

// extractPaperNotes runs the two-call extraction for one paper: labeled
// sections first, then discrete insights.
func (w *Workflow) extractPaperNotes(ctx context.Context, p *research.Paper, domain research.Domain) ([]research.Note, error) {
	content := p.Content()
	if len(strings.TrimSpace(content)) < minContentForExtraction {
		return []research.Note{minimalNote(p)}, nil
	}

	var notes []research.Note

	sectionsRes, err := w.gateway.Generate(ctx, sectionsPrompt(p, content), noteSystemPrompt, domain)
	if err != nil {
		return nil, err
	}
	w.recordGenerate(sectionsRes)
	if !sectionsRes.Fallback {
		notes = append(notes, w.parseSections(p, sectionsRes.Text)...)
	}

	insightsRes, err := w.gateway.Generate(ctx, insightsPrompt(p, content), noteSystemPrompt, domain)
	if err != nil {
		return nil, err
	}
	w.recordGenerate(insightsRes)
	if !insightsRes.Fallback {
		notes = append(notes, w.parseInsights(p, insightsRes.Text, len(notes))...)
	}

	// Both calls falling back still yields something usable.
	if len(notes) == 0 {
		notes = append(notes, minimalNote(p))
	}
	return notes, nil
}

func minimalNote(p *research.Paper) research.Note {
	content := strings.TrimSpace(p.Content())
	if content == "" {
		content = p.Title
	}
	return research.Note{
		ID:         p.ID + "_note_0",
		PaperID:    p.ID,
		Content:    research.ClampContent(content),
		Type:       research.NoteAbstract,
		Confidence: minimalNoteConfidence,
		CreatedAt:  time.Now(),
	}
}

const noteSystemPrompt = "You are an academic research assistant extracting " +
	"structured notes from scholarly papers. Respond only with the requested " +
	"labeled fields."

func sectionsPrompt(p *research.Paper, content string) string {
	return fmt.Sprintf(`Summarize the following paper into six labeled sections.
Use exactly these labels, one per line, writing "Not available" when the
paper gives no information for a section:
ABSTRACT:
INTRODUCTION:
METHODOLOGY:
FINDINGS:
LIMITATIONS:
FUTURE_WORK:

Title: %s
Content: %s`, p.Title, research.ClampContent(content))
}

func insightsPrompt(p *research.Paper, content string) string {
	return fmt.Sprintf(`List 3 to 5 distinct insights from the following paper.
For each insight output exactly these fields:
CONTENT: <one or two sentences>
IMPORTANCE: <why it matters>
TYPE: <one of key_finding, methodology, limitation, future_work>
CONFIDENCE: <number between 0.6 and 0.9>

Title: %s
Content: %s`, p.Title, research.ClampContent(content))
}

// parseSections turns the labeled six-section response into notes,
// dropping sections marked "Not available".
func (w *Workflow) parseSections(p *research.Paper, text string) []research.Note {
	var notes []research.Note
	fields := splitLabeled(text, sectionLabelSet())

	for _, sl := range sectionLabels {
		body, ok := fields[sl.label]
		if !ok {
			continue
		}
		body = strings.TrimSpace(body)
		if body == "" || strings.EqualFold(body, "not available") {
			w.metrics.DroppedField("sections", "not_available")
			continue
		}
		notes = append(notes, research.Note{
			ID:         fmt.Sprintf("%s_note_%d", p.ID, len(notes)),
			PaperID:    p.ID,
			Content:    research.ClampContent(body),
			Type:       sl.noteType,
			Confidence: sectionConfidence,
			CreatedAt:  time.Now(),
		})
	}
	return notes
}

// parseInsights turns the CONTENT/IMPORTANCE/TYPE/CONFIDENCE blocks into
// notes, capped at maxInsightsPerPaper.
func (w *Workflow) parseInsights(p *research.Paper, text string, idOffset int) []research.Note {
	var notes []research.Note
	for _, block := range strings.Split(text, "CONTENT:") {
		if len(notes) >= maxInsightsPerPaper {
			break
		}
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		fields := splitLabeled("CONTENT:"+block, map[string]bool{
			"CONTENT:": true, "IMPORTANCE:": true, "TYPE:": true, "CONFIDENCE:": true,
		})

		content := strings.TrimSpace(fields["CONTENT:"])
		if len(content) < minInsightContent {
			w.metrics.DroppedField("insights", "short_content")
			continue
		}
		if importance := strings.TrimSpace(fields["IMPORTANCE:"]); importance != "" {
			content = content + " Importance: " + importance
		}

		notes = append(notes, research.Note{
			ID:         fmt.Sprintf("%s_note_%d", p.ID, idOffset+len(notes)),
			PaperID:    p.ID,
			Content:    research.ClampContent(content),
			Type:       insightType(fields["TYPE:"]),
			Confidence: insightConfidence(fields["CONFIDENCE:"]),
			CreatedAt:  time.Now(),
		})
	}
	return notes
}

func insightType(raw string) research.NoteType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "methodology":
		return research.NoteMethodology
	case "limitation", "limitations":
		return research.NoteLimitations
	case "future_work":
		return research.NoteFutureWork
	default:
		return research.NoteKeyFinding
	}
}

func insightConfidence(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return minInsightConfidence
	}
	if v < minInsightConfidence {
		return minInsightConfidence
	}
	if v > maxInsightConfidence {
		return maxInsightConfidence
	}
	return v
}

func sectionLabelSet() map[string]bool {
	set := make(map[string]bool, len(sectionLabels))
	for _, sl := range sectionLabels {
		set[sl.label] = true
	}
	return set
}

// splitLabeled scans line-oriented LLM output and collects the text
// following each recognized label, up to the next label.
func splitLabeled(text string, labels map[string]bool) map[string]string {
	fields := make(map[string]string)
	current := ""
	var buf strings.Builder

	flush := func() {
		if current != "" {
			fields[current] = strings.TrimSpace(buf.String())
			buf.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		matched := false
		for label := range labels {
			if strings.HasPrefix(trimmed, label) {
				flush()
				current = label
				buf.WriteString(strings.TrimPrefix(trimmed, label))
				buf.WriteString(" ")
				matched = true
				break
			}
		}
		if !matched && current != "" {
			buf.WriteString(trimmed)
			buf.WriteString(" ")
		}
	}
	flush()
	return fields
}
