// Package grammar holds the fixed structural contract generated output must
// satisfy, a validator that reports drift as quality defects, and a tolerant
// parser that never invents data to repair missing pieces.
package grammar

import (
	"regexp"
	"strconv"
	"strings"

	"advisor/internal/domain"
)

// Violation is one departure from the output grammar. Violations are logged
// as quality defects; they do not abort a request.
type Violation struct {
	Message string
}

var (
	headerRe     = regexp.MustCompile(`(?m)^## +(SUMMARY|QUESTION +(\d+) *: *(.*))[ \t]*$`)
	answerRe     = regexp.MustCompile(`(?m)^\*\*Answer\*\*: *(.*)$`)
	confidenceRe = regexp.MustCompile(`(?m)^[ \t]*Confidence: *(\S+)[ \t]*$`)
	quoteRe      = regexp.MustCompile(`(?s)^- *["“](.*?)["”]`)
	sourceRe     = regexp.MustCompile(`(?m)^[ \t]*(?:—|--) *(.*)$`)
)

const refusalPhrase = "No sufficient evidence found in the current resource library."

// Validate checks raw output against the grammar: optional single leading
// SUMMARY, numbered QUESTION sections each with an Answer line, and every
// confidence token exactly one of High, Medium, Low. A bare refusal is a
// valid response on its own.
func Validate(raw string) []Violation {
	var out []Violation
	headers := headerRe.FindAllStringSubmatchIndex(raw, -1)

	questions := 0
	summaries := 0
	for i, h := range headers {
		name := raw[h[2]:h[3]]
		if name == "SUMMARY" {
			summaries++
			if i != 0 {
				out = append(out, Violation{Message: "SUMMARY section must appear first"})
			}
		} else {
			questions++
		}
	}
	if summaries > 1 {
		out = append(out, Violation{Message: "SUMMARY section must appear at most once"})
	}
	if questions == 0 {
		if !strings.Contains(raw, refusalPhrase) {
			out = append(out, Violation{Message: "no QUESTION section found"})
		}
	}

	for i, h := range headers {
		name := raw[h[2]:h[3]]
		if name == "SUMMARY" {
			continue
		}
		body := sectionBody(raw, headers, i)
		if !answerRe.MatchString(body) {
			out = append(out, Violation{Message: "section " + strings.TrimSpace(name) + " has no **Answer** line"})
		}
	}

	for _, m := range confidenceRe.FindAllStringSubmatch(raw, -1) {
		switch m[1] {
		case "High", "Medium", "Low":
		default:
			out = append(out, Violation{Message: "invalid confidence token " + strconv.Quote(m[1])})
		}
	}
	return out
}

// Parse splits raw output into its sections by marker scanning. It tolerates
// minor formatting drift: anything it cannot locate stays empty.
func Parse(raw string) domain.StructuredResponse {
	resp := domain.StructuredResponse{Raw: raw}
	headers := headerRe.FindAllStringSubmatchIndex(raw, -1)
	if len(headers) == 0 {
		return resp
	}
	for i, h := range headers {
		body := sectionBody(raw, headers, i)
		name := raw[h[2]:h[3]]
		if name == "SUMMARY" {
			if resp.Summary == "" {
				resp.Summary = strings.TrimSpace(body)
			}
			continue
		}
		q := domain.QuestionSection{}
		if h[4] >= 0 {
			q.Number, _ = strconv.Atoi(raw[h[4]:h[5]])
		}
		if h[6] >= 0 {
			q.Title = strings.TrimSpace(raw[h[6]:h[7]])
		}
		if m := answerRe.FindStringSubmatchIndex(body); m != nil {
			tail := body[m[2]:]
			if ev := strings.Index(tail, "Evidence:"); ev >= 0 {
				tail = tail[:ev]
			}
			if b := strings.Index(tail, "\n- \""); b >= 0 {
				tail = tail[:b]
			}
			q.Answer = strings.TrimSpace(tail)
		}
		q.Evidence = parseEvidence(body)
		resp.Questions = append(resp.Questions, q)
	}
	return resp
}

// parseEvidence extracts the bullet list following the Evidence: marker.
func parseEvidence(body string) []domain.Citation {
	idx := strings.Index(body, "Evidence:")
	if idx < 0 {
		return nil
	}
	block := body[idx+len("Evidence:"):]

	var out []domain.Citation
	for _, bullet := range splitBullets(block) {
		c := domain.Citation{}
		if m := quoteRe.FindStringSubmatch(bullet); m != nil {
			c.Quote = strings.TrimSpace(m[1])
		}
		if m := sourceRe.FindStringSubmatch(bullet); m != nil {
			c.Source = strings.TrimSpace(m[1])
		}
		if m := confidenceRe.FindStringSubmatch(bullet); m != nil {
			c.Confidence = m[1]
		}
		if c.Quote == "" && c.Source == "" && c.Confidence == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// splitBullets cuts an evidence block into entries starting at lines that
// begin with `- `.
func splitBullets(block string) []string {
	lines := strings.Split(block, "\n")
	var bullets []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			bullets = append(bullets, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			flush()
			cur = append(cur, strings.TrimSpace(line))
			continue
		}
		if len(cur) > 0 {
			cur = append(cur, line)
		}
	}
	flush()
	return bullets
}

func sectionBody(raw string, headers [][]int, i int) string {
	start := headers[i][1]
	end := len(raw)
	if i+1 < len(headers) {
		end = headers[i+1][0]
	}
	return raw[start:end]
}
