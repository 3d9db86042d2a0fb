package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormed = `## SUMMARY
Focus on talking to users before building anything.

## QUESTION 1: How do I validate my idea?
**Answer**: Talk to potential customers before writing code.

Evidence:
- "The only way to win is to learn faster than anyone else."
  — Book: The Lean Startup, Eric Ries, Ch.Chapter 1, P.12
  Confidence: High
- "Get out of the building and talk to real buyers."
  — Book: The Four Steps to the Epiphany, Steve Blank, Ch.Chapter 2, P.30
  Confidence: Medium

## QUESTION 2: When should I charge money?
**Answer**: As soon as someone gets value from the product.

Evidence:
- "Revenue is the strongest form of validation available to a founder."
  — Article: Pricing Early, Section: Introduction, URL: https://example.com/pricing
  Confidence: Low
`

func TestValidateWellFormed(t *testing.T) {
	assert.Empty(t, Validate(wellFormed))
}

func TestValidateRefusalIsValid(t *testing.T) {
	raw := "No sufficient evidence found in the current resource library."
	assert.Empty(t, Validate(raw))
}

func TestValidateMissingQuestions(t *testing.T) {
	violations := Validate("## SUMMARY\nJust a summary with no questions.")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "no QUESTION section")
}

func TestValidateSummaryMustBeFirst(t *testing.T) {
	raw := "## QUESTION 1: A?\n**Answer**: Yes.\n\n## SUMMARY\nLate summary.\n"
	violations := Validate(raw)
	found := false
	for _, v := range violations {
		if v.Message == "SUMMARY section must appear first" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateMissingAnswerLine(t *testing.T) {
	raw := "## QUESTION 1: A?\nNo answer marker here.\n"
	violations := Validate(raw)
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0].Message, "no **Answer** line")
}

func TestValidateBadConfidenceToken(t *testing.T) {
	raw := wellFormed + "\n  Confidence: Certain\n"
	violations := Validate(raw)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, `"Certain"`)
}

func TestParseWellFormed(t *testing.T) {
	resp := Parse(wellFormed)
	assert.Equal(t, "Focus on talking to users before building anything.", resp.Summary)
	require.Len(t, resp.Questions, 2)

	q1 := resp.Questions[0]
	assert.Equal(t, 1, q1.Number)
	assert.Equal(t, "How do I validate my idea?", q1.Title)
	assert.Equal(t, "Talk to potential customers before writing code.", q1.Answer)
	require.Len(t, q1.Evidence, 2)
	assert.Equal(t, "The only way to win is to learn faster than anyone else.", q1.Evidence[0].Quote)
	assert.Equal(t, "Book: The Lean Startup, Eric Ries, Ch.Chapter 1, P.12", q1.Evidence[0].Source)
	assert.Equal(t, "High", q1.Evidence[0].Confidence)
	assert.Equal(t, "Medium", q1.Evidence[1].Confidence)

	q2 := resp.Questions[1]
	assert.Equal(t, 2, q2.Number)
	assert.Equal(t, "As soon as someone gets value from the product.", q2.Answer)
	require.Len(t, q2.Evidence, 1)
	assert.Equal(t, "Low", q2.Evidence[0].Confidence)
}

func TestParseUnstructuredTextKeepsRaw(t *testing.T) {
	raw := "Completely free-form reply without any sections."
	resp := Parse(raw)
	assert.Equal(t, raw, resp.Raw)
	assert.Empty(t, resp.Summary)
	assert.Empty(t, resp.Questions)
}

func TestParseToleratesMissingEvidence(t *testing.T) {
	raw := "## QUESTION 1: A?\n**Answer**: Yes, absolutely.\n"
	resp := Parse(raw)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "Yes, absolutely.", resp.Questions[0].Answer)
	assert.Empty(t, resp.Questions[0].Evidence)
}
