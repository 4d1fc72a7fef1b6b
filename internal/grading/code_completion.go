package grading

import (
	"strings"

	"github.com/quizforge/quizforge-api/internal/models"
)

// Weight split for the code-completion composite score.
const (
	codeSyntaxWeight  = 0.4
	codeKeywordWeight = 0.3
	codeLogicWeight   = 0.3
)

// gradeCodeCompletion scores a code answer as a weighted composite: syntax
// validity (0.4), presence of required constructs (0.3, linear in the
// fraction matched), and an expected-output pattern check (0.3). The
// composite is clamped to [0,1] and bucketed for feedback selection.
func (e *Engine) gradeCodeCompletion(question models.Question, answer Answer) Result {
	score := 0.0

	if syntaxPlausible(answer.Text) {
		score += codeSyntaxWeight
	}

	keywords := decodeStringSlice(question.RubricKeywords)
	if len(keywords) > 0 {
		score += codeKeywordWeight * keywordCoverage(answer.Text, keywords)
	} else {
		// No required constructs declared; the keyword slice of the
		// composite cannot discriminate, so it is granted.
		score += codeKeywordWeight
	}

	if logicMatches(question, answer.Text) {
		score += codeLogicWeight
	}

	score = clampScore(score)

	return Result{Score: score, Classification: codeBucket(score)}
}

// syntaxPlausible is a structural sanity check, not a compiler: paired
// brackets and terminated quotes catch the common truncated-snippet case.
func syntaxPlausible(source string) bool {
	if isBlank(source) {
		return false
	}

	var stack []rune
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	inString := false
	var quote rune

	for _, r := range source {
		if inString {
			if r == quote {
				inString = false
			}
			continue
		}

		switch r {
		case '"', '\'', '`':
			inString = true
			quote = r
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}

	return len(stack) == 0 && !inString
}

func keywordCoverage(source string, keywords []string) float64 {
	lowered := strings.ToLower(source)

	matched := 0
	for _, keyword := range keywords {
		if strings.Contains(lowered, strings.ToLower(strings.TrimSpace(keyword))) {
			matched++
		}
	}

	return float64(matched) / float64(len(keywords))
}

// logicMatches checks the behavioural slice of the rubric: either the
// expected output pattern appears in the answer, or the answer normalizes to
// the canonical solution.
func logicMatches(question models.Question, source string) bool {
	if question.ExpectedOutput != "" {
		return strings.Contains(normalize(source), normalize(question.ExpectedOutput))
	}

	if question.CanonicalAnswer != "" {
		return normalize(source) == normalize(question.CanonicalAnswer)
	}

	return false
}

func codeBucket(score float64) string {
	switch {
	case score < 0.4:
		return ClassNeedsImprovement
	case score < 0.8:
		return ClassPartial
	default:
		return ClassPerfect
	}
}
