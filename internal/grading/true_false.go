package grading

import (
	"strings"

	"github.com/quizforge/quizforge-api/internal/models"
)

// gradeTrueFalse scores the boolean match. When the question requires a
// justification, a correct answer is further classified by the quality of the
// reasoning so downstream feedback differs, without changing the score.
func (e *Engine) gradeTrueFalse(question models.Question, answer Answer) Result {
	given, givenOK := parseBool(answer.Text)
	expected, expectedOK := parseBool(question.CanonicalAnswer)

	if !givenOK || !expectedOK || given != expected {
		return Result{Score: 0, Classification: ClassIncorrect}
	}

	if !question.RequiresReason {
		return Result{Score: 1, Classification: ClassCorrect}
	}

	if justificationSound(answer.Justification, question) {
		return Result{Score: 1, Classification: ClassCorrectGoodReason}
	}

	return Result{Score: 1, Classification: ClassCorrectPoorReason}
}

func parseBool(value string) (bool, bool) {
	switch normalize(value) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// justificationSound checks the reasoning against the rubric keywords. With
// no rubric declared, any substantive justification counts as sound.
func justificationSound(justification string, question models.Question) bool {
	if isBlank(justification) {
		return false
	}

	keywords := decodeStringSlice(question.RubricKeywords)
	if len(keywords) == 0 {
		return len(strings.Fields(normalize(justification))) >= 3
	}

	lowered := strings.ToLower(justification)
	for _, keyword := range keywords {
		if strings.Contains(lowered, strings.ToLower(strings.TrimSpace(keyword))) {
			return true
		}
	}

	return false
}
