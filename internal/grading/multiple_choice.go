package grading

import "github.com/quizforge/quizforge-api/internal/models"

// gradeMultipleChoice awards full credit for an exact normalized match of the
// selected option against the canonical one. No partial credit.
func (e *Engine) gradeMultipleChoice(question models.Question, answer Answer) Result {
	if normalize(answer.Text) == normalize(question.CanonicalAnswer) {
		return Result{Score: 1, Classification: ClassCorrect}
	}

	return Result{Score: 0, Classification: ClassIncorrect}
}
