// Package grading implements the deterministic scoring engine. Grading is
// pure: no I/O, no shared state, safe to call from any number of goroutines.
package grading

import (
	"errors"
	"fmt"

	"github.com/quizforge/quizforge-api/internal/models"
)

// ErrUnsupportedQuestionType indicates the engine has no policy for the
// question's type. The engine fails closed rather than guessing a zero score,
// so the caller can route the item to manual review.
var ErrUnsupportedQuestionType = errors.New("unsupported question type")

// Classification values attached to graded answers. They drive feedback
// selection downstream without changing the numeric score.
const (
	ClassCorrect           = "correct"
	ClassIncorrect         = "incorrect"
	ClassPartial           = "partial"
	ClassNeedsImprovement  = "needs_improvement"
	ClassPerfect           = "perfect"
	ClassCorrectGoodReason = "correct_good_reason"
	ClassCorrectPoorReason = "correct_poor_reason"
	ClassSkipped           = "skipped"
)

// Answer carries the raw user input for one question.
type Answer struct {
	Text          string
	Justification string
}

// Result is the outcome of grading a single answer.
type Result struct {
	Score          float64
	Classification string
}

// Config tunes the partial-credit policies of the engine.
type Config struct {
	// PartialOverlapThreshold is the minimum fraction of canonical tokens a
	// short answer must cover to earn half credit instead of zero.
	PartialOverlapThreshold float64
}

// Engine scores answers against question definitions.
type Engine struct {
	partialThreshold float64
}

// NewEngine constructs a grading engine, applying defaults for zero values.
func NewEngine(cfg Config) *Engine {
	threshold := cfg.PartialOverlapThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}

	return &Engine{partialThreshold: threshold}
}

// Grade scores one answer against one question definition. The switch over
// question types is exhaustive; adding a type without a policy surfaces here
// as ErrUnsupportedQuestionType at runtime and as a visible gap in review.
func (e *Engine) Grade(question models.Question, answer Answer) (Result, error) {
	if isBlank(answer.Text) {
		return Result{Score: 0, Classification: ClassSkipped}, nil
	}

	switch question.Type {
	case models.QuestionTypeMultipleChoice:
		return e.gradeMultipleChoice(question, answer), nil
	case models.QuestionTypeShortAnswer:
		return e.gradeShortAnswer(question, answer), nil
	case models.QuestionTypeCodeCompletion:
		return e.gradeCodeCompletion(question, answer), nil
	case models.QuestionTypeDebug:
		return e.gradeDebug(question, answer), nil
	case models.QuestionTypeTrueFalse:
		return e.gradeTrueFalse(question, answer), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedQuestionType, question.Type)
	}
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
