package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/quizforge/quizforge-api/internal/models"
)

func jsonColumn(raw string) datatypes.JSON {
	return datatypes.JSON([]byte(raw))
}

func TestGradeMultipleChoice(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{
		Type:            models.QuestionTypeMultipleChoice,
		CanonicalAnswer: "Paris",
		Options:         jsonColumn(`["London","Paris","Berlin"]`),
	}

	result, err := engine.Grade(question, Answer{Text: "  paris "})
	require.NoError(t, err)
	require.Equal(t, 1.0, result.Score)
	require.Equal(t, ClassCorrect, result.Classification)

	result, err = engine.Grade(question, Answer{Text: "Berlin"})
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Score)
	require.Equal(t, ClassIncorrect, result.Classification)
}

func TestGradeShortAnswerTokenSet(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{
		Type:            models.QuestionTypeShortAnswer,
		CanonicalAnswer: "the cat sat",
	}

	// Reordered but complete answer earns full credit.
	result, err := engine.Grade(question, Answer{Text: "sat the cat"})
	require.NoError(t, err)
	require.Equal(t, 1.0, result.Score)
	require.Equal(t, ClassCorrect, result.Classification)

	// Partial overlap above the threshold earns half credit.
	result, err = engine.Grade(question, Answer{Text: "the cat"})
	require.NoError(t, err)
	require.Equal(t, 0.5, result.Score)
	require.Equal(t, ClassPartial, result.Classification)

	// No overlap earns nothing.
	result, err = engine.Grade(question, Answer{Text: "dog ran"})
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Score)
	require.Equal(t, ClassIncorrect, result.Classification)
}

func TestGradeShortAnswerSynonyms(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{
		Type:            models.QuestionTypeShortAnswer,
		CanonicalAnswer: "evaporation causes rain",
		SynonymMap:      jsonColumn(`{"causes":["produces","creates"],"rain":["rainfall"]}`),
	}

	result, err := engine.Grade(question, Answer{Text: "evaporation produces rainfall"})
	require.NoError(t, err)
	require.Equal(t, 1.0, result.Score)
}

func TestGradeShortAnswerPunctuationAndCase(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{
		Type:            models.QuestionTypeShortAnswer,
		CanonicalAnswer: "Newton's first law",
	}

	result, err := engine.Grade(question, Answer{Text: "newtons FIRST law!"})
	require.NoError(t, err)
	require.Equal(t, 1.0, result.Score)
}

func TestGradeCodeCompletionComposite(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{
		Type:           models.QuestionTypeCodeCompletion,
		RubricKeywords: jsonColumn(`["for","sum"]`),
		ExpectedOutput: "return sum",
	}

	// Valid syntax, both keywords, expected output present.
	perfect, err := engine.Grade(question, Answer{Text: "for i in xs { sum += i }\nreturn sum"})
	require.NoError(t, err)
	require.InDelta(t, 1.0, perfect.Score, 1e-9)
	require.Equal(t, ClassPerfect, perfect.Classification)

	// Valid syntax, one of two keywords, no logic match: 0.4 + 0.15 = 0.55.
	partial, err := engine.Grade(question, Answer{Text: "total := sum(xs)"})
	require.NoError(t, err)
	require.InDelta(t, 0.55, partial.Score, 1e-9)
	require.Equal(t, ClassPartial, partial.Classification)

	// Unbalanced braces and no keywords.
	poor, err := engine.Grade(question, Answer{Text: "while (x {"})
	require.NoError(t, err)
	require.Less(t, poor.Score, 0.4)
	require.Equal(t, ClassNeedsImprovement, poor.Classification)
}

func TestGradeCodeCompletionDeterministic(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{
		Type:           models.QuestionTypeCodeCompletion,
		RubricKeywords: jsonColumn(`["append"]`),
	}
	answer := Answer{Text: "items = append(items, x)"}

	first, err := engine.Grade(question, answer)
	require.NoError(t, err)
	second, err := engine.Grade(question, answer)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGradeDebug(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{
		Type:           models.QuestionTypeDebug,
		DefectKeywords: jsonColumn(`["off-by-one","loop bound"]`),
		FixKeywords:    jsonColumn(`["i < len"]`),
	}

	full, err := engine.Grade(question, Answer{Text: "The loop bound has an off-by-one; change the condition to i < len(items)."})
	require.NoError(t, err)
	require.Equal(t, 1.0, full.Score)

	half, err := engine.Grade(question, Answer{Text: "There is an off-by-one in the loop bound."})
	require.NoError(t, err)
	require.Equal(t, 0.5, half.Score)
	require.Equal(t, ClassPartial, half.Classification)

	none, err := engine.Grade(question, Answer{Text: "The variable name is misleading."})
	require.NoError(t, err)
	require.Equal(t, 0.0, none.Score)
}

func TestGradeTrueFalseJustification(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{
		Type:            models.QuestionTypeTrueFalse,
		CanonicalAnswer: "true",
		RequiresReason:  true,
		RubricKeywords:  jsonColumn(`["gravity"]`),
	}

	good, err := engine.Grade(question, Answer{Text: "true", Justification: "objects fall because of gravity"})
	require.NoError(t, err)
	require.Equal(t, 1.0, good.Score)
	require.Equal(t, ClassCorrectGoodReason, good.Classification)

	poor, err := engine.Grade(question, Answer{Text: "yes", Justification: "because"})
	require.NoError(t, err)
	require.Equal(t, 1.0, poor.Score)
	require.Equal(t, ClassCorrectPoorReason, poor.Classification)

	wrong, err := engine.Grade(question, Answer{Text: "false", Justification: "objects fall because of gravity"})
	require.NoError(t, err)
	require.Equal(t, 0.0, wrong.Score)
	require.Equal(t, ClassIncorrect, wrong.Classification)
}

func TestGradeUnknownTypeFailsClosed(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{Type: "essay", CanonicalAnswer: "anything"}

	_, err := engine.Grade(question, Answer{Text: "a long essay"})
	require.ErrorIs(t, err, ErrUnsupportedQuestionType)
}

func TestGradeSkippedAnswer(t *testing.T) {
	engine := NewEngine(Config{})
	question := models.Question{Type: models.QuestionTypeMultipleChoice, CanonicalAnswer: "Paris"}

	result, err := engine.Grade(question, Answer{Text: "   "})
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Score)
	require.Equal(t, ClassSkipped, result.Classification)
}
