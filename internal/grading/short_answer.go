package grading

import "github.com/quizforge/quizforge-api/internal/models"

// gradeShortAnswer compares normalized answers as unordered token sets, so a
// complete answer in a different word order still earns full credit. An
// incomplete answer covering at least the configured fraction of the
// canonical tokens earns half credit.
func (e *Engine) gradeShortAnswer(question models.Question, answer Answer) Result {
	synonyms := decodeSynonymMap(question.SynonymMap)

	given := applySynonyms(tokenSet(answer.Text), synonyms)
	canonical := applySynonyms(tokenSet(question.CanonicalAnswer), synonyms)

	if len(canonical) == 0 {
		return Result{Score: 0, Classification: ClassIncorrect}
	}

	if setsEqual(given, canonical) {
		return Result{Score: 1, Classification: ClassCorrect}
	}

	overlap := intersectionSize(given, canonical)
	if overlap == 0 {
		return Result{Score: 0, Classification: ClassIncorrect}
	}

	coverage := float64(overlap) / float64(len(canonical))
	if coverage >= e.partialThreshold {
		return Result{Score: 0.5, Classification: ClassPartial}
	}

	return Result{Score: 0, Classification: ClassIncorrect}
}
