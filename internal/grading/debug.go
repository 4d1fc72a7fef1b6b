package grading

import (
	"strings"

	"github.com/quizforge/quizforge-api/internal/models"
)

// gradeDebug checks two things: that the seeded defect was identified and
// that the proposed fix is consistent with removing it. Identifying the
// defect without a working fix earns half credit.
func (e *Engine) gradeDebug(question models.Question, answer Answer) Result {
	defectFound := mentionsHalf(answer.Text, decodeStringSlice(question.DefectKeywords))
	fixConsistent := mentionsHalf(answer.Text, decodeStringSlice(question.FixKeywords))

	switch {
	case defectFound && fixConsistent:
		return Result{Score: 1, Classification: ClassCorrect}
	case defectFound:
		return Result{Score: 0.5, Classification: ClassPartial}
	default:
		return Result{Score: 0, Classification: ClassIncorrect}
	}
}

// mentionsHalf reports whether the answer covers at least half of the rubric
// keywords. A single-keyword rubric degenerates to a simple containment check.
func mentionsHalf(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}

	lowered := strings.ToLower(text)
	matched := 0
	for _, keyword := range keywords {
		if strings.Contains(lowered, strings.ToLower(strings.TrimSpace(keyword))) {
			matched++
		}
	}

	return float64(matched)/float64(len(keywords)) >= 0.5
}
