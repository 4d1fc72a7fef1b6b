package service

import (
	"github.com/quizforge/quizforge-api/internal/grading"
	"github.com/quizforge/quizforge-api/internal/models"
)

// templateFeedback selects a deterministic canned message for a graded item.
// This is the floor of the enrichment path: it always succeeds and never
// touches the network, so the "every graded item has feedback" contract holds
// through any provider outage.
func templateFeedback(questionType models.QuestionType, classification string) string {
	if byClass, ok := templatesByType[questionType]; ok {
		if message, ok := byClass[classification]; ok {
			return message
		}
	}

	if message, ok := genericTemplates[classification]; ok {
		return message
	}

	if byClass, ok := templatesByType[questionType]; ok {
		if message, ok := byClass[grading.ClassIncorrect]; ok {
			return message
		}
	}

	return genericTemplates[grading.ClassIncorrect]
}

var templatesByType = map[models.QuestionType]map[string]string{
	models.QuestionTypeMultipleChoice: {
		grading.ClassCorrect:   "Correct. You picked the right option — review the distractors to understand why they are wrong.",
		grading.ClassIncorrect: "Not quite. Re-read the question and compare each option against the key concept before choosing.",
	},
	models.QuestionTypeShortAnswer: {
		grading.ClassCorrect:   "Correct. Your answer covers all the expected points.",
		grading.ClassPartial:   "Partially correct. You covered some of the expected points — revisit the topic and look for what is missing.",
		grading.ClassIncorrect: "Incorrect. Your answer does not match the expected points; revisit the material for this topic.",
	},
	models.QuestionTypeCodeCompletion: {
		grading.ClassPerfect:          "Well done. Your code is structurally sound and matches the expected behaviour.",
		grading.ClassPartial:          "Your code is on the right track but misses part of the expected behaviour. Trace through it with a sample input.",
		grading.ClassNeedsImprovement: "Your code has structural problems. Start from the required constructs in the prompt and check your syntax.",
		grading.ClassIncorrect:        "Your code does not solve the task yet. Break the problem into smaller steps and test each one.",
	},
	models.QuestionTypeDebug: {
		grading.ClassCorrect:   "Correct. You found the defect and your fix removes it.",
		grading.ClassPartial:   "You identified the defect, but the proposed fix does not fully remove it. Reason about what the corrected code should do.",
		grading.ClassIncorrect: "The seeded defect was not identified. Step through the code line by line and compare actual versus expected behaviour.",
	},
	models.QuestionTypeTrueFalse: {
		grading.ClassCorrect:           "Correct.",
		grading.ClassCorrectGoodReason: "Correct, and your justification captures the key idea.",
		grading.ClassCorrectPoorReason: "Your answer is correct, but the justification misses the key idea. Revisit why the statement holds.",
		grading.ClassIncorrect:         "Incorrect. Revisit the statement and the underlying concept it tests.",
	},
}

var genericTemplates = map[string]string{
	grading.ClassCorrect:   "Correct. Good work.",
	grading.ClassPartial:   "Partially correct. Review this topic to close the gap.",
	grading.ClassSkipped:   "This question was skipped. Attempt it after reviewing the topic.",
	grading.ClassIncorrect: "Incorrect. Review this topic and try a similar question again.",
}
