package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionType enumerates the grading policies supported by the engine.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeCodeCompletion QuestionType = "code_completion"
	QuestionTypeDebug          QuestionType = "debug"
	QuestionTypeTrueFalse      QuestionType = "true_false"
)

// Question is a bank entry graded by the engine. Questions are immutable for
// the duration of a grading pass; RubricVersion is bumped whenever the grading
// policy for the question changes, which implicitly invalidates cached feedback.
type Question struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Subject         string         `gorm:"size:64;not null;index" json:"subject"`
	Topic           string         `gorm:"size:128" json:"topic"`
	Type            QuestionType   `gorm:"size:32;not null" json:"type"`
	Prompt          string         `gorm:"type:text;not null" json:"prompt"`
	CanonicalAnswer string         `gorm:"type:text;not null" json:"canonical_answer"`
	Options         datatypes.JSON `gorm:"type:jsonb" json:"options"`          // []string, multiple choice only
	RubricKeywords  datatypes.JSON `gorm:"type:jsonb" json:"rubric_keywords"`  // []string
	SynonymMap      datatypes.JSON `gorm:"type:jsonb" json:"synonym_map"`      // map[string][]string
	ExpectedOutput  string         `gorm:"type:text" json:"expected_output"`   // code completion logic check
	DefectKeywords  datatypes.JSON `gorm:"type:jsonb" json:"defect_keywords"`  // []string, debug only
	FixKeywords     datatypes.JSON `gorm:"type:jsonb" json:"fix_keywords"`     // []string, debug only
	RequiresReason  bool           `json:"requires_reason"`                    // true/false justification
	Difficulty      string         `gorm:"size:32" json:"difficulty"`
	RubricVersion   int            `gorm:"not null;default:1" json:"rubric_version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
