package dto

import (
	"time"

	"github.com/quizforge/quizforge-api/internal/models"
)

// AnswerInput is one raw answer in a submit request. Answer may be empty when
// the student skipped the question.
type AnswerInput struct {
	QuestionID    uint   `json:"question_id" validate:"required,gt=0"`
	Answer        string `json:"answer"`
	Justification string `json:"justification"`
}

// SubmitRequest is the payload for creating a submission.
type SubmitRequest struct {
	Subject string        `json:"subject" validate:"required,min=1,max=64"`
	Answers []AnswerInput `json:"answers" validate:"required,min=1,max=100,dive"`
}

// ItemResult is the per-question slice of a submission result. FeedbackText
// is null while the item is still waiting on enrichment.
type ItemResult struct {
	ItemID          uint       `json:"item_id"`
	QuestionID      uint       `json:"question_id"`
	Topic           string     `json:"topic"`
	Score           float64    `json:"score"`
	MaxScore        float64    `json:"max_score"`
	Classification  string     `json:"classification"`
	FeedbackText    *string    `json:"feedback_text"`
	FeedbackSource  string     `json:"feedback_source,omitempty"`
	EnrichmentState string     `json:"enrichment_state"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// TopicScore aggregates scores for one topic.
type TopicScore struct {
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
}

// SubmissionResult is returned to API clients for both the synchronous
// submit response and later polling.
type SubmissionResult struct {
	SubmissionID   uint                  `json:"submission_id"`
	UserID         uint                  `json:"user_id"`
	Subject        string                `json:"subject"`
	State          string                `json:"state"`
	TotalScore     float64               `json:"total_score"`
	MaxScore       float64               `json:"max_score"`
	SubmittedAt    time.Time             `json:"submitted_at"`
	CompletedAt    *time.Time            `json:"completed_at"`
	Items          []ItemResult          `json:"items"`
	TopicBreakdown map[string]TopicScore `json:"topic_breakdown"`
}

// NewSubmissionResult converts a Submission model into a DTO, computing the
// per-topic breakdown from the item rows.
func NewSubmissionResult(model models.Submission) SubmissionResult {
	result := SubmissionResult{
		SubmissionID:   model.ID,
		UserID:         model.UserID,
		Subject:        model.Subject,
		State:          model.State,
		TotalScore:     model.TotalScore,
		MaxScore:       model.MaxScore,
		SubmittedAt:    model.SubmittedAt,
		CompletedAt:    model.CompletedAt,
		Items:          make([]ItemResult, 0, len(model.Items)),
		TopicBreakdown: make(map[string]TopicScore),
	}

	for _, item := range model.Items {
		entry := ItemResult{
			ItemID:          item.ID,
			QuestionID:      item.QuestionID,
			Topic:           item.Question.Topic,
			Score:           item.Score,
			MaxScore:        item.MaxScore,
			Classification:  item.Classification,
			FeedbackSource:  item.FeedbackSource,
			EnrichmentState: item.EnrichState,
			ResolvedAt:      item.ResolvedAt,
		}

		if item.FeedbackText != "" {
			feedback := item.FeedbackText
			entry.FeedbackText = &feedback
		}

		result.Items = append(result.Items, entry)

		topic := item.Question.Topic
		if topic == "" {
			topic = model.Subject
		}
		aggregate := result.TopicBreakdown[topic]
		aggregate.Score += item.Score
		aggregate.MaxScore += item.MaxScore
		result.TopicBreakdown[topic] = aggregate
	}

	return result
}

// NewSubmissionResultSlice converts submission models into DTOs.
func NewSubmissionResultSlice(submissions []models.Submission) []SubmissionResult {
	results := make([]SubmissionResult, 0, len(submissions))
	for _, submission := range submissions {
		results = append(results, NewSubmissionResult(submission))
	}

	return results
}
