package ai

import "context"

// FeedbackRequest carries the graded-answer context handed to the model.
type FeedbackRequest struct {
	Subject         string
	QuestionType    string
	QuestionPrompt  string
	CanonicalAnswer string
	UserAnswer      string
	Score           float64
	Classification  string
}

// Generator describes an external model capable of producing feedback text
// for a graded answer. Implementations must honour context cancellation.
type Generator interface {
	GenerateFeedback(ctx context.Context, request FeedbackRequest) (string, error)
}
