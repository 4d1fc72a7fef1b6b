package models

import "time"

// Submission is one graded student attempt. It is created once, mutated only
// through the state machine in the submission service, and never deleted.
type Submission struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      uint             `gorm:"not null;index" json:"user_id"`
	Subject     string           `gorm:"size:64;not null" json:"subject"`
	State       string           `gorm:"size:32;not null;index" json:"state"`
	TotalScore  float64          `json:"total_score"`
	MaxScore    float64          `json:"max_score"`
	// PendingItems counts items still awaiting enrichment. It is decremented
	// atomically with each item resolution; the worker that drives it to zero
	// owns the completion transition.
	PendingItems int64 `gorm:"not null;default:0" json:"-"`
	SubmittedAt time.Time        `json:"submitted_at"`
	CompletedAt *time.Time       `json:"completed_at"`
	Items       []SubmissionItem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Submission lifecycle states. Failed is reserved for conditions where the
// submission's own data is unprocessable; an external provider outage is
// absorbed by the template fallback and never fails a submission.
const (
	SubmissionStatePending      = "pending"
	SubmissionStateScored       = "scored"
	SubmissionStateAIProcessing = "ai_processing"
	SubmissionStateCompleted    = "completed"
	SubmissionStateFailed       = "failed"
)

// IsTerminal reports whether the submission has reached a final state.
func (s Submission) IsTerminal() bool {
	return s.State == SubmissionStateCompleted || s.State == SubmissionStateFailed
}

// SubmissionItem is one graded answer within a submission.
type SubmissionItem struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SubmissionID   uint       `gorm:"not null;index" json:"submission_id"`
	QuestionID     uint       `gorm:"not null" json:"question_id"`
	RawAnswer      string     `gorm:"type:text" json:"raw_answer"`
	Skipped        bool       `json:"skipped"`
	Score          float64    `json:"score"`
	MaxScore       float64    `json:"max_score"`
	Classification string     `gorm:"size:32" json:"classification"`
	FeedbackText   string     `gorm:"type:text" json:"feedback_text"`
	FeedbackSource string     `gorm:"size:16" json:"feedback_source"`
	EnrichState    string     `gorm:"size:16;not null;index" json:"enrichment_state"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Question       Question   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"question"`
}

// Item enrichment states. Resolved covers every terminal-success outcome:
// cache hit, model success, or template fallback.
const (
	EnrichStateNone       = "none"
	EnrichStatePending    = "pending"
	EnrichStateResolved   = "resolved"
	EnrichStateUnscorable = "unscorable"
)

// Feedback sources recorded on resolved items.
const (
	FeedbackSourceCache    = "cache"
	FeedbackSourceModel    = "model"
	FeedbackSourceTemplate = "template"
)

// IsResolved reports whether the item needs no further enrichment work.
func (i SubmissionItem) IsResolved() bool {
	return i.EnrichState == EnrichStateResolved || i.EnrichState == EnrichStateUnscorable || i.EnrichState == EnrichStateNone
}
