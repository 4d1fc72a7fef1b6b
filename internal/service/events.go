package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizforge/quizforge-api/internal/models"
)

// submissionCompletedEvent is the payload fanned out when a submission
// reaches its terminal state. Callers polling GetResult can switch to this
// channel instead.
type submissionCompletedEvent struct {
	Source       string     `json:"source"`
	SubmissionID uint       `json:"submission_id"`
	UserID       uint       `json:"user_id"`
	State        string     `json:"state"`
	TotalScore   float64    `json:"total_score"`
	MaxScore     float64    `json:"max_score"`
	CompletedAt  *time.Time `json:"completed_at"`
	SentAt       time.Time  `json:"sent_at"`
}

// EventPublisher fans submission completion events out over Redis pub/sub
// and NATS. Either backend may be absent; publishing is best effort and
// never blocks or fails the completing worker.
type EventPublisher struct {
	redis       *redis.Client
	redisChan   string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string
}

// NewEventPublisher constructs a publisher over the given backends.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":submissions:completed"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".submissions.completed"
	}

	return &EventPublisher{
		redis:       redisClient,
		redisChan:   channel,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
		nodeID:      uuid.NewString(),
	}
}

// PublishCompleted emits the completion event for the submission.
func (p *EventPublisher) PublishCompleted(ctx context.Context, submission models.Submission) {
	event := submissionCompletedEvent{
		Source:       p.nodeID,
		SubmissionID: submission.ID,
		UserID:       submission.UserID,
		State:        submission.State,
		TotalScore:   submission.TotalScore,
		MaxScore:     submission.MaxScore,
		CompletedAt:  submission.CompletedAt,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode completion event")
		return
	}

	if p.redis != nil && p.redisChan != "" {
		if err := p.redis.Publish(ctx, p.redisChan, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to publish completion event to redis")
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn().Err(err).Msg("failed to publish completion event to nats")
		}
	}
}
