package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/internal/dto"
	"github.com/quizforge/quizforge-api/internal/grading"
	"github.com/quizforge/quizforge-api/internal/models"
	"github.com/quizforge/quizforge-api/internal/repository"
	"github.com/quizforge/quizforge-api/internal/worker"
)

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionForbidden indicates the requester is neither the owner nor an
// authorized viewer of the submission.
var ErrSubmissionForbidden = errors.New("forbidden")

// ErrQuestionNotFound indicates a submitted answer references a question that
// does not resolve.
var ErrQuestionNotFound = errors.New("question not found")

// ErrInvalidAnswerPayload indicates the request payload is malformed and was
// rejected before any grading began.
var ErrInvalidAnswerPayload = errors.New("invalid answer payload")

const storageWriteAttempts = 3

// Enricher produces feedback for a graded item. Satisfied by the
// FeedbackOrchestrator; faked in tests.
type Enricher interface {
	Enrich(ctx context.Context, userID uint, item models.SubmissionItem, question models.Question) (string, string)
}

// TaskQueue accepts enrichment tasks. Satisfied by the worker pool.
type TaskQueue interface {
	Enqueue(task worker.Task) error
}

// CompletionPublisher is notified when a submission reaches its terminal
// state, so surrounding layers can push instead of poll.
type CompletionPublisher interface {
	PublishCompleted(ctx context.Context, submission models.Submission)
}

// SubmissionServiceConfig tunes the grading workflow.
type SubmissionServiceConfig struct {
	// EnrichmentThreshold is the score below which an item is queued for
	// AI feedback. Defaults to full credit: anything imperfect is enriched.
	EnrichmentThreshold float64
}

// SubmissionService owns the submission lifecycle: synchronous grading,
// state transitions, enrichment dispatch, and result retrieval.
type SubmissionService interface {
	Submit(ctx context.Context, userID uint, payload dto.SubmitRequest) (dto.SubmissionResult, error)
	GetResult(ctx context.Context, submissionID, requesterID uint) (dto.SubmissionResult, error)
	List(ctx context.Context, userID uint, limit int) ([]dto.SubmissionResult, error)
	Resume(ctx context.Context) error
	worker.Handler
}

type submissionService struct {
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	engine      *grading.Engine
	enricher    Enricher
	queue       TaskQueue
	publisher   CompletionPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	threshold   float64
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	questionRepo repository.QuestionRepository,
	engine *grading.Engine,
	enricher Enricher,
	queue TaskQueue,
	publisher CompletionPublisher,
	validate *validator.Validate,
	cfg SubmissionServiceConfig,
	logger zerolog.Logger,
) SubmissionService {
	threshold := cfg.EnrichmentThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 1
	}

	return &submissionService{
		submissions: submissionRepo,
		questions:   questionRepo,
		engine:      engine,
		enricher:    enricher,
		queue:       queue,
		publisher:   publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		threshold:   threshold,
		now:         time.Now,
	}
}

// Submit grades all answers synchronously, persists the submission, and
// queues imperfect items for enrichment. It returns as soon as grading is
// done; it never waits on the external provider.
func (s *submissionService) Submit(ctx context.Context, userID uint, payload dto.SubmitRequest) (dto.SubmissionResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResult{}, fmt.Errorf("%w: %s", ErrInvalidAnswerPayload, err.Error())
	}

	ids := make([]uint, 0, len(payload.Answers))
	for _, answer := range payload.Answers {
		ids = append(ids, answer.QuestionID)
	}

	questions, err := s.questions.GetByIDs(ctx, ids)
	if err != nil {
		return dto.SubmissionResult{}, err
	}

	submission := models.Submission{
		UserID:      userID,
		Subject:     payload.Subject,
		State:       models.SubmissionStatePending,
		SubmittedAt: s.now().UTC(),
	}

	for _, answer := range payload.Answers {
		question, ok := questions[answer.QuestionID]
		if !ok {
			return dto.SubmissionResult{}, fmt.Errorf("%w: id %d", ErrQuestionNotFound, answer.QuestionID)
		}

		item := s.gradeItem(question, answer)
		submission.TotalScore += item.Score
		submission.MaxScore += item.MaxScore
		if item.EnrichState == models.EnrichStatePending {
			submission.PendingItems++
		}
		submission.Items = append(submission.Items, item)
	}

	if err := s.createWithRetry(ctx, &submission); err != nil {
		return dto.SubmissionResult{}, fmt.Errorf("persist submission: %w", err)
	}

	if _, err := s.submissions.TransitionState(ctx, submission.ID, []string{models.SubmissionStatePending}, models.SubmissionStateScored, nil); err != nil {
		return dto.SubmissionResult{}, err
	}

	s.dispatchEnrichment(ctx, submission, questions)

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResult{}, err
	}

	s.logger.Info().
		Uint("submission_id", created.ID).
		Uint("user_id", userID).
		Float64("total_score", created.TotalScore).
		Str("state", created.State).
		Msg("submission graded")

	return dto.NewSubmissionResult(created), nil
}

// gradeItem runs the pure engine for one answer and shapes the item row. An
// unsupported question type marks the item unscorable for manual review
// without failing the submission or its siblings.
func (s *submissionService) gradeItem(question models.Question, answer dto.AnswerInput) models.SubmissionItem {
	item := models.SubmissionItem{
		QuestionID: question.ID,
		RawAnswer:  answer.Answer,
		MaxScore:   1,
	}

	result, err := s.engine.Grade(question, grading.Answer{Text: answer.Answer, Justification: answer.Justification})
	if err != nil {
		if errors.Is(err, grading.ErrUnsupportedQuestionType) {
			s.logger.Warn().Uint("question_id", question.ID).Str("type", string(question.Type)).Msg("question flagged for manual review")
			item.MaxScore = 0
			item.Classification = "unscorable"
			item.EnrichState = models.EnrichStateUnscorable
			return item
		}

		// Grading is pure; any other error is a programming bug. Treat the
		// item as unscorable rather than failing the sibling items.
		s.logger.Error().Err(err).Uint("question_id", question.ID).Msg("unexpected grading failure")
		item.MaxScore = 0
		item.Classification = "unscorable"
		item.EnrichState = models.EnrichStateUnscorable
		return item
	}

	item.Score = result.Score
	item.Classification = result.Classification

	switch {
	case result.Classification == grading.ClassSkipped:
		// A skipped answer has nothing for the model to review; the template
		// resolves it inline.
		item.Skipped = true
		item.FeedbackText = templateFeedback(question.Type, result.Classification)
		item.FeedbackSource = models.FeedbackSourceTemplate
		item.EnrichState = models.EnrichStateResolved
		now := s.now().UTC()
		item.ResolvedAt = &now
	case result.Score < s.threshold:
		item.EnrichState = models.EnrichStatePending
	default:
		item.EnrichState = models.EnrichStateNone
	}

	return item
}

// dispatchEnrichment moves the submission past scored: either straight to
// completed when nothing needs enrichment, or to ai_processing with one task
// queued per pending item.
func (s *submissionService) dispatchEnrichment(ctx context.Context, submission models.Submission, questions map[uint]models.Question) {
	pending := make([]models.SubmissionItem, 0, len(submission.Items))
	for _, item := range submission.Items {
		if item.EnrichState == models.EnrichStatePending {
			pending = append(pending, item)
		}
	}

	if len(pending) == 0 {
		s.completeSubmission(ctx, submission.ID, []string{models.SubmissionStateScored})
		return
	}

	if _, err := s.submissions.TransitionState(ctx, submission.ID, []string{models.SubmissionStateScored}, models.SubmissionStateAIProcessing, nil); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to enter ai_processing")
		return
	}

	remaining := int64(len(pending))
	for _, item := range pending {
		err := s.queue.Enqueue(worker.Task{
			SubmissionID: submission.ID,
			ItemID:       item.ID,
			UserID:       submission.UserID,
		})
		if err == nil {
			continue
		}

		// Queue saturated: the item still gets feedback, just the cheap
		// kind, and the caller is never blocked.
		s.logger.Warn().Err(err).Uint("item_id", item.ID).Msg("enrichment queue rejected task, resolving with template")
		question := questions[item.QuestionID]
		left, resolveErr := s.submissions.ResolveItem(ctx, item.ID, templateFeedback(question.Type, item.Classification), models.FeedbackSourceTemplate)
		if resolveErr != nil {
			s.logger.Error().Err(resolveErr).Uint("item_id", item.ID).Msg("failed to resolve item inline")
			continue
		}
		remaining = left
	}

	if remaining == 0 {
		s.completeSubmission(ctx, submission.ID, []string{models.SubmissionStateAIProcessing})
	}
}

// HandleEnrichment is the worker-pool entry point for one queued item.
func (s *submissionService) HandleEnrichment(ctx context.Context, task worker.Task) {
	item, err := s.submissions.GetItem(ctx, task.ItemID)
	if err != nil {
		s.logger.Error().Err(err).Uint("item_id", task.ItemID).Msg("failed to load item for enrichment")
		return
	}

	if item.EnrichState != models.EnrichStatePending {
		// Already resolved, e.g. before a crash; the resume pass re-enqueues
		// conservatively and duplicates are dropped here.
		return
	}

	text, source := s.enricher.Enrich(ctx, task.UserID, item, item.Question)

	remaining, err := s.resolveWithRetry(ctx, item.ID, text, source)
	if err != nil {
		s.logger.Error().Err(err).Uint("submission_id", task.SubmissionID).Uint("item_id", item.ID).Msg("storage writes exhausted, failing submission")
		s.failSubmission(ctx, task.SubmissionID)
		return
	}

	s.logger.Debug().
		Uint("item_id", item.ID).
		Str("source", source).
		Int64("remaining", remaining).
		Msg("item enriched")

	if remaining == 0 {
		s.completeSubmission(ctx, task.SubmissionID, []string{models.SubmissionStateAIProcessing})
	}
}

// Resume re-enumerates submissions interrupted mid-enrichment and re-enqueues
// only their unresolved items. Resolved items keep their feedback and their
// cache entries, so no duplicate model cost is paid.
func (s *submissionService) Resume(ctx context.Context) error {
	stuck, err := s.submissions.ListProcessing(ctx)
	if err != nil {
		return fmt.Errorf("list interrupted submissions: %w", err)
	}

	for _, submission := range stuck {
		if len(submission.Items) == 0 {
			// Every item resolved before the crash; only the final
			// transition was lost.
			s.completeSubmission(ctx, submission.ID, []string{models.SubmissionStateAIProcessing})
			continue
		}

		for _, item := range submission.Items {
			err := s.queue.Enqueue(worker.Task{
				SubmissionID: submission.ID,
				ItemID:       item.ID,
				UserID:       submission.UserID,
			})
			if err != nil {
				s.logger.Warn().Err(err).Uint("item_id", item.ID).Msg("failed to re-enqueue item during resume")
			}
		}

		s.logger.Info().Uint("submission_id", submission.ID).Int("items", len(submission.Items)).Msg("submission re-enqueued after restart")
	}

	return nil
}

func (s *submissionService) GetResult(ctx context.Context, submissionID, requesterID uint) (dto.SubmissionResult, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResult{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResult{}, err
	}

	if submission.UserID != requesterID {
		return dto.SubmissionResult{}, ErrSubmissionForbidden
	}

	return dto.NewSubmissionResult(submission), nil
}

func (s *submissionService) List(ctx context.Context, userID uint, limit int) ([]dto.SubmissionResult, error) {
	submissions, err := s.submissions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResultSlice(submissions), nil
}

func (s *submissionService) completeSubmission(ctx context.Context, submissionID uint, from []string) {
	completedAt := s.now().UTC()
	changed, err := s.submissions.TransitionState(ctx, submissionID, from, models.SubmissionStateCompleted, &completedAt)
	if err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to complete submission")
		return
	}
	if !changed {
		return
	}

	s.logger.Info().Uint("submission_id", submissionID).Msg("submission completed")

	if s.publisher != nil {
		if submission, err := s.submissions.GetByID(ctx, submissionID); err == nil {
			s.publisher.PublishCompleted(ctx, submission)
		}
	}
}

func (s *submissionService) failSubmission(ctx context.Context, submissionID uint) {
	from := []string{models.SubmissionStateScored, models.SubmissionStateAIProcessing}
	if _, err := s.submissions.TransitionState(ctx, submissionID, from, models.SubmissionStateFailed, nil); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to mark submission failed")
	}
}

func (s *submissionService) createWithRetry(ctx context.Context, submission *models.Submission) error {
	var err error
	for attempt := 0; attempt < storageWriteAttempts; attempt++ {
		if err = s.submissions.Create(ctx, submission); err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}

	return err
}

func (s *submissionService) resolveWithRetry(ctx context.Context, itemID uint, text, source string) (int64, error) {
	var err error
	var remaining int64
	for attempt := 0; attempt < storageWriteAttempts; attempt++ {
		if remaining, err = s.submissions.ResolveItem(ctx, itemID, text, source); err == nil {
			return remaining, nil
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}

	return 0, err
}
