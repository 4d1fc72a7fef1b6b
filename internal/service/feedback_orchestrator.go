package service

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quizforge/quizforge-api/internal/cache"
	"github.com/quizforge/quizforge-api/internal/grading"
	"github.com/quizforge/quizforge-api/internal/models"
	"github.com/quizforge/quizforge-api/internal/observability"
	"github.com/quizforge/quizforge-api/internal/ratelimit"
	"github.com/quizforge/quizforge-api/pkg/ai"
)

const feedbackKind = "item_feedback"

// RetryPolicy centralises the timeout and retry behaviour of the external
// model call so it is uniform and testable instead of scattered per call site.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 250 * time.Millisecond
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	return p
}

// FeedbackOrchestratorConfig tunes the enrichment path.
type FeedbackOrchestratorConfig struct {
	CacheTTL          time.Duration
	LockTTL           time.Duration
	MinFeedbackLength int
	Retry             RetryPolicy
}

// cacheEntry is the value stored under a feedback fingerprint. Only
// model-sourced feedback is ever written here; templates are cheap to
// regenerate and live only on the item row.
type cacheEntry struct {
	Text        string    `json:"text"`
	Provider    string    `json:"provider"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FeedbackOrchestrator produces feedback for a graded item: cache first, then
// the external model behind the rate limiter, then a deterministic template.
// One of the three always answers, so every graded item ends up with feedback
// even during a full provider outage.
type FeedbackOrchestrator struct {
	store     cache.Store
	limiter   ratelimit.Limiter
	generator ai.Generator
	sanitizer *bluemonday.Policy
	cfg       FeedbackOrchestratorConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	nodeID    string
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewFeedbackOrchestrator constructs the orchestrator.
func NewFeedbackOrchestrator(store cache.Store, limiter ratelimit.Limiter, generator ai.Generator, cfg FeedbackOrchestratorConfig, logger zerolog.Logger) *FeedbackOrchestrator {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.MinFeedbackLength <= 0 {
		cfg.MinFeedbackLength = 20
	}
	cfg.Retry = cfg.Retry.withDefaults()

	return &FeedbackOrchestrator{
		store:     store,
		limiter:   limiter,
		generator: generator,
		sanitizer: bluemonday.StrictPolicy(),
		cfg:       cfg,
		logger:    logger.With().Str("component", "feedback_orchestrator").Logger(),
		tracer:    otel.Tracer("github.com/quizforge/quizforge-api/internal/service/feedback"),
		nodeID:    uuid.NewString(),
		sleep:     sleepContext,
	}
}

// Enrich returns feedback text for the graded item and the source it came
// from. It never fails: provider errors, rate-limit exhaustion, and guardrail
// rejections all degrade to the template floor.
func (o *FeedbackOrchestrator) Enrich(ctx context.Context, userID uint, item models.SubmissionItem, question models.Question) (string, string) {
	ctx, span := o.tracer.Start(ctx, "feedback.enrich", trace.WithAttributes(
		attribute.String("question_type", string(question.Type)),
		attribute.String("classification", item.Classification),
	))
	defer span.End()

	fingerprint := cache.Fingerprint(userID, question.ID, grading.Normalize(item.RawAnswer), feedbackKind, question.RubricVersion)

	if text, ok := o.lookup(ctx, fingerprint); ok {
		observability.FeedbackResolved().WithLabelValues(models.FeedbackSourceCache).Inc()
		return text, models.FeedbackSourceCache
	}

	// Single writer per fingerprint: whoever takes the lock talks to the
	// provider, everyone else waits for the cache entry to appear.
	locked, err := o.store.SetNX(ctx, fingerprint+":lock", o.nodeID, o.cfg.LockTTL)
	switch {
	case err != nil:
		// Coordination is unavailable. Proceed without the lock; deleting
		// the key on the way out could release another node's live lock.
		o.logger.Warn().Err(err).Msg("feedback lock acquisition failed")
	case !locked:
		if text, ok := o.awaitCache(ctx, fingerprint); ok {
			observability.FeedbackResolved().WithLabelValues(models.FeedbackSourceCache).Inc()
			return text, models.FeedbackSourceCache
		}
		return o.fallback(question, item)
	default:
		defer o.releaseLock(fingerprint)
	}

	allowed := true
	if o.limiter != nil {
		allowed, err = o.limiter.Allow(ctx, userID)
		if err != nil {
			o.logger.Warn().Err(err).Uint("user_id", userID).Msg("rate limiter unavailable, falling back to template")
			return o.fallback(question, item)
		}
	}
	if !allowed {
		o.logger.Debug().Uint("user_id", userID).Msg("feedback quota exhausted")
		observability.FeedbackRateLimited().Inc()
		return o.fallback(question, item)
	}

	text, ok := o.generateWithRetry(ctx, userID, item, question)
	if !ok {
		return o.fallback(question, item)
	}

	o.persist(ctx, fingerprint, text)
	observability.FeedbackResolved().WithLabelValues(models.FeedbackSourceModel).Inc()

	return text, models.FeedbackSourceModel
}

func (o *FeedbackOrchestrator) lookup(ctx context.Context, fingerprint string) (string, bool) {
	raw, found, err := o.store.Get(ctx, fingerprint)
	if err != nil {
		o.logger.Warn().Err(err).Msg("feedback cache read failed")
		return "", false
	}
	if !found {
		return "", false
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		o.logger.Warn().Err(err).Msg("invalid feedback cache entry")
		return "", false
	}

	return entry.Text, true
}

// awaitCache polls for the entry the lock holder is producing. Bounded by the
// retry timeout; a laggard that never sees the entry degrades to template.
func (o *FeedbackOrchestrator) awaitCache(ctx context.Context, fingerprint string) (string, bool) {
	deadline := time.Now().Add(o.cfg.Retry.Timeout)
	for time.Now().Before(deadline) {
		if err := o.sleep(ctx, 50*time.Millisecond); err != nil {
			return "", false
		}
		if text, ok := o.lookup(ctx, fingerprint); ok {
			return text, true
		}
	}

	return "", false
}

func (o *FeedbackOrchestrator) generateWithRetry(ctx context.Context, userID uint, item models.SubmissionItem, question models.Question) (string, bool) {
	request := ai.FeedbackRequest{
		Subject:         question.Subject,
		QuestionType:    string(question.Type),
		QuestionPrompt:  question.Prompt,
		CanonicalAnswer: question.CanonicalAnswer,
		UserAnswer:      item.RawAnswer,
		Score:           item.Score,
		Classification:  item.Classification,
	}

	for attempt := 0; attempt < o.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, backoffDelay(o.cfg.Retry.BaseDelay, attempt)); err != nil {
				return "", false
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, o.cfg.Retry.Timeout)
		text, err := o.generator.GenerateFeedback(callCtx, request)
		cancel()
		if err != nil {
			o.logger.Warn().Err(err).Int("attempt", attempt+1).Uint("user_id", userID).Msg("feedback generation failed")
			if ctx.Err() != nil {
				return "", false
			}
			continue
		}

		clean, ok := o.guard(text)
		if !ok {
			o.logger.Warn().Int("attempt", attempt+1).Msg("feedback rejected by guardrails")
			continue
		}

		return clean, true
	}

	return "", false
}

// guard applies minimal validation to model output: strip any markup, require
// a minimum of substance, and reject refusal/error boilerplate.
func (o *FeedbackOrchestrator) guard(text string) (string, bool) {
	clean := strings.TrimSpace(o.sanitizer.Sanitize(text))
	if len(clean) < o.cfg.MinFeedbackLength {
		return "", false
	}

	lowered := strings.ToLower(clean)
	for _, marker := range disallowedMarkers {
		if strings.Contains(lowered, marker) {
			return "", false
		}
	}

	return clean, true
}

var disallowedMarkers = []string{
	"as an ai language model",
	"i cannot help with",
	"internal error",
}

// persist writes the model response to the shared cache. The write runs on a
// detached context: if the caller was cancelled after the model already
// answered, the cost is paid and the result must not be thrown away.
func (o *FeedbackOrchestrator) persist(ctx context.Context, fingerprint, text string) {
	entry := cacheEntry{
		Text:        text,
		Provider:    models.FeedbackSourceModel,
		GeneratedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to encode feedback cache entry")
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := o.store.Set(writeCtx, fingerprint, string(payload), o.cfg.CacheTTL); err != nil {
		o.logger.Warn().Err(err).Msg("failed to store feedback cache entry")
	}
}

func (o *FeedbackOrchestrator) releaseLock(fingerprint string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := o.store.Delete(ctx, fingerprint+":lock"); err != nil {
		o.logger.Warn().Err(err).Msg("failed to release feedback lock")
	}
}

func (o *FeedbackOrchestrator) fallback(question models.Question, item models.SubmissionItem) (string, string) {
	observability.FeedbackResolved().WithLabelValues(models.FeedbackSourceTemplate).Inc()
	return templateFeedback(question.Type, item.Classification), models.FeedbackSourceTemplate
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt-1)
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
