package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quizforge",
		Subsystem: "ai",
		Name:      "feedback_duration_seconds",
		Help:      "Duration of AI feedback generation requests",
	}, []string{"model"})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizforge",
		Subsystem: "ai",
		Name:      "feedback_failures_total",
		Help:      "Number of AI feedback generation failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/quizforge/quizforge-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// GenerateFeedback sends the request to OpenAI and returns the feedback text.
func (g *OpenAIGenerator) GenerateFeedback(parent context.Context, request FeedbackRequest) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate_feedback", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("question_type", request.QuestionType),
	))
	defer span.End()

	start := time.Now()
	completion := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: tutorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildFeedbackPrompt(request),
			},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, completion)
	generationDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		generationFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai generate feedback: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		generationFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func tutorSystemPrompt() string {
	return "You are a patient tutor reviewing a quiz answer. Explain what the student got right, " +
		"what was missing or wrong, and how to improve, in two or three short paragraphs of plain prose."
}

func buildFeedbackPrompt(request FeedbackRequest) string {
	builder := strings.Builder{}
	builder.WriteString("# Subject\n")
	builder.WriteString(request.Subject)
	builder.WriteString("\n\n## Question Type\n")
	builder.WriteString(request.QuestionType)
	builder.WriteString("\n\n## Question\n")
	builder.WriteString(request.QuestionPrompt)
	builder.WriteString("\n\n## Expected Answer\n")
	builder.WriteString(request.CanonicalAnswer)
	builder.WriteString("\n\n## Student Answer\n")
	builder.WriteString(request.UserAnswer)
	builder.WriteString(fmt.Sprintf("\n\n## Score\n%.2f (%s)\n", request.Score, request.Classification))
	return builder.String()
}
