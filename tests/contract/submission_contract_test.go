package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/quizforge/quizforge-api/internal/dto"
	"github.com/quizforge/quizforge-api/internal/handler"
	"github.com/quizforge/quizforge-api/internal/worker"
)

type stubSubmissionService struct {
	result dto.SubmissionResult
}

func (s stubSubmissionService) Submit(context.Context, uint, dto.SubmitRequest) (dto.SubmissionResult, error) {
	return s.result, nil
}

func (s stubSubmissionService) GetResult(context.Context, uint, uint) (dto.SubmissionResult, error) {
	return s.result, nil
}

func (s stubSubmissionService) List(context.Context, uint, int) ([]dto.SubmissionResult, error) {
	return []dto.SubmissionResult{s.result}, nil
}

func (s stubSubmissionService) Resume(context.Context) error { return nil }

func (s stubSubmissionService) HandleEnrichment(context.Context, worker.Task) {}

func withTestIdentity(c *fiber.Ctx) error {
	c.Locals("user_id", uint(1))
	return c.Next()
}

func TestSubmissionResultContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "submission_result.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	feedback := "The phrase is fully covered; nothing was missed."
	resolvedAt := time.Now().UTC()
	completedAt := time.Now().UTC()
	result := dto.SubmissionResult{
		SubmissionID: 12,
		UserID:       1,
		Subject:      "go",
		State:        "completed",
		TotalScore:   1.5,
		MaxScore:     2,
		SubmittedAt:  time.Now().UTC(),
		CompletedAt:  &completedAt,
		Items: []dto.ItemResult{
			{
				ItemID:          31,
				QuestionID:      7,
				Topic:           "maps",
				Score:           1,
				MaxScore:        1,
				Classification:  "correct",
				EnrichmentState: "none",
			},
			{
				ItemID:          32,
				QuestionID:      8,
				Topic:           "slices",
				Score:           0.5,
				MaxScore:        1,
				Classification:  "partial",
				FeedbackText:    &feedback,
				FeedbackSource:  "model",
				EnrichmentState: "resolved",
				ResolvedAt:      &resolvedAt,
			},
		},
		TopicBreakdown: map[string]dto.TopicScore{
			"maps":   {Score: 1, MaxScore: 1},
			"slices": {Score: 0.5, MaxScore: 1},
		},
	}

	submissionHandler := handler.NewSubmissionHandler(stubSubmissionService{result: result}, zerolog.Nop())

	app := fiber.New()
	submissionHandler.Register(app.Group("/api/v1/submissions", withTestIdentity))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/12", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
