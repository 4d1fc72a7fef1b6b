package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/internal/config"
	"github.com/quizforge/quizforge-api/internal/dto"
	"github.com/quizforge/quizforge-api/internal/grading"
	"github.com/quizforge/quizforge-api/internal/handler"
	"github.com/quizforge/quizforge-api/internal/models"
	"github.com/quizforge/quizforge-api/internal/repository"
	"github.com/quizforge/quizforge-api/internal/router"
	"github.com/quizforge/quizforge-api/internal/service"
	"github.com/quizforge/quizforge-api/internal/utils"
	"github.com/quizforge/quizforge-api/internal/worker"
)

type noopQueue struct{}

func (noopQueue) Enqueue(worker.Task) error { return nil }

type fixedEnricher struct{}

func (fixedEnricher) Enrich(context.Context, uint, models.SubmissionItem, models.Question) (string, string) {
	return "Review which tokens of the expected answer you covered.", models.FeedbackSourceModel
}

func setupSubmissionApp(t *testing.T, jwtMiddleware fiber.Handler) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Question{}, &models.Submission{}, &models.SubmissionItem{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	submissionService := service.NewSubmissionService(
		repository.NewSubmissionRepository(db),
		repository.NewQuestionRepository(db),
		grading.NewEngine(grading.Config{}),
		fixedEnricher{},
		noopQueue{},
		nil,
		validate,
		service.SubmissionServiceConfig{},
		logger,
	)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		JWTMiddleware:     jwtMiddleware,
	})

	return app, db
}

func asUser(id uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func seedQuestion(t *testing.T, db *gorm.DB) models.Question {
	t.Helper()

	question := models.Question{
		Subject:         "go",
		Topic:           "maps",
		Type:            models.QuestionTypeShortAnswer,
		Prompt:          "Explain the phrase.",
		CanonicalAnswer: "the cat sat",
		RubricVersion:   1,
	}
	require.NoError(t, db.Create(&question).Error)

	return question
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) (utils.APIResponse, dto.SubmissionResult) {
	t.Helper()

	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope utils.APIResponse
	require.NoError(t, json.Unmarshal(raw, &envelope))

	var result dto.SubmissionResult
	if envelope.Data != nil {
		data, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &result))
	}

	return envelope, result
}

func TestSubmissionHandlerSubmitAndFetch(t *testing.T) {
	app, db := setupSubmissionApp(t, asUser(1))
	question := seedQuestion(t, db)

	resp := postJSON(t, app, "/api/v1/submissions", dto.SubmitRequest{
		Subject: "go",
		Answers: []dto.AnswerInput{{QuestionID: question.ID, Answer: "the cat"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	envelope, created := decodeEnvelope(t, resp)
	require.True(t, envelope.Success)
	require.Equal(t, 0.5, created.TotalScore)
	require.Equal(t, models.SubmissionStateAIProcessing, created.State)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/submissions/%d", created.SubmissionID), nil)
	getResp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	_, fetched := decodeEnvelope(t, getResp)
	require.Equal(t, created.SubmissionID, fetched.SubmissionID)
	require.Len(t, fetched.Items, 1)
}

func TestSubmissionHandlerRejectsMalformedPayload(t *testing.T) {
	app, _ := setupSubmissionApp(t, asUser(1))

	resp := postJSON(t, app, "/api/v1/submissions", dto.SubmitRequest{Subject: "go"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandlerUnknownQuestionIsBadRequest(t *testing.T) {
	app, _ := setupSubmissionApp(t, asUser(1))

	resp := postJSON(t, app, "/api/v1/submissions", dto.SubmitRequest{
		Subject: "go",
		Answers: []dto.AnswerInput{{QuestionID: 404, Answer: "anything"}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandlerMissingSubmissionIsNotFound(t *testing.T) {
	app, _ := setupSubmissionApp(t, asUser(1))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/9999", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandlerForeignSubmissionIsForbidden(t *testing.T) {
	app, db := setupSubmissionApp(t, asUser(2))
	question := seedQuestion(t, db)

	submission := models.Submission{
		UserID:  1,
		Subject: "go",
		State:   models.SubmissionStateCompleted,
		Items: []models.SubmissionItem{
			{QuestionID: question.ID, RawAnswer: "the cat sat", Score: 1, MaxScore: 1, Classification: grading.ClassCorrect, EnrichState: models.EnrichStateNone},
		},
	}
	require.NoError(t, db.Create(&submission).Error)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/submissions/%d", submission.ID), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubmissionHandlerRequiresIdentity(t *testing.T) {
	app, _ := setupSubmissionApp(t, nil)

	resp := postJSON(t, app, "/api/v1/submissions", dto.SubmitRequest{
		Subject: "go",
		Answers: []dto.AnswerInput{{QuestionID: 1, Answer: "x"}},
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
