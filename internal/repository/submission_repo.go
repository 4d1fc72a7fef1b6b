package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quizforge/quizforge-api/internal/models"
)

// SubmissionRepository defines data operations for submissions and their
// items. State transitions are guarded updates so concurrent workers cannot
// move a submission backwards, and item resolution is transactional so the
// unresolved count observed after a write is consistent.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Submission, error)
	// TransitionState moves the submission from one of the expected states to
	// the target state and reports whether the row actually changed.
	TransitionState(ctx context.Context, id uint, from []string, to string, completedAt *time.Time) (bool, error)
	// ResolveItem records the enrichment outcome on a pending item and
	// returns the number of items in the submission still pending.
	ResolveItem(ctx context.Context, itemID uint, feedback, source string) (int64, error)
	GetItem(ctx context.Context, itemID uint) (models.SubmissionItem, error)
	// ListProcessing returns submissions stuck in ai_processing together with
	// their unresolved items, for the resume pass after a restart.
	ListProcessing(ctx context.Context) ([]models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Question").
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = 20
	}

	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) TransitionState(ctx context.Context, id uint, from []string, to string, completedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"state": to}
	if completedAt != nil {
		updates["completed_at"] = completedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *submissionRepository) ResolveItem(ctx context.Context, itemID uint, feedback, source string) (int64, error) {
	var remaining int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.SubmissionItem
		if err := tx.First(&item, itemID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		update := tx.Model(&models.SubmissionItem{}).
			Where("id = ? AND enrich_state = ?", itemID, models.EnrichStatePending).
			Updates(map[string]interface{}{
				"feedback_text":   feedback,
				"feedback_source": source,
				"enrich_state":    models.EnrichStateResolved,
				"resolved_at":     now,
			})
		if update.Error != nil {
			return update.Error
		}

		// The counter moves in the same transaction as the item update, and
		// the decrement takes the parent row lock. Counting pending rows
		// instead would let two workers resolving the last two siblings each
		// miss the other's uncommitted update under read committed, leaving
		// both with remaining > 0 and the completion transition lost.
		if update.RowsAffected > 0 {
			decrement := tx.Model(&models.Submission{}).
				Where("id = ? AND pending_items > 0", item.SubmissionID).
				UpdateColumn("pending_items", gorm.Expr("pending_items - 1"))
			if decrement.Error != nil {
				return decrement.Error
			}
		}

		return tx.Model(&models.Submission{}).
			Select("pending_items").
			Where("id = ?", item.SubmissionID).
			Scan(&remaining).Error
	})
	if err != nil {
		return 0, err
	}

	return remaining, nil
}

func (r *submissionRepository) GetItem(ctx context.Context, itemID uint) (models.SubmissionItem, error) {
	var item models.SubmissionItem
	err := r.db.WithContext(ctx).Preload("Question").First(&item, itemID).Error
	if err != nil {
		return models.SubmissionItem{}, err
	}

	return item, nil
}

func (r *submissionRepository) ListProcessing(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Preload("Items", "enrich_state = ?", models.EnrichStatePending).
		Preload("Items.Question").
		Where("state = ?", models.SubmissionStateAIProcessing).
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}
