package store

import (
	"context"
	"errors"

	"github.com/paperkit/ocr-conductor/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Review interface {
	Add(ctx context.Context, item model.ReviewItem) error
	List(ctx context.Context) ([]model.ReviewItem, error)
	Get(ctx context.Context, documentID int) (*model.ReviewItem, error)
	Remove(ctx context.Context, documentID int) error
}

type ReviewStore struct {
	db *gorm.DB
}

func NewReviewStore(db *gorm.DB) Review {
	return &ReviewStore{db: db}
}

// Add upserts on document id: a re-run of the same document replaces its
// pending review entry instead of piling up duplicates.
func (r *ReviewStore) Add(ctx context.Context, item model.ReviewItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "old_content", "new_content", "old_length", "new_length", "created_at"}),
	}).Create(&item).Error
}

func (r *ReviewStore) List(ctx context.Context) ([]model.ReviewItem, error) {
	var items []model.ReviewItem
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ReviewStore) Get(ctx context.Context, documentID int) (*model.ReviewItem, error) {
	item := model.ReviewItem{}
	result := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&item)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &item, nil
}

func (r *ReviewStore) Remove(ctx context.Context, documentID int) error {
	result := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.ReviewItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
