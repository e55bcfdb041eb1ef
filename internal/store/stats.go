package store

import (
	"context"

	"github.com/paperkit/ocr-conductor/internal/store/model"
	"gorm.io/gorm"
)

// Only the most recent entries are kept; old rows are pruned on insert.
const statsRetention = 1000

type Stats interface {
	Record(ctx context.Context, stat model.RunStat) error
	List(ctx context.Context) ([]model.RunStat, error)
}

type StatsStore struct {
	db *gorm.DB
}

func NewStatsStore(db *gorm.DB) Stats {
	return &StatsStore{db: db}
}

func (s *StatsStore) Record(ctx context.Context, stat model.RunStat) error {
	if err := s.db.WithContext(ctx).Create(&stat).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("id <= (SELECT MAX(id) FROM run_stats) - ?", statsRetention).
		Delete(&model.RunStat{}).Error
}

func (s *StatsStore) List(ctx context.Context) ([]model.RunStat, error) {
	var stats []model.RunStat
	if err := s.db.WithContext(ctx).Order("id desc").Limit(statsRetention).Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
