package store

import (
	"github.com/paperkit/ocr-conductor/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	Settings() Settings
	Stats() Stats
	Review() Review
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	settings Settings
	stats    Stats
	review   Review
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:       db,
		settings: NewSettingsStore(db),
		stats:    NewStatsStore(db),
		review:   NewReviewStore(db),
	}
}

func (s *DataStore) Settings() Settings {
	return s.settings
}

func (s *DataStore) Stats() Stats {
	return s.stats
}

func (s *DataStore) Review() Review {
	return s.review
}

func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.OCRSettings{},
		&model.WatchdogConfig{},
		&model.RunStat{},
		&model.ReviewItem{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
