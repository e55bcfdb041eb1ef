package store

import (
	"context"
	"errors"

	"github.com/paperkit/ocr-conductor/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Both settings tables hold exactly one row.
const singletonID = 1

const (
	minWatchdogInterval = 1
	maxWatchdogInterval = 60
)

type Settings interface {
	OCR(ctx context.Context) (*model.OCRSettings, error)
	SaveOCR(ctx context.Context, settings model.OCRSettings) (*model.OCRSettings, error)
	Watchdog(ctx context.Context) (*model.WatchdogConfig, error)
	SaveWatchdog(ctx context.Context, cfg model.WatchdogConfig) (*model.WatchdogConfig, error)
}

type SettingsStore struct {
	db *gorm.DB
}

func NewSettingsStore(db *gorm.DB) Settings {
	return &SettingsStore{db: db}
}

// OCR returns the persisted OCR settings, or defaults when nothing has been
// saved yet. Duplicate endpoint URLs collapse to the first occurrence.
func (s *SettingsStore) OCR(ctx context.Context) (*model.OCRSettings, error) {
	settings := model.OCRSettings{}
	result := s.db.WithContext(ctx).First(&settings, singletonID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			settings = model.OCRSettings{ID: singletonID, Model: model.DefaultModel}
			settings.SetEndpointList([]model.Endpoint{{URL: model.DefaultEndpointURL, Ordinal: 0}})
			return &settings, nil
		}
		return nil, result.Error
	}

	settings.SetEndpointList(dedupeEndpoints(settings.EndpointList()))
	return &settings, nil
}

func (s *SettingsStore) SaveOCR(ctx context.Context, settings model.OCRSettings) (*model.OCRSettings, error) {
	settings.ID = singletonID
	if settings.Model == "" {
		settings.Model = model.DefaultModel
	}
	endpoints := dedupeEndpoints(settings.EndpointList())
	if len(endpoints) == 0 {
		endpoints = []model.Endpoint{{URL: model.DefaultEndpointURL, Ordinal: 0}}
	}
	settings.SetEndpointList(endpoints)

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"model", "endpoints", "updated_at"}),
	}).Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *SettingsStore) Watchdog(ctx context.Context) (*model.WatchdogConfig, error) {
	cfg := model.WatchdogConfig{}
	result := s.db.WithContext(ctx).First(&cfg, singletonID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return &model.WatchdogConfig{ID: singletonID, Enabled: false, IntervalMinutes: 5}, nil
		}
		return nil, result.Error
	}
	return &cfg, nil
}

func (s *SettingsStore) SaveWatchdog(ctx context.Context, cfg model.WatchdogConfig) (*model.WatchdogConfig, error) {
	cfg.ID = singletonID
	if cfg.IntervalMinutes < minWatchdogInterval {
		cfg.IntervalMinutes = minWatchdogInterval
	}
	if cfg.IntervalMinutes > maxWatchdogInterval {
		cfg.IntervalMinutes = maxWatchdogInterval
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "interval_minutes", "updated_at"}),
	}).Create(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// dedupeEndpoints collapses duplicate URLs, keeping the first occurrence, and
// renumbers ordinals to match the configured order.
func dedupeEndpoints(endpoints []model.Endpoint) []model.Endpoint {
	seen := make(map[string]struct{}, len(endpoints))
	out := make([]model.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.URL == "" {
			continue
		}
		if _, ok := seen[ep.URL]; ok {
			continue
		}
		seen[ep.URL] = struct{}{}
		ep.Ordinal = len(out)
		out = append(out, ep)
	}
	return out
}
