package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/paperkit/ocr-conductor/internal/store"
	"github.com/paperkit/ocr-conductor/internal/store/model"
	"go.uber.org/zap"
)

type ErrInvalidSettings struct {
	error
}

func NewErrInvalidSettings(message string) *ErrInvalidSettings {
	return &ErrInvalidSettings{fmt.Errorf("invalid settings: %s", message)}
}

// SettingsService persists the OCR and watchdog configuration singletons.
type SettingsService struct {
	store store.Store
}

func NewSettingsService(st store.Store) *SettingsService {
	return &SettingsService{store: st}
}

func (s *SettingsService) OCR(ctx context.Context) (*model.OCRSettings, error) {
	return s.store.Settings().OCR(ctx)
}

func (s *SettingsService) SaveOCR(ctx context.Context, settings model.OCRSettings) (*model.OCRSettings, error) {
	for _, endpoint := range settings.EndpointList() {
		if err := validateEndpointURL(endpoint.URL); err != nil {
			return nil, err
		}
	}

	saved, err := s.store.Settings().SaveOCR(ctx, settings)
	if err != nil {
		return nil, err
	}
	zap.S().Named("settings").Infof("OCR settings saved: model=%s endpoints=%d", saved.Model, len(saved.EndpointList()))
	return saved, nil
}

func (s *SettingsService) Watchdog(ctx context.Context) (*model.WatchdogConfig, error) {
	return s.store.Settings().Watchdog(ctx)
}

func (s *SettingsService) SaveWatchdog(ctx context.Context, cfg model.WatchdogConfig) (*model.WatchdogConfig, error) {
	saved, err := s.store.Settings().SaveWatchdog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	zap.S().Named("settings").Infof("watchdog config saved: enabled=%t interval=%dm", saved.Enabled, saved.IntervalMinutes)
	return saved, nil
}

func validateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return NewErrInvalidSettings(fmt.Sprintf("endpoint %q is not a valid URL", raw))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewErrInvalidSettings(fmt.Sprintf("endpoint %q must use http or https", raw))
	}
	if u.Host == "" {
		return NewErrInvalidSettings(fmt.Sprintf("endpoint %q has no host", raw))
	}
	return nil
}
