package model

import (
	"encoding/json"
	"time"
)

// Defaults applied when no settings row has been saved yet.
const (
	DefaultModel       = "qwen2.5vl:7b"
	DefaultEndpointURL = "http://localhost:11434"
)

// Endpoint is one inference server in the failover chain. Ordinal is the rank,
// index 0 being the primary.
type Endpoint struct {
	URL     string `json:"url"`
	Ordinal int    `json:"ordinal"`
}

// OCRSettings is the persisted singleton holding the inference endpoints and
// the model name. Endpoints are stored as a JSON document.
type OCRSettings struct {
	ID        uint   `gorm:"primaryKey"`
	Model     string `gorm:"not null"`
	Endpoints []byte `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (s *OCRSettings) EndpointList() []Endpoint {
	var endpoints []Endpoint
	if len(s.Endpoints) > 0 {
		_ = json.Unmarshal(s.Endpoints, &endpoints)
	}
	return endpoints
}

func (s *OCRSettings) SetEndpointList(endpoints []Endpoint) {
	data, _ := json.Marshal(endpoints)
	s.Endpoints = data
}

func (s OCRSettings) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}

// WatchdogConfig is the persisted singleton driving the watchdog scheduler.
type WatchdogConfig struct {
	ID              uint `gorm:"primaryKey"`
	Enabled         bool
	IntervalMinutes int `gorm:"not null;default:5"`
	UpdatedAt       time.Time
}

// RunStat records one successful OCR inference for the stats view.
type RunStat struct {
	ID         uint `gorm:"primaryKey"`
	DocumentID int  `gorm:"index"`
	DurationMS int64
	Chars      int
	Model      string
	Endpoint   string
	CreatedAt  time.Time
}

// ReviewItem is a document whose OCR result looked suspicious and was held
// back for manual inspection instead of being applied.
type ReviewItem struct {
	ID         uint `gorm:"primaryKey"`
	DocumentID int  `gorm:"uniqueIndex"`
	Title      string
	OldContent string `gorm:"type:text"`
	NewContent string `gorm:"type:text"`
	OldLength  int
	NewLength  int
	CreatedAt  time.Time
}
