package pool

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/paperkit/ocr-conductor/internal/store/model"
	"github.com/paperkit/ocr-conductor/pkg/metrics"
	"go.uber.org/zap"
)

var ErrNoEndpoints = errors.New("no inference endpoints configured")

// DefaultCooldown is how long a failed endpoint is skipped before it is
// eligible again.
const DefaultCooldown = 30 * time.Second

// ServerPool holds the ordered failover chain of inference endpoints and
// tracks which of them are cooling down after a failure.
//
// Acquire always walks the configured order, so a backup server is never
// promoted permanently: as soon as the primary's cooldown expires (or a
// success is reported for it) it is preferred again.
type ServerPool struct {
	mu        sync.Mutex
	endpoints []model.Endpoint
	cooldown  map[string]time.Time
	duration  time.Duration

	now func() time.Time
}

func New(cooldown time.Duration) *ServerPool {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &ServerPool{
		cooldown: make(map[string]time.Time),
		duration: cooldown,
		now:      time.Now,
	}
}

// SetEndpoints replaces the failover chain. Duplicate URLs collapse to the
// first occurrence; entries are ordered by ordinal.
func (p *ServerPool) SetEndpoints(endpoints []model.Endpoint) {
	sorted := make([]model.Endpoint, len(endpoints))
	copy(sorted, endpoints)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })

	seen := make(map[string]struct{}, len(sorted))
	deduped := sorted[:0]
	for _, ep := range sorted {
		if _, ok := seen[ep.URL]; ok {
			continue
		}
		seen[ep.URL] = struct{}{}
		deduped = append(deduped, ep)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints = deduped
}

// Acquire returns the highest-priority endpoint currently believed healthy.
// If every endpoint is in cooldown the primary is returned anyway: a
// transient outage of all servers must not stall the batch.
func (p *ServerPool) Acquire() (model.Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.endpoints) == 0 {
		return model.Endpoint{}, ErrNoEndpoints
	}

	now := p.now()
	for _, ep := range p.endpoints {
		if until, ok := p.cooldown[ep.URL]; ok && now.Before(until) {
			continue
		}
		return ep, nil
	}

	// fail open
	return p.endpoints[0], nil
}

// Next returns the next-ranked healthy endpoint after the given one, for the
// single in-document retry. ok is false when no lower-priority endpoint is
// available.
func (p *ServerPool) Next(after model.Endpoint) (model.Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	passed := false
	for _, ep := range p.endpoints {
		if !passed {
			if ep.URL == after.URL {
				passed = true
			}
			continue
		}
		if until, ok := p.cooldown[ep.URL]; ok && now.Before(until) {
			continue
		}
		return ep, true
	}
	return model.Endpoint{}, false
}

// ReportFailure puts the endpoint in cooldown. A repeated failure resets the
// window.
func (p *ServerPool) ReportFailure(ep model.Endpoint) {
	p.mu.Lock()
	p.cooldown[ep.URL] = p.now().Add(p.duration)
	p.mu.Unlock()

	metrics.IncreaseEndpointFailovers(ep.URL)
	zap.S().Named("pool").Warnf("endpoint %s marked unhealthy for %s", ep.URL, p.duration)
}

// ReportSuccess clears any cooldown so the endpoint resumes its configured
// rank immediately.
func (p *ServerPool) ReportSuccess(ep model.Endpoint) {
	p.mu.Lock()
	delete(p.cooldown, ep.URL)
	p.mu.Unlock()
}
