package pool

import (
	"testing"
	"time"

	"github.com/paperkit/ocr-conductor/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(cooldown time.Duration, endpoints ...model.Endpoint) (*ServerPool, *time.Time) {
	p := New(cooldown)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.SetEndpoints(endpoints)
	return p, &now
}

func TestAcquireEmptyPool(t *testing.T) {
	p := New(0)
	_, err := p.Acquire()
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestAcquirePrefersLowestOrdinal(t *testing.T) {
	p, _ := newTestPool(30*time.Second,
		model.Endpoint{URL: "http://b:11434", Ordinal: 1},
		model.Endpoint{URL: "http://a:11434", Ordinal: 0},
	)

	ep, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "http://a:11434", ep.URL)
}

func TestFailoverAndCooldownExpiry(t *testing.T) {
	a := model.Endpoint{URL: "http://a:11434", Ordinal: 0}
	b := model.Endpoint{URL: "http://b:11434", Ordinal: 1}
	p, now := newTestPool(30*time.Second, a, b)

	// A fails, B takes over
	p.ReportFailure(a)
	ep, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, b.URL, ep.URL)

	// B stays preferred while A cools down
	*now = now.Add(10 * time.Second)
	ep, err = p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, b.URL, ep.URL)

	// cooldown expired, A is primary again
	*now = now.Add(25 * time.Second)
	ep, err = p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, a.URL, ep.URL)
}

func TestReportSuccessClearsCooldown(t *testing.T) {
	a := model.Endpoint{URL: "http://a:11434", Ordinal: 0}
	b := model.Endpoint{URL: "http://b:11434", Ordinal: 1}
	p, _ := newTestPool(30*time.Second, a, b)

	p.ReportFailure(a)
	ep, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, b.URL, ep.URL)

	p.ReportSuccess(a)
	ep, err = p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, a.URL, ep.URL)
}

func TestAcquireFailsOpenToPrimary(t *testing.T) {
	a := model.Endpoint{URL: "http://a:11434", Ordinal: 0}
	b := model.Endpoint{URL: "http://b:11434", Ordinal: 1}
	p, _ := newTestPool(30*time.Second, a, b)

	p.ReportFailure(a)
	p.ReportFailure(b)

	ep, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, a.URL, ep.URL)
}

func TestRepeatedFailureResetsCooldown(t *testing.T) {
	a := model.Endpoint{URL: "http://a:11434", Ordinal: 0}
	b := model.Endpoint{URL: "http://b:11434", Ordinal: 1}
	p, now := newTestPool(30*time.Second, a, b)

	p.ReportFailure(a)
	*now = now.Add(20 * time.Second)
	p.ReportFailure(a)

	// first window would have expired here, the second has not
	*now = now.Add(15 * time.Second)
	ep, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, b.URL, ep.URL)
}

func TestSetEndpointsCollapsesDuplicates(t *testing.T) {
	p, _ := newTestPool(30*time.Second,
		model.Endpoint{URL: "http://a:11434", Ordinal: 0},
		model.Endpoint{URL: "http://a:11434", Ordinal: 1},
		model.Endpoint{URL: "http://b:11434", Ordinal: 2},
	)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.endpoints, 2)
	assert.Equal(t, "http://a:11434", p.endpoints[0].URL)
	assert.Equal(t, "http://b:11434", p.endpoints[1].URL)
}

func TestNext(t *testing.T) {
	a := model.Endpoint{URL: "http://a:11434", Ordinal: 0}
	b := model.Endpoint{URL: "http://b:11434", Ordinal: 1}
	c := model.Endpoint{URL: "http://c:11434", Ordinal: 2}

	tests := []struct {
		name     string
		cooldown []model.Endpoint
		after    model.Endpoint
		want     string
		wantOK   bool
	}{
		{name: "next after primary", after: a, want: b.URL, wantOK: true},
		{name: "next after last", after: c, wantOK: false},
		{name: "skips cooling endpoint", cooldown: []model.Endpoint{b}, after: a, want: c.URL, wantOK: true},
		{name: "all lower ranks cooling", cooldown: []model.Endpoint{b, c}, after: a, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPool(30*time.Second, a, b, c)
			for _, ep := range tt.cooldown {
				p.ReportFailure(ep)
			}

			next, ok := p.Next(tt.after)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, next.URL)
			}
		})
	}
}
