package importer

import (
	"context"
	"testing"
	"time"

	"github.com/jdalton/linkhoard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gaugeMetrics struct {
	NopMetrics

	pending  int
	inFlight int
	sessions map[string]int
}

func (m *gaugeMetrics) SetPending(n int)                 { m.pending = n }
func (m *gaugeMetrics) SetInFlight(n int)                { m.inFlight = n }
func (m *gaugeMetrics) SetSessions(status string, n int) { m.sessions[status] = n }

func TestStatsCollectorRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()

	stores := NewMockStagingStore()
	running := seedSession(t, stores, domain.SessionStatusRunning)
	seedSession(t, stores, domain.SessionStatusPaused)

	seedLinkItem(t, stores, running.ID, "https://example.com/a")
	seedLinkItem(t, stores, running.ID, "https://example.com/b")
	seedProcessingItem(t, stores, running.ID, now)
	seedProcessingItem(t, stores, running.ID, now.Add(-2*time.Hour)) // stale, not in flight
	seedFinishedItem(t, stores, running.ID, domain.ResultAccepted, now)

	metrics := &gaugeMetrics{sessions: make(map[string]int)}
	collector := NewStatsCollector(stores.Sessions(), stores.Items(), time.Hour, metrics, testLogger())

	require.NoError(t, collector.Refresh(ctx))

	assert.Equal(t, 2, metrics.pending)
	assert.Equal(t, 1, metrics.inFlight)
	assert.Equal(t, 1, metrics.sessions[string(domain.SessionStatusRunning)])
	assert.Equal(t, 1, metrics.sessions[string(domain.SessionStatusPaused)])
	assert.Equal(t, 0, metrics.sessions[string(domain.SessionStatusCompleted)])
}
