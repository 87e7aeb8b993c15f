package patrol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/pkg/worker"
)

func TestScheduler_TicksUntilStopped(t *testing.T) {
	always := domain.HookID("always")
	h := newHarness(t, worldOptions{trigger: &always, maxActive: 1})
	pools, err := worker.NewPools(h.ctx, worker.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)
	h.engine.pool = pools.Patrol

	s := NewScheduler(h.engine, pools, 5*time.Millisecond, 1)
	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "starting twice is a no-op")

	require.Eventually(t, func() bool {
		return h.engine.CurrentTick() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(h.eventsOf(domain.EventPatrolSpawned)) >= 1
	}, 2*time.Second, 5*time.Millisecond, "the sweep spawns from the start trigger")

	s.Stop()
	stoppedAt := h.engine.CurrentTick()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stoppedAt, h.engine.CurrentTick())

	s.Stop()
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	h := newHarness(t, worldOptions{})
	pools, err := worker.NewPools(h.ctx, worker.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	s := NewScheduler(h.engine, pools, 0, 0)
	assert.Error(t, s.Start())
}
