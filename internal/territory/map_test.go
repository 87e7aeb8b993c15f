package territory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lawwarden.io/warden/internal/domain"
)

// line builds a-b-c-d with bidirectional exits plus a one-way exit d->e.
func line(t *testing.T) *Map {
	t.Helper()
	m := NewMap()
	for _, id := range []domain.NodeID{"a", "b", "c", "d", "e"} {
		require.NoError(t, m.AddNode(id, string(id)))
	}
	require.NoError(t, m.Connect("a", "b", true))
	require.NoError(t, m.Connect("b", "c", true))
	require.NoError(t, m.Connect("c", "d", true))
	require.NoError(t, m.Connect("d", "e", false))
	return m
}

func TestMap_AddNodeAndConnect(t *testing.T) {
	m := line(t)

	require.Equal(t, 5, m.Len())
	require.True(t, m.IsValidNode("a"))
	require.False(t, m.IsValidNode("zz"))
	require.ElementsMatch(t, []domain.NodeID{"a", "c"}, m.Neighbors("b"))
	require.Nil(t, m.Neighbors("zz"))

	require.Error(t, m.Connect("a", "zz", true))
	require.Error(t, m.Connect("a", "a", true))
	require.Error(t, m.AddNode("", "blank"))

	// duplicate exits collapse
	require.NoError(t, m.Connect("a", "b", true))
	require.Len(t, m.Neighbors("a"), 1)

	require.NoError(t, m.AddNode("a", "Town Square"))
	name, ok := m.Name("a")
	require.True(t, ok)
	require.Equal(t, "Town Square", name)
}

func TestMap_Hops(t *testing.T) {
	m := line(t)

	tests := []struct {
		from, to domain.NodeID
		want     int
		ok       bool
	}{
		{"a", "a", 0, true},
		{"a", "b", 1, true},
		{"a", "d", 3, true},
		{"a", "e", 4, true},
		{"e", "a", 0, false}, // one-way exit
		{"a", "zz", 0, false},
	}
	for _, tt := range tests {
		got, ok := m.Hops(tt.from, tt.to)
		require.Equal(t, tt.ok, ok, "%s->%s", tt.from, tt.to)
		require.Equal(t, tt.want, got, "%s->%s", tt.from, tt.to)
	}
}

func TestMap_Adjacent(t *testing.T) {
	m := line(t)
	require.True(t, m.Adjacent("a", "b"))
	require.True(t, m.Adjacent("d", "e"))
	require.False(t, m.Adjacent("e", "d"))
	require.False(t, m.Adjacent("a", "c"))
}

func TestMap_ConcurrentReads(t *testing.T) {
	m := line(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() { //nolint:naked-goroutine // concurrency test
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = m.Hops("a", "e")
				_ = m.Neighbors("c")
			}
		}()
	}
	wg.Wait()
}
