package world

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/jurisdiction"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/repository"
	"lawwarden.io/warden/internal/route"
	"lawwarden.io/warden/internal/script"
)

func init() {
	_ = logger.Init("error", "json")
}

const sampleWorld = `
nodes:
  - id: gate
    name: City Gate
    exits: [market]
  - id: market
    name: Market Square
    exits: [gate, docks, jail]
  - id: docks
    exits: [market]
  - id: jail
    name: Jail
    exits: [market]
hooks:
  night: "return trigger.tick % 2 == 0"
authorities:
  - id: watch
    name: City Watch
    players_know_their_crimes: true
    territory: [gate, market, docks]
    holding:
      marshalling: gate
      prison: jail
    laws:
      - id: theft
        name: Theft
        strategy: Arrest
routes:
  - id: night-round
    authority: watch
    name: Night Round
    waypoints: [gate, market, docks]
    start_trigger: night
    min_members: 2
    max_active: 1
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleWorld))
	require.NoError(t, err)

	require.Len(t, f.Nodes, 4)
	assert.Equal(t, []domain.NodeID{"gate", "docks", "jail"}, f.Nodes[1].Exits)
	require.Len(t, f.Authorities, 1)
	a := f.Authorities[0]
	assert.True(t, a.PlayersKnowTheirCrimes)
	require.NotNil(t, a.Holding.Prison)
	assert.Equal(t, domain.NodeID("jail"), *a.Holding.Prison)
	assert.Nil(t, a.Holding.Stowing)
	require.Len(t, f.Routes, 1)
	require.NotNil(t, f.Routes[0].StartTrigger)
	assert.Equal(t, domain.HookID("night"), *f.Routes[0].StartTrigger)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown key", doc: "nodes: []\nlandmarks: []\n"},
		{name: "missing node id", doc: "nodes:\n  - name: nowhere\n"},
		{name: "duplicate node", doc: "nodes:\n  - id: a\n  - id: a\n"},
		{name: "route without authority", doc: "routes:\n  - id: r1\n    waypoints: [a]\n"},
		{name: "law without id", doc: "authorities:\n  - id: w\n    name: W\n    laws:\n      - name: Theft\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Nodes)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorld), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Nodes, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestBuildMap_DirectedExits(t *testing.T) {
	doc := `
nodes:
  - id: a
    exits: [b]
  - id: b
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	m, err := f.BuildMap()
	require.NoError(t, err)

	assert.True(t, m.Adjacent("a", "b"))
	assert.Equal(t, []domain.NodeID{"b"}, m.Neighbors("a"))
	assert.Empty(t, m.Neighbors("b"))
	name, ok := m.Name("b")
	require.True(t, ok)
	assert.Equal(t, "b", name)
}

func TestBuildMap_UnknownExit(t *testing.T) {
	f, err := Parse([]byte("nodes:\n  - id: a\n    exits: [nowhere]\n"))
	require.NoError(t, err)
	_, err = f.BuildMap()
	require.Error(t, err)
}

func TestRegisterHooks_RejectsBrokenProgram(t *testing.T) {
	f, err := Parse([]byte("hooks:\n  broken: \"return (\"\n"))
	require.NoError(t, err)
	require.Error(t, f.RegisterHooks(script.NewEvaluator()))
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	f, err := Parse([]byte(sampleWorld))
	require.NoError(t, err)

	m, err := f.BuildMap()
	require.NoError(t, err)
	hooks := script.NewEvaluator()
	require.NoError(t, f.RegisterHooks(hooks))

	store := repository.NewMemoryStore()
	events := domain.NewEventDispatcher()
	registry := jurisdiction.NewRegistry(m, store, events)
	catalog := route.NewCatalog(m, registry, hooks, store, events)

	sum, err := f.Apply(ctx, registry, catalog)
	require.NoError(t, err)
	assert.Equal(t, Summary{Authorities: 1, Laws: 1, Routes: 1}, sum)

	assert.True(t, registry.IsWithinJurisdiction("watch", "docks"))
	prison, err := registry.ResolveHoldingNode("watch", domain.HoldingPrison)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID("jail"), prison)

	law, err := registry.Law("theft")
	require.NoError(t, err)
	assert.Equal(t, "arrest", law.EnforcementStrategy)

	r, err := catalog.GetRoute("night-round")
	require.NoError(t, err)
	assert.Equal(t, []domain.NodeID{"gate", "market", "docks"}, r.Waypoints)
	assert.Equal(t, 2, r.MinMembers)

	routes, err := store.LoadRoutes(ctx)
	require.NoError(t, err)
	assert.Len(t, routes, 1)

	t.Run("second apply skips existing entities", func(t *testing.T) {
		sum, err := f.Apply(ctx, registry, catalog)
		require.NoError(t, err)
		assert.Equal(t, Summary{Skipped: 3}, sum)
	})
}

func TestApply_RouteForUnknownAuthority(t *testing.T) {
	doc := `
nodes:
  - id: a
routes:
  - id: r1
    authority: ghost
    name: Ghost Round
    waypoints: [a]
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	m, err := f.BuildMap()
	require.NoError(t, err)

	events := domain.NewEventDispatcher()
	registry := jurisdiction.NewRegistry(m, nil, events)
	catalog := route.NewCatalog(m, registry, script.NewEvaluator(), nil, events)

	_, err = f.Apply(context.Background(), registry, catalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route r1")
}
