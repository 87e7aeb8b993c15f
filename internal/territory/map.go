// Package territory provides the territory map: a graph of location nodes
// ("cells") connected by exits.
//
// Nodes live in an arena slice and are addressed internally by index; exits
// are adjacency lists of indices. Callers only ever see stable NodeIDs.
package territory

import (
	"fmt"
	"sort"
	"sync"

	"lawwarden.io/warden/internal/domain"
)

// Graph is the read-only view of the map consumed by the registry, the
// route catalog, and the patrol engine.
type Graph interface {
	IsValidNode(id domain.NodeID) bool
	Neighbors(id domain.NodeID) []domain.NodeID
	Hops(from, to domain.NodeID) (int, bool)
}

type node struct {
	id    domain.NodeID
	name  string
	exits []int
}

// Map is a concurrent-safe territory graph. Reads dominate; nodes and exits
// are only ever added, so references held by authorities and routes stay valid.
type Map struct {
	mu    sync.RWMutex
	nodes []node
	index map[domain.NodeID]int
}

var _ Graph = (*Map)(nil)

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{index: make(map[domain.NodeID]int)}
}

// AddNode adds a node. Adding an existing node updates its display name.
func (m *Map) AddNode(id domain.NodeID, name string) error {
	if id == "" {
		return fmt.Errorf("node id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[id]; ok {
		m.nodes[i].name = name
		return nil
	}
	m.index[id] = len(m.nodes)
	m.nodes = append(m.nodes, node{id: id, name: name})
	return nil
}

// Connect adds an exit from a to b, and from b to a when bidirectional.
// Duplicate exits are ignored.
func (m *Map) Connect(a, b domain.NodeID, bidirectional bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ia, ok := m.index[a]
	if !ok {
		return fmt.Errorf("unknown node %q", a)
	}
	ib, ok := m.index[b]
	if !ok {
		return fmt.Errorf("unknown node %q", b)
	}
	if ia == ib {
		return fmt.Errorf("node %q cannot connect to itself", a)
	}
	m.link(ia, ib)
	if bidirectional {
		m.link(ib, ia)
	}
	return nil
}

func (m *Map) link(from, to int) {
	for _, e := range m.nodes[from].exits {
		if e == to {
			return
		}
	}
	m.nodes[from].exits = append(m.nodes[from].exits, to)
}

// IsValidNode reports whether id names a node on the map.
func (m *Map) IsValidNode(id domain.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index[id]
	return ok
}

// Name returns the display name of a node.
func (m *Map) Name(id domain.NodeID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return "", false
	}
	return m.nodes[i].name, true
}

// Neighbors returns the nodes reachable through one exit, in exit order.
func (m *Map) Neighbors(id domain.NodeID) []domain.NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return nil
	}
	out := make([]domain.NodeID, 0, len(m.nodes[i].exits))
	for _, e := range m.nodes[i].exits {
		out = append(out, m.nodes[e].id)
	}
	return out
}

// Adjacent reports whether b is one exit away from a.
func (m *Map) Adjacent(a, b domain.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ia, ok := m.index[a]
	if !ok {
		return false
	}
	ib, ok := m.index[b]
	if !ok {
		return false
	}
	for _, e := range m.nodes[ia].exits {
		if e == ib {
			return true
		}
	}
	return false
}

// Hops returns the length of the shortest exit path from one node to another.
// The second result is false when either node is unknown or no path exists.
func (m *Map) Hops(from, to domain.NodeID) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.index[from]
	if !ok {
		return 0, false
	}
	dst, ok := m.index[to]
	if !ok {
		return 0, false
	}
	if src == dst {
		return 0, true
	}

	dist := make([]int, len(m.nodes))
	for i := range dist {
		dist[i] = -1
	}
	dist[src] = 0
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range m.nodes[cur].exits {
			if dist[e] >= 0 {
				continue
			}
			dist[e] = dist[cur] + 1
			if e == dst {
				return dist[e], true
			}
			queue = append(queue, e)
		}
	}
	return 0, false
}

// Len returns the number of live nodes.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}

// Nodes returns the live node ids in sorted order.
func (m *Map) Nodes() []domain.NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.NodeID, 0, len(m.index))
	for id := range m.index {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
