// Package roomgraph models walking connectivity between rooms.
//
// A RoomGraph is built once from a connectivity descriptor and is immutable
// afterwards, so it may be shared freely between the particle filter, the
// track association engine and any HTTP readers without locking. Shortest
// path hop counts between every pair of rooms are precomputed at
// construction; all queries are map lookups.
package roomgraph

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/banshee-data/occupancy.report/internal/monitoring"
)

// ErrNoConnections is returned when a connectivity descriptor declares no
// usable room-to-room edges.
var ErrNoConnections = fmt.Errorf("roomgraph: no connections declared")

// RoomGraph answers adjacency and shortest-path-distance queries over the
// rooms of one building. The zero value is not usable; construct with New,
// Parse or Load.
type RoomGraph struct {
	rooms     []string            // sorted room identifiers
	neighbors map[string][]string // room -> sorted adjacent rooms
	dist      map[string]map[string]int
}

// New builds a RoomGraph from undirected adjacency pairs. Rooms are declared
// implicitly by appearing in a pair. Duplicate pairs are collapsed and
// self-edges are skipped with a log line rather than treated as fatal.
func New(pairs [][2]string) (*RoomGraph, error) {
	ids := make(map[string]int64)
	names := make(map[int64]string)
	g := simple.NewUndirectedGraph()

	nodeFor := func(room string) graph.Node {
		if id, ok := ids[room]; ok {
			return simple.Node(id)
		}
		id := int64(len(ids))
		ids[room] = id
		names[id] = room
		n := simple.Node(id)
		g.AddNode(n)
		return n
	}

	edges := 0
	for _, p := range pairs {
		a, b := p[0], p[1]
		if a == "" || b == "" {
			continue
		}
		if a == b {
			monitoring.Logf("roomgraph: skipping self connection for %q", a)
			// still declares the room so sensors mounted there resolve
			nodeFor(a)
			continue
		}
		na, nb := nodeFor(a), nodeFor(b)
		if g.HasEdgeBetween(na.ID(), nb.ID()) {
			continue
		}
		g.SetEdge(g.NewEdge(na, nb))
		edges++
	}
	if edges == 0 {
		return nil, ErrNoConnections
	}

	rg := &RoomGraph{
		rooms:     make([]string, 0, len(ids)),
		neighbors: make(map[string][]string, len(ids)),
		dist:      make(map[string]map[string]int, len(ids)),
	}
	for room := range ids {
		rg.rooms = append(rg.rooms, room)
	}
	sort.Strings(rg.rooms)

	for room, id := range ids {
		var adj []string
		it := g.From(id)
		for it.Next() {
			adj = append(adj, names[it.Node().ID()])
		}
		sort.Strings(adj)
		rg.neighbors[room] = adj
	}

	// Hop distances via one breadth-first walk per room. Buildings are tens
	// of rooms, so the quadratic table is tiny.
	var bfs traverse.BreadthFirst
	for room, id := range ids {
		d := make(map[string]int, len(ids))
		bfs.Reset()
		bfs.Walk(g, simple.Node(id), func(n graph.Node, depth int) bool {
			d[names[n.ID()]] = depth
			return false
		})
		rg.dist[room] = d
	}

	return rg, nil
}

// HasRoom reports whether room is declared in the graph.
func (g *RoomGraph) HasRoom(room string) bool {
	_, ok := g.neighbors[room]
	return ok
}

// Rooms returns the sorted room identifiers.
func (g *RoomGraph) Rooms() []string {
	out := make([]string, len(g.rooms))
	copy(out, g.rooms)
	return out
}

// NumRooms returns the number of declared rooms.
func (g *RoomGraph) NumRooms() int { return len(g.rooms) }

// Neighbors returns the rooms directly connected to room, sorted. Unknown
// rooms return nil.
func (g *RoomGraph) Neighbors(room string) []string {
	adj, ok := g.neighbors[room]
	if !ok || len(adj) == 0 {
		return nil
	}
	out := make([]string, len(adj))
	copy(out, adj)
	return out
}

// Adjacent reports whether a and b share an edge.
func (g *RoomGraph) Adjacent(a, b string) bool {
	d, ok := g.Distance(a, b)
	return ok && d == 1
}

// Distance returns the shortest-path hop count between a and b. The second
// return is false when either room is unknown or no path connects them.
func (g *RoomGraph) Distance(a, b string) (int, bool) {
	da, ok := g.dist[a]
	if !ok {
		return 0, false
	}
	d, ok := da[b]
	return d, ok
}

// OnShortestPathVia reports whether via is the first hop of some shortest
// path from from to to. Used by the track association engine's directional
// alignment check: a track whose head sits on the walker's shortest route
// is a better merge candidate than one off to the side.
func (g *RoomGraph) OnShortestPathVia(from, via, to string) bool {
	if !g.Adjacent(from, via) {
		return false
	}
	dFromTo, ok := g.Distance(from, to)
	if !ok {
		return false
	}
	dViaTo, ok := g.Distance(via, to)
	if !ok {
		return false
	}
	return dViaTo+1 == dFromTo
}
