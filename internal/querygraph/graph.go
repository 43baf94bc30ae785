package querygraph

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// New creates and returns an initialized, empty Graph holding at most
// maxNodes nodes. A maxNodes of zero or less means no limit.
func New(maxNodes int) *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string][]Edge),
		seen:     make(map[Edge]bool),
		local:    make(map[string]map[string]bool),
		maxNodes: maxNodes,
	}
}

// RootID returns the id of the root node of op.
func RootID(op ast.Operation) string { return "[" + string(op) + "]" }

// TypeID returns the id of the node of typeName in subgraph.
func TypeID(typeName, subgraph string) string { return typeName + "@" + subgraph }

// AddNode adds n to the graph. Adding a node whose id already exists does
// nothing. An error is returned when the graph is full.
func (g *Graph) AddNode(n Node) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[n.ID]; ok {
		return nil
	}
	if g.maxNodes > 0 && len(g.nodes) >= g.maxNodes {
		return fmt.Errorf("query graph exceeds the limit of %d nodes while adding %s", g.maxNodes, n.ID)
	}
	node := n
	g.nodes[n.ID] = &node
	g.order = append(g.order, n.ID)
	if n.Kind == TypeNode {
		g.local[n.ID] = make(map[string]bool)
	}
	return nil
}

// AddEdge adds e. An error is returned if either node does not exist or if
// a key edge points back to its source. Adding the same edge twice does
// nothing.
func (g *Graph) AddEdge(e Edge) error {
	if e.Kind == KeyEdge && e.From == e.To {
		return fmt.Errorf("self-referential key edge not allowed: %s -> %s", e.From, e.To)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("source node not found: %s", e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("destination node not found: %s", e.To)
	}
	if g.seen[e] {
		return nil
	}
	g.seen[e] = true
	g.edges[e.From] = append(g.edges[e.From], e)
	return nil
}

// MarkLocal records that the type node id resolves field without leaving its
// subgraph. It reports whether the field was new for the node.
func (g *Graph) MarkLocal(id, field string) (bool, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	fields, ok := g.local[id]
	if !ok {
		return false, fmt.Errorf("type node not found: %s", id)
	}
	if fields[field] {
		return false, nil
	}
	fields[field] = true
	return true, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Roots returns the ids of the root nodes.
func (g *Graph) Roots() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var out []string
	for _, id := range g.order {
		if g.nodes[id].Kind == RootNode {
			out = append(out, id)
		}
	}
	return out
}

// outgoing returns a copy of the edges leaving id.
func (g *Graph) outgoing(id string) []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]Edge, len(g.edges[id]))
	copy(out, g.edges[id])
	return out
}

// NodesForType returns the ids of the type nodes of typeName, one per
// subgraph that was reached with it.
func (g *Graph) NodesForType(typeName string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var out []string
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Kind == TypeNode && n.Type == typeName {
			out = append(out, id)
		}
	}
	return out
}

// Resolves reports whether the type node id resolves field inside its own
// subgraph.
func (g *Graph) Resolves(id, field string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.local[id][field]
}

// Reachable returns the set of nodes reachable from the given nodes,
// including the nodes themselves.
func (g *Graph) Reachable(from ...string) map[string]bool {
	return g.walk(from, func(Edge) bool { return true })
}

// KeyClosure returns the nodes reachable from id through key edges only,
// id included: every subgraph an entity can be fetched from once the query
// is at id.
func (g *Graph) KeyClosure(id string) []string {
	set := g.walk([]string{id}, func(e Edge) bool { return e.Kind == KeyEdge })

	g.mutex.RLock()
	defer g.mutex.RUnlock()
	var out []string
	for _, nid := range g.order {
		if set[nid] {
			out = append(out, nid)
		}
	}
	return out
}

func (g *Graph) walk(from []string, follow func(Edge) bool) map[string]bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	visited := make(map[string]bool)
	queue := make([]string, 0, len(from))
	for _, id := range from {
		if _, ok := g.nodes[id]; ok && !visited[id] {
			visited[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.edges[id] {
			if !follow(e) || visited[e.To] {
				continue
			}
			visited[e.To] = true
			queue = append(queue, e.To)
		}
	}
	return visited
}
