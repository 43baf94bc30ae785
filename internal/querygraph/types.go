package querygraph

import (
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
)

// NodeKind distinguishes root nodes from type nodes.
type NodeKind int

const (
	// RootNode is the entry point of one operation type.
	RootNode NodeKind = iota
	// TypeNode is a type as seen from one subgraph.
	TypeNode
)

// EdgeKind is the kind of a traversal between two nodes.
type EdgeKind int

const (
	// RootEdge enters a subgraph's root type from an operation root.
	RootEdge EdgeKind = iota
	// FieldEdge follows a field inside one subgraph.
	FieldEdge
	// DowncastEdge narrows an abstract type to one of its object types.
	DowncastEdge
	// KeyEdge jumps to the same type in another subgraph through a @key.
	KeyEdge
)

func (k EdgeKind) String() string {
	switch k {
	case RootEdge:
		return "root"
	case FieldEdge:
		return "field"
	case DowncastEdge:
		return "downcast"
	case KeyEdge:
		return "key"
	default:
		return "unknown"
	}
}

// Node is a state a query execution can be in.
type Node struct {
	ID        string
	Kind      NodeKind
	Type      string
	Subgraph  string
	Operation ast.Operation
}

// Edge is a directed traversal between two nodes. Field is set for field
// edges, Key for key edges and Type for downcasts.
type Edge struct {
	Kind  EdgeKind
	From  string
	To    string
	Field string
	Key   string
	Type  string
}

// Graph is a navigation graph over (type, subgraph) pairs. All operations on
// the graph are concurrency-safe.
type Graph struct {
	// mutex protects every map below.
	mutex sync.RWMutex
	// nodes stores all nodes, keyed by id.
	nodes map[string]*Node
	// order is the node ids in insertion order.
	order []string
	// edges holds the outgoing edges of each node.
	edges map[string][]Edge
	// seen dedupes edges.
	seen map[Edge]bool
	// local holds the fields each type node can resolve without leaving
	// its subgraph.
	local map[string]map[string]bool
	// maxNodes bounds the graph size. Zero means unbounded.
	maxNodes int
}
