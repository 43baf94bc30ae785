package querygraph

import (
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/federation"
	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// DefaultMaxNodes is the node limit used when Options leaves it unset.
const DefaultMaxNodes = 100000

// Options tunes graph construction.
type Options struct {
	// MaxNodes bounds the number of nodes. Zero selects DefaultMaxNodes.
	MaxNodes int
}

// Builder builds navigation graphs with Build.
type Builder struct{}

// NewBuilder returns a graph builder.
func NewBuilder() *Builder { return &Builder{} }

// Build implements the builder used by the composition stages.
func (b *Builder) Build(ctx context.Context, super, api *federation.SupergraphSchema, opts Options) (*Graph, error) {
	return Build(ctx, super, api, opts)
}

type builder struct {
	graph *Graph
	super *federation.SupergraphSchema
	api   *federation.SupergraphSchema
	queue []string
}

// Build constructs the navigation graph of a supergraph. super carries the
// subgraph ownership and api the types and fields a client can select.
// Both are usually the same schema.
func Build(ctx context.Context, super, api *federation.SupergraphSchema, opts Options) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	if super == nil || api == nil {
		return nil, fmt.Errorf("cannot build a query graph without a schema")
	}
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	logger.Debug("Build: Starting query graph construction.", "graphs", len(super.Graphs), "max_nodes", maxNodes)

	b := &builder{graph: New(maxNodes), super: super, api: api}

	// First pass: one root per operation, entering every subgraph that
	// declares the root type.
	for _, op := range []ast.Operation{ast.Query, ast.Mutation, ast.Subscription} {
		def := api.RootType(op)
		if def == nil {
			continue
		}
		root := RootID(op)
		if err := b.graph.AddNode(Node{ID: root, Kind: RootNode, Operation: op}); err != nil {
			return nil, err
		}
		for _, graph := range super.GraphNames() {
			if !super.Owns(graph, def.Name) {
				continue
			}
			id, err := b.enter(def.Name, graph)
			if err != nil {
				return nil, err
			}
			if err := b.graph.AddEdge(Edge{Kind: RootEdge, From: root, To: id}); err != nil {
				return nil, err
			}
		}
	}
	logger.Debug("Build: Root creation complete.", "roots", len(b.graph.Roots()))

	// Second pass: follow fields, downcasts and keys until nothing new is
	// reached.
	for len(b.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := b.queue[0]
		b.queue = b.queue[1:]
		if err := b.expand(id); err != nil {
			return nil, err
		}
	}

	logger.Debug("Build: Query graph construction successful.", "node_count", b.graph.Len())
	return b.graph, nil
}

// enter returns the node of typeName in graph, creating it and queueing it
// for expansion when it is new.
func (b *builder) enter(typeName, graph string) (string, error) {
	id := TypeID(typeName, graph)
	if _, ok := b.graph.Node(id); ok {
		return id, nil
	}
	if err := b.graph.AddNode(Node{ID: id, Kind: TypeNode, Type: typeName, Subgraph: graph}); err != nil {
		return "", err
	}
	if info := b.super.Types[typeName]; info != nil {
		for field := range info.Fields {
			if b.super.ResolvableIn(graph, typeName, field) {
				if _, err := b.graph.MarkLocal(id, field); err != nil {
					return "", err
				}
			}
		}
	}
	b.queue = append(b.queue, id)
	return id, nil
}

func (b *builder) expand(id string) error {
	n, ok := b.graph.Node(id)
	if !ok {
		return fmt.Errorf("node not found: %s", id)
	}
	def := b.api.AST.Types[n.Type]
	if def == nil {
		return nil
	}

	if def.Kind == ast.Object || def.Kind == ast.Interface {
		if err := b.expandFields(n, def); err != nil {
			return err
		}
		if err := b.expandKeys(n); err != nil {
			return err
		}
	}
	if def.Kind == ast.Interface || def.Kind == ast.Union {
		for _, possible := range b.api.AST.GetPossibleTypes(def) {
			if !b.super.Owns(n.Subgraph, possible.Name) {
				continue
			}
			to, err := b.enter(possible.Name, n.Subgraph)
			if err != nil {
				return err
			}
			if err := b.graph.AddEdge(Edge{Kind: DowncastEdge, From: id, To: to, Type: possible.Name}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) expandFields(n Node, def *ast.Definition) error {
	for _, f := range def.Fields {
		if sdl.IsIntrospection(f.Name) || !b.graph.Resolves(n.ID, f.Name) {
			continue
		}
		target := b.api.AST.Types[f.Type.Name()]
		if target == nil || !isComposite(target) {
			continue
		}
		to, err := b.enter(target.Name, n.Subgraph)
		if err != nil {
			return err
		}
		if err := b.graph.AddEdge(Edge{Kind: FieldEdge, From: n.ID, To: to, Field: f.Name}); err != nil {
			return err
		}

		owner := b.super.FieldOwner(n.Subgraph, n.Type, f.Name)
		if owner == nil || owner.Provides == "" {
			continue
		}
		sel, err := federation.ParseFieldSet(owner.Provides)
		if err != nil {
			return fmt.Errorf("@provides on %s.%s: %w", n.Type, f.Name, err)
		}
		requeue := false
		for _, provided := range federation.TopLevelFields(sel) {
			added, err := b.graph.MarkLocal(to, provided)
			if err != nil {
				return err
			}
			requeue = requeue || added
		}
		if requeue {
			b.queue = append(b.queue, to)
		}
	}
	return nil
}

// expandKeys adds a key edge to every other subgraph that declares a
// resolvable key on the node's type whose top-level fields the node can
// resolve.
func (b *builder) expandKeys(n Node) error {
	for _, other := range b.super.GraphNames() {
		if other == n.Subgraph {
			continue
		}
		for _, key := range b.super.Keys(other, n.Type) {
			if !key.Resolvable || !b.resolvesAll(n.ID, key.TopLevelFields()) {
				continue
			}
			to, err := b.enter(n.Type, other)
			if err != nil {
				return err
			}
			if err := b.graph.AddEdge(Edge{Kind: KeyEdge, From: n.ID, To: to, Key: key.Fields}); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (b *builder) resolvesAll(id string, fields []string) bool {
	for _, f := range fields {
		if !b.graph.Resolves(id, f) {
			return false
		}
	}
	return true
}

func isComposite(def *ast.Definition) bool {
	return def.Kind == ast.Object || def.Kind == ast.Interface || def.Kind == ast.Union
}
