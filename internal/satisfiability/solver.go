// Package satisfiability proves that every field of a merged supergraph can
// be resolved by some plan across its subgraphs.
package satisfiability

import (
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/federation"
	"github.com/specialistvlad/fedcompose/internal/querygraph"
	"github.com/specialistvlad/fedcompose/internal/sdl"
	"github.com/specialistvlad/fedcompose/internal/supergraph"
)

// Solver is the default satisfiability solver.
type Solver struct {
	opts querygraph.Options
}

// New returns a solver building its graphs with opts.
func New(opts querygraph.Options) *Solver {
	return &Solver{opts: opts}
}

// Check rebuilds the navigation graph of m and verifies, for every type node
// a query can reach, that each field of the type is resolvable from that
// node, possibly after jumping to other subgraphs through keys. Fields with
// @requires additionally need their required fields to be fetchable.
func (s *Solver) Check(ctx context.Context, m *supergraph.Supergraph[supergraph.Merged]) (*supergraph.Supergraph[supergraph.Satisfiable], diag.List) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Satisfiability: Starting check.")

	schema, err := federation.NewDocumentValidator().ValidateDocument(m.Document())
	if err != nil {
		return nil, diag.List{diag.Internalf("Supergraph does not validate: %v", err)}
	}
	super, err := federation.ExtractSupergraph(schema)
	if err != nil {
		return nil, diag.List{diag.Internalf("Failed to convert schema: %v", err)}
	}
	graph, err := querygraph.Build(ctx, super, super, s.opts)
	if err != nil {
		return nil, diag.List{diag.Internalf("Failed to build federated query graph: %v", err)}
	}

	c := &checker{graph: graph, super: super, rootTypes: map[string]bool{}, checkedRoots: map[string]bool{}}
	for _, op := range []ast.Operation{ast.Query, ast.Mutation, ast.Subscription} {
		if def := super.RootType(op); def != nil {
			c.rootTypes[def.Name] = true
		}
	}
	c.reachable = graph.Reachable(graph.Roots()...)

	for _, n := range graph.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, diag.List{diag.InternalError(err.Error())}
		}
		if n.Kind != querygraph.TypeNode || !c.reachable[n.ID] {
			continue
		}
		c.checkNode(n)
	}

	if len(c.errs) > 0 {
		logger.Debug("Satisfiability: Unsatisfiable fields found.", "errors", len(c.errs))
		return nil, c.errs
	}
	logger.Debug("Satisfiability: Check passed.", "nodes", graph.Len())
	return supergraph.Satisfied(m, schema), nil
}

type checker struct {
	graph        *querygraph.Graph
	super        *federation.SupergraphSchema
	rootTypes    map[string]bool
	checkedRoots map[string]bool
	reachable    map[string]bool
	errs         diag.List
}

func (c *checker) checkNode(n querygraph.Node) {
	def := c.super.AST.Types[n.Type]
	if def == nil || def.Kind != ast.Object {
		return
	}

	// Root types are entered from the operation root in every subgraph, so
	// their fields are checked once against all of those nodes.
	var candidates []string
	from := fmt.Sprintf("from subgraph %q", n.Subgraph)
	if c.rootTypes[n.Type] {
		if c.checkedRoots[n.Type] {
			return
		}
		c.checkedRoots[n.Type] = true
		for _, id := range c.graph.NodesForType(n.Type) {
			if c.reachable[id] {
				candidates = append(candidates, id)
			}
		}
		from = "from the root"
	} else {
		candidates = c.graph.KeyClosure(n.ID)
	}

	for _, f := range def.Fields {
		if sdl.IsIntrospection(f.Name) {
			continue
		}
		if !c.resolves(candidates, f.Name) {
			c.errs = append(c.errs, diag.SatisfiabilityError(n.Type, f.Name,
				fmt.Sprintf("cannot satisfy %s.%s %s: no subgraph reachable through @key resolves it", n.Type, f.Name, from)))
			continue
		}
		c.checkRequires(n, f.Name, candidates)
	}
}

// checkRequires verifies that the fields required by n's subgraph for field
// can be fetched from the candidates.
func (c *checker) checkRequires(n querygraph.Node, field string, candidates []string) {
	owner := c.super.FieldOwner(n.Subgraph, n.Type, field)
	if owner == nil || owner.External || owner.Requires == "" {
		return
	}
	sel, err := federation.ParseFieldSet(owner.Requires)
	if err != nil {
		c.errs = append(c.errs, diag.SatisfiabilityError(n.Type, field,
			fmt.Sprintf("cannot satisfy @requires on %s.%s in subgraph %q: %v", n.Type, field, n.Subgraph, err)))
		return
	}
	for _, required := range federation.TopLevelFields(sel) {
		if c.resolves(candidates, required) {
			continue
		}
		c.errs = append(c.errs, diag.SatisfiabilityError(n.Type, field,
			fmt.Sprintf("cannot satisfy @requires(fields: %q) on %s.%s in subgraph %q: field %s.%s cannot be fetched",
				owner.Requires, n.Type, field, n.Subgraph, n.Type, required)))
	}
}

func (c *checker) resolves(candidates []string, field string) bool {
	for _, id := range candidates {
		if c.graph.Resolves(id, field) {
			return true
		}
	}
	return false
}
