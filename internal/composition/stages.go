package composition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/merge"
	"github.com/specialistvlad/fedcompose/internal/sdl"
	"github.com/specialistvlad/fedcompose/internal/subgraph"
	"github.com/specialistvlad/fedcompose/internal/supergraph"
)

type (
	initial   = subgraph.Subgraph[subgraph.Initial]
	expanded  = subgraph.Subgraph[subgraph.Expanded]
	upgraded  = subgraph.Subgraph[subgraph.Upgraded]
	validated = subgraph.Subgraph[subgraph.Validated]
	merged    = supergraph.Supergraph[supergraph.Merged]
)

// ExpandSubgraphs resolves the @link imports of every subgraph.
func (c *Composer) ExpandSubgraphs(ctx context.Context, subs []*initial) ([]*expanded, diag.List) {
	return runBatch(ctx, "expand", c.workers, subs, func(ctx context.Context, s *initial) (*expanded, error) {
		return subgraph.ExpandLinks(ctx, s, c.expander)
	})
}

// UpgradeSubgraphs upgrades every subgraph to the current federation version.
func (c *Composer) UpgradeSubgraphs(ctx context.Context, subs []*expanded) ([]*upgraded, diag.List) {
	return runBatch(ctx, "upgrade", c.workers, subs, func(ctx context.Context, s *expanded) (*upgraded, error) {
		return subgraph.UpgradeIfNecessary(ctx, s, c.upgrader)
	})
}

// ValidateSubgraphs validates every subgraph.
func (c *Composer) ValidateSubgraphs(ctx context.Context, subs []*upgraded) ([]*validated, diag.List) {
	return runBatch(ctx, "validate", c.workers, subs, func(ctx context.Context, s *upgraded) (*validated, error) {
		return subgraph.Validate(ctx, s, c.validator)
	})
}

// PreMergeValidations runs the checks that need every subgraph at once:
// unique names, unique schemas, and conversion of each schema to its
// federation-aware form.
func (c *Composer) PreMergeValidations(ctx context.Context, subs []*validated) diag.List {
	logger := ctxlog.FromContext(ctx)
	var errs diag.List

	names := make(map[string]bool, len(subs))
	schemas := make(map[string]string, len(subs))
	for _, s := range subs {
		if names[s.Name()] {
			errs = append(errs, diag.TypeDefinitionInvalidf("Duplicate subgraph name %q", s.Name()))
		}
		names[s.Name()] = true

		canonical, err := s.Canonical()
		if err != nil {
			errs = append(errs, diag.SubgraphError(s.Name(), fmt.Errorf("serialize schema: %w", err)))
		} else if first, ok := schemas[canonical]; ok {
			errs = append(errs, diag.TypeDefinitionInvalidf(
				"Duplicate subgraph schema detected: subgraph %q has the same schema as subgraph %q", s.Name(), first))
		} else {
			schemas[canonical] = s.Name()
		}

		if _, err := c.converter.Convert(subgraph.ValidSchema(s)); err != nil {
			errs = append(errs, diag.SubgraphError(s.Name(), fmt.Errorf("convert to federation schema: %w", err)))
		}
	}

	logger.Debug("PreMerge: Checks complete.", "subgraphs", len(subs), "errors", len(errs))
	return errs
}

// MergeSubgraphs merges the subgraphs, keyed by their names, into a Merged
// supergraph. Every merge conflict becomes one INTERNAL_ERROR carrying the
// conflict text unchanged.
func (c *Composer) MergeSubgraphs(ctx context.Context, subs []*validated) (*merged, diag.List) {
	logger := ctxlog.FromContext(ctx)

	inputs := make(map[string]merge.Input, len(subs))
	var errs diag.List
	for _, s := range subs {
		schema, err := c.converter.Convert(subgraph.ValidSchema(s))
		if err != nil {
			errs = append(errs, diag.SubgraphError(s.Name(), fmt.Errorf("convert to federation schema: %w", err)))
			continue
		}
		inputs[s.Name()] = merge.Input{Name: s.Name(), URL: s.URL(), Schema: schema}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	doc, err := c.merger.Merge(ctx, inputs)
	if err != nil {
		var failure *merge.Failure
		if errors.As(err, &failure) {
			for _, msg := range failure.Errors {
				errs = append(errs, diag.InternalError(msg))
			}
		}
		if len(errs) == 0 {
			errs = append(errs, diag.From(err))
		}
		logger.Debug("Merge: Merge failed.", "errors", len(errs))
		return nil, errs
	}

	logger.Debug("Merge: Supergraph merged.", "subgraphs", len(inputs))
	return supergraph.New(doc), nil
}

// PostMergeValidations checks a merged supergraph: it must define types and
// a root query, validate as a document, convert to a federation-aware
// schema, yield a navigation graph, and every field of every object type a
// query can reach must be resolvable by some reachable subgraph.
func (c *Composer) PostMergeValidations(ctx context.Context, m *merged) diag.List {
	logger := ctxlog.FromContext(ctx)
	var errs diag.List

	if len(m.TypeNames()) == 0 {
		errs = append(errs, diag.TypeDefinitionInvalid("Empty supergraph schema"))
	}
	if !m.HasQueryRoot() {
		errs = append(errs, diag.TypeDefinitionInvalid("Missing root Query type"))
	}

	schema, err := c.docValidator.ValidateDocument(m.Document())
	if err != nil {
		for _, msg := range documentErrors(err) {
			errs = append(errs, diag.TypeDefinitionInvalid(msg))
		}
		return append(errs, diag.InternalError("Failed to convert schema: supergraph document did not validate"))
	}

	super, err := c.superConverter.Extract(schema)
	if err != nil {
		return append(errs, diag.Internalf("Failed to convert schema: %v", err))
	}

	graph, err := c.graphBuilder.Build(ctx, super, super, c.graphOpts)
	if err != nil {
		return append(errs, diag.Internalf("Failed to build federated query graph: %v", err))
	}

	reachable := graph.Reachable(graph.Roots()...)
	for _, typeName := range super.TypeNames() {
		def := super.Types[typeName].Def
		if def.Kind != ast.Object {
			continue
		}
		var nodes []string
		for _, id := range graph.NodesForType(typeName) {
			if reachable[id] {
				nodes = append(nodes, id)
			}
		}
		if len(nodes) == 0 {
			logger.Debug("PostMerge: Type is not reachable from any root, skipping.", "type", typeName)
			continue
		}
		for _, f := range def.Fields {
			if sdl.IsIntrospection(f.Name) || resolvedByAny(graph.Resolves, nodes, f.Name) {
				continue
			}
			errs = append(errs, diag.SatisfiabilityError(typeName, f.Name,
				fmt.Sprintf("Field '%s.%s' cannot be resolved across subgraphs", typeName, f.Name)))
		}
	}

	logger.Debug("PostMerge: Checks complete.", "types", len(super.Types), "errors", len(errs))
	return errs
}

// ValidateSatisfiability runs the satisfiability solver.
func (c *Composer) ValidateSatisfiability(ctx context.Context, m *merged) (*supergraph.Supergraph[supergraph.Satisfiable], diag.List) {
	s, errs := c.solver.Check(ctx, m)
	if len(errs) == 0 && s == nil {
		return nil, diag.List{diag.InternalError("satisfiability solver returned no supergraph")}
	}
	return s, errs
}

func resolvedByAny(resolves func(id, field string) bool, nodes []string, field string) bool {
	for _, id := range nodes {
		if resolves(id, field) {
			return true
		}
	}
	return false
}

// documentErrors splits a document validation error into its messages.
func documentErrors(err error) []string {
	var list gqlerror.List
	if errors.As(err, &list) {
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, e.Message)
		}
		return out
	}
	var single *gqlerror.Error
	if errors.As(err, &single) {
		return []string{single.Message}
	}
	return []string{strings.TrimSpace(err.Error())}
}
