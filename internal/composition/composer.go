// Package composition runs the supergraph composition pipeline: subgraph
// preparation, pre-merge checks, merge, post-merge checks and the
// satisfiability check.
//
// Every collaborator is an interface so tests can replace the real engines
// with stand-ins. Within a stage every error is collected; a failing stage
// stops the pipeline.
package composition

import (
	"context"
	"runtime"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/federation"
	"github.com/specialistvlad/fedcompose/internal/merge"
	"github.com/specialistvlad/fedcompose/internal/querygraph"
	"github.com/specialistvlad/fedcompose/internal/satisfiability"
	"github.com/specialistvlad/fedcompose/internal/subgraph"
	"github.com/specialistvlad/fedcompose/internal/supergraph"
)

// SchemaConverter wraps a validated subgraph schema as a federation-aware
// schema.
type SchemaConverter interface {
	Convert(schema *ast.Schema) (*federation.Schema, error)
}

// Merger merges subgraphs keyed by name. Conflicts are reported as a
// *merge.Failure.
type Merger interface {
	Merge(ctx context.Context, subgraphs map[string]merge.Input) (*ast.SchemaDocument, error)
}

// DocumentValidator checks that a supergraph document is well formed.
type DocumentValidator interface {
	ValidateDocument(doc *ast.SchemaDocument) (*ast.Schema, error)
}

// SupergraphConverter decodes the join metadata of a supergraph schema.
type SupergraphConverter interface {
	Extract(schema *ast.Schema) (*federation.SupergraphSchema, error)
}

// GraphBuilder builds the navigation graph of a supergraph.
type GraphBuilder interface {
	Build(ctx context.Context, super, api *federation.SupergraphSchema, opts querygraph.Options) (*querygraph.Graph, error)
}

// Solver proves a merged supergraph satisfiable.
type Solver interface {
	Check(ctx context.Context, m *supergraph.Supergraph[supergraph.Merged]) (*supergraph.Supergraph[supergraph.Satisfiable], diag.List)
}

// Composer runs the composition pipeline.
type Composer struct {
	expander       subgraph.LinkExpander
	upgrader       subgraph.Upgrader
	validator      subgraph.Validator
	converter      SchemaConverter
	merger         Merger
	docValidator   DocumentValidator
	superConverter SupergraphConverter
	graphBuilder   GraphBuilder
	solver         Solver
	workers        int
	graphOpts      querygraph.Options
}

// Option configures a Composer.
type Option func(*Composer)

// WithLinkExpander replaces the @link expansion collaborator.
func WithLinkExpander(e subgraph.LinkExpander) Option { return func(c *Composer) { c.expander = e } }

// WithUpgrader replaces the version upgrade collaborator.
func WithUpgrader(u subgraph.Upgrader) Option { return func(c *Composer) { c.upgrader = u } }

// WithValidator replaces the per-subgraph validator.
func WithValidator(v subgraph.Validator) Option { return func(c *Composer) { c.validator = v } }

// WithSchemaConverter replaces the subgraph federation-schema converter.
func WithSchemaConverter(sc SchemaConverter) Option { return func(c *Composer) { c.converter = sc } }

// WithMerger replaces the merge engine.
func WithMerger(m Merger) Option { return func(c *Composer) { c.merger = m } }

// WithDocumentValidator replaces the supergraph document validator.
func WithDocumentValidator(v DocumentValidator) Option {
	return func(c *Composer) { c.docValidator = v }
}

// WithSupergraphConverter replaces the supergraph converter.
func WithSupergraphConverter(sc SupergraphConverter) Option {
	return func(c *Composer) { c.superConverter = sc }
}

// WithGraphBuilder replaces the navigation graph builder.
func WithGraphBuilder(b GraphBuilder) Option { return func(c *Composer) { c.graphBuilder = b } }

// WithSolver replaces the satisfiability solver.
func WithSolver(s Solver) Option { return func(c *Composer) { c.solver = s } }

// WithWorkers bounds the number of subgraphs processed concurrently in the
// batch stages. Values below one select GOMAXPROCS.
func WithWorkers(n int) Option { return func(c *Composer) { c.workers = n } }

// WithGraphOptions sets the options used to build navigation graphs.
func WithGraphOptions(opts querygraph.Options) Option {
	return func(c *Composer) { c.graphOpts = opts }
}

// New returns a Composer wired with the default collaborators, then applies
// opts.
func New(opts ...Option) *Composer {
	c := &Composer{
		expander:       federation.NewLinkExpander(),
		upgrader:       federation.NewUpgrader(),
		validator:      federation.NewSubgraphValidator(),
		converter:      federation.SchemaConverter{},
		merger:         merge.New(),
		docValidator:   federation.NewDocumentValidator(),
		superConverter: federation.SupergraphExtractor{},
		graphBuilder:   querygraph.NewBuilder(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	if c.solver == nil {
		c.solver = satisfiability.New(c.graphOpts)
	}
	return c
}
