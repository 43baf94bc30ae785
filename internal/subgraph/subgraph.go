// Package subgraph models a subgraph schema as it moves through the
// preparation states of composition.
//
// A Subgraph is parameterized by its state. Each transition is a function
// that accepts exactly one state and returns the next one, so calling the
// transitions out of order does not compile:
//
//	Initial -> ExpandLinks -> Expanded -> UpgradeIfNecessary -> Upgraded -> Validate -> Validated
//
// Transitions never modify their input. The document is copied before a
// collaborator sees it.
package subgraph

import (
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// Initial is the state of a freshly parsed subgraph.
type Initial struct{}

// Expanded is the state after @link imports have been resolved.
type Expanded struct{}

// Upgraded is the state after a legacy subgraph has been upgraded.
type Upgraded struct{}

// Validated is the state of a subgraph that passed validation.
type Validated struct{}

// State is the set of preparation states.
type State interface {
	Initial | Expanded | Upgraded | Validated
}

// Subgraph is a named subgraph schema in state S.
type Subgraph[S State] struct {
	name   string
	url    string
	doc    *ast.SchemaDocument
	schema *ast.Schema
}

// LinkExpander resolves @link imports of a document.
type LinkExpander interface {
	ExpandLinks(ctx context.Context, name string, doc *ast.SchemaDocument) (*ast.SchemaDocument, error)
}

// Upgrader rewrites legacy federation documents.
type Upgrader interface {
	Upgrade(ctx context.Context, name string, doc *ast.SchemaDocument) (*ast.SchemaDocument, error)
}

// Validator validates a document and returns its schema.
type Validator interface {
	Validate(ctx context.Context, name string, doc *ast.SchemaDocument) (*ast.Schema, error)
}

// New wraps a parsed document as an Initial subgraph.
func New(name, url string, doc *ast.SchemaDocument) *Subgraph[Initial] {
	return &Subgraph[Initial]{name: name, url: url, doc: doc}
}

// Parse parses sdlText into an Initial subgraph. Failures are reported as a
// subgraph error naming the subgraph.
func Parse(name, url, sdlText string) (*Subgraph[Initial], error) {
	doc, err := sdl.Parse(name+".graphql", sdlText)
	if err != nil {
		return nil, diag.SubgraphError(name, fmt.Errorf("parse schema: %w", err))
	}
	return New(name, url, doc), nil
}

// Name returns the subgraph name.
func (s *Subgraph[S]) Name() string { return s.name }

// URL returns the routing URL.
func (s *Subgraph[S]) URL() string { return s.url }

// Document returns the schema document. Callers must not modify it.
func (s *Subgraph[S]) Document() *ast.SchemaDocument { return s.doc }

// SDL returns the printed schema document.
func (s *Subgraph[S]) SDL() string { return sdl.Format(s.doc) }

// Canonical returns a serialization of the schema that is equal for
// subgraphs with the same content.
func (s *Subgraph[S]) Canonical() (string, error) { return sdl.Canonical(s.doc) }

// ValidSchema returns the validated schema of a subgraph.
func ValidSchema(s *Subgraph[Validated]) *ast.Schema { return s.schema }

// ExpandLinks resolves the @link imports of an Initial subgraph.
func ExpandLinks(ctx context.Context, s *Subgraph[Initial], e LinkExpander) (*Subgraph[Expanded], error) {
	doc, err := transform(ctx, s.name, s.doc, "expand links", e.ExpandLinks)
	if err != nil {
		return nil, err
	}
	return &Subgraph[Expanded]{name: s.name, url: s.url, doc: doc}, nil
}

// UpgradeIfNecessary upgrades an Expanded subgraph to the current federation
// version. Up to date subgraphs come back unchanged.
func UpgradeIfNecessary(ctx context.Context, s *Subgraph[Expanded], u Upgrader) (*Subgraph[Upgraded], error) {
	doc, err := transform(ctx, s.name, s.doc, "upgrade", u.Upgrade)
	if err != nil {
		return nil, err
	}
	return &Subgraph[Upgraded]{name: s.name, url: s.url, doc: doc}, nil
}

// Validate validates an Upgraded subgraph.
func Validate(ctx context.Context, s *Subgraph[Upgraded], v Validator) (*Subgraph[Validated], error) {
	logger := ctxlog.FromContext(ctx)

	doc, err := sdl.Clone(s.doc)
	if err != nil {
		return nil, diag.SubgraphError(s.name, err)
	}
	schema, err := v.Validate(ctx, s.name, doc)
	if err != nil {
		logger.Debug("Validate: subgraph rejected.", "subgraph", s.name, "error", err)
		return nil, diag.SubgraphError(s.name, fmt.Errorf("validate: %w", err))
	}
	return &Subgraph[Validated]{name: s.name, url: s.url, doc: doc, schema: schema}, nil
}

func transform(
	ctx context.Context,
	name string,
	doc *ast.SchemaDocument,
	step string,
	fn func(context.Context, string, *ast.SchemaDocument) (*ast.SchemaDocument, error),
) (*ast.SchemaDocument, error) {
	logger := ctxlog.FromContext(ctx)

	c, err := sdl.Clone(doc)
	if err != nil {
		return nil, diag.SubgraphError(name, err)
	}
	out, err := fn(ctx, name, c)
	if err != nil {
		logger.Debug("Subgraph transition failed.", "subgraph", name, "step", step, "error", err)
		return nil, diag.SubgraphError(name, fmt.Errorf("%s: %w", step, err))
	}
	return out, nil
}
