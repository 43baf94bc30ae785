// Package supergraph holds the composed supergraph document in its two
// states: Merged, straight out of the merge engine, and Satisfiable, after
// every field has been proven resolvable.
package supergraph

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/federation"
	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// Merged is the state of a supergraph produced by the merge engine.
type Merged struct{}

// Satisfiable is the state of a supergraph whose fields are all resolvable.
type Satisfiable struct{}

// State is the set of supergraph states.
type State interface {
	Merged | Satisfiable
}

// Supergraph is a composed schema document in state S.
type Supergraph[S State] struct {
	doc    *ast.SchemaDocument
	schema *ast.Schema
}

// New wraps a merged supergraph document.
func New(doc *ast.SchemaDocument) *Supergraph[Merged] {
	if doc == nil {
		doc = &ast.SchemaDocument{}
	}
	return &Supergraph[Merged]{doc: doc}
}

// Parse parses supergraph SDL into a Merged supergraph.
func Parse(sdlText string) (*Supergraph[Merged], error) {
	doc, err := sdl.Parse("supergraph.graphql", sdlText)
	if err != nil {
		return nil, err
	}
	return New(doc), nil
}

// Satisfied marks a merged supergraph as satisfiable. schema is the
// validated schema of its document.
func Satisfied(s *Supergraph[Merged], schema *ast.Schema) *Supergraph[Satisfiable] {
	return &Supergraph[Satisfiable]{doc: s.doc, schema: schema}
}

// Schema returns the validated schema of a satisfiable supergraph.
func Schema(s *Supergraph[Satisfiable]) *ast.Schema { return s.schema }

// Document returns the supergraph document. Callers must not modify it.
func (s *Supergraph[S]) Document() *ast.SchemaDocument { return s.doc }

// SDL prints the supergraph document.
func (s *Supergraph[S]) SDL() string { return sdl.Format(s.doc) }

// TypeNames returns the names of the API types the document defines, in
// document order. Federation machinery and built-in types are left out.
func (s *Supergraph[S]) TypeNames() []string {
	var out []string
	seen := map[string]bool{}
	for _, defs := range []ast.DefinitionList{s.doc.Definitions, s.doc.Extensions} {
		for _, def := range defs {
			if def.BuiltIn || seen[def.Name] || federation.IsFederationType(def.Name) || sdl.IsIntrospection(def.Name) {
				continue
			}
			seen[def.Name] = true
			out = append(out, def.Name)
		}
	}
	return out
}

// HasQueryRoot reports whether the document declares a query root type,
// either through a schema definition or a type named Query.
func (s *Supergraph[S]) HasQueryRoot() bool {
	declared := false
	for _, list := range []ast.SchemaDefinitionList{s.doc.Schema, s.doc.SchemaExtension} {
		for _, def := range list {
			for _, op := range def.OperationTypes {
				if op.Operation == ast.Query {
					return true
				}
				declared = true
			}
		}
	}
	if declared {
		return false
	}
	for _, defs := range []ast.DefinitionList{s.doc.Definitions, s.doc.Extensions} {
		if def := defs.ForName("Query"); def != nil && def.Kind == ast.Object {
			return true
		}
	}
	return false
}
