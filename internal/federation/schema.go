package federation

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// Coordinate names a field of a type.
type Coordinate struct {
	Type  string
	Field string
}

func (c Coordinate) String() string { return c.Type + "." + c.Field }

// Key is one @key of an entity.
type Key struct {
	Fields     string
	Selection  ast.SelectionSet
	Resolvable bool
}

// TopLevelFields returns the top-level field names of the key.
func (k Key) TopLevelFields() []string { return TopLevelFields(k.Selection) }

// Schema is a validated subgraph schema annotated with its federation
// metadata.
type Schema struct {
	AST *ast.Schema

	Keys      map[string][]Key
	Extends   map[string]bool
	External  map[Coordinate]bool
	Shareable map[Coordinate]bool
	Requires  map[Coordinate]string
	Provides  map[Coordinate]string
}

// NewSchema reads the federation metadata of a validated subgraph schema.
func NewSchema(schema *ast.Schema) (*Schema, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	s := &Schema{
		AST:       schema,
		Keys:      map[string][]Key{},
		Extends:   map[string]bool{},
		External:  map[Coordinate]bool{},
		Shareable: map[Coordinate]bool{},
		Requires:  map[Coordinate]string{},
		Provides:  map[Coordinate]string{},
	}

	for _, name := range sortedTypeNames(schema) {
		def := schema.Types[name]
		for _, d := range def.Directives.ForNames(DirectiveKey) {
			raw, _ := sdl.StringArg(d, "fields")
			sel, err := ParseFieldSet(raw)
			if err != nil {
				return nil, fmt.Errorf("@key on type %s: %w", name, err)
			}
			s.Keys[name] = append(s.Keys[name], Key{Fields: raw, Selection: sel, Resolvable: sdl.BoolArg(d, "resolvable", true)})
		}
		s.Extends[name] = def.Directives.ForName(DirectiveExtends) != nil

		typeShareable := def.Directives.ForName(DirectiveShareable) != nil
		typeExternal := def.Directives.ForName(DirectiveExternal) != nil
		for _, f := range def.Fields {
			if sdl.IsIntrospection(f.Name) {
				continue
			}
			c := Coordinate{Type: name, Field: f.Name}
			if typeExternal || f.Directives.ForName(DirectiveExternal) != nil {
				s.External[c] = true
			}
			if typeShareable || f.Directives.ForName(DirectiveShareable) != nil {
				s.Shareable[c] = true
			}
			for _, fs := range []struct {
				directive string
				target    map[Coordinate]string
			}{{DirectiveRequires, s.Requires}, {DirectiveProvides, s.Provides}} {
				d := f.Directives.ForName(fs.directive)
				if d == nil {
					continue
				}
				raw, _ := sdl.StringArg(d, "fields")
				if _, err := ParseFieldSet(raw); err != nil {
					return nil, fmt.Errorf("@%s on %s: %w", fs.directive, c, err)
				}
				fs.target[c] = raw
			}
		}
	}
	return s, nil
}

// IsEntity reports whether typeName declares at least one @key.
func (s *Schema) IsEntity(typeName string) bool { return len(s.Keys[typeName]) > 0 }

// IsKeyField reports whether c is selected at the top level of one of the
// keys of its type.
func (s *Schema) IsKeyField(c Coordinate) bool {
	for _, k := range s.Keys[c.Type] {
		for _, f := range k.TopLevelFields() {
			if f == c.Field {
				return true
			}
		}
	}
	return false
}

// TypeNames returns the names of the user defined types, sorted.
func (s *Schema) TypeNames() []string { return sortedTypeNames(s.AST) }

// SchemaConverter converts validated subgraph schemas with NewSchema.
type SchemaConverter struct{}

// Convert implements the converter used by the composition stages.
func (SchemaConverter) Convert(schema *ast.Schema) (*Schema, error) { return NewSchema(schema) }
