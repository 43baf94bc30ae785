// Package sdl holds the small set of GraphQL SDL document helpers shared by
// the composition stages: parsing, printing, copying and loading documents
// into validated schemas.
//
// Documents are copied by printing and re-parsing them. gqlparser's
// validator merges type extensions into base definitions in place, so every
// validation works on a fresh copy and the caller's document is left intact.
package sdl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Parse parses SDL text into a schema document. name is used in error
// positions.
func Parse(name, input string) (*ast.SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: input})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// MustParse is like Parse but panics on error. It is meant for SDL embedded
// in the binary.
func MustParse(name, input string) *ast.SchemaDocument {
	doc, err := Parse(name, input)
	if err != nil {
		panic(fmt.Sprintf("sdl: embedded document %s does not parse: %v", name, err))
	}
	return doc
}

// Format prints a schema document.
func Format(doc *ast.SchemaDocument) string {
	var b strings.Builder
	formatter.NewFormatter(&b, formatter.WithIndent("  ")).FormatSchemaDocument(doc)
	return b.String()
}

// Clone returns a deep copy of doc.
func Clone(doc *ast.SchemaDocument) (*ast.SchemaDocument, error) {
	if doc == nil {
		return &ast.SchemaDocument{}, nil
	}
	out, err := Parse("clone.graphql", Format(doc))
	if err != nil {
		return nil, fmt.Errorf("copy schema document: %w", err)
	}
	return out, nil
}

// Canonical returns a serialization of doc that does not depend on the
// order of its top-level definitions, or on comments and whitespace.
func Canonical(doc *ast.SchemaDocument) (string, error) {
	c, err := Clone(doc)
	if err != nil {
		return "", err
	}
	sort.SliceStable(c.Directives, func(i, j int) bool { return c.Directives[i].Name < c.Directives[j].Name })
	sort.SliceStable(c.Definitions, func(i, j int) bool { return c.Definitions[i].Name < c.Definitions[j].Name })
	sort.SliceStable(c.Extensions, func(i, j int) bool { return c.Extensions[i].Name < c.Extensions[j].Name })
	return Format(c), nil
}

// Load validates doc together with the GraphQL prelude and returns the
// resulting schema. doc itself is not modified.
func Load(name string, doc *ast.SchemaDocument) (*ast.Schema, error) {
	return validator.LoadSchema(validator.Prelude, &ast.Source{Name: name, Input: Format(doc)})
}

// IsIntrospection reports whether name is reserved for introspection.
func IsIntrospection(name string) bool {
	return strings.HasPrefix(name, "__")
}

// Walk calls fn for every directive application in doc: on schema
// definitions, types, fields, arguments and enum values.
func Walk(doc *ast.SchemaDocument, fn func(d *ast.Directive)) {
	each := func(list ast.DirectiveList) {
		for _, d := range list {
			fn(d)
		}
	}
	for _, s := range doc.Schema {
		each(s.Directives)
	}
	for _, s := range doc.SchemaExtension {
		each(s.Directives)
	}
	for _, defs := range []ast.DefinitionList{doc.Definitions, doc.Extensions} {
		for _, def := range defs {
			each(def.Directives)
			for _, f := range def.Fields {
				each(f.Directives)
				for _, a := range f.Arguments {
					each(a.Directives)
				}
			}
			for _, v := range def.EnumValues {
				each(v.Directives)
			}
		}
	}
}

// StringArg returns the raw string value of a directive argument.
func StringArg(d *ast.Directive, name string) (string, bool) {
	if d == nil {
		return "", false
	}
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return "", false
	}
	switch arg.Value.Kind {
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return arg.Value.Raw, true
	}
	return "", false
}

// BoolArg returns the value of a boolean directive argument, or def when the
// argument is absent.
func BoolArg(d *ast.Directive, name string, def bool) bool {
	if d == nil {
		return def
	}
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil || arg.Value.Kind != ast.BooleanValue {
		return def
	}
	return arg.Value.Raw == "true"
}

// NewDirective builds a directive application. args alternates names and
// values; string values become GraphQL strings, bool values booleans and
// EnumName values enum literals.
func NewDirective(name string, args ...any) *ast.Directive {
	d := &ast.Directive{Name: name}
	for i := 0; i+1 < len(args); i += 2 {
		argName, _ := args[i].(string)
		var v *ast.Value
		switch val := args[i+1].(type) {
		case EnumName:
			v = &ast.Value{Kind: ast.EnumValue, Raw: string(val)}
		case string:
			v = &ast.Value{Kind: ast.StringValue, Raw: val}
		case bool:
			raw := "false"
			if val {
				raw = "true"
			}
			v = &ast.Value{Kind: ast.BooleanValue, Raw: raw}
		default:
			v = &ast.Value{Kind: ast.StringValue, Raw: fmt.Sprint(val)}
		}
		d.Arguments = append(d.Arguments, &ast.Argument{Name: argName, Value: v})
	}
	return d
}

// EnumName marks a directive argument value as an enum literal.
type EnumName string
