package federation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// SubgraphValidator checks that an upgraded subgraph is a structurally valid
// GraphQL schema and that its federation directives are used correctly.
type SubgraphValidator struct{}

// NewSubgraphValidator returns the default subgraph validator.
func NewSubgraphValidator() *SubgraphValidator { return &SubgraphValidator{} }

// Validate returns the validated schema of doc, or a gqlerror.List holding
// every violation found.
func (v *SubgraphValidator) Validate(ctx context.Context, name string, doc *ast.SchemaDocument) (*ast.Schema, error) {
	logger := ctxlog.FromContext(ctx)

	schema, err := sdl.Load(name+".graphql", doc)
	if err != nil {
		return nil, asGQLErrors(err)
	}

	var errs gqlerror.List
	for _, typeName := range sortedTypeNames(schema) {
		def := schema.Types[typeName]
		errs = append(errs, validateKeys(schema, def)...)
		for _, field := range def.Fields {
			if sdl.IsIntrospection(field.Name) {
				continue
			}
			errs = append(errs, validateFieldDirectives(schema, def, field)...)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	logger.Debug("Validate: subgraph schema is valid.", "subgraph", name, "types", len(schema.Types))
	return schema, nil
}

func validateKeys(schema *ast.Schema, def *ast.Definition) gqlerror.List {
	var errs gqlerror.List
	for _, key := range def.Directives.ForNames(DirectiveKey) {
		raw, ok := sdl.StringArg(key, "fields")
		if !ok {
			errs = append(errs, gqlerror.ErrorPosf(key.Position, "@key on type %s must have a string fields argument", def.Name))
			continue
		}
		sel, err := ParseFieldSet(raw)
		if err != nil {
			errs = append(errs, gqlerror.ErrorPosf(key.Position, "@key(fields: %q) on type %s: %v", raw, def.Name, err))
			continue
		}
		for _, ferr := range checkFieldSet(schema, def, sel, nil) {
			errs = append(errs, gqlerror.ErrorPosf(key.Position, "@key(fields: %q) on type %s: %v", raw, def.Name, ferr))
		}
	}
	return errs
}

func validateFieldDirectives(schema *ast.Schema, parent *ast.Definition, field *ast.FieldDefinition) gqlerror.List {
	var errs gqlerror.List
	coordinate := parent.Name + "." + field.Name

	if ext := field.Directives.ForName(DirectiveExternal); ext != nil && parent.Kind != ast.Object {
		errs = append(errs, gqlerror.ErrorPosf(ext.Position, "@external on %s is only allowed on object type fields", coordinate))
	}

	if req := field.Directives.ForName(DirectiveRequires); req != nil {
		raw, _ := sdl.StringArg(req, "fields")
		sel, err := ParseFieldSet(raw)
		if err != nil {
			errs = append(errs, gqlerror.ErrorPosf(req.Position, "@requires on %s: %v", coordinate, err))
		} else {
			mustBeExternal := func(p *ast.Definition, f *ast.FieldDefinition, depth int) error {
				if depth == 0 && f.Directives.ForName(DirectiveExternal) == nil {
					return fmt.Errorf("field %s.%s must be marked @external", p.Name, f.Name)
				}
				return nil
			}
			for _, ferr := range checkFieldSet(schema, parent, sel, mustBeExternal) {
				errs = append(errs, gqlerror.ErrorPosf(req.Position, "@requires(fields: %q) on %s: %v", raw, coordinate, ferr))
			}
		}
	}

	if prov := field.Directives.ForName(DirectiveProvides); prov != nil {
		raw, _ := sdl.StringArg(prov, "fields")
		target := schema.Types[field.Type.Name()]
		sel, err := ParseFieldSet(raw)
		switch {
		case err != nil:
			errs = append(errs, gqlerror.ErrorPosf(prov.Position, "@provides on %s: %v", coordinate, err))
		case target == nil || !target.IsCompositeType():
			errs = append(errs, gqlerror.ErrorPosf(prov.Position, "@provides on %s: field type %s is not a composite type", coordinate, field.Type.String()))
		default:
			for _, ferr := range checkFieldSet(schema, target, sel, nil) {
				errs = append(errs, gqlerror.ErrorPosf(prov.Position, "@provides(fields: %q) on %s: %v", raw, coordinate, ferr))
			}
		}
	}
	return errs
}

// asGQLErrors normalizes an error returned by gqlparser into a list.
func asGQLErrors(err error) gqlerror.List {
	var list gqlerror.List
	if errors.As(err, &list) {
		return list
	}
	var single *gqlerror.Error
	if errors.As(err, &single) {
		return gqlerror.List{single}
	}
	return gqlerror.List{gqlerror.Wrap(err)}
}

// sortedTypeNames returns the names of the user defined types of schema.
func sortedTypeNames(schema *ast.Schema) []string {
	names := make([]string, 0, len(schema.Types))
	for name, def := range schema.Types {
		if def.BuiltIn || sdl.IsIntrospection(name) || IsFederationType(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocumentValidator validates supergraph documents.
type DocumentValidator struct{}

// NewDocumentValidator returns the default document validator.
func NewDocumentValidator() *DocumentValidator { return &DocumentValidator{} }

// ValidateDocument validates doc together with the GraphQL prelude. Errors
// are returned as a gqlerror.List.
func (v *DocumentValidator) ValidateDocument(doc *ast.SchemaDocument) (*ast.Schema, error) {
	schema, err := sdl.Load("supergraph.graphql", doc)
	if err != nil {
		return nil, asGQLErrors(err)
	}
	return schema, nil
}
