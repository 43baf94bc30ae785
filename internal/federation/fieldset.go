package federation

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseFieldSet parses the value of a FieldSet argument such as
// "id sku" or "id organization { id }" into a selection set.
func ParseFieldSet(raw string) (ast.SelectionSet, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "fieldset", Input: "{" + raw + "}"})
	if err != nil {
		return nil, fmt.Errorf("invalid field set %q: %w", raw, err)
	}
	if len(doc.Fragments) > 0 || len(doc.Operations) != 1 {
		return nil, fmt.Errorf("invalid field set %q: expected a single selection set", raw)
	}
	sel := doc.Operations[0].SelectionSet
	if len(sel) == 0 {
		return nil, fmt.Errorf("invalid field set %q: empty selection", raw)
	}
	return sel, nil
}

// TopLevelFields returns the names of the fields selected at the top level
// of sel, in order. Fields selected inside inline fragments are included.
func TopLevelFields(sel ast.SelectionSet) []string {
	var out []string
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			out = append(out, s.Name)
		case *ast.InlineFragment:
			out = append(out, TopLevelFields(s.SelectionSet)...)
		}
	}
	return out
}

// fieldCheck inspects one selected field. parent is the type the field is
// selected on.
type fieldCheck func(parent *ast.Definition, field *ast.FieldDefinition, depth int) error

// checkFieldSet verifies that sel selects existing fields of parent, that
// leaf fields have no sub-selection and composite fields have one. check,
// when set, is called for every resolved field.
func checkFieldSet(schema *ast.Schema, parent *ast.Definition, sel ast.SelectionSet, check fieldCheck) []error {
	return walkFieldSet(schema, parent, sel, check, 0)
}

func walkFieldSet(schema *ast.Schema, parent *ast.Definition, sel ast.SelectionSet, check fieldCheck, depth int) []error {
	var errs []error
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			if len(s.Arguments) > 0 {
				errs = append(errs, fmt.Errorf("field %s.%s cannot be selected with arguments", parent.Name, s.Name))
				continue
			}
			if s.Name == "__typename" {
				continue
			}
			field := parent.Fields.ForName(s.Name)
			if field == nil {
				errs = append(errs, fmt.Errorf("field %s.%s does not exist", parent.Name, s.Name))
				continue
			}
			if check != nil {
				if err := check(parent, field, depth); err != nil {
					errs = append(errs, err)
				}
			}
			target := schema.Types[field.Type.Name()]
			if target == nil {
				continue
			}
			switch {
			case target.IsCompositeType() && len(s.SelectionSet) == 0:
				errs = append(errs, fmt.Errorf("field %s.%s of type %s must have a selection of subfields", parent.Name, s.Name, field.Type.String()))
			case !target.IsCompositeType() && len(s.SelectionSet) > 0:
				errs = append(errs, fmt.Errorf("leaf field %s.%s cannot have a selection of subfields", parent.Name, s.Name))
			case len(s.SelectionSet) > 0:
				errs = append(errs, walkFieldSet(schema, target, s.SelectionSet, check, depth+1)...)
			}
		case *ast.InlineFragment:
			target := parent
			if s.TypeCondition != "" {
				target = schema.Types[s.TypeCondition]
				if target == nil {
					errs = append(errs, fmt.Errorf("unknown type %s in type condition", s.TypeCondition))
					continue
				}
			}
			errs = append(errs, walkFieldSet(schema, target, s.SelectionSet, check, depth)...)
		case *ast.FragmentSpread:
			errs = append(errs, fmt.Errorf("named fragment %s cannot be used in a field set", s.Name))
		}
	}
	return errs
}
