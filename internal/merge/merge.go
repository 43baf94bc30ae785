// Package merge combines validated subgraph schemas into a single supergraph
// document annotated with join directives.
//
// The engine is deterministic: subgraphs are processed in name order and the
// merged types are emitted sorted by name. Conflicts do not stop the merge;
// every conflict found is reported in a Failure.
package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/federation"
	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// Input is one subgraph handed to the merge engine.
type Input struct {
	Name   string
	URL    string
	Schema *federation.Schema
}

// Failure lists the merge conflicts, one human readable message each.
type Failure struct {
	Errors []string
}

// Error returns a compact summary of the conflicts.
func (f *Failure) Error() string {
	switch len(f.Errors) {
	case 0:
		return "merge failed"
	case 1:
		return f.Errors[0]
	default:
		return fmt.Sprintf("%s (and %d more)", f.Errors[0], len(f.Errors)-1)
	}
}

// Engine is the default merge engine.
type Engine struct{}

// New returns a merge engine.
func New() *Engine { return &Engine{} }

// source is one subgraph's definition of a merged type.
type source struct {
	graph  string
	enum   string
	schema *federation.Schema
	def    *ast.Definition
	rename map[string]string
}

type typeEntry struct {
	name    string
	kind    ast.DefinitionKind
	sources []source
}

type merger struct {
	types map[string]*typeEntry
	errs  []string
}

// Merge merges subgraphs keyed by name. On conflicts it returns a *Failure.
func (e *Engine) Merge(ctx context.Context, subgraphs map[string]Input) (*ast.SchemaDocument, error) {
	logger := ctxlog.FromContext(ctx)

	if len(subgraphs) == 0 {
		return nil, &Failure{Errors: []string{"No subgraphs to compose"}}
	}
	names := make([]string, 0, len(subgraphs))
	for name := range subgraphs {
		names = append(names, name)
	}
	sort.Strings(names)
	enums := graphEnumValues(names)

	m := &merger{types: map[string]*typeEntry{}}
	for _, name := range names {
		in := subgraphs[name]
		if in.Schema == nil || in.Schema.AST == nil {
			m.errorf("Subgraph %q has no schema", name)
			continue
		}
		m.collect(name, enums[name], in.Schema)
	}

	typeNames := make([]string, 0, len(m.types))
	for name := range m.types {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	var merged ast.DefinitionList
	for _, name := range typeNames {
		if def := m.mergeType(m.types[name]); def != nil {
			merged = append(merged, def)
		}
	}
	if len(m.errs) > 0 {
		logger.Debug("Merge: conflicts found.", "conflicts", len(m.errs))
		return nil, &Failure{Errors: m.errs}
	}

	doc := supergraphDocument(names, enums, subgraphs, merged)
	logger.Debug("Merge: supergraph document built.", "subgraphs", len(names), "types", len(merged))
	return doc, nil
}

func (m *merger) errorf(format string, args ...any) {
	m.errs = append(m.errs, fmt.Sprintf(format, args...))
}

// collect registers every type of one subgraph, renaming its root types to
// the standard Query, Mutation and Subscription names.
func (m *merger) collect(graph, enum string, schema *federation.Schema) {
	rename := map[string]string{}
	for def, standard := range map[*ast.Definition]string{
		schema.AST.Query:        "Query",
		schema.AST.Mutation:     "Mutation",
		schema.AST.Subscription: "Subscription",
	} {
		if def != nil && def.Name != standard {
			rename[def.Name] = standard
		}
	}

	for _, typeName := range schema.TypeNames() {
		def := schema.AST.Types[typeName]
		name := typeName
		if standard, ok := rename[typeName]; ok {
			name = standard
		}
		entry, ok := m.types[name]
		if !ok {
			entry = &typeEntry{name: name, kind: def.Kind}
			m.types[name] = entry
		}
		if entry.kind != def.Kind {
			m.errorf("Type %q has mismatched kind: it is defined as %s in subgraph %q but %s in subgraph %q",
				name, entry.kind, entry.sources[0].graph, def.Kind, graph)
			continue
		}
		entry.sources = append(entry.sources, source{graph: graph, enum: enum, schema: schema, def: def, rename: rename})
	}
}

func (m *merger) mergeType(entry *typeEntry) *ast.Definition {
	out := &ast.Definition{Kind: entry.kind, Name: entry.name}
	for _, src := range entry.sources {
		if out.Description == "" {
			out.Description = src.def.Description
		}
	}

	switch entry.kind {
	case ast.Object, ast.Interface:
		m.mergeComposite(entry, out)
	case ast.Union:
		seen := map[string]bool{}
		for _, src := range entry.sources {
			out.Directives = append(out.Directives, joinType(src, nil))
			for _, member := range src.def.Types {
				member = renamed(src, member)
				if !seen[member] {
					seen[member] = true
					out.Types = append(out.Types, member)
				}
			}
		}
	case ast.Enum:
		for _, src := range entry.sources {
			out.Directives = append(out.Directives, joinType(src, nil))
			for _, v := range src.def.EnumValues {
				if out.EnumValues.ForName(v.Name) == nil {
					out.EnumValues = append(out.EnumValues, &ast.EnumValueDefinition{
						Name:        v.Name,
						Description: v.Description,
						Directives:  deprecation(v.Directives),
					})
				}
			}
		}
	case ast.InputObject:
		m.mergeInput(entry, out)
	case ast.Scalar:
		for _, src := range entry.sources {
			out.Directives = append(out.Directives, joinType(src, nil))
		}
	}
	return out
}

type fieldSource struct {
	source
	field *ast.FieldDefinition
	coord federation.Coordinate
}

func (m *merger) mergeComposite(entry *typeEntry, out *ast.Definition) {
	var order []string
	fields := map[string][]fieldSource{}
	seenIface := map[string]bool{}

	for _, src := range entry.sources {
		keys := src.schema.Keys[src.def.Name]
		if len(keys) == 0 {
			out.Directives = append(out.Directives, joinType(src, nil))
		}
		for i := range keys {
			out.Directives = append(out.Directives, joinType(src, &keys[i]))
		}
		for _, iface := range src.def.Interfaces {
			out.Directives = append(out.Directives, sdl.NewDirective(federation.JoinImplements,
				"graph", sdl.EnumName(src.enum), "interface", iface))
			if !seenIface[iface] {
				seenIface[iface] = true
				out.Interfaces = append(out.Interfaces, iface)
			}
		}
		for _, f := range src.def.Fields {
			if sdl.IsIntrospection(f.Name) {
				continue
			}
			if _, ok := fields[f.Name]; !ok {
				order = append(order, f.Name)
			}
			fields[f.Name] = append(fields[f.Name], fieldSource{
				source: src,
				field:  f,
				coord:  federation.Coordinate{Type: src.def.Name, Field: f.Name},
			})
		}
	}

	for _, name := range order {
		sources := fields[name]
		first := sources[0]
		typ := renamedType(first.source, first.field.Type)
		for _, fs := range sources[1:] {
			other := renamedType(fs.source, fs.field.Type)
			if !sameShape(typ, other) {
				m.errorf("Type of field %q is incompatible across subgraphs: it has type %q in subgraph %q but type %q in subgraph %q",
					entry.name+"."+name, first.field.Type.String(), first.graph, fs.field.Type.String(), fs.graph)
				continue
			}
			typ = mergeOutputType(typ, other)
		}
		if entry.kind == ast.Object {
			m.checkShareable(entry.name+"."+name, sources)
		}

		field := &ast.FieldDefinition{Name: name, Type: typ, Arguments: first.field.Arguments}
		for _, fs := range sources {
			if field.Description == "" {
				field.Description = fs.field.Description
			}
			if len(field.Directives) == 0 {
				field.Directives = deprecation(fs.field.Directives)
			}
		}
		for _, fs := range sources {
			field.Directives = append(field.Directives, joinField(fs))
		}
		out.Fields = append(out.Fields, field)
	}
}

// checkShareable reports fields resolved by several subgraphs when one of
// them does not mark the field @shareable. Key fields are always shareable.
func (m *merger) checkShareable(coordinate string, sources []fieldSource) {
	var resolving, nonShareable []string
	for _, fs := range sources {
		if fs.schema.External[fs.coord] {
			continue
		}
		resolving = append(resolving, fs.graph)
		if !fs.schema.Shareable[fs.coord] && !fs.schema.IsKeyField(fs.coord) {
			nonShareable = append(nonShareable, fs.graph)
		}
	}
	if len(resolving) < 2 || len(nonShareable) == 0 {
		return
	}
	m.errorf("Non-shareable field %q is resolved from multiple subgraphs: it is resolved from subgraphs %s and defined as non-shareable in %s %s",
		coordinate, humanList(resolving), plural(len(nonShareable), "subgraph", "subgraphs"), humanList(nonShareable))
}

// mergeInput intersects the fields of an input object across the subgraphs
// that define it.
func (m *merger) mergeInput(entry *typeEntry, out *ast.Definition) {
	for _, src := range entry.sources {
		out.Directives = append(out.Directives, joinType(src, nil))
	}
	first := entry.sources[0]
	var order []string
	seen := map[string]bool{}
	for _, src := range entry.sources {
		for _, f := range src.def.Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				order = append(order, f.Name)
			}
		}
	}

	for _, name := range order {
		var present []source
		var missing []string
		var typ *ast.Type
		var def *ast.FieldDefinition
		required := ""
		for _, src := range entry.sources {
			f := src.def.Fields.ForName(name)
			if f == nil {
				missing = append(missing, src.graph)
				continue
			}
			present = append(present, src)
			if f.Type.NonNull && f.DefaultValue == nil && required == "" {
				required = src.graph
			}
			t := renamedType(src, f.Type)
			switch {
			case typ == nil:
				typ, def = t, f
			case !sameShape(typ, t):
				m.errorf("Type of input field %q is incompatible across subgraphs: it has type %q in subgraph %q but type %q in subgraph %q",
					entry.name+"."+name, def.Type.String(), present[0].graph, f.Type.String(), src.graph)
			default:
				typ = mergeInputType(typ, t)
			}
		}
		if len(missing) > 0 {
			if required != "" {
				m.errorf("Input field %q is required in subgraph %q but is missing in %s %s",
					entry.name+"."+name, required, plural(len(missing), "subgraph", "subgraphs"), humanList(missing))
			}
			continue
		}
		out.Fields = append(out.Fields, &ast.FieldDefinition{
			Name:         name,
			Description:  def.Description,
			Type:         typ,
			DefaultValue: def.DefaultValue,
			Directives:   deprecation(def.Directives),
		})
	}
	if len(out.Fields) == 0 {
		m.errorf("None of the fields of input object type %q are consistently defined in all the subgraphs defining that type (first defined in subgraph %q)",
			entry.name, first.graph)
	}
}

func joinType(src source, key *federation.Key) *ast.Directive {
	args := []any{"graph", sdl.EnumName(src.enum)}
	if key != nil {
		args = append(args, "key", key.Fields)
		if !key.Resolvable {
			args = append(args, "resolvable", false)
		}
	}
	if src.schema.Extends[src.def.Name] {
		args = append(args, "extension", true)
	}
	return sdl.NewDirective(federation.JoinType, args...)
}

func joinField(fs fieldSource) *ast.Directive {
	args := []any{"graph", sdl.EnumName(fs.enum)}
	if raw, ok := fs.schema.Requires[fs.coord]; ok {
		args = append(args, "requires", raw)
	}
	if raw, ok := fs.schema.Provides[fs.coord]; ok {
		args = append(args, "provides", raw)
	}
	if fs.schema.External[fs.coord] {
		args = append(args, "external", true)
	}
	return sdl.NewDirective(federation.JoinField, args...)
}

// deprecation keeps only the @deprecated application of list.
func deprecation(list ast.DirectiveList) ast.DirectiveList {
	if d := list.ForName("deprecated"); d != nil {
		return ast.DirectiveList{d}
	}
	return nil
}

func renamed(src source, name string) string {
	if standard, ok := src.rename[name]; ok {
		return standard
	}
	return name
}

func renamedType(src source, t *ast.Type) *ast.Type {
	if t == nil {
		return nil
	}
	out := &ast.Type{NonNull: t.NonNull}
	if t.Elem != nil {
		out.Elem = renamedType(src, t.Elem)
	} else {
		out.NamedType = renamed(src, t.NamedType)
	}
	return out
}

// sameShape reports whether a and b name the same type with the same list
// nesting, ignoring nullability.
func sameShape(a, b *ast.Type) bool {
	if (a.Elem == nil) != (b.Elem == nil) {
		return false
	}
	if a.Elem != nil {
		return sameShape(a.Elem, b.Elem)
	}
	return a.NamedType == b.NamedType
}

// mergeOutputType keeps the nullable form where a and b disagree.
func mergeOutputType(a, b *ast.Type) *ast.Type {
	out := &ast.Type{NamedType: a.NamedType, NonNull: a.NonNull && b.NonNull}
	if a.Elem != nil {
		out.Elem = mergeOutputType(a.Elem, b.Elem)
	}
	return out
}

// mergeInputType keeps the non-null form where a and b disagree.
func mergeInputType(a, b *ast.Type) *ast.Type {
	out := &ast.Type{NamedType: a.NamedType, NonNull: a.NonNull || b.NonNull}
	if a.Elem != nil {
		out.Elem = mergeInputType(a.Elem, b.Elem)
	}
	return out
}

// graphEnumValues derives a join__Graph enum value for every subgraph name.
func graphEnumValues(names []string) map[string]string {
	out := make(map[string]string, len(names))
	taken := map[string]bool{}
	for _, name := range names {
		var b strings.Builder
		for _, r := range strings.ToUpper(name) {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				b.WriteRune(r)
			} else {
				b.WriteRune('_')
			}
		}
		value := b.String()
		if value == "" || unicode.IsDigit(rune(value[0])) {
			value = "_" + value
		}
		candidate := value
		for i := 1; taken[candidate]; i++ {
			candidate = fmt.Sprintf("%s_%d", value, i)
		}
		taken[candidate] = true
		out[name] = candidate
	}
	return out
}

func supergraphDocument(names []string, enums map[string]string, subgraphs map[string]Input, types ast.DefinitionList) *ast.SchemaDocument {
	defs := federation.JoinDefinitions()

	graphEnum := &ast.Definition{Kind: ast.Enum, Name: federation.JoinGraphEnum}
	for _, name := range names {
		graphEnum.EnumValues = append(graphEnum.EnumValues, &ast.EnumValueDefinition{
			Name: enums[name],
			Directives: ast.DirectiveList{
				sdl.NewDirective(federation.JoinGraph, "name", name, "url", subgraphs[name].URL),
			},
		})
	}

	doc := &ast.SchemaDocument{
		SchemaExtension: ast.SchemaDefinitionList{{
			Directives: ast.DirectiveList{
				sdl.NewDirective(federation.DirectiveLink, "url", federation.LinkSpecURL),
				sdl.NewDirective(federation.DirectiveLink, "url", federation.JoinSpecURL, "for", sdl.EnumName("EXECUTION")),
			},
		}},
		Directives: defs.Directives,
	}
	doc.Definitions = append(doc.Definitions, defs.Definitions...)
	doc.Definitions = append(doc.Definitions, graphEnum)
	doc.Definitions = append(doc.Definitions, types...)
	return doc
}

func humanList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	if len(quoted) <= 1 {
		return strings.Join(quoted, "")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
