package federation

import (
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// ImplicitGraph is the graph name given to supergraphs that carry no join
// metadata. Such a schema is treated as a single subgraph owning everything.
const ImplicitGraph = "supergraph"

// Graph is one subgraph recorded in a supergraph.
type Graph struct {
	Name string
	Enum string
	URL  string
}

// TypeOwner records that a graph declares a type.
type TypeOwner struct {
	Graph     string
	Keys      []Key
	Extension bool
}

// FieldOwner records that a graph declares a field.
type FieldOwner struct {
	Graph    string
	External bool
	Requires string
	Provides string
}

// TypeInfo is the ownership of one supergraph type.
type TypeInfo struct {
	Def    *ast.Definition
	Owners map[string]*TypeOwner
	Fields map[string]map[string]*FieldOwner
}

// SupergraphSchema is a validated supergraph schema with its join metadata
// decoded into per-graph ownership.
type SupergraphSchema struct {
	AST    *ast.Schema
	Graphs []Graph
	Types  map[string]*TypeInfo
}

// SupergraphExtractor builds SupergraphSchema values with ExtractSupergraph.
type SupergraphExtractor struct{}

// Extract implements the converter used by the composition stages.
func (SupergraphExtractor) Extract(schema *ast.Schema) (*SupergraphSchema, error) {
	return ExtractSupergraph(schema)
}

// ExtractSupergraph decodes the join directives of a validated supergraph.
func ExtractSupergraph(schema *ast.Schema) (*SupergraphSchema, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	s := &SupergraphSchema{AST: schema, Types: map[string]*TypeInfo{}}

	enum := schema.Types[JoinGraphEnum]
	if enum == nil {
		s.Graphs = []Graph{{Name: ImplicitGraph, Enum: ImplicitGraph}}
	} else {
		if enum.Kind != ast.Enum {
			return nil, fmt.Errorf("%s must be an enum, found %s", JoinGraphEnum, enum.Kind)
		}
		for _, v := range enum.EnumValues {
			d := v.Directives.ForName(JoinGraph)
			name, ok := sdl.StringArg(d, "name")
			if !ok {
				return nil, fmt.Errorf("%s value %s is missing @%s(name:)", JoinGraphEnum, v.Name, JoinGraph)
			}
			url, _ := sdl.StringArg(d, "url")
			s.Graphs = append(s.Graphs, Graph{Name: name, Enum: v.Name, URL: url})
		}
	}
	byEnum := map[string]string{}
	for _, g := range s.Graphs {
		byEnum[g.Enum] = g.Name
	}
	graphOf := func(d *ast.Directive, where string) (string, error) {
		if enum == nil {
			return ImplicitGraph, nil
		}
		v, ok := sdl.StringArg(d, "graph")
		if !ok {
			return "", fmt.Errorf("@%s on %s has no graph", d.Name, where)
		}
		name, ok := byEnum[v]
		if !ok {
			return "", fmt.Errorf("@%s on %s references unknown graph %s", d.Name, where, v)
		}
		return name, nil
	}

	for _, name := range sortedTypeNames(schema) {
		def := schema.Types[name]
		info := &TypeInfo{Def: def, Owners: map[string]*TypeOwner{}, Fields: map[string]map[string]*FieldOwner{}}
		s.Types[name] = info

		var joins ast.DirectiveList
		if enum != nil {
			joins = def.Directives.ForNames(JoinType)
		}
		if len(joins) == 0 {
			for _, g := range s.Graphs {
				info.Owners[g.Name] = &TypeOwner{Graph: g.Name}
			}
		}
		for _, d := range joins {
			graph, err := graphOf(d, name)
			if err != nil {
				return nil, err
			}
			owner, ok := info.Owners[graph]
			if !ok {
				owner = &TypeOwner{Graph: graph}
				info.Owners[graph] = owner
			}
			owner.Extension = owner.Extension || sdl.BoolArg(d, "extension", false)
			if raw, ok := sdl.StringArg(d, "key"); ok {
				sel, err := ParseFieldSet(raw)
				if err != nil {
					return nil, fmt.Errorf("@%s on %s: %w", JoinType, name, err)
				}
				owner.Keys = append(owner.Keys, Key{Fields: raw, Selection: sel, Resolvable: sdl.BoolArg(d, "resolvable", true)})
			}
		}

		if def.Kind != ast.Object && def.Kind != ast.Interface {
			continue
		}
		for _, f := range def.Fields {
			if sdl.IsIntrospection(f.Name) {
				continue
			}
			owners := map[string]*FieldOwner{}
			info.Fields[f.Name] = owners
			coordinate := name + "." + f.Name

			joinFields := f.Directives.ForNames(JoinField)
			if enum == nil {
				joinFields = nil
			}
			for _, d := range joinFields {
				if _, ok := sdl.StringArg(d, "graph"); !ok {
					continue
				}
				graph, err := graphOf(d, coordinate)
				if err != nil {
					return nil, err
				}
				owner := &FieldOwner{Graph: graph, External: sdl.BoolArg(d, "external", false)}
				owner.Requires, _ = sdl.StringArg(d, "requires")
				owner.Provides, _ = sdl.StringArg(d, "provides")
				for _, fs := range []string{owner.Requires, owner.Provides} {
					if fs == "" {
						continue
					}
					if _, err := ParseFieldSet(fs); err != nil {
						return nil, fmt.Errorf("@%s on %s: %w", JoinField, coordinate, err)
					}
				}
				owners[graph] = owner
			}
			if len(owners) == 0 {
				for graph := range info.Owners {
					owners[graph] = &FieldOwner{Graph: graph}
				}
			}
		}
	}
	return s, nil
}

// GraphNames returns the graph names in declaration order.
func (s *SupergraphSchema) GraphNames() []string {
	out := make([]string, len(s.Graphs))
	for i, g := range s.Graphs {
		out[i] = g.Name
	}
	return out
}

// TypeNames returns the names of the composed types, sorted.
func (s *SupergraphSchema) TypeNames() []string {
	out := make([]string, 0, len(s.Types))
	for name := range s.Types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Owns reports whether graph declares typeName.
func (s *SupergraphSchema) Owns(graph, typeName string) bool {
	info := s.Types[typeName]
	if info == nil {
		return false
	}
	_, ok := info.Owners[graph]
	return ok
}

// Keys returns the keys graph declares on typeName.
func (s *SupergraphSchema) Keys(graph, typeName string) []Key {
	info := s.Types[typeName]
	if info == nil || info.Owners[graph] == nil {
		return nil
	}
	return info.Owners[graph].Keys
}

// FieldOwner returns how graph declares typeName.fieldName, or nil.
func (s *SupergraphSchema) FieldOwner(graph, typeName, fieldName string) *FieldOwner {
	info := s.Types[typeName]
	if info == nil {
		return nil
	}
	return info.Fields[fieldName][graph]
}

// ResolvableIn reports whether graph can resolve typeName.fieldName itself,
// that is, declares it without @external.
func (s *SupergraphSchema) ResolvableIn(graph, typeName, fieldName string) bool {
	owner := s.FieldOwner(graph, typeName, fieldName)
	return owner != nil && !owner.External
}

// RootType returns the root type definition of op, or nil.
func (s *SupergraphSchema) RootType(op ast.Operation) *ast.Definition {
	switch op {
	case ast.Query:
		return s.AST.Query
	case ast.Mutation:
		return s.AST.Mutation
	case ast.Subscription:
		return s.AST.Subscription
	}
	return nil
}
