package federation

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/sdl"
)

const (
	// LinkSpecURL identifies the core link specification.
	LinkSpecURL = "https://specs.apollo.dev/link/v1.0"
	// JoinSpecURL identifies the join specification used by supergraphs.
	JoinSpecURL = "https://specs.apollo.dev/join/v0.3"

	federationSpecPrefix = "https://specs.apollo.dev/federation/"
)

// Directive names of the federation specification.
const (
	DirectiveKey              = "key"
	DirectiveRequires         = "requires"
	DirectiveProvides         = "provides"
	DirectiveExternal         = "external"
	DirectiveShareable        = "shareable"
	DirectiveExtends          = "extends"
	DirectiveTag              = "tag"
	DirectiveInaccessible     = "inaccessible"
	DirectiveOverride         = "override"
	DirectiveInterfaceObject  = "interfaceObject"
	DirectiveComposeDirective = "composeDirective"
	DirectiveLink             = "link"
)

// Join directive names written into supergraphs.
const (
	JoinGraphEnum      = "join__Graph"
	JoinGraph          = "join__graph"
	JoinType           = "join__type"
	JoinField          = "join__field"
	JoinImplements     = "join__implements"
	joinFieldSetScalar = "join__FieldSet"
)

const fieldSetScalar = "FieldSet"

// federationV2 holds every definition of federation 2. minorAdded records the
// minor version a directive first appeared in.
const federationV2 = `
directive @key(fields: FieldSet!, resolvable: Boolean = true) repeatable on OBJECT | INTERFACE
directive @requires(fields: FieldSet!) on FIELD_DEFINITION
directive @provides(fields: FieldSet!) on FIELD_DEFINITION
directive @external(reason: String) on OBJECT | FIELD_DEFINITION
directive @shareable repeatable on OBJECT | FIELD_DEFINITION
directive @extends on OBJECT | INTERFACE
directive @tag(name: String!) repeatable on FIELD_DEFINITION | OBJECT | INTERFACE | UNION | ARGUMENT_DEFINITION | SCALAR | ENUM | ENUM_VALUE | INPUT_OBJECT | INPUT_FIELD_DEFINITION
directive @inaccessible on FIELD_DEFINITION | OBJECT | INTERFACE | UNION | ARGUMENT_DEFINITION | SCALAR | ENUM | ENUM_VALUE | INPUT_OBJECT | INPUT_FIELD_DEFINITION
directive @override(from: String!) on FIELD_DEFINITION
directive @interfaceObject on OBJECT
directive @composeDirective(name: String!) repeatable on SCHEMA
scalar FieldSet
`

var minorAdded = map[string]int{
	DirectiveComposeDirective: 1,
	DirectiveInterfaceObject:  3,
}

const federationV1 = `
directive @key(fields: _FieldSet!) repeatable on OBJECT | INTERFACE
directive @requires(fields: _FieldSet!) on FIELD_DEFINITION
directive @provides(fields: _FieldSet!) on FIELD_DEFINITION
directive @external on OBJECT | FIELD_DEFINITION
directive @extends on OBJECT | INTERFACE
directive @tag(name: String!) repeatable on FIELD_DEFINITION | OBJECT | INTERFACE | UNION | ARGUMENT_DEFINITION | SCALAR | ENUM | ENUM_VALUE | INPUT_OBJECT | INPUT_FIELD_DEFINITION
scalar _FieldSet
`

const linkDefinitions = `
directive @link(url: String!, as: String, for: link__Purpose, import: [link__Import]) repeatable on SCHEMA
scalar link__Import
enum link__Purpose {
  SECURITY
  EXECUTION
}
`

const joinDefinitions = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: join__FieldSet, extension: Boolean! = false, resolvable: Boolean! = true) repeatable on OBJECT | INTERFACE | UNION | ENUM | INPUT_OBJECT | SCALAR
directive @join__field(graph: join__Graph, requires: join__FieldSet, provides: join__FieldSet, type: String, external: Boolean, override: String) repeatable on FIELD_DEFINITION | INPUT_FIELD_DEFINITION
directive @join__implements(graph: join__Graph!, interface: String!) repeatable on OBJECT | INTERFACE
scalar join__FieldSet
`

// v2Definitions returns a fresh copy of the federation 2 definitions
// available in version v.
func v2Definitions(v Version) *ast.SchemaDocument {
	doc := sdl.MustParse("federation_v2.graphql", federationV2)
	var kept ast.DirectiveDefinitionList
	for _, d := range doc.Directives {
		if minor, ok := minorAdded[d.Name]; ok && v.Minor < minor {
			continue
		}
		kept = append(kept, d)
	}
	doc.Directives = kept
	return doc
}

func v1Definitions() *ast.SchemaDocument {
	return sdl.MustParse("federation_v1.graphql", federationV1)
}

func linkSpecDefinitions() *ast.SchemaDocument {
	return sdl.MustParse("link_v1.graphql", linkDefinitions)
}

// JoinDefinitions returns a fresh copy of the link and join definitions a
// supergraph document carries.
func JoinDefinitions() *ast.SchemaDocument {
	doc := linkSpecDefinitions()
	doc.Merge(sdl.MustParse("join_v0.3.graphql", joinDefinitions))
	return doc
}

// federationTypeNames are definitions that belong to the federation, link
// or join machinery rather than to the user's API.
var federationTypeNames = map[string]bool{
	fieldSetScalar:     true,
	"_FieldSet":        true,
	"_Any":             true,
	"_Entity":          true,
	"_Service":         true,
	"link__Import":     true,
	"link__Purpose":    true,
	joinFieldSetScalar: true,
	JoinGraphEnum:      true,
}

// IsFederationType reports whether a type definition is part of the
// federation machinery and not of the composed API.
func IsFederationType(name string) bool {
	if federationTypeNames[name] {
		return true
	}
	for _, prefix := range []string{"federation__", "link__", "join__"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// IsFederationDirective reports whether name is a directive of the
// federation, link or join specifications.
func IsFederationDirective(name string) bool {
	switch name {
	case DirectiveKey, DirectiveRequires, DirectiveProvides, DirectiveExternal,
		DirectiveShareable, DirectiveExtends, DirectiveTag, DirectiveInaccessible,
		DirectiveOverride, DirectiveInterfaceObject, DirectiveComposeDirective, DirectiveLink:
		return true
	}
	return IsFederationType(name)
}

// addMissing appends to doc every definition of defs that doc does not
// declare yet.
func addMissing(doc, defs *ast.SchemaDocument) {
	for _, d := range defs.Directives {
		if doc.Directives.ForName(d.Name) == nil {
			doc.Directives = append(doc.Directives, d)
		}
	}
	for _, d := range defs.Definitions {
		if doc.Definitions.ForName(d.Name) == nil {
			doc.Definitions = append(doc.Definitions, d)
		}
	}
}
