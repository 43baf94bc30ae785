package merge

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/federation"
	"github.com/specialistvlad/fedcompose/internal/sdl"
)

const link = `extend schema @link(url: "https://specs.apollo.dev/federation/v2.3", import: ["@key", "@shareable", "@external", "@requires", "@provides"])
`

func prepare(t *testing.T, name, text string) Input {
	t.Helper()
	ctx := context.Background()
	doc, err := sdl.Parse(name+".graphql", text)
	require.NoError(t, err)
	doc, err = federation.NewLinkExpander().ExpandLinks(ctx, name, doc)
	require.NoError(t, err)
	doc, err = federation.NewUpgrader().Upgrade(ctx, name, doc)
	require.NoError(t, err)
	schema, err := federation.NewSubgraphValidator().Validate(ctx, name, doc)
	require.NoError(t, err)
	fs, err := federation.NewSchema(schema)
	require.NoError(t, err)
	return Input{Name: name, URL: "http://" + name, Schema: fs}
}

func merge(t *testing.T, inputs ...Input) (*ast.SchemaDocument, error) {
	t.Helper()
	byName := map[string]Input{}
	for _, in := range inputs {
		byName[in.Name] = in
	}
	return New().Merge(context.Background(), byName)
}

func failure(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	return f.Errors
}

func TestMerge_DisjointSubgraphs(t *testing.T) {
	accounts := prepare(t, "accounts", link+`
		type Query { me: User }
		type User @key(fields: "id") { id: ID! name: String }
	`)
	products := prepare(t, "products", link+`
		type Query { topProducts: [Product] }
		type Product @key(fields: "upc") { upc: String! price: Int }
	`)

	doc, err := merge(t, products, accounts)
	require.NoError(t, err)

	schema, err := sdl.Load("supergraph.graphql", doc)
	require.NoError(t, err, sdl.Format(doc))

	super, err := federation.ExtractSupergraph(schema)
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts", "products"}, super.GraphNames())
	assert.Equal(t, "http://products", super.Graphs[1].URL)
	assert.Equal(t, "PRODUCTS", super.Graphs[1].Enum)

	assert.True(t, super.ResolvableIn("accounts", "Query", "me"))
	assert.False(t, super.ResolvableIn("products", "Query", "me"))
	assert.True(t, super.ResolvableIn("products", "Query", "topProducts"))
	assert.True(t, super.Owns("accounts", "User"))
	assert.False(t, super.Owns("products", "User"))
	require.Len(t, super.Keys("products", "Product"), 1)
	assert.Equal(t, "upc", super.Keys("products", "Product")[0].Fields)

	var fields []string
	for _, f := range schema.Query.Fields {
		if !sdl.IsIntrospection(f.Name) {
			fields = append(fields, f.Name)
		}
	}
	assert.Equal(t, []string{"me", "topProducts"}, fields)
}

func TestMerge_IsDeterministic(t *testing.T) {
	a := prepare(t, "a", link+`type Query { a: String }`)
	b := prepare(t, "b", link+`type Query { b: String }`)

	first, err := merge(t, a, b)
	require.NoError(t, err)
	second, err := merge(t, b, a)
	require.NoError(t, err)

	if diff := cmp.Diff(sdl.Format(first), sdl.Format(second)); diff != "" {
		t.Errorf("merge output depends on input order (-first +second):\n%s", diff)
	}
}

func TestMerge_RenamesRootTypes(t *testing.T) {
	a := prepare(t, "a", link+`
		schema { query: RootQuery }
		type RootQuery { a: String }
	`)
	b := prepare(t, "b", link+`type Query { b: String }`)

	doc, err := merge(t, a, b)
	require.NoError(t, err)

	schema, err := sdl.Load("supergraph.graphql", doc)
	require.NoError(t, err)
	require.NotNil(t, schema.Query)
	assert.Equal(t, "Query", schema.Query.Name)
	assert.NotNil(t, schema.Query.Fields.ForName("a"))
	assert.NotNil(t, schema.Query.Fields.ForName("b"))
	assert.Nil(t, schema.Types["RootQuery"])
}

func TestMerge_SharedFields(t *testing.T) {
	testCases := []struct {
		name    string
		a, b    string
		wantErr []string
	}{
		{
			name:    "non-shareable root field",
			a:       `type Query { hello: String }`,
			b:       `type Query { hello: String }`,
			wantErr: []string{`Non-shareable field "Query.hello" is resolved from multiple subgraphs: it is resolved from subgraphs "a" and "b" and defined as non-shareable in subgraphs "a" and "b"`},
		},
		{
			name:    "one side shareable",
			a:       `type Query { hello: String @shareable }`,
			b:       `type Query { hello: String }`,
			wantErr: []string{`Non-shareable field "Query.hello" is resolved from multiple subgraphs: it is resolved from subgraphs "a" and "b" and defined as non-shareable in subgraph "b"`},
		},
		{
			name: "both shareable",
			a:    `type Query { hello: String @shareable }`,
			b:    `type Query { hello: String @shareable }`,
		},
		{
			name: "key fields are shareable",
			a:    `type Query { u: User } type User @key(fields: "id") { id: ID! }`,
			b:    `type User @key(fields: "id") { id: ID! name: String }`,
		},
		{
			name: "external field is not resolved",
			a:    `type Query { u: User } type User @key(fields: "id") { id: ID! name: String }`,
			b:    `type User @key(fields: "id") { id: ID! name: String @external nick: String @requires(fields: "name") }`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := prepare(t, "a", link+tc.a)
			b := prepare(t, "b", link+tc.b)

			_, err := merge(t, a, b)

			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tc.wantErr, failure(t, err))
		})
	}
}

func TestMerge_Conflicts(t *testing.T) {
	testCases := []struct {
		name    string
		a, b    string
		wantErr []string
	}{
		{
			name: "kind mismatch",
			a:    `type Query { a: Thing } type Thing { id: ID }`,
			b:    `type Query { b: String @shareable } interface Thing { id: ID }`,
			wantErr: []string{
				`Type "Thing" has mismatched kind: it is defined as OBJECT in subgraph "a" but INTERFACE in subgraph "b"`,
			},
		},
		{
			name: "incompatible field type",
			a:    `type Query { a: String } type T @shareable { v: Int }`,
			b:    `type Query { b: T } type T @shareable { v: [Int] }`,
			wantErr: []string{
				`Type of field "T.v" is incompatible across subgraphs: it has type "Int" in subgraph "a" but type "[Int]" in subgraph "b"`,
			},
		},
		{
			name: "required input field missing",
			a:    `type Query { a(f: Filter): String } input Filter { q: String! limit: Int }`,
			b:    `type Query { b(f: Filter): String } input Filter { limit: Int }`,
			wantErr: []string{
				`Input field "Filter.q" is required in subgraph "a" but is missing in subgraph "b"`,
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := prepare(t, "a", link+tc.a)
			b := prepare(t, "b", link+tc.b)

			_, err := merge(t, a, b)

			assert.Equal(t, tc.wantErr, failure(t, err))
		})
	}
}

func TestMerge_TypeMerging(t *testing.T) {
	a := prepare(t, "a", link+`
		type Query { a(f: Filter): T }
		type T @shareable { v: String! }
		input Filter { q: String limit: Int }
		enum Color { RED }
	`)
	b := prepare(t, "b", link+`
		type Query { b(f: Filter, c: Color): T }
		type T @shareable { v: String }
		input Filter { q: String! }
		enum Color { BLUE }
	`)

	doc, err := merge(t, a, b)
	require.NoError(t, err)
	schema, err := sdl.Load("supergraph.graphql", doc)
	require.NoError(t, err, sdl.Format(doc))

	assert.Equal(t, "String", schema.Types["T"].Fields.ForName("v").Type.String())

	filter := schema.Types["Filter"]
	require.Len(t, filter.Fields, 1)
	assert.Equal(t, "String!", filter.Fields.ForName("q").Type.String())

	var colors []string
	for _, v := range schema.Types["Color"].EnumValues {
		colors = append(colors, v.Name)
	}
	assert.Equal(t, []string{"RED", "BLUE"}, colors)
}

func TestMerge_NoSubgraphs(t *testing.T) {
	_, err := New().Merge(context.Background(), nil)
	assert.Equal(t, []string{"No subgraphs to compose"}, failure(t, err))
}

func TestGraphEnumValues(t *testing.T) {
	got := graphEnumValues([]string{"a-b", "a_b", "1st", "inventory"})
	want := map[string]string{
		"a-b":       "A_B",
		"a_b":       "A_B_1",
		"1st":       "_1ST",
		"inventory": "INVENTORY",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("graphEnumValues mismatch (-want +got):\n%s", diff)
	}
}

func TestFailure_Error(t *testing.T) {
	assert.Equal(t, "merge failed", (&Failure{}).Error())
	assert.Equal(t, "x", (&Failure{Errors: []string{"x"}}).Error())
	assert.Equal(t, "x (and 2 more)", (&Failure{Errors: []string{"x", "y", "z"}}).Error())
}
