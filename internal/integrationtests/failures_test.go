package integrationtests

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/testutil"
)

// inline renders an HCL subgraph block with heredoc SDL.
func inline(name, sdlText string) string {
	return `
subgraph "` + name + `" {
  routing_url = "http://` + name + `/graphql"
  sdl = <<-EOT
` + sdlText + `
  EOT
}
`
}

func TestFailure_SubgraphValidationCollectsEverySubgraph(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.hcl": inline("a", `type Query { a: Missing }`) +
			inline("b", `type Query { b: Int }`) +
			inline("c", fed2Link+`type Query { c: Thing } type Thing @key(fields: "nope") { id: ID }`),
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl")

	errs := testutil.RequireCompositionErrors(t, result)
	require.Len(t, errs, 2)
	assert.Equal(t, "a", errs[0].Subgraph)
	assert.Equal(t, "c", errs[1].Subgraph)
	for _, e := range errs {
		assert.Equal(t, diag.KindSubgraph, e.Kind)
	}
}

func TestFailure_DuplicateSchemasStopBeforeMerge(t *testing.T) {
	t.Parallel()
	schema := `type Query { a: Int }`
	files := map[string]string{
		"supergraph.hcl": inline("first", schema) + inline("second", schema),
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl")

	errs := testutil.RequireCompositionErrors(t, result)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.KindTypeDefinitionInvalid, errs[0].Kind)
	assert.Equal(t, `Duplicate subgraph schema detected: subgraph "second" has the same schema as subgraph "first"`, errs[0].Message)
	assert.NotContains(t, result.LogOutput, "Merge: supergraph document built.")
}

func TestFailure_MergeConflictsAreReportedVerbatim(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.hcl": inline("a", fed2Link+`type Query { hello: String }`) +
			inline("b", fed2Link+`type Query { hello: String world: Int }`),
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl")

	errs := testutil.RequireCompositionErrors(t, result)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.KindInternal, errs[0].Kind)
	assert.True(t, strings.HasPrefix(errs[0].Message, `Non-shareable field "Query.hello" is resolved from multiple subgraphs`), errs[0].Message)
}

func TestFailure_UnreachableFieldIsCaughtAfterMerge(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.hcl": inline("accounts", fed2Link+`
			type Query { me: User }
			type User @key(fields: "id") { id: ID! nick: String @external }
		`),
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl")

	errs := testutil.RequireCompositionErrors(t, result)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.KindSatisfiability, errs[0].Kind)
	assert.Equal(t, "Field 'User.nick' cannot be resolved across subgraphs", errs[0].Message)
}

// Value types reachable from two subgraphs that share no key pass the
// reachability check but fail the solver: no subgraph can jump to the
// other to fetch the missing field.
func TestFailure_SolverRejectsFieldsWithoutAPath(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.hcl": inline("products", fed2Link+`
			type Query { products: [Product] }
			type Product { upc: String! @shareable name: String }
		`) + inline("reviews", fed2Link+`
			type Query { reviewed: [Product] }
			type Product { upc: String! @shareable rating: Int }
		`),
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl")

	errs := testutil.RequireCompositionErrors(t, result)
	require.NotEmpty(t, errs)
	var messages []string
	for _, e := range errs {
		assert.Equal(t, diag.KindSatisfiability, e.Kind)
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, `cannot satisfy Product.rating from subgraph "products": no subgraph reachable through @key resolves it`)
	assert.Contains(t, messages, `cannot satisfy Product.name from subgraph "reviews": no subgraph reachable through @key resolves it`)
	assert.Contains(t, result.LogOutput, "stage=satisfiability")
}
