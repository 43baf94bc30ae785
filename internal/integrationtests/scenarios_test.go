package integrationtests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/testutil"
)

const fed2Link = `extend schema @link(url: "https://specs.apollo.dev/federation/v2.3", import: ["@key", "@shareable", "@external", "@requires", "@provides"])
`

// Two plain subgraphs with disjoint types compose into one supergraph.
func TestScenario_DisjointSubgraphsCompose(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.hcl": `
subgraph "accounts" {
  routing_url = "http://accounts.example.com/graphql"
  schema_file = "schemas/accounts.graphql"
}
subgraph "products" {
  routing_url = "http://products.example.com/graphql"
  schema_file = "schemas/products.graphql"
}
`,
		"schemas/accounts.graphql": `
type Query { me: User }
type User { id: ID! name: String }
`,
		"schemas/products.graphql": `
type Product { upc: String! price: Int }
`,
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl")

	s := testutil.RequireComposed(t, result, "Query", "User", "Product")
	assert.True(t, s.HasQueryRoot())
	assert.Contains(t, result.Output, `ACCOUNTS @join__graph(name: "accounts", url: "http://accounts.example.com/graphql")`)
	assert.Contains(t, result.Output, `PRODUCTS @join__graph(name: "products", url: "http://products.example.com/graphql")`)
	assert.Contains(t, result.LogOutput, "Compose: Composition successful.")
}

// A single subgraph with only a Mutation root fails after the merge with a
// missing Query, and the solver never runs.
func TestScenario_MutationOnlySubgraphFails(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.yaml": `
subgraphs:
  inventory:
    routing_url: http://inventory.example.com/graphql
    schema:
      sdl: |
        type Mutation { restock(upc: String!, amount: Int!): Boolean }
`,
	}

	result := testutil.RunComposition(t, files, "supergraph.yaml")

	errs := testutil.RequireCompositionErrors(t, result)
	require.NotEmpty(t, errs)
	assert.Equal(t, diag.KindTypeDefinitionInvalid, errs[0].Kind)
	assert.Contains(t, errs.Messages(), "[TYPE_DEFINITION_INVALID] Missing root Query type")
	assert.Contains(t, result.LogOutput, "stage=post_merge")
	assert.NotContains(t, result.LogOutput, "Satisfiability: Starting check.")
}

// Entities shared through @key, with @requires satisfied by another
// subgraph, compose.
func TestScenario_EntitiesAcrossSubgraphs(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.hcl": `
federation_version = "2.3"

subgraph "products" {
  routing_url = "http://products/graphql"
  sdl = <<-EOT
` + fed2Link + `
    type Query { products: [Product] }
    type Product @key(fields: "upc") { upc: String! name: String weight: Int }
  EOT
}

subgraph "shipping" {
  routing_url = "http://shipping/graphql"
  sdl = <<-EOT
` + fed2Link + `
    type Product @key(fields: "upc") {
      upc: String!
      weight: Int @external
      shippingEstimate: Int @requires(fields: "weight")
    }
  EOT
}

subgraph "reviews" {
  routing_url = "http://reviews/graphql"
  sdl = <<-EOT
` + fed2Link + `
    type Query { topReviews: [Review] }
    type Review { body: String product: Product }
    type Product @key(fields: "upc") { upc: String! reviews: [Review] }
  EOT
}
`,
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl")

	testutil.RequireComposed(t, result, "Product", "Review")
	assert.Contains(t, result.Output, `@join__field(graph: SHIPPING, requires: "weight")`)
	assert.Contains(t, result.Output, `@join__type(graph: REVIEWS, key: "upc")`)
	assert.Contains(t, result.LogOutput, "Satisfiability: Check passed.")
}

// Federation 1 subgraphs are upgraded before they are merged.
func TestScenario_FederationOneSubgraphsAreUpgraded(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.yaml": `
subgraphs:
  accounts:
    routing_url: http://accounts/graphql
    schema:
      file: accounts.graphql
  reviews:
    routing_url: http://reviews/graphql
    schema:
      file: reviews.graphql
`,
		"accounts.graphql": `
type Query { me: User }
type User @key(fields: "id") { id: ID! name: String }
`,
		"reviews.graphql": `
extend type User @key(fields: "id") {
  id: ID! @external
  reviews: [Review]
}
type Review { body: String }
extend type Query { topReviews: [Review] }
`,
	}

	result := testutil.RunComposition(t, files, "supergraph.yaml")

	testutil.RequireComposed(t, result, "User", "Review")
	assert.Contains(t, result.LogOutput, "Upgrade: federation 1 subgraph upgraded.")
}
