package integrationtests

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fedcompose/internal/app"
	"github.com/specialistvlad/fedcompose/internal/testutil"
)

// A directory of HCL files is loaded as one composition.
func TestConfig_HCLDirectory(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"conf/accounts.hcl": `
subgraph "accounts" {
  routing_url = "http://accounts/graphql"
  schema_file = "../schemas/accounts.graphql"
}`,
		"conf/products.hcl": `
subgraph "products" {
  routing_url = "http://products/graphql"
  schema_file = "../schemas/products.graphql"
}`,
		"schemas/accounts.graphql": `type Query { me: String }`,
		"schemas/products.graphql": `type Product { upc: String! }`,
	}

	result := testutil.RunComposition(t, files, "conf")

	testutil.RequireComposed(t, result, "Product")
	assert.Contains(t, result.Output, `@join__graph(name: "accounts", url: "http://accounts/graphql")`)
}

// Routing URLs may come from the environment.
func TestConfig_EnvironmentReferences(t *testing.T) {
	t.Setenv("FEDCOMPOSE_IT_ACCOUNTS_URL", "http://accounts.internal:4001/graphql")
	files := map[string]string{
		"supergraph.yaml": `
subgraphs:
  accounts:
    routing_url: ${env.FEDCOMPOSE_IT_ACCOUNTS_URL}
    schema:
      sdl: "type Query { me: String }"
`,
		"supergraph.hcl": `
subgraph "accounts" {
  routing_url = "${env.FEDCOMPOSE_IT_ACCOUNTS_URL}"
  sdl = "type Query { me: String }"
}`,
	}

	for _, entry := range []string{"supergraph.yaml", "supergraph.hcl"} {
		t.Run(entry, func(t *testing.T) {
			result := testutil.RunComposition(t, files, entry)
			testutil.RequireComposed(t, result, "Query")
			assert.Contains(t, result.Output, `url: "http://accounts.internal:4001/graphql"`)
		})
	}
}

func TestConfig_OutputFile(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "supergraph.graphql")
	files := map[string]string{
		"supergraph.hcl": inline("accounts", `type Query { me: String }`),
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl", func(c *app.Config) { c.OutputPath = out })

	require.NoError(t, result.Err)
	assert.Empty(t, result.Output)
	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), "enum join__Graph")
}

func TestConfig_GraphNodeLimit(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.hcl": inline("accounts", `
			type Query { me: User }
			type User { id: ID! friends: [User] address: Address }
			type Address { city: String }
		`),
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl", func(c *app.Config) { c.MaxGraphNodes = 2 })

	errs := testutil.RequireCompositionErrors(t, result)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Failed to build federated query graph")
	assert.Contains(t, errs[0].Message, "exceeds the limit of 2 nodes")
}

func TestConfig_InvalidConfigIsNotACompositionError(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"supergraph.hcl": `subgraph "a" { routing_url = "http://a" }`,
	}

	result := testutil.RunComposition(t, files, "supergraph.hcl")

	require.Error(t, result.Err)
	assert.False(t, app.IsCompositionError(result.Err))
	assert.Contains(t, result.Err.Error(), "one of schema file or sdl is required")
}
