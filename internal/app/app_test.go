package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/hcl"
	"github.com/specialistvlad/fedcompose/internal/yamlconfig"
)

const accountsSDL = `
type Query { me: User }
type User { id: ID! name: String }
`

const productsSDL = `
type Product { upc: String! price: Int }
`

// setup writes files into a temp dir and returns the dir.
func setup(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func newTestApp(t *testing.T, cfg Config) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	c, err := NewConfig(cfg)
	require.NoError(t, err)
	out, logs := &bytes.Buffer{}, &bytes.Buffer{}
	a, err := NewApp(out, logs, c, nil)
	require.NoError(t, err)
	return a, out, logs
}

const supergraphHCL = `
subgraph "accounts" {
  routing_url = "http://accounts/graphql"
  schema_file = "accounts.graphql"
}
subgraph "products" {
  routing_url = "http://products/graphql"
  schema_file = "products.graphql"
}
`

func TestApp_Run_WritesSupergraphToOutput(t *testing.T) {
	t.Parallel()
	dir := setup(t, map[string]string{
		"supergraph.hcl":   supergraphHCL,
		"accounts.graphql": accountsSDL,
		"products.graphql": productsSDL,
	})
	a, out, logs := newTestApp(t, Config{ConfigPath: filepath.Join(dir, "supergraph.hcl")})

	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), `@join__graph(name: "accounts", url: "http://accounts/graphql")`)
	assert.Contains(t, out.String(), "type Product")
	assert.Contains(t, logs.String(), "Composition successful.")
	assert.Contains(t, logs.String(), "run_id=")
}

func TestApp_Run_WritesSupergraphToFile(t *testing.T) {
	t.Parallel()
	dir := setup(t, map[string]string{
		"supergraph.yaml": `
subgraphs:
  accounts:
    routing_url: http://accounts/graphql
    schema:
      file: accounts.graphql
  products:
    routing_url: http://products/graphql
    schema:
      sdl: "type Product { upc: String! price: Int }"
`,
		"accounts.graphql": accountsSDL,
	})
	outPath := filepath.Join(dir, "supergraph.graphql")
	a, out, _ := newTestApp(t, Config{ConfigPath: filepath.Join(dir, "supergraph.yaml"), OutputPath: outPath})

	require.NoError(t, a.Run(context.Background()))

	assert.Empty(t, out.String())
	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), "enum join__Graph")
}

func TestApp_Run_CompositionErrors(t *testing.T) {
	t.Parallel()
	dir := setup(t, map[string]string{
		"supergraph.hcl": `
subgraph "inventory" {
  routing_url = "http://inventory/graphql"
  sdl = "type Mutation { restock(upc: String!): Boolean }"
}`,
	})
	a, out, _ := newTestApp(t, Config{ConfigPath: filepath.Join(dir, "supergraph.hcl")})

	err := a.Run(context.Background())

	require.Error(t, err)
	assert.True(t, IsCompositionError(err))
	list, ok := diag.AsList(err)
	require.True(t, ok)
	assert.NotEmpty(t, list.OfKind(diag.KindTypeDefinitionInvalid))
	assert.Empty(t, out.String())
}

func TestApp_Run_CollectsSchemaFailures(t *testing.T) {
	t.Parallel()
	dir := setup(t, map[string]string{
		"supergraph.hcl": `
subgraph "a" {
  routing_url = "http://a"
  schema_file = "missing.graphql"
}
subgraph "b" {
  routing_url = "http://b"
  sdl = "type Query {"
}
subgraph "c" {
  routing_url = "http://c"
  sdl = "extend schema @link(url: \"https://specs.apollo.dev/federation/v2.9\", import: [\"@key\"]) type Query { c: Int }"
}
federation_version = "2.3"
`,
	})
	a, _, _ := newTestApp(t, Config{ConfigPath: filepath.Join(dir, "supergraph.hcl")})

	err := a.Run(context.Background())

	list, ok := diag.AsList(err)
	require.True(t, ok, "got %v", err)
	require.Len(t, list, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, diag.KindSubgraph, list[i].Kind)
		assert.Equal(t, name, list[i].Subgraph)
	}
	assert.Contains(t, list[2].Message, "targets v2.3")
}

func TestApp_Run_ConfigErrors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "invalid model",
			files:   map[string]string{"supergraph.hcl": `subgraph "a" { routing_url = "http://a" }`},
			wantErr: "invalid configuration",
		},
		{
			name: "federation 1 target",
			files: map[string]string{"supergraph.hcl": `
federation_version = "1"
subgraph "a" {
  routing_url = "http://a"
  sdl = "type Query { a: Int }"
}`},
			wantErr: "composition targets federation 2",
		},
		{
			name:    "load failure",
			files:   map[string]string{"supergraph.hcl": `subgraph {`},
			wantErr: "failed to load configuration",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := setup(t, tc.files)
			a, _, _ := newTestApp(t, Config{ConfigPath: filepath.Join(dir, "supergraph.hcl")})
			err := a.Run(context.Background())
			require.Error(t, err)
			assert.False(t, IsCompositionError(err))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// Not parallel: installs the global tracer provider.
func TestApp_Run_Trace(t *testing.T) {
	dir := setup(t, map[string]string{
		"supergraph.hcl":   supergraphHCL,
		"accounts.graphql": accountsSDL,
		"products.graphql": productsSDL,
	})
	a, _, logs := newTestApp(t, Config{ConfigPath: filepath.Join(dir, "supergraph.hcl"), Trace: true, LogLevel: "error"})

	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, logs.String(), `"Name": "composition.Compose"`)
	assert.Contains(t, logs.String(), `"Name": "composition.merge"`)
}

func TestLoaderFor(t *testing.T) {
	t.Parallel()
	dir := setup(t, map[string]string{"conf.d/a.hcl": ""})
	testCases := []struct {
		path    string
		want    any
		wantErr bool
	}{
		{path: "supergraph.hcl", want: &hcl.Loader{}},
		{path: "configs", want: &hcl.Loader{}},
		{path: filepath.Join(dir, "conf.d"), want: &hcl.Loader{}},
		{path: "supergraph.yaml", want: &yamlconfig.Loader{}},
		{path: "SUPERGRAPH.YML", want: &yamlconfig.Loader{}},
		{path: "supergraph.json", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got, err := LoaderFor(tc.path)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.want, got)
		})
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{ConfigPath: "x.hcl", LogFormat: "json", LogLevel: "warn"}},
		{name: "missing path", cfg: Config{}, wantErr: "ConfigPath is a required"},
		{name: "bad format", cfg: Config{ConfigPath: "x", LogFormat: "xml"}, wantErr: "invalid log format"},
		{name: "bad level", cfg: Config{ConfigPath: "x", LogLevel: "trace"}, wantErr: "invalid log level"},
		{name: "negative workers", cfg: Config{ConfigPath: "x", Workers: -1}, wantErr: "workers"},
		{name: "negative nodes", cfg: Config{ConfigPath: "x", MaxGraphNodes: -1}, wantErr: "max graph nodes"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := NewConfig(tc.cfg)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.cfg, *cfg)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
