package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fedcompose/internal/federation"
)

func TestModel_Validate(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		model   Model
		wantErr []string
	}{
		{
			name: "valid",
			model: Model{Subgraphs: []*Subgraph{
				{Name: "a", RoutingURL: "http://a", SDL: "type Query { a: Int }"},
				{Name: "b", RoutingURL: "http://b", SchemaFile: "b.graphql"},
			}},
		},
		{
			name:    "no subgraphs",
			model:   Model{},
			wantErr: []string{"no subgraphs configured"},
		},
		{
			name: "every problem is reported",
			model: Model{
				FederationVersion: "3",
				Subgraphs: []*Subgraph{
					{Name: "a", SDL: "type Query { a: Int }"},
					{Name: "b", RoutingURL: "http://b"},
					{Name: "c", RoutingURL: "http://c", SDL: "x", SchemaFile: "c.graphql"},
					{RoutingURL: "http://d"},
				},
			},
			wantErr: []string{
				"federation_version: unsupported federation version",
				`subgraph "a": routing_url is required`,
				`subgraph "b": one of schema file or sdl is required`,
				`subgraph "c": schema file and sdl are mutually exclusive`,
				"subgraph #4: name must not be empty",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.model.Validate()
			if len(tc.wantErr) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tc.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestModel_Version(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		raw  string
		want federation.Version
	}{
		{"", federation.Latest},
		{"2", federation.Version{Major: 2}},
		{"2.3", federation.Version{Major: 2, Minor: 3}},
		{"=2.3.2", federation.Version{Major: 2, Minor: 3}},
		{"1", federation.V1},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			m := Model{FederationVersion: tc.raw}
			got, err := m.Version()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubgraph_ReadSchema(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.graphql"), []byte("type Query { a: Int }"), 0o600))

	t.Run("relative file", func(t *testing.T) {
		s := &Subgraph{Name: "a", SchemaFile: "a.graphql", BaseDir: dir}
		got, err := s.ReadSchema()
		require.NoError(t, err)
		assert.Equal(t, "type Query { a: Int }", got)
	})

	t.Run("inline", func(t *testing.T) {
		s := &Subgraph{Name: "a", SDL: "type Query { b: Int }", BaseDir: dir}
		got, err := s.ReadSchema()
		require.NoError(t, err)
		assert.Equal(t, "type Query { b: Int }", got)
	})

	t.Run("missing file", func(t *testing.T) {
		s := &Subgraph{Name: "a", SchemaFile: "missing.graphql", BaseDir: dir}
		_, err := s.ReadSchema()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `failed to read schema of subgraph "a"`)
	})
}
