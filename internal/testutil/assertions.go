package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/supergraph"
)

// RequireComposed checks that the run succeeded and that its output is a
// supergraph defining every named type. The parsed supergraph is returned.
func RequireComposed(t *testing.T, result *HarnessResult, typeNames ...string) *supergraph.Supergraph[supergraph.Merged] {
	t.Helper()

	require.NoError(t, result.Err, "composition failed; logs:\n%s", result.LogOutput)
	s, err := supergraph.Parse(result.Output)
	require.NoError(t, err, "output is not a supergraph document:\n%s", result.Output)
	got := s.TypeNames()
	for _, name := range typeNames {
		require.Contains(t, got, name, "supergraph is missing type %s", name)
	}
	return s
}

// RequireCompositionErrors checks that the run failed with composition
// errors and returns them.
func RequireCompositionErrors(t *testing.T, result *HarnessResult) diag.List {
	t.Helper()

	require.Error(t, result.Err, "composition unexpectedly succeeded")
	list, ok := diag.AsList(result.Err)
	require.True(t, ok, "expected composition errors, got: %v", result.Err)
	require.Empty(t, result.Output, "no supergraph may be written on failure")
	return list
}
