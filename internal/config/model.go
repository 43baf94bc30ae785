package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/fedcompose/internal/federation"
)

// Model is the unified, format-agnostic representation of a composition
// configuration.
type Model struct {
	// FederationVersion is the requested composition version as written by
	// the user ("2", "2.3", "=2.3.2"). Empty means the latest.
	FederationVersion string
	Subgraphs         []*Subgraph
}

// Subgraph describes one subgraph of the composition.
type Subgraph struct {
	Name       string
	RoutingURL string
	// SchemaFile and SDL are mutually exclusive.
	SchemaFile string
	SDL        string
	// BaseDir is the directory of the file that declared the subgraph.
	// Relative schema files resolve against it.
	BaseDir string
}

// SchemaPath returns the absolute or BaseDir-relative path of the schema
// file, or "" for inline SDL.
func (s *Subgraph) SchemaPath() string {
	if s.SchemaFile == "" {
		return ""
	}
	if filepath.IsAbs(s.SchemaFile) {
		return s.SchemaFile
	}
	return filepath.Join(s.BaseDir, s.SchemaFile)
}

// ReadSchema returns the SDL of the subgraph, reading it from disk when it
// is declared as a file.
func (s *Subgraph) ReadSchema() (string, error) {
	path := s.SchemaPath()
	if path == "" {
		return s.SDL, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema of subgraph %q: %w", s.Name, err)
	}
	return string(data), nil
}

// Version parses FederationVersion. Rover-style exact pins ("=2.3.2") are
// accepted and reduced to major.minor.
func (m *Model) Version() (federation.Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(m.FederationVersion), "=")
	if raw == "" {
		return federation.Latest, nil
	}
	if parts := strings.Split(raw, "."); len(parts) > 2 {
		raw = parts[0] + "." + parts[1]
	}
	return federation.ParseVersion(raw)
}

// Validate reports every structural problem of the model at once.
func (m *Model) Validate() error {
	var errs []error
	if len(m.Subgraphs) == 0 {
		errs = append(errs, errors.New("no subgraphs configured"))
	}
	if _, err := m.Version(); err != nil {
		errs = append(errs, fmt.Errorf("federation_version: %w", err))
	}
	for i, s := range m.Subgraphs {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("subgraph #%d: name must not be empty", i+1))
			continue
		}
		if s.RoutingURL == "" {
			errs = append(errs, fmt.Errorf("subgraph %q: routing_url is required", s.Name))
		}
		switch {
		case s.SchemaFile == "" && s.SDL == "":
			errs = append(errs, fmt.Errorf("subgraph %q: one of schema file or sdl is required", s.Name))
		case s.SchemaFile != "" && s.SDL != "":
			errs = append(errs, fmt.Errorf("subgraph %q: schema file and sdl are mutually exclusive", s.Name))
		}
	}
	return errors.Join(errs...)
}
