package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/fedcompose/internal/config"
	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/fsutil"
)

// Extension is the file extension of HCL composition configs.
const Extension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	environ func() []string
}

// NewLoader creates a new HCL configuration loader that resolves
// `${env.NAME}` against the process environment.
func NewLoader() *Loader {
	return &Loader{environ: os.Environ}
}

// NewLoaderWithEnv creates a loader that resolves `${env.NAME}` against the
// given KEY=VALUE pairs instead of the process environment.
func NewLoaderWithEnv(environ []string) *Loader {
	return &Loader{environ: func() []string { return environ }}
}

// fileRoot is the top-level structure of a composition file.
type fileRoot struct {
	FederationVersion string           `hcl:"federation_version,optional"`
	Subgraphs         []*subgraphBlock `hcl:"subgraph,block"`
}

// subgraphBlock is the HCL form of a `subgraph "name" { ... }` block.
type subgraphBlock struct {
	Name       string `hcl:"name,label"`
	RoutingURL string `hcl:"routing_url"`
	SchemaFile string `hcl:"schema_file,optional"`
	SDL        string `hcl:"sdl,optional"`
}

// Load parses every HCL file found under paths and merges their subgraph
// blocks, in file then declaration order, into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %v", Extension, paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	evalCtx := newEvalContext(l.environ())
	parser := hclparse.NewParser()
	model := &config.Model{}
	versionFrom := ""

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if root.FederationVersion != "" {
			if versionFrom != "" && root.FederationVersion != model.FederationVersion {
				return nil, fmt.Errorf("conflicting federation_version %q in %s and %q in %s",
					model.FederationVersion, versionFrom, root.FederationVersion, file)
			}
			model.FederationVersion = root.FederationVersion
			versionFrom = file
		}

		baseDir := filepath.Dir(file)
		for _, block := range root.Subgraphs {
			model.Subgraphs = append(model.Subgraphs, translateSubgraph(block, baseDir))
		}
	}

	logger.Debug("HCL loading complete.", "files", len(files), "subgraphs", len(model.Subgraphs))
	return model, nil
}

// translateSubgraph converts the HCL-specific block into the agnostic model.
func translateSubgraph(b *subgraphBlock, baseDir string) *config.Subgraph {
	return &config.Subgraph{
		Name:       b.Name,
		RoutingURL: b.RoutingURL,
		SchemaFile: b.SchemaFile,
		SDL:        b.SDL,
		BaseDir:    baseDir,
	}
}

// findAllHCLFiles expands directories into the .hcl files they contain and
// returns a flat, duplicate-free list.
func findAllHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			all = append(all, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, Extension)
		if err != nil {
			return nil, fmt.Errorf("error walking %s: %w", path, err)
		}
		for _, f := range found {
			add(f)
		}
	}
	return all, nil
}

