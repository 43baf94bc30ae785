// Package yamlconfig implements config.Loader for Rover-style
// supergraph.yaml files.
package yamlconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/fedcompose/internal/config"
	"github.com/specialistvlad/fedcompose/internal/ctxlog"
)

// Extensions lists the file extensions handled by this loader.
var Extensions = []string{".yaml", ".yml"}

// Loader reads supergraph.yaml files.
type Loader struct {
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that resolves `${env.NAME}` against the process
// environment.
func NewLoader() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

// NewLoaderWithEnv creates a loader that resolves `${env.NAME}` against env.
func NewLoaderWithEnv(env map[string]string) *Loader {
	return &Loader{lookupEnv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}
}

type document struct {
	FederationVersion string `yaml:"federation_version"`
	// Subgraphs is kept as a node so that declaration order survives.
	Subgraphs yaml.Node `yaml:"subgraphs"`
}

type subgraphDocument struct {
	RoutingURL string `yaml:"routing_url"`
	Schema     struct {
		File string `yaml:"file"`
		SDL  string `yaml:"sdl"`
	} `yaml:"schema"`
}

var envRef = regexp.MustCompile(`\$\{env\.([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads each file in paths and appends its subgraphs to the model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	model := &config.Model{}
	for _, path := range paths {
		if err := l.loadFile(path, model); err != nil {
			return nil, err
		}
	}

	logger.Debug("YAML loading complete.", "subgraphs", len(model.Subgraphs))
	return model, nil
}

func (l *Loader) loadFile(path string, model *config.Model) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded, err := l.expandEnv(raw)
	if err != nil {
		return fmt.Errorf("failed to expand %s: %w", path, err)
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}

	if doc.FederationVersion != "" {
		if model.FederationVersion != "" && model.FederationVersion != doc.FederationVersion {
			return fmt.Errorf("conflicting federation_version %q and %q in %s",
				model.FederationVersion, doc.FederationVersion, path)
		}
		model.FederationVersion = doc.FederationVersion
	}

	subgraphs, err := translateSubgraphs(&doc.Subgraphs, filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}
	model.Subgraphs = append(model.Subgraphs, subgraphs...)
	return nil
}

// translateSubgraphs walks the `subgraphs` mapping in document order.
func translateSubgraphs(node *yaml.Node, baseDir string) ([]*config.Subgraph, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: subgraphs must be a mapping of name to subgraph", node.Line)
	}

	out := make([]*config.Subgraph, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var sd subgraphDocument
		if err := value.Decode(&sd); err != nil {
			return nil, fmt.Errorf("subgraph %q: %w", key.Value, err)
		}
		out = append(out, &config.Subgraph{
			Name:       key.Value,
			RoutingURL: sd.RoutingURL,
			SchemaFile: sd.Schema.File,
			SDL:        sd.Schema.SDL,
			BaseDir:    baseDir,
		})
	}
	return out, nil
}

// expandEnv replaces `${env.NAME}` references. Every unset name is
// reported.
func (l *Loader) expandEnv(raw []byte) ([]byte, error) {
	missing := map[string]bool{}
	out := envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := string(envRef.FindSubmatch(m)[1])
		v, ok := l.lookupEnv(name)
		if !ok {
			missing[name] = true
			return m
		}
		return []byte(v)
	})
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("environment variable(s) not set: %s", strings.Join(names, ", "))
	}
	return out, nil
}
