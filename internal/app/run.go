package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/specialistvlad/fedcompose/internal/composition"
	"github.com/specialistvlad/fedcompose/internal/config"
	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/federation"
	"github.com/specialistvlad/fedcompose/internal/querygraph"
	"github.com/specialistvlad/fedcompose/internal/subgraph"
)

// Run loads the composition config, reads and parses every subgraph schema,
// composes them and writes the supergraph SDL. Composition failures are
// returned as a diag.List.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.Trace {
		shutdown, setupErr := setupTracing(a.logW)
		if setupErr != nil {
			return setupErr
		}
		defer func() {
			if shutdownErr := shutdown(context.WithoutCancel(ctx)); shutdownErr != nil && err == nil {
				err = fmt.Errorf("failed to flush traces: %w", shutdownErr)
			}
		}()
	}

	model, err := a.loader.Load(ctx, a.config.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := model.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	requested, err := model.Version()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !requested.IsV2() {
		return fmt.Errorf("invalid configuration: composition targets federation 2, got %s", requested)
	}
	a.logger.Debug("Configuration loaded.", "subgraphs", len(model.Subgraphs), "federation_version", requested.String())

	subs, errs := readSubgraphs(ctx, model.Subgraphs, requested)
	if len(errs) > 0 {
		return errs
	}

	composer := composition.New(
		composition.WithWorkers(a.config.Workers),
		composition.WithGraphOptions(querygraph.Options{MaxNodes: a.config.MaxGraphNodes}),
	)
	a.logger.Info("Composing supergraph.", "subgraphs", len(subs))
	super, errs := composer.Compose(ctx, subs)
	if len(errs) > 0 {
		a.logger.Error("Composition failed.", "errors", len(errs))
		return errs
	}

	if err := a.writeOutput(super.SDL()); err != nil {
		return err
	}
	a.logger.Info("Composition successful.", "output", a.outputName())
	return nil
}

// readSubgraphs reads and parses every configured schema. Every failure is
// collected, one per subgraph.
func readSubgraphs(ctx context.Context, defs []*config.Subgraph, requested federation.Version) ([]*subgraph.Subgraph[subgraph.Initial], diag.List) {
	logger := ctxlog.FromContext(ctx)
	subs := make([]*subgraph.Subgraph[subgraph.Initial], 0, len(defs))
	var errs diag.List

	for _, def := range defs {
		text, err := def.ReadSchema()
		if err != nil {
			errs = append(errs, diag.SubgraphError(def.Name, err))
			continue
		}
		s, err := subgraph.Parse(def.Name, def.RoutingURL, text)
		if err != nil {
			errs = append(errs, diag.From(err))
			continue
		}
		if err := checkVersion(s, requested); err != nil {
			errs = append(errs, diag.SubgraphError(def.Name, err))
			continue
		}
		logger.Debug("Subgraph schema loaded.", "subgraph", def.Name, "url", def.RoutingURL)
		subs = append(subs, s)
	}
	return subs, errs
}

// checkVersion rejects subgraphs linking a newer federation version than
// the composition requests. Unrecognized links are left to link expansion.
func checkVersion(s *subgraph.Subgraph[subgraph.Initial], requested federation.Version) error {
	v, _, err := federation.DetectVersion(s.Document())
	if err != nil || !v.IsV2() {
		return nil
	}
	if v.Minor > requested.Minor {
		return fmt.Errorf("schema links federation %s but the composition targets %s", v, requested)
	}
	return nil
}

func (a *App) writeOutput(sdlText string) error {
	if a.config.OutputPath == "" {
		_, err := fmt.Fprint(a.outW, sdlText)
		return err
	}
	if err := os.WriteFile(a.config.OutputPath, []byte(sdlText), 0o644); err != nil {
		return fmt.Errorf("failed to write supergraph: %w", err)
	}
	return nil
}

func (a *App) outputName() string {
	if a.config.OutputPath == "" {
		return "stdout"
	}
	return a.config.OutputPath
}

// IsCompositionError reports whether err carries composition errors rather
// than a configuration or I/O failure.
func IsCompositionError(err error) bool {
	var list diag.List
	return errors.As(err, &list)
}
