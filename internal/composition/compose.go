package composition

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/diag"
	"github.com/specialistvlad/fedcompose/internal/supergraph"
)

var tracer = otel.Tracer("fedcompose.composition")

// Compose runs the whole pipeline: expand, upgrade and validate every
// subgraph, run the pre-merge checks, merge, run the post-merge checks and
// finally the satisfiability solver. The first failing stage ends the run
// and its errors, and only those, are returned.
func (c *Composer) Compose(ctx context.Context, subs []*initial) (*supergraph.Supergraph[supergraph.Satisfiable], diag.List) {
	runID := uuid.NewString()[:12]
	ctx, span := tracer.Start(ctx, "composition.Compose",
		trace.WithAttributes(
			attribute.String("composition.run_id", runID),
			attribute.Int("composition.subgraph_count", len(subs)),
			attribute.Int("composition.workers", c.workers),
		),
	)
	defer span.End()

	ctx = ctxlog.With(ctx, "run_id", runID)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Compose: Starting composition.", "subgraphs", len(subs))

	fail := func(name string, errs diag.List) (*supergraph.Supergraph[supergraph.Satisfiable], diag.List) {
		logger.Debug("Compose: Stage failed, stopping.", "stage", name, "errors", len(errs))
		span.RecordError(errs)
		span.SetStatus(codes.Error, name+" failed")
		return nil, errs
	}

	exp, errs := stage(ctx, "expand", func(ctx context.Context) ([]*expanded, diag.List) {
		return c.ExpandSubgraphs(ctx, subs)
	})
	if len(errs) > 0 {
		return fail("expand", errs)
	}
	upg, errs := stage(ctx, "upgrade", func(ctx context.Context) ([]*upgraded, diag.List) {
		return c.UpgradeSubgraphs(ctx, exp)
	})
	if len(errs) > 0 {
		return fail("upgrade", errs)
	}
	valid, errs := stage(ctx, "validate", func(ctx context.Context) ([]*validated, diag.List) {
		return c.ValidateSubgraphs(ctx, upg)
	})
	if len(errs) > 0 {
		return fail("validate", errs)
	}

	_, errs = stage(ctx, "pre_merge", func(ctx context.Context) (struct{}, diag.List) {
		return struct{}{}, c.PreMergeValidations(ctx, valid)
	})
	if len(errs) > 0 {
		return fail("pre_merge", errs)
	}
	m, errs := stage(ctx, "merge", func(ctx context.Context) (*merged, diag.List) {
		return c.MergeSubgraphs(ctx, valid)
	})
	if len(errs) > 0 {
		return fail("merge", errs)
	}
	_, errs = stage(ctx, "post_merge", func(ctx context.Context) (struct{}, diag.List) {
		return struct{}{}, c.PostMergeValidations(ctx, m)
	})
	if len(errs) > 0 {
		return fail("post_merge", errs)
	}
	s, errs := stage(ctx, "satisfiability", func(ctx context.Context) (*supergraph.Supergraph[supergraph.Satisfiable], diag.List) {
		return c.ValidateSatisfiability(ctx, m)
	})
	if len(errs) > 0 {
		return fail("satisfiability", errs)
	}

	span.SetStatus(codes.Ok, "")
	logger.Debug("Compose: Composition successful.", "types", len(s.TypeNames()))
	return s, nil
}

// stage runs fn inside a child span named after the stage.
func stage[T any](ctx context.Context, name string, fn func(context.Context) (T, diag.List)) (T, diag.List) {
	ctx, span := tracer.Start(ctx, "composition."+name)
	defer span.End()

	out, errs := fn(ctx)
	span.SetAttributes(attribute.Int("composition.error_count", len(errs)))
	if len(errs) > 0 {
		span.RecordError(errs)
		span.SetStatus(codes.Error, errs.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return out, errs
}
