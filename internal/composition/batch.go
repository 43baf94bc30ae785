package composition

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/diag"
)

// runBatch applies fn to every item independently, at most workers at a
// time. It returns the outputs in input order when every call succeeded,
// and otherwise no outputs and one error per failed item, also in input
// order.
func runBatch[S, T any](
	ctx context.Context,
	stage string,
	workers int,
	items []S,
	fn func(context.Context, S) (T, error),
) ([]T, diag.List) {
	logger := ctxlog.FromContext(ctx)

	results := make([]T, len(items))
	failures := make([]error, len(items))

	// A plain group: one failing item must not cancel its siblings.
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := fn(ctx, item)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Debug("Batch: Stage interrupted.", "stage", stage, "error", err)
		return nil, diag.List{diag.Internalf("%s: %v", stage, err)}
	}

	var errs diag.List
	for _, err := range failures {
		if err != nil {
			errs = append(errs, diag.From(err))
		}
	}
	if len(errs) > 0 {
		logger.Debug("Batch: Stage failed.", "stage", stage, "items", len(items), "failed", len(errs))
		return nil, errs
	}
	logger.Debug("Batch: Stage complete.", "stage", stage, "items", len(items))
	return results, nil
}
