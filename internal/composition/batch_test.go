package composition

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/fedcompose/internal/diag"
)

func TestRunBatch_PreservesOrder(t *testing.T) {
	t.Parallel()
	items := []int{5, 4, 3, 2, 1}

	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			out, errs := runBatch(context.Background(), "test", workers, items, func(_ context.Context, i int) (string, error) {
				// Later items finish first.
				time.Sleep(time.Duration(i) * time.Millisecond)
				return fmt.Sprint(i * 10), nil
			})

			require.Empty(t, errs)
			assert.Equal(t, []string{"50", "40", "30", "20", "10"}, out)
		})
	}
}

func TestRunBatch_PartialFailure(t *testing.T) {
	t.Parallel()
	items := []string{"a", "b", "c", "d", "e"}
	failing := map[string]bool{"b": true, "d": true, "e": true}

	out, errs := runBatch(context.Background(), "test", 3, items, func(_ context.Context, name string) (string, error) {
		if failing[name] {
			return "", diag.SubgraphError(name, errors.New("boom"))
		}
		return name, nil
	})

	assert.Nil(t, out, "no partial results")
	require.Len(t, errs, len(failing))
	var names []string
	for _, e := range errs {
		assert.Equal(t, diag.KindSubgraph, e.Kind)
		names = append(names, e.Subgraph)
	}
	assert.Equal(t, []string{"b", "d", "e"}, names)
}

func TestRunBatch_PlainErrorsBecomeInternal(t *testing.T) {
	t.Parallel()

	_, errs := runBatch(context.Background(), "test", 1, []int{1}, func(context.Context, int) (int, error) {
		return 0, errors.New("collaborator exploded")
	})

	require.Len(t, errs, 1)
	assert.Equal(t, diag.KindInternal, errs[0].Kind)
	assert.Equal(t, "collaborator exploded", errs[0].Message)
}

func TestRunBatch_RespectsWorkerLimit(t *testing.T) {
	t.Parallel()
	var running, peak atomic.Int32

	_, errs := runBatch(context.Background(), "test", 2, make([]int, 10), func(context.Context, int) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return 0, nil
	})

	require.Empty(t, errs)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunBatch_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	out, errs := runBatch(ctx, "expand", 1, []int{1, 2, 3}, func(context.Context, int) (int, error) {
		calls++
		return 0, nil
	})

	assert.Nil(t, out)
	assert.Zero(t, calls)
	require.Len(t, errs, 1)
	assert.Equal(t, diag.KindInternal, errs[0].Kind)
	assert.Contains(t, errs[0].Message, "expand: context canceled")
}

func TestRunBatch_Empty(t *testing.T) {
	t.Parallel()

	out, errs := runBatch(context.Background(), "test", 4, []int(nil), func(context.Context, int) (int, error) {
		return 0, errors.New("never called")
	})

	assert.Empty(t, out)
	assert.Empty(t, errs)
}
