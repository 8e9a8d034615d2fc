package referral

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalpool/gpcore/internal/metrics"
	"github.com/globalpool/gpcore/internal/types"
)

func TestNetworkWithoutIdentity(t *testing.T) {
	n := NewNetwork(newFakeFetcher(), Options{})
	_, err := n.Current()
	assert.ErrorIs(t, err, ErrNoIdentity)
	_, err = n.View()
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.ErrorIs(t, n.Expand(context.Background(), Path{}), ErrNoIdentity)
	assert.ErrorIs(t, n.Collapse(Path{}), ErrNoIdentity)
	_, err = n.Reset(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestSwitchDiscardsResultsOfPreviousIdentity(t *testing.T) {
	oldRoot, newRoot, a := addr(1), addr(100), addr(2)
	f := newFakeFetcher()
	f.children[oldRoot] = slots(a)
	f.children[a] = slots(addr(3), addr(4))
	f.children[newRoot] = slots(addr(101), addr(102))

	rec := &aggregateRecorder{}
	reg := prometheus.NewRegistry()
	n := NewNetwork(f, Options{OnAggregate: rec.record, Metrics: metrics.New(reg)})
	ctx := context.Background()

	oldTree, err := n.Switch(ctx, oldRoot)
	require.NoError(t, err)
	f.waitStarted(t, oldRoot)

	gate := f.gate(a)
	late := make(chan error, 1)
	go func() { late <- n.Expand(ctx, Path{0}) }()
	f.waitStarted(t, a)

	newTree, err := n.Switch(ctx, newRoot)
	require.NoError(t, err)
	assert.NotSame(t, oldTree, newTree)
	assert.True(t, oldTree.Closed())

	close(gate)
	assert.ErrorIs(t, <-late, ErrStaleResult)

	view, err := n.View()
	require.NoError(t, err)
	assert.Equal(t, newRoot, view.RootIdentity)
	assert.Equal(t, int64(2), view.Affiliates)
	assert.Equal(t, int64(1), oldTree.Total())

	_, totals := rec.snapshot()
	assert.Equal(t, []int64{1, 2}, totals)
	assert.Equal(t, 2.0, affiliatesGauge(t, reg))
}

func TestAffiliatesGaugeFollowsMountedTree(t *testing.T) {
	oldRoot, newRoot, a := addr(1), addr(100), addr(2)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		f := newFakeFetcher()
		f.children[oldRoot] = slots(a)
		f.children[a] = slots(addr(3), addr(4), addr(5))
		f.children[newRoot] = slots(addr(101))

		reg := prometheus.NewRegistry()
		n := NewNetwork(f, Options{Metrics: metrics.New(reg)})
		_, err := n.Switch(ctx, oldRoot)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = n.Expand(ctx, Path{0})
		}()
		go func() {
			defer wg.Done()
			_, _ = n.Switch(ctx, newRoot)
		}()
		wg.Wait()

		current, err := n.Current()
		require.NoError(t, err)
		require.Equal(t, newRoot, current.RootIdentity())
		require.Equal(t, float64(current.Total()), affiliatesGauge(t, reg), "iteration %d", i)
	}
}

func affiliatesGauge(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "gpcore_referral_affiliates" {
			require.Len(t, family.GetMetric(), 1)
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("affiliates gauge not registered")
	return 0
}

func TestSwitchToSameIdentityKeepsMemoizedTree(t *testing.T) {
	root, a := addr(1), addr(2)
	f := newFakeFetcher()
	f.children[root] = slots(a)
	f.children[a] = slots(addr(3))

	n := NewNetwork(f, Options{})
	ctx := context.Background()
	first, err := n.Switch(ctx, root)
	require.NoError(t, err)
	require.NoError(t, n.Expand(ctx, Path{0}))

	// Lowercase form of the same address.
	second, err := n.Switch(ctx, "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.callCount(root))
	assert.Equal(t, int64(2), second.Total())
}

func TestResetRefetchesFromRoot(t *testing.T) {
	root, a := addr(1), addr(2)
	f := newFakeFetcher()
	f.children[root] = slots(a)
	f.children[a] = slots(addr(3))

	n := NewNetwork(f, Options{})
	ctx := context.Background()
	first, err := n.Switch(ctx, root)
	require.NoError(t, err)
	require.NoError(t, n.Expand(ctx, Path{0}))
	require.NoError(t, n.Collapse(Path{0}))

	reset, err := n.Reset(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, reset)
	assert.True(t, first.Closed())
	assert.Equal(t, 2, f.callCount(root))
	assert.Equal(t, int64(1), reset.Total())

	child, err := reset.Find(Path{0})
	require.NoError(t, err)
	assert.Equal(t, types.NodeCollapsed, child.State)
}

func TestSwitchRejectsInvalidIdentity(t *testing.T) {
	n := NewNetwork(newFakeFetcher(), Options{})
	_, err := n.Switch(context.Background(), "0x123")
	assert.ErrorIs(t, err, types.ErrInvalidIdentity)
}
