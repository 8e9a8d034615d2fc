/*

This file contains the lazily expanded referral tree of one root identity.

Nodes are fetched on demand and memoized for the lifetime of the tree. The tree
owns the running affiliate total; nodes only report how many children they added.
At most one fetch is in flight per node: later expanders wait for it.

*/

package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/globalpool/gpcore/internal/logger"
	"github.com/globalpool/gpcore/internal/metrics"
	"github.com/globalpool/gpcore/internal/types"
)

var treeLogger = logger.GetForComponent("referral_tree")

var (
	ErrInvalidPath  = errors.New("invalid node path")
	ErrNodeNotFound = errors.New("referral node not found")
	ErrTreeClosed   = errors.New("referral tree closed")
	// ErrStaleResult is returned to an expander whose fetch finished after the tree was closed.
	ErrStaleResult = errors.New("referral result discarded: identity changed")
)

// Fetcher returns the ordered referral slots of an identity.
type Fetcher interface {
	GetReferralChildren(ctx context.Context, identity string) ([]types.ReferralSlot, error)
}

// AggregateFunc receives the children added by one successful expansion and the new total.
type AggregateFunc func(delta int, total int64)

// Options configures a Tree. All fields are optional.
type Options struct {
	OnAggregate AggregateFunc
	Metrics     *metrics.Metrics
}

type node struct {
	path     Path
	identity string // empty for an unfilled slot
	state    types.NodeState
	visible  bool
	children []*node      // nil until loaded
	done     chan struct{} // non-nil while loading
	err      error
}

// Tree is the referral tree rooted at one identity. It is safe for concurrent use.
type Tree struct {
	fetcher     Fetcher
	onAggregate AggregateFunc
	metrics     *metrics.Metrics

	mu     sync.Mutex
	root   *node
	total  int64
	closed bool
}

// NewTree creates an unloaded tree for identity.
func NewTree(identity string, fetcher Fetcher, opts Options) (*Tree, error) {
	normalized, err := types.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("referral fetcher is required")
	}
	return &Tree{
		fetcher:     fetcher,
		onAggregate: opts.OnAggregate,
		metrics:     opts.Metrics,
		root:        &node{path: Path{}, identity: normalized},
	}, nil
}

// RootIdentity returns the normalized identity the tree is rooted at.
func (t *Tree) RootIdentity() string {
	return t.root.identity
}

// Load mounts the tree by expanding the root. The running total is seeded with
// the root's direct children. Calling Load on a loaded tree fetches nothing.
func (t *Tree) Load(ctx context.Context) error {
	return t.Expand(ctx, Path{})
}

// Expand loads the children of the node at path and makes them visible.
//
// Unfilled slots are terminal and expanding them does nothing. An expanded node
// reuses its cached children. A failed node is fetched again.
func (t *Tree) Expand(ctx context.Context, path Path) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTreeClosed
	}
	n, err := t.find(path)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if n.identity == "" {
		t.mu.Unlock()
		t.metrics.Expansion(metrics.OutcomeTerminal)
		return nil
	}

	n.visible = true
	switch n.state {
	case types.NodeExpanded:
		t.mu.Unlock()
		t.metrics.Expansion(metrics.OutcomeCached)
		return nil
	case types.NodeLoading:
		done := n.done
		t.mu.Unlock()
		return t.wait(ctx, n, done)
	}

	n.state = types.NodeLoading
	n.err = nil
	done := make(chan struct{})
	n.done = done
	identity := n.identity
	t.mu.Unlock()

	slots, fetchErr := t.fetcher.GetReferralChildren(ctx, identity)
	return t.finish(n, done, slots, fetchErr)
}

// finish applies the outcome of a fetch started by Expand.
func (t *Tree) finish(n *node, done chan struct{}, slots []types.ReferralSlot, fetchErr error) error {
	t.mu.Lock()
	defer close(done)

	n.done = nil
	if t.closed {
		n.state = types.NodeCollapsed
		t.mu.Unlock()
		t.metrics.StaleDiscarded(metrics.StaleExpansion)
		treeLogger.Debug().Str("root", shortRoot(t)).Str("path", n.path.String()).Msg("Discarded referral result for superseded identity")
		return ErrStaleResult
	}

	if fetchErr != nil {
		err := types.NewFetchError("referral_children", n.identity, fetchErr)
		n.state = types.NodeError
		n.err = err
		t.mu.Unlock()
		t.metrics.Expansion(metrics.OutcomeFailed)
		t.metrics.FetchFailed("referral_children")
		treeLogger.Error().Err(fetchErr).Str("identity", n.identity).Str("path", n.path.String()).Msg("Failed to load referral children")
		return err
	}

	children := make([]*node, len(slots))
	for i, slot := range slots {
		children[i] = &node{path: n.path.child(i), identity: slotIdentity(slot)}
	}
	n.children = children
	n.state = types.NodeExpanded

	delta := len(children)
	t.total += int64(delta)
	total := t.total
	cb := t.onAggregate
	// Set under the lock so a concurrent Close cannot be followed by this tree's total.
	t.metrics.SetAffiliates(total)
	t.mu.Unlock()

	t.metrics.Expansion(metrics.OutcomeExpanded)
	treeLogger.Debug().Str("path", n.path.String()).Int("children", delta).Int64("total", total).Msg("Expanded referral node")
	if cb != nil {
		cb(delta, total)
	}
	return nil
}

// wait blocks until the in-flight fetch of n finishes and reports its outcome.
func (t *Tree) wait(ctx context.Context, n *node, done chan struct{}) error {
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrStaleResult
	}
	switch n.state {
	case types.NodeExpanded:
		return nil
	case types.NodeError:
		return n.err
	default:
		return fmt.Errorf("referral node %s was not loaded", n.path)
	}
}

// Collapse hides the children of the node at path. Loaded children stay cached.
func (t *Tree) Collapse(path Path) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTreeClosed
	}
	n, err := t.find(path)
	if err != nil {
		return err
	}
	n.visible = false
	return nil
}

// Toggle collapses a visible expanded node and expands anything else.
func (t *Tree) Toggle(ctx context.Context, path Path) error {
	t.mu.Lock()
	n, err := t.find(path)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	shown := n.visible && n.state == types.NodeExpanded
	t.mu.Unlock()

	if shown {
		return t.Collapse(path)
	}
	return t.Expand(ctx, path)
}

// Total returns the number of affiliates discovered so far.
func (t *Tree) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Find returns a copy of the subtree at path.
func (t *Tree) Find(path Path) (*types.NodeView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.find(path)
	if err != nil {
		return nil, err
	}
	return n.view(), nil
}

// View returns a copy of the whole tree and the running total.
func (t *Tree) View() types.NetworkView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.NetworkView{
		RootIdentity: t.root.identity,
		Affiliates:   t.total,
		Root:         t.root.view(),
	}
}

// Close marks the tree as superseded. Fetches still in flight are discarded on arrival.
func (t *Tree) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Closed reports whether Close was called.
func (t *Tree) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// find must be called with t.mu held.
func (t *Tree) find(path Path) (*node, error) {
	n := t.root
	for depth, idx := range path {
		if n.children == nil || idx < 0 || idx >= len(n.children) {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, path[:depth+1])
		}
		n = n.children[idx]
	}
	return n, nil
}

// view must be called with the tree lock held.
func (n *node) view() *types.NodeView {
	v := &types.NodeView{
		Path:     n.path.String(),
		Level:    len(n.path),
		Identity: n.identity,
		State:    n.state,
		Visible:  n.visible,
	}
	if n.err != nil {
		v.Error = n.err.Error()
	}
	if n.children != nil {
		v.Children = make([]*types.NodeView, len(n.children))
		for i, c := range n.children {
			v.Children[i] = c.view()
		}
	}
	return v
}

// slotIdentity canonicalizes a child identity. Unfilled slots become "".
func slotIdentity(slot types.ReferralSlot) string {
	if !slot.HasIdentity() {
		return ""
	}
	if normalized, err := types.NormalizeIdentity(slot.Identity); err == nil {
		return normalized
	}
	return strings.TrimSpace(slot.Identity)
}

// shortRoot renders the root identity of t as 0x1234...abcd.
func shortRoot(t *Tree) string {
	return types.ShortIdentity(t.root.identity)
}
