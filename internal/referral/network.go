package referral

import (
	"context"
	"errors"
	"sync"

	"github.com/globalpool/gpcore/internal/types"
)

var ErrNoIdentity = errors.New("no identity is being tracked")

// Network holds the referral tree of the identity currently being tracked.
// Switching identity closes the previous tree so its in-flight results are dropped.
type Network struct {
	fetcher Fetcher
	opts    Options

	mu   sync.RWMutex
	tree *Tree
}

// NewNetwork creates a network with no tree mounted.
func NewNetwork(fetcher Fetcher, opts Options) *Network {
	return &Network{fetcher: fetcher, opts: opts}
}

// Switch mounts a tree for identity and loads its root.
// Switching to the identity already mounted keeps the memoized tree.
// A failed root load leaves the tree mounted with the root in the error state.
func (n *Network) Switch(ctx context.Context, identity string) (*Tree, error) {
	normalized, err := types.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	if n.tree != nil && n.tree.RootIdentity() == normalized {
		tree := n.tree
		n.mu.Unlock()
		return tree, tree.Load(ctx)
	}
	tree, err := n.mount(normalized)
	n.mu.Unlock()
	if err != nil {
		return nil, err
	}

	treeLogger.Info().Str("identity", normalized).Msg("Mounted referral tree")
	return tree, tree.Load(ctx)
}

// Reset drops every memoized node of the current identity and loads the root again.
func (n *Network) Reset(ctx context.Context) (*Tree, error) {
	n.mu.Lock()
	if n.tree == nil {
		n.mu.Unlock()
		return nil, ErrNoIdentity
	}
	tree, err := n.mount(n.tree.RootIdentity())
	n.mu.Unlock()
	if err != nil {
		return nil, err
	}

	treeLogger.Info().Str("identity", tree.RootIdentity()).Msg("Reset referral tree")
	return tree, tree.Load(ctx)
}

// mount must be called with n.mu held.
func (n *Network) mount(identity string) (*Tree, error) {
	tree, err := NewTree(identity, n.fetcher, n.opts)
	if err != nil {
		return nil, err
	}
	if n.tree != nil {
		n.tree.Close()
	}
	n.tree = tree
	n.opts.Metrics.SetAffiliates(0)
	return tree, nil
}

// Current returns the mounted tree.
func (n *Network) Current() (*Tree, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.tree == nil {
		return nil, ErrNoIdentity
	}
	return n.tree, nil
}

// Expand expands a node of the current tree.
func (n *Network) Expand(ctx context.Context, path Path) error {
	tree, err := n.Current()
	if err != nil {
		return err
	}
	return tree.Expand(ctx, path)
}

// Collapse collapses a node of the current tree.
func (n *Network) Collapse(path Path) error {
	tree, err := n.Current()
	if err != nil {
		return err
	}
	return tree.Collapse(path)
}

// View renders the current tree.
func (n *Network) View() (types.NetworkView, error) {
	tree, err := n.Current()
	if err != nil {
		return types.NetworkView{}, err
	}
	return tree.View(), nil
}
