/*

This file contains the types shared by the referral tree and its data sources.

*/

package types

// ReferralSlot is a child entry returned by the pool for an identity.
// An empty Identity is the "no address" sentinel of an unfilled slot.
type ReferralSlot struct {
	Identity string `json:"identity" yaml:"identity"`
}

// HasIdentity reports whether the slot is filled.
func (s ReferralSlot) HasIdentity() bool {
	return !IsEmptyIdentity(s.Identity)
}

// NodeState is the load state of a referral node.
type NodeState int

const (
	NodeCollapsed NodeState = iota // Children never requested
	NodeLoading                    // A fetch is in flight
	NodeExpanded                   // Children loaded, possibly zero of them
	NodeError                      // Last fetch failed, node can be expanded again
)

func (s NodeState) String() string {
	switch s {
	case NodeCollapsed:
		return "collapsed"
	case NodeLoading:
		return "loading"
	case NodeExpanded:
		return "expanded"
	case NodeError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets node states appear by name in JSON.
func (s NodeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NodeView is an immutable copy of a referral node for rendering.
type NodeView struct {
	Path     string      `json:"path"`
	Level    int         `json:"level"`
	Identity string      `json:"identity,omitempty"`
	State    NodeState   `json:"state"`
	Visible  bool        `json:"visible"`  // Children shown (toggled by the user)
	Children []*NodeView `json:"children"` // nil until loaded
	Error    string      `json:"error,omitempty"`
}

// NetworkView is the rendered tree plus the running affiliate total.
type NetworkView struct {
	RootIdentity string    `json:"root_identity"`
	Affiliates   int64     `json:"affiliates"`
	Root         *NodeView `json:"root"`
}
