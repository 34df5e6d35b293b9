package sensors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TreeNode is a hierarchical container keyed by slash-separated path
// segments. Each node owns zero or more payloads (SensorChip values once
// probing completes) and a mapping to child nodes. Paths are always
// relative to a root; "/motherboard/lpc/sio0" is a legal address. Children
// are iterated in sorted key order so traversal is deterministic.
type TreeNode struct {
	Name     string
	Payloads []SensorChip
	children map[string]*TreeNode
}

// NewTree creates an empty root node.
func NewTree() *TreeNode {
	return &TreeNode{children: map[string]*TreeNode{}}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}

	return strings.Split(path, "/")
}

// Child returns the node at path, creating any missing segments along the
// way. An empty or leading-slash path denotes the root itself.
func (n *TreeNode) Child(path string) *TreeNode {
	cur := n

	for _, seg := range splitPath(path) {
		if strings.Contains(seg, "/") {
			panic("sensors: path segment must not contain '/': " + seg)
		}

		child, ok := cur.children[seg]
		if !ok {
			child = &TreeNode{Name: seg, children: map[string]*TreeNode{}}
			cur.children[seg] = child
		}

		cur = child
	}

	return cur
}

// errNoSuchPath is returned (wrapped) by ConstChild when path does not exist.
var errNoSuchPath = errors.New("sensors: no such tree path")

// ConstChild returns the node at path without creating it, or an error if
// any segment is missing.
func (n *TreeNode) ConstChild(path string) (*TreeNode, error) {
	cur := n

	for _, seg := range splitPath(path) {
		child, ok := cur.children[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errNoSuchPath, path)
		}

		cur = child
	}

	return cur, nil
}

// AddPayload appends a chip to this node and returns its index.
func (n *TreeNode) AddPayload(p SensorChip) int {
	n.Payloads = append(n.Payloads, p)

	return len(n.Payloads) - 1
}

// sortedChildNames returns child segment names sorted, for deterministic
// visitor traversal.
func (n *TreeNode) sortedChildNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Visitor receives callbacks during a depth-first pre-order Accept walk.
type Visitor interface {
	VisitNode(path string, node *TreeNode)
	VisitPayload(path string, index int, payload SensorChip)
	Ascend()
}

// Accept performs a depth-first pre-order walk: VisitNode, then
// VisitPayload for each payload in order, then recurses into children in
// key order, calling Ascend when leaving a subtree.
func (n *TreeNode) Accept(v Visitor) {
	n.accept("", v)
}

func (n *TreeNode) accept(path string, v Visitor) {
	v.VisitNode(path, n)

	for i, p := range n.Payloads {
		v.VisitPayload(path, i, p)
	}

	for _, name := range n.sortedChildNames() {
		childPath := name
		if path != "" {
			childPath = path + "/" + name
		}

		n.children[name].accept(childPath, v)
	}

	v.Ascend()
}

// CollectChips is a convenience Visitor that gathers every payload in the
// tree along with its full slash-separated path.
type CollectChips struct {
	Paths []string
	Chips []SensorChip
}

func (c *CollectChips) VisitNode(string, *TreeNode) {}

func (c *CollectChips) VisitPayload(path string, _ int, payload SensorChip) {
	c.Paths = append(c.Paths, path)
	c.Chips = append(c.Chips, payload)
}

func (c *CollectChips) Ascend() {}
