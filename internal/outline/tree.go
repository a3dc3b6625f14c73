// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-weaver/pkg/types"
)

// Tree errors.
var (
	ErrInvalidTree     = errors.New("invalid outline tree")
	ErrInvalidProposal = errors.New("invalid outline proposal")
)

// Op names a structural edit.
type Op string

// Structural edit operations.
const (
	OpAddChild Op = "add_child"
	OpRetitle  Op = "retitle"
	OpMerge    Op = "merge"
)

// Edit is one structural change proposed for the outline.
//
// For add_child, Target is the parent. For retitle, Target is the node being
// renamed. For merge, Target is absorbed into Into and then removed.
type Edit struct {
	Op          Op     `json:"op"`
	Target      string `json:"target"`
	Into        string `json:"into,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Limits bounds the shape of an outline. Zero fields are unbounded.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

// Validate checks the tree invariants: exactly one root at level 0, every
// parent and child link reciprocal, levels one deeper than the parent,
// every node reachable from the root and every title non-empty.
func Validate(o *types.Outline, lim Limits) error {
	if o == nil || len(o.Nodes) == 0 {
		return fmt.Errorf("%w: empty outline", ErrInvalidTree)
	}
	root := o.Root()
	if root == nil {
		return fmt.Errorf("%w: root %q missing", ErrInvalidTree, o.RootID)
	}
	if root.ParentID != "" || root.Level != 0 {
		return fmt.Errorf("%w: root %q has parent %q at level %d", ErrInvalidTree, root.NodeID, root.ParentID, root.Level)
	}
	if lim.MaxNodes > 0 && len(o.Nodes) > lim.MaxNodes {
		return fmt.Errorf("%w: %d nodes exceeds limit %d", ErrInvalidTree, len(o.Nodes), lim.MaxNodes)
	}

	for id, n := range o.Nodes {
		if n == nil || n.NodeID != id {
			return fmt.Errorf("%w: node key %q does not match its id", ErrInvalidTree, id)
		}
		if strings.TrimSpace(n.Title) == "" {
			return fmt.Errorf("%w: node %q has no title", ErrInvalidTree, id)
		}
		if lim.MaxDepth > 0 && n.Level > lim.MaxDepth {
			return fmt.Errorf("%w: node %q at level %d exceeds depth %d", ErrInvalidTree, id, n.Level, lim.MaxDepth)
		}
		if id != o.RootID {
			parent, ok := o.Nodes[n.ParentID]
			if !ok {
				return fmt.Errorf("%w: node %q has unknown parent %q", ErrInvalidTree, id, n.ParentID)
			}
			if count(parent.ChildIDs, id) != 1 {
				return fmt.Errorf("%w: parent %q does not list %q exactly once", ErrInvalidTree, parent.NodeID, id)
			}
			if n.Level != parent.Level+1 {
				return fmt.Errorf("%w: node %q level %d under parent level %d", ErrInvalidTree, id, n.Level, parent.Level)
			}
		}
		for _, c := range n.ChildIDs {
			child, ok := o.Nodes[c]
			if !ok {
				return fmt.Errorf("%w: node %q lists unknown child %q", ErrInvalidTree, id, c)
			}
			if child.ParentID != id {
				return fmt.Errorf("%w: child %q of %q points at %q", ErrInvalidTree, c, id, child.ParentID)
			}
		}
	}

	if reached := len(o.PreOrder()); reached != len(o.Nodes) {
		return fmt.Errorf("%w: %d of %d nodes reachable from root", ErrInvalidTree, reached, len(o.Nodes))
	}
	return nil
}

// NewOutline builds a root node for title with one child per section.
func NewOutline(title string, sections []Section) *types.Outline {
	o := &types.Outline{
		Version: 1,
		Title:   title,
		Nodes:   make(map[string]*types.OutlineNode),
	}
	root := allocate(o, title, "", "")
	o.RootID = root.NodeID
	for _, s := range sections {
		addChild(o, root, s.Title, s.Description)
	}
	return o
}

// Apply applies edits to a copy of o and returns the copy. Edits that name
// nodes which do not exist are skipped. A malformed edit, or a result that
// breaks the tree invariants, rejects the whole proposal and returns an
// error wrapping ErrInvalidProposal. o itself is never modified.
func Apply(o *types.Outline, edits []Edit, lim Limits) (*types.Outline, int, error) {
	out := o.Clone()
	applied := 0
	for i, e := range edits {
		ok, err := applyEdit(out, e)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: edit %d (%s): %v", ErrInvalidProposal, i, e.Op, err)
		}
		if ok {
			applied++
		}
	}
	if err := Validate(out, lim); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidProposal, err)
	}
	return out, applied, nil
}

// applyEdit reports whether e changed the outline.
func applyEdit(o *types.Outline, e Edit) (bool, error) {
	switch e.Op {
	case OpAddChild:
		parent, ok := o.Nodes[e.Target]
		if !ok {
			return false, nil
		}
		title := strings.TrimSpace(e.Title)
		if title == "" {
			return false, errors.New("add_child needs a title")
		}
		for _, c := range parent.ChildIDs {
			if strings.EqualFold(o.Nodes[c].Title, title) {
				return false, nil
			}
		}
		addChild(o, parent, title, e.Description)
		return true, nil

	case OpRetitle:
		n, ok := o.Nodes[e.Target]
		if !ok {
			return false, nil
		}
		title := strings.TrimSpace(e.Title)
		if title == "" {
			return false, errors.New("retitle needs a title")
		}
		n.Title = title
		if e.Description != "" {
			n.Description = e.Description
		}
		return true, nil

	case OpMerge:
		from, okFrom := o.Nodes[e.Target]
		into, okInto := o.Nodes[e.Into]
		if !okFrom || !okInto {
			return false, nil
		}
		if from.NodeID == o.RootID {
			return false, errors.New("cannot merge the root")
		}
		if from.NodeID == into.NodeID {
			return false, errors.New("cannot merge a node into itself")
		}
		if isAncestor(o, from.NodeID, into.NodeID) {
			return false, fmt.Errorf("%q is inside %q", into.NodeID, from.NodeID)
		}
		merge(o, from, into)
		return true, nil

	default:
		return false, fmt.Errorf("unknown op %q", e.Op)
	}
}

// merge moves from's citations and children into into and removes from.
func merge(o *types.Outline, from, into *types.OutlineNode) {
	into.CitedEvidenceIDs = union(into.CitedEvidenceIDs, from.CitedEvidenceIDs)

	for _, c := range from.ChildIDs {
		child := o.Nodes[c]
		child.ParentID = into.NodeID
		into.ChildIDs = append(into.ChildIDs, c)
	}
	from.ChildIDs = nil

	if parent, ok := o.Nodes[from.ParentID]; ok {
		parent.ChildIDs = remove(parent.ChildIDs, from.NodeID)
	}
	delete(o.Nodes, from.NodeID)
	relevel(o, into)
}

// relevel recomputes levels below n.
func relevel(o *types.Outline, n *types.OutlineNode) {
	for _, c := range n.ChildIDs {
		child := o.Nodes[c]
		child.Level = n.Level + 1
		relevel(o, child)
	}
}

// isAncestor reports whether anc is id or one of its ancestors.
func isAncestor(o *types.Outline, anc, id string) bool {
	for hops := 0; id != "" && hops <= len(o.Nodes); hops++ {
		if id == anc {
			return true
		}
		n, ok := o.Nodes[id]
		if !ok {
			return false
		}
		id = n.ParentID
	}
	return false
}

func addChild(o *types.Outline, parent *types.OutlineNode, title, desc string) *types.OutlineNode {
	n := allocate(o, title, desc, parent.NodeID)
	n.Level = parent.Level + 1
	parent.ChildIDs = append(parent.ChildIDs, n.NodeID)
	return n
}

// Leaves returns the nodes without children, in pre-order.
func Leaves(o *types.Outline) []*types.OutlineNode {
	var out []*types.OutlineNode
	for _, n := range o.PreOrder() {
		if len(n.ChildIDs) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// less orders node ids by their numeric sequence, falling back to string
// order for ids that are not sequence-allocated.
func less(a, b string) bool {
	sa, errA := strconv.Atoi(strings.TrimPrefix(a, "n"))
	sb, errB := strconv.Atoi(strings.TrimPrefix(b, "n"))
	if errA == nil && errB == nil && sa != sb {
		return sa < sb
	}
	return a < b
}

func union(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		set[id] = true
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func remove(ids []string, id string) []string {
	var out []string
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func count(ids []string, id string) int {
	n := 0
	for _, x := range ids {
		if x == id {
			n++
		}
	}
	return n
}

// allocate creates a node with the next sequence id.
func allocate(o *types.Outline, title, desc, parentID string) *types.OutlineNode {
	n := &types.OutlineNode{
		NodeID:      "n" + strconv.Itoa(o.NextSeq),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(desc),
		ParentID:    parentID,
	}
	o.NextSeq++
	o.Nodes[n.NodeID] = n
	return n
}
