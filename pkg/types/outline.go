// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// OutlineNode is one section or sub-section of the research outline.
type OutlineNode struct {
	// NodeID is stable across revisions while the node's scope is unchanged.
	NodeID string `json:"node_id" yaml:"node_id"`

	// Title is the section heading.
	Title string `json:"title" yaml:"title"`

	// Description states what the section should cover.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Level is the depth in the tree; the root is level 0.
	Level int `json:"level" yaml:"level"`

	// ParentID is empty for the root.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	// ChildIDs lists the children in outline order.
	ChildIDs []string `json:"child_ids,omitempty" yaml:"child_ids,omitempty"`

	// CitedEvidenceIDs is the sorted set of evidence surfaced for this node.
	CitedEvidenceIDs []string `json:"cited_evidence_ids,omitempty" yaml:"cited_evidence_ids,omitempty"`

	// CoverageScore estimates how well the evidence backs the node, 0-1.
	CoverageScore float64 `json:"coverage_score" yaml:"coverage_score"`

	// Frozen is set once the node stalls; its coverage no longer changes.
	Frozen bool `json:"frozen,omitempty" yaml:"frozen,omitempty"`

	// StallCount counts consecutive rounds that added no evidence.
	StallCount int `json:"stall_count,omitempty" yaml:"stall_count,omitempty"`
}

// Outline is the versioned tree of sections built for one research task.
type Outline struct {
	// Version increases by one on every revision.
	Version int `json:"version" yaml:"version"`

	// Title is the report title, normally the research query.
	Title string `json:"title" yaml:"title"`

	RootID string                  `json:"root_id" yaml:"root_id"`
	Nodes  map[string]*OutlineNode `json:"nodes" yaml:"nodes"`

	// NextSeq is the sequence number used for the next allocated node id.
	NextSeq int `json:"next_seq" yaml:"next_seq"`

	// OverallCompleteness is the mean coverage across nodes, 0-1.
	OverallCompleteness float64 `json:"overall_completeness" yaml:"overall_completeness"`

	// Finalized marks the snapshot handed to the section writer.
	Finalized bool `json:"finalized,omitempty" yaml:"finalized,omitempty"`
}

// Root returns the root node, or nil for an empty outline.
func (o *Outline) Root() *OutlineNode {
	if o == nil || o.Nodes == nil {
		return nil
	}
	return o.Nodes[o.RootID]
}

// PreOrder returns the nodes in depth-first pre-order starting at the root.
// Nodes unreachable from the root are not returned.
func (o *Outline) PreOrder() []*OutlineNode {
	root := o.Root()
	if root == nil {
		return nil
	}
	var out []*OutlineNode
	seen := make(map[string]bool, len(o.Nodes))
	var walk func(id string)
	walk = func(id string) {
		n, ok := o.Nodes[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, n)
		for _, c := range n.ChildIDs {
			walk(c)
		}
	}
	walk(root.NodeID)
	return out
}

// Clone returns a deep copy of the outline.
func (o *Outline) Clone() *Outline {
	if o == nil {
		return nil
	}
	c := *o
	c.Nodes = make(map[string]*OutlineNode, len(o.Nodes))
	for id, n := range o.Nodes {
		nn := *n
		nn.ChildIDs = append([]string(nil), n.ChildIDs...)
		nn.CitedEvidenceIDs = append([]string(nil), n.CitedEvidenceIDs...)
		c.Nodes[id] = &nn
	}
	return &c
}
