// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"github.com/pdiddy/research-weaver/pkg/types"
)

// Evidence resolves evidence ids. *evidence.Store satisfies it.
type Evidence interface {
	Get(id string) (types.EvidenceItem, error)
}

// NodeCoverage is the evidence-backed coverage of n alone:
// min(1, sum of cited relevance / target). Ids that do not resolve count
// as zero. The value never decreases as evidence is added.
func NodeCoverage(n *types.OutlineNode, ev Evidence, target float64) float64 {
	if target <= 0 {
		target = 1
	}
	mass := 0.0
	for _, id := range n.CitedEvidenceIDs {
		item, err := ev.Get(id)
		if err != nil {
			continue
		}
		mass += item.RelevanceScore
	}
	if mass >= target {
		return 1
	}
	return mass / target
}

// UpdateCoverage recomputes CoverageScore for every non-frozen node, bottom
// up. A parent scores the larger of its own coverage and the mean of its
// children. It then sets OverallCompleteness to the mean coverage across
// nodes. Frozen nodes contribute the score they had when they froze.
func UpdateCoverage(o *types.Outline, ev Evidence, target float64) {
	var visit func(id string) float64
	visit = func(id string) float64 {
		n := o.Nodes[id]
		if len(n.ChildIDs) > 0 {
			sum := 0.0
			for _, c := range n.ChildIDs {
				sum += visit(c)
			}
			if !n.Frozen {
				own := NodeCoverage(n, ev, target)
				n.CoverageScore = max(own, sum/float64(len(n.ChildIDs)))
			}
		} else if !n.Frozen {
			n.CoverageScore = NodeCoverage(n, ev, target)
		}
		return n.CoverageScore
	}
	if o.Root() == nil {
		return
	}
	visit(o.RootID)

	nodes := o.PreOrder()
	total := 0.0
	for _, n := range nodes {
		total += n.CoverageScore
	}
	o.OverallCompleteness = total / float64(len(nodes))
}
