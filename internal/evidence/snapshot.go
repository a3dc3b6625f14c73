// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// Snapshot is the serializable form of a store.
type Snapshot struct {
	Items []types.EvidenceItem `json:"items" yaml:"items"`
}

// Snapshot returns every stored item ordered by id.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Items: s.All()}
}

// Restore loads items from a snapshot, keeping their ids and timestamps.
// Items already present are skipped. An item whose id does not match its
// content fingerprint is logged and skipped; the rest still load. It returns
// the number of items added and the number rejected.
func (s *Store) Restore(snap Snapshot) (added, rejected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range snap.Items {
		item := snap.Items[i]
		if want := Fingerprint(item.RawContent); item.ID != want {
			s.logger.Warn("skipping evidence with mismatched fingerprint",
				zap.String("id", item.ID),
				zap.String("fingerprint", want),
				zap.String("source", item.SourceURI),
			)
			rejected++
			continue
		}
		if _, ok := s.items[item.ID]; ok {
			continue
		}
		item.TopicTags = normalizeTags(item.TopicTags)
		s.insertLocked(&item, textproc.TermFrequency(item.Title+" "+item.RawContent))
		added++
	}
	return added, rejected
}
