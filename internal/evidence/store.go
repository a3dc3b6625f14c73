// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidence implements the in-memory evidence store: a deduplicating
// repository of retrieved documents indexed by source, topic tag,
// fingerprint prefix and keyword.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/internal/metrics"
	"github.com/pdiddy/research-weaver/internal/textproc"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// ErrInvalidCandidate is returned by Ingest for a candidate with no content.
var ErrInvalidCandidate = errors.New("evidence candidate has no content")

const (
	fingerprintHexLen = 16
	prefixLen         = 8
	shardCount        = 64
	summaryChars      = 300
)

// Fingerprint returns the evidence id for raw content. Whitespace runs are
// collapsed before hashing so reformatted copies of a page share an id.
func Fingerprint(rawContent string) string {
	normalized := strings.Join(strings.Fields(rawContent), " ")
	h := sha256.Sum256([]byte(normalized))
	return types.EvidencePrefix + hex.EncodeToString(h[:])[:fingerprintHexLen]
}

// prefixOf returns the near-duplicate probe key of an id.
func prefixOf(id string) string {
	return strings.TrimPrefix(id, types.EvidencePrefix)[:prefixLen]
}

// Store holds evidence items for one research task. It is safe for
// concurrent use.
type Store struct {
	cfg    types.EvidenceConfig
	logger *zap.Logger
	now    func() time.Time

	// shards serialize check-and-insert per fingerprint.
	shards [shardCount]sync.Mutex

	mu       sync.RWMutex
	items    map[string]*types.EvidenceItem
	bySource map[string][]string
	byTopic  map[string][]string
	byPrefix map[string][]string
	// terms maps a keyword to evidence id to term frequency.
	terms map[string]map[string]int
	// lengths holds the token count of each item for score normalization.
	lengths map[string]int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for ingest diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the ingest timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(cfg types.EvidenceConfig, opts ...Option) *Store {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	s := &Store{
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
		items:    make(map[string]*types.EvidenceItem),
		bySource: make(map[string][]string),
		byTopic:  make(map[string][]string),
		byPrefix: make(map[string][]string),
		terms:    make(map[string]map[string]int),
		lengths:  make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) shard(id string) *sync.Mutex {
	b, _ := hex.DecodeString(strings.TrimPrefix(id, types.EvidencePrefix)[:2])
	return &s.shards[int(b[0])%shardCount]
}

// Ingest stores a candidate. If an item with the same fingerprint exists it
// returns that id with isNew false and leaves the stored item untouched.
//
// Invalid UTF-8 is dropped from the content before fingerprinting, so the id
// survives any encoding that substitutes invalid bytes.
func (s *Store) Ingest(c types.EvidenceCandidate) (string, bool, error) {
	c.RawContent = strings.ToValidUTF8(c.RawContent, "")
	if strings.TrimSpace(c.RawContent) == "" {
		return "", false, ErrInvalidCandidate
	}
	id := Fingerprint(c.RawContent)

	lock := s.shard(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	_, exists := s.items[id]
	s.mu.RUnlock()
	if exists {
		metrics.EvidenceIngested.WithLabelValues("duplicate").Inc()
		s.logger.Debug("duplicate evidence", zap.String("id", id), zap.String("source", c.SourceURI))
		return id, false, nil
	}

	item := &types.EvidenceItem{
		ID:              id,
		RawContent:      c.RawContent,
		Summary:         c.Summary,
		SourceURI:       c.SourceURI,
		Title:           c.Title,
		Provider:        c.Provider,
		OriginQuery:     c.OriginQuery,
		RelevanceScore:  clamp01(c.RelevanceScore),
		TopicTags:       normalizeTags(c.TopicTags),
		IngestTimestamp: s.now().UTC(),
	}
	if item.Summary == "" {
		item.Summary = textproc.Summarize(c.RawContent, summaryChars)
	}
	tf := textproc.TermFrequency(item.Title + " " + item.RawContent)

	s.mu.Lock()
	s.insertLocked(item, tf)
	s.mu.Unlock()

	metrics.EvidenceIngested.WithLabelValues("new").Inc()
	s.logger.Debug("ingested evidence",
		zap.String("id", id),
		zap.String("source", c.SourceURI),
		zap.Int("terms", len(tf)),
	)
	return id, true, nil
}

// insertLocked adds item to the primary map and every index. s.mu must be held.
func (s *Store) insertLocked(item *types.EvidenceItem, tf map[string]int) {
	id := item.ID
	s.items[id] = item
	if item.SourceURI != "" {
		s.bySource[item.SourceURI] = append(s.bySource[item.SourceURI], id)
	}
	for _, tag := range item.TopicTags {
		s.byTopic[tag] = append(s.byTopic[tag], id)
	}
	p := prefixOf(id)
	s.byPrefix[p] = append(s.byPrefix[p], id)

	total := 0
	for term, n := range tf {
		postings, ok := s.terms[term]
		if !ok {
			postings = make(map[string]int)
			s.terms[term] = postings
		}
		postings[id] = n
		total += n
	}
	s.lengths[id] = total
}

// Get returns a copy of the item with the given id.
func (s *Store) Get(id string) (types.EvidenceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return types.EvidenceItem{}, fmt.Errorf("evidence %s: %w", id, types.ErrNotFound)
	}
	return copyItem(item), nil
}

// Has reports whether id is stored.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Count returns the number of stored items.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// BySource returns the items fetched from uri in ingest order.
func (s *Store) BySource(uri string) []types.EvidenceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.bySource[uri])
}

// ByTopic returns the items tagged with tag in ingest order.
func (s *Store) ByTopic(tag string) []types.EvidenceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.byTopic[strings.ToLower(tag)])
}

// NearDuplicates returns other items whose fingerprint shares the probe
// prefix of id.
func (s *Store) NearDuplicates(id string) []types.EvidenceItem {
	if len(strings.TrimPrefix(id, types.EvidencePrefix)) < prefixLen {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, other := range s.byPrefix[prefixOf(id)] {
		if other != id {
			ids = append(ids, other)
		}
	}
	return s.collectLocked(ids)
}

// Sources returns every distinct source URI, sorted.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.bySource)
}

// Topics returns every distinct topic tag, sorted.
func (s *Store) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.byTopic)
}

// All returns every item ordered by id.
func (s *Store) All() []types.EvidenceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return s.collectLocked(ids)
}

func (s *Store) collectLocked(ids []string) []types.EvidenceItem {
	if len(ids) == 0 {
		return nil
	}
	out := make([]types.EvidenceItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, copyItem(item))
		}
	}
	return out
}

func copyItem(item *types.EvidenceItem) types.EvidenceItem {
	c := *item
	c.TopicTags = append([]string(nil), item.TopicTags...)
	return c
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
