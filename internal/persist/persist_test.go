// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package persist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-weaver/internal/evidence"
	"github.com/pdiddy/research-weaver/pkg/types"
)

// --- test helpers ---

func testItem(content, title string, relevance float64, tags ...string) types.EvidenceItem {
	return types.EvidenceItem{
		ID:              evidence.Fingerprint(content),
		RawContent:      content,
		Summary:         content,
		SourceURI:       "https://example.org/" + title,
		Title:           title,
		Provider:        "arxiv",
		OriginQuery:     "energy storage",
		RelevanceScore:  relevance,
		TopicTags:       tags,
		IngestTimestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testOutline() *types.Outline {
	return &types.Outline{
		Version: 2,
		Title:   "energy storage",
		RootID:  "n0",
		NextSeq: 2,
		Nodes: map[string]*types.OutlineNode{
			"n0": {NodeID: "n0", Title: "energy storage", ChildIDs: []string{"n1"}},
			"n1": {NodeID: "n1", Title: "Batteries", Level: 1, ParentID: "n0", CoverageScore: 0.4},
		},
		OverallCompleteness: 0.2,
	}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := newRedisStoreFromClient(client, ttl, nil)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

// exerciseStore runs the behavior every backend shares.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	require.NoError(t, s.SaveTask(ctx, "t1", "energy storage"))
	require.NoError(t, s.SaveTask(ctx, "t1", "ignored on second save"))

	a := testItem("Lithium cells dominate grid storage.", "lithium", 0.8, "lithium", "storage")
	b := testItem("Pumped hydro remains the largest storage.", "hydro", 0.6, "hydro")
	require.NoError(t, s.SaveEvidence(ctx, "t1", []types.EvidenceItem{b, a}))
	require.NoError(t, s.SaveEvidence(ctx, "t1", []types.EvidenceItem{a}))

	o := testOutline()
	require.NoError(t, s.SaveOutline(ctx, "t1", o, 1))
	o2 := o.Clone()
	o2.Version = 3
	o2.Nodes["n1"].CitedEvidenceIDs = []string{a.ID}
	require.NoError(t, s.SaveOutline(ctx, "t1", o2, 2))

	snap, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "energy storage", snap.Query)
	assert.Equal(t, 2, snap.Iteration)
	assert.False(t, snap.CreatedAt.IsZero())
	require.NotNil(t, snap.Outline)
	assert.Equal(t, 3, snap.Outline.Version)
	assert.Equal(t, []string{a.ID}, snap.Outline.Nodes["n1"].CitedEvidenceIDs)
	assert.Nil(t, snap.Result)

	require.Len(t, snap.Evidence, 2)
	byID := map[string]types.EvidenceItem{}
	for _, it := range snap.Evidence {
		byID[it.ID] = it
	}
	got := byID[a.ID]
	assert.Equal(t, a.RawContent, got.RawContent)
	assert.Equal(t, a.Title, got.Title)
	assert.Equal(t, a.SourceURI, got.SourceURI)
	assert.Equal(t, a.TopicTags, got.TopicTags)
	assert.InDelta(t, 0.8, got.RelevanceScore, 1e-9)
	assert.True(t, a.IngestTimestamp.Equal(got.IngestTimestamp))
	assert.Less(t, snap.Evidence[0].ID, snap.Evidence[1].ID)

	res := &types.ResearchResult{TaskID: "t1", Query: "energy storage", StopReason: types.StopConverged, Iterations: 2}
	require.NoError(t, s.SaveResult(ctx, "t1", res))
	snap, err = s.Load(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, snap.Result)
	assert.Equal(t, types.StopConverged, snap.Result.StopReason)

	require.NoError(t, s.SaveTask(ctx, "t2", "hydrogen"))
	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	ids := []string{tasks[0].TaskID, tasks[1].TaskID}
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids)
	for _, task := range tasks {
		assert.Nil(t, task.Outline)
		assert.Empty(t, task.Evidence)
	}
}

// --- backends ---

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newTestSQLite(t))
}

func TestRedisStore(t *testing.T) {
	s, _ := newTestRedis(t, 0)
	exerciseStore(t, s)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveTask(ctx, "t1", "q"))
	require.NoError(t, s.SaveEvidence(ctx, "t1", []types.EvidenceItem{testItem("some content here", "x", 0.5)}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, snap.Evidence, 1)
}

func TestSQLiteSharedEvidenceAcrossTasks(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	it := testItem("Shared content about flywheels.", "flywheel", 0.5)

	for _, id := range []string{"t1", "t2"} {
		require.NoError(t, s.SaveTask(ctx, id, "q"))
		require.NoError(t, s.SaveEvidence(ctx, id, []types.EvidenceItem{it}))
	}
	for _, id := range []string{"t1", "t2"} {
		snap, err := s.Load(ctx, id)
		require.NoError(t, err)
		require.Len(t, snap.Evidence, 1)
		assert.Equal(t, it.ID, snap.Evidence[0].ID)
	}
}

func TestSQLiteSearchEvidence(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTask(ctx, "t1", "q"))
	require.NoError(t, s.SaveEvidence(ctx, "t1", []types.EvidenceItem{
		testItem("Lithium cells dominate grid storage.", "lithium", 0.8),
		testItem("Pumped hydro remains the largest storage.", "hydro", 0.6),
		testItem("Flywheels store kinetic energy.", "flywheel", 0.4),
	}))

	got, err := s.SearchEvidence(ctx, "lithium", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lithium", got[0].Title)

	got, err = s.SearchEvidence(ctx, "storage", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.SearchEvidence(ctx, "superconducting", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisTTL(t *testing.T) {
	s, mr := newTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.SaveTask(ctx, "t1", "q"))
	require.NoError(t, s.SaveOutline(ctx, "t1", testOutline(), 1))
	assert.Equal(t, time.Hour, mr.TTL(taskKey("t1")))
	assert.Equal(t, time.Hour, mr.TTL(outlineKey("t1")))

	mr.FastForward(2 * time.Hour)
	_, err := s.Load(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	members, err := mr.SMembers(tasksKey())
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(types.PersistenceConfig{Backend: types.PersistNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(types.PersistenceConfig{Backend: types.PersistSQLite, DataDir: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Close()

	mr := miniredis.RunT(t)
	s, err = Open(types.PersistenceConfig{Backend: types.PersistRedis, RedisAddr: mr.Addr()}, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Close()

	_, err = Open(types.PersistenceConfig{Backend: "etcd"}, nil)
	assert.Error(t, err)
}
