// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/pkg/types"
)

const keyPrefix = "research-weaver:"

func tasksKey() string             { return keyPrefix + "tasks" }
func taskKey(id string) string     { return keyPrefix + "task:" + id }
func outlineKey(id string) string  { return taskKey(id) + ":outline" }
func evidenceKey(id string) string { return taskKey(id) + ":evidence" }
func resultKey(id string) string   { return taskKey(id) + ":result" }

// RedisStore persists tasks in Redis. Each task is a hash plus keys for
// its latest outline, its evidence (a hash keyed by evidence id) and its
// result. When ttl is set every key of a task expires ttl after its last
// write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to cfg.RedisAddr and checks the connection.
func NewRedisStore(cfg types.PersistenceConfig, logger *zap.Logger) (*RedisStore, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return newRedisStoreFromClient(client, cfg.TTL, logger), nil
}

func newRedisStoreFromClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) expire(ctx context.Context, pipe redis.Pipeliner, taskID string) {
	if s.ttl <= 0 {
		return
	}
	for _, k := range []string{taskKey(taskID), outlineKey(taskID), evidenceKey(taskID), resultKey(taskID)} {
		pipe.Expire(ctx, k, s.ttl)
	}
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// SaveTask creates the task hash if it does not exist.
func (s *RedisStore) SaveTask(ctx context.Context, taskID, query string) error {
	ts := stamp()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, taskKey(taskID), "query", query)
		pipe.HSetNX(ctx, taskKey(taskID), "created_at", ts)
		pipe.HSetNX(ctx, taskKey(taskID), "iteration", 0)
		pipe.HSet(ctx, taskKey(taskID), "updated_at", ts)
		pipe.SAdd(ctx, tasksKey(), taskID)
		s.expire(ctx, pipe, taskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving task %s: %w", taskID, err)
	}
	return nil
}

// SaveEvidence adds items to the task's evidence hash.
func (s *RedisStore) SaveEvidence(ctx context.Context, taskID string, items []types.EvidenceItem) error {
	if len(items) == 0 {
		return nil
	}
	values := make([]any, 0, 2*len(items))
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshaling evidence %s: %w", it.ID, err)
		}
		values = append(values, it.ID, data)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, evidenceKey(taskID), values...)
		pipe.HSet(ctx, taskKey(taskID), "updated_at", stamp())
		s.expire(ctx, pipe, taskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving evidence for %s: %w", taskID, err)
	}
	return nil
}

// SaveOutline replaces the task's outline. Only the latest version is kept.
func (s *RedisStore) SaveOutline(ctx context.Context, taskID string, o *types.Outline, iteration int) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshaling outline: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, outlineKey(taskID), data, s.ttl)
		pipe.HSet(ctx, taskKey(taskID), "iteration", iteration, "updated_at", stamp())
		s.expire(ctx, pipe, taskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving outline for %s: %w", taskID, err)
	}
	return nil
}

// SaveResult stores the task's final result.
func (s *RedisStore) SaveResult(ctx context.Context, taskID string, r *types.ResearchResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, resultKey(taskID), data, s.ttl)
		pipe.HSet(ctx, taskKey(taskID), "updated_at", stamp())
		s.expire(ctx, pipe, taskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving result for %s: %w", taskID, err)
	}
	return nil
}

// Load returns the task snapshot.
func (s *RedisStore) Load(ctx context.Context, taskID string) (*types.TaskSnapshot, error) {
	snap, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, outlineKey(taskID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("loading outline: %w", err)
	default:
		snap.Outline = &types.Outline{}
		if err := json.Unmarshal(data, snap.Outline); err != nil {
			return nil, fmt.Errorf("decoding outline: %w", err)
		}
	}

	raw, err := s.client.HGetAll(ctx, evidenceKey(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading evidence: %w", err)
	}
	for id, v := range raw {
		var it types.EvidenceItem
		if err := json.Unmarshal([]byte(v), &it); err != nil {
			return nil, fmt.Errorf("decoding evidence %s: %w", id, err)
		}
		snap.Evidence = append(snap.Evidence, it)
	}
	sort.Slice(snap.Evidence, func(i, j int) bool { return snap.Evidence[i].ID < snap.Evidence[j].ID })

	data, err = s.client.Get(ctx, resultKey(taskID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("loading result: %w", err)
	default:
		snap.Result = &types.ResearchResult{}
		if err := json.Unmarshal(data, snap.Result); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
	}
	return snap, nil
}

func (s *RedisStore) loadTask(ctx context.Context, taskID string) (*types.TaskSnapshot, error) {
	fields, err := s.client.HGetAll(ctx, taskKey(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	snap := &types.TaskSnapshot{TaskID: taskID, Query: fields["query"]}
	snap.Iteration, _ = strconv.Atoi(fields["iteration"])
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	snap.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return snap, nil
}

// ListTasks returns every live task, most recently updated first. Ids
// whose task hash has expired are removed from the index.
func (s *RedisStore) ListTasks(ctx context.Context) ([]types.TaskSnapshot, error) {
	ids, err := s.client.SMembers(ctx, tasksKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	var out []types.TaskSnapshot
	for _, id := range ids {
		snap, err := s.loadTask(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			s.client.SRem(ctx, tasksKey(), id)
			s.logger.Debug("dropped expired task from index", zap.String("task_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}
