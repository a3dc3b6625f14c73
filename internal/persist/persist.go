// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package persist saves research tasks so they can be resumed and
// inspected. SQLiteStore keeps everything in one database file with a
// full-text index over evidence; RedisStore keeps tasks in Redis with an
// optional expiry.
package persist

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/pkg/types"
)

// ErrTaskNotFound is returned when no snapshot exists for a task id.
var ErrTaskNotFound = errors.New("task not found")

// Store is a snapshot backend.
type Store interface {
	SaveTask(ctx context.Context, taskID, query string) error
	SaveEvidence(ctx context.Context, taskID string, items []types.EvidenceItem) error
	SaveOutline(ctx context.Context, taskID string, o *types.Outline, iteration int) error
	SaveResult(ctx context.Context, taskID string, r *types.ResearchResult) error
	Load(ctx context.Context, taskID string) (*types.TaskSnapshot, error)
	ListTasks(ctx context.Context) ([]types.TaskSnapshot, error)
	Close() error
}

// Open returns the backend selected by cfg, or nil for PersistNone.
func Open(cfg types.PersistenceConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case types.PersistNone, "":
		return nil, nil
	case types.PersistSQLite:
		s, err := NewSQLiteStore(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case types.PersistRedis:
		s, err := NewRedisStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Backend)
	}
}
