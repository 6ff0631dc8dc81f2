// Package store persists per-stage pipeline results. Every backend keeps
// the same contract: Save overwrites the stage's previous result, Load of
// an absent stage reports ok=false without error, and a failed write never
// corrupts the previously persisted value.
package store

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"testforge/internal/types"
)

// ResultStore is the persistence seam between the pipeline and its
// backends.
type ResultStore interface {
	// Save persists the result for its stage, replacing any prior value.
	Save(ctx context.Context, res types.StageResult) error
	// Load returns the persisted result for a stage. Absence is not an
	// error: ok is false and err is nil when nothing was saved yet.
	Load(ctx context.Context, stage string) (types.StageResult, bool, error)
	// Close releases backend resources.
	Close() error
}

// NewFromEnv picks the backend from the environment: a Postgres DSN in
// RESULT_STORE_PG_DSN selects the database store, otherwise results land
// in dir as flat files. A DSN that fails to connect falls back to the
// file store so a local run never dies on a stale env var.
func NewFromEnv(dir, runID string, log *zap.Logger) ResultStore {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := strings.TrimSpace(os.Getenv("RESULT_STORE_PG_DSN"))
	if dsn == "" {
		return NewFileStore(dir, log)
	}
	s, err := NewPostgresStore(dsn, runID, log)
	if err != nil {
		log.Warn("store: postgres unavailable, using file store",
			zap.String("dir", dir), zap.Error(err))
		return NewFileStore(dir, log)
	}
	return s
}
