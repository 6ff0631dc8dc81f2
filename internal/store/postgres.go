package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"testforge/internal/types"
)

// PostgresStore keeps one row per (run, stage) with the payload stored as
// JSONB. A small LRU in front of Load absorbs the repeated reads the
// coordinator issues when assembling the final result.
type PostgresStore struct {
	db    *sql.DB
	runID string
	log   *zap.Logger

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, types.StageResult]
}

func NewPostgresStore(dsn, runID string, log *zap.Logger) (*PostgresStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("store: run id is required")
	}
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, types.StageResult](64)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db, runID: runID, log: log, cache: cache}, nil
}

func (s *PostgresStore) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS stage_results (
  run_id TEXT NOT NULL,
  stage TEXT NOT NULL,
  payload JSONB NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  PRIMARY KEY (run_id, stage)
);
CREATE INDEX IF NOT EXISTS idx_stage_results_run_id ON stage_results (run_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Save(ctx context.Context, res types.StageResult) error {
	if res.Stage == "" {
		return fmt.Errorf("store: stage name is required")
	}
	if err := s.ensureSchema(); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	payload := res.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stage_results (run_id, stage, payload, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (run_id, stage)
DO UPDATE SET payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		s.runID, res.Stage, []byte(payload), res.Timestamp)
	if err != nil {
		return fmt.Errorf("store: upsert %s result: %w", res.Stage, err)
	}
	s.cache.Add(res.Stage, res)
	s.log.Debug("store: saved stage result",
		zap.String("stage", res.Stage), zap.String("run_id", s.runID))
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, stage string) (types.StageResult, bool, error) {
	if cached, ok := s.cache.Get(stage); ok {
		return cached, true, nil
	}
	if err := s.ensureSchema(); err != nil {
		return types.StageResult{}, false, fmt.Errorf("store: ensure schema: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
SELECT payload, updated_at FROM stage_results WHERE run_id = $1 AND stage = $2`,
		s.runID, stage)
	var payload []byte
	var updated time.Time
	if err := row.Scan(&payload, &updated); err != nil {
		if err == sql.ErrNoRows {
			return types.StageResult{}, false, nil
		}
		return types.StageResult{}, false, fmt.Errorf("store: load %s result: %w", stage, err)
	}
	res := types.StageResult{Stage: stage, Payload: payload, Timestamp: updated}
	s.cache.Add(stage, res)
	return res, true, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
