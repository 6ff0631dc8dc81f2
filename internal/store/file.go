package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"testforge/internal/types"
)

// FileStore writes one <stage>_result.json per stage into a directory.
// Writes go through a temp file and rename, so a crash mid-write leaves
// the previous result intact.
type FileStore struct {
	dir string
	log *zap.Logger

	mu sync.Mutex
}

func NewFileStore(dir string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{dir: dir, log: log}
}

func (s *FileStore) path(stage string) string {
	return filepath.Join(s.dir, stage+"_result.json")
}

func (s *FileStore) Save(ctx context.Context, res types.StageResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res.Stage == "" {
		return fmt.Errorf("store: stage name is required")
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s result: %w", res.Stage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create result dir: %w", err)
	}
	dst := s.path(res.Stage)
	tmp, err := os.CreateTemp(s.dir, res.Stage+"-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write %s result: %w", res.Stage, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: replace %s result: %w", res.Stage, err)
	}
	s.log.Debug("store: saved stage result",
		zap.String("stage", res.Stage), zap.String("path", dst))
	return nil
}

func (s *FileStore) Load(ctx context.Context, stage string) (types.StageResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.StageResult{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(stage))
	if os.IsNotExist(err) {
		return types.StageResult{}, false, nil
	}
	if err != nil {
		return types.StageResult{}, false, fmt.Errorf("store: read %s result: %w", stage, err)
	}
	var res types.StageResult
	if err := json.Unmarshal(data, &res); err != nil {
		return types.StageResult{}, false, fmt.Errorf("store: decode %s result: %w", stage, err)
	}
	return res, true, nil
}

func (s *FileStore) Close() error { return nil }
