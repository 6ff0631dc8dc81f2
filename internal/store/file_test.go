package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"testforge/internal/types"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, nil)
	ctx := context.Background()

	payload, err := json.Marshal(map[string]any{
		"functional_requirements": []string{"用户可以登录", "支持找回密码"},
		"risk_areas":              []string{"第三方认证服务不可用"},
	})
	require.NoError(t, err)

	saved := types.StageResult{
		Stage:     types.StageRequirementAnalyst,
		Payload:   payload,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(ctx, saved))

	got, ok, err := s.Load(ctx, types.StageRequirementAnalyst)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, saved.Stage, got.Stage)
	require.Equal(t, saved.Timestamp, got.Timestamp)
	require.JSONEq(t, string(payload), string(got.Payload))
}

func TestFileStoreLoadAbsent(t *testing.T) {
	s := NewFileStore(t.TempDir(), nil)
	_, ok, err := s.Load(context.Background(), types.StageTestDesigner)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, nil)
	ctx := context.Background()

	for _, body := range []string{`{"v": 1}`, `{"v": 2}`} {
		require.NoError(t, s.Save(ctx, types.StageResult{
			Stage:   types.StageTestCaseWriter,
			Payload: json.RawMessage(body),
		}))
	}
	got, ok, err := s.Load(ctx, types.StageTestCaseWriter)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"v": 2}`, string(got.Payload))

	// Exactly one result file per stage after repeated saves, no temp
	// leftovers.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, types.StageTestCaseWriter+"_result.json", entries[0].Name())
}

func TestFileStoreFileNaming(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, nil)
	require.NoError(t, s.Save(context.Background(), types.StageResult{
		Stage:   types.StageQualityReviewer,
		Payload: json.RawMessage(`{}`),
	}))
	_, err := os.Stat(filepath.Join(dir, "quality_assurance_result.json"))
	require.NoError(t, err)
}

func TestFileStoreRejectsEmptyStage(t *testing.T) {
	s := NewFileStore(t.TempDir(), nil)
	err := s.Save(context.Background(), types.StageResult{Payload: json.RawMessage(`{}`)})
	require.Error(t, err)
}

type failingStore struct {
	saveErr error
}

func (f *failingStore) Save(context.Context, types.StageResult) error { return f.saveErr }
func (f *failingStore) Load(context.Context, string) (types.StageResult, bool, error) {
	return types.StageResult{}, false, nil
}
func (f *failingStore) Close() error { return nil }

func TestMirrorSecondaryFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	primary := NewFileStore(dir, nil)
	mirror := NewMirror(primary, &failingStore{saveErr: errors.New("bucket gone")}, nil)
	ctx := context.Background()

	require.NoError(t, mirror.Save(ctx, types.StageResult{
		Stage:   types.StageRequirementAnalyst,
		Payload: json.RawMessage(`{"ok": true}`),
	}))

	got, ok, err := mirror.Load(ctx, types.StageRequirementAnalyst)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"ok": true}`, string(got.Payload))
}

func TestMirrorPrimaryFailureAborts(t *testing.T) {
	mirror := NewMirror(&failingStore{saveErr: errors.New("disk full")}, NewFileStore(t.TempDir(), nil), nil)
	err := mirror.Save(context.Background(), types.StageResult{
		Stage:   types.StageRequirementAnalyst,
		Payload: json.RawMessage(`{}`),
	})
	require.Error(t, err)
}
