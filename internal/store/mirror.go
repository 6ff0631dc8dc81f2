package store

import (
	"context"

	"go.uber.org/zap"

	"testforge/internal/types"
)

// Mirror fans writes out to a secondary store. The primary is
// authoritative: a secondary failure is logged and swallowed, so an
// object-store outage never aborts a pipeline run. Reads only consult the
// primary.
type Mirror struct {
	primary   ResultStore
	secondary ResultStore
	log       *zap.Logger
}

func NewMirror(primary, secondary ResultStore, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{primary: primary, secondary: secondary, log: log}
}

func (m *Mirror) Save(ctx context.Context, res types.StageResult) error {
	if err := m.primary.Save(ctx, res); err != nil {
		return err
	}
	if err := m.secondary.Save(ctx, res); err != nil {
		m.log.Warn("store: mirror save failed",
			zap.String("stage", res.Stage), zap.Error(err))
	}
	return nil
}

func (m *Mirror) Load(ctx context.Context, stage string) (types.StageResult, bool, error) {
	return m.primary.Load(ctx, stage)
}

func (m *Mirror) Close() error {
	err := m.primary.Close()
	if cerr := m.secondary.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
