// Package agent implements the four stage agents. Each agent owns one
// prompt spec and one slice of the data contract; the shared runner owns
// the generate-normalize-validate loop and its single stricter retry, so
// retry policy lives in exactly one place.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"testforge/internal/contract"
	"testforge/internal/jsonrepair"
	"testforge/internal/llm"
	"testforge/internal/prompt"
	"testforge/internal/store"
	"testforge/internal/types"
)

// StageError names the stage whose output could not be produced even
// after the retry. The coordinator surfaces it as a terminal error.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("agent: stage %s failed: %v", e.Stage, e.Err)
}
func (e *StageError) Unwrap() error { return e.Err }

// Deps bundles the collaborators every stage agent needs.
type Deps struct {
	Client    llm.Client
	Normalize *jsonrepair.Normalizer
	Contract  *contract.Validator
	Store     store.ResultStore
	Log       *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// generate runs one stage round trip: build the prompt, call the
// generator, normalize the text, validate against the stage contract.
// A malformed or contract-violating response gets exactly one retry with
// the stricter preset appended; the second failure is terminal.
func (d Deps) generate(ctx context.Context, stage string, spec prompt.StructuredPromptSpec, input any) (json.RawMessage, error) {
	return d.generateWithFallback(ctx, stage, spec, input, nil)
}

// generateWithFallback is generate plus a stage-specific last resort:
// when both attempts fail because no structural repair produced JSON,
// the fallback gets the raw response text and may salvage a payload from
// it (line-oriented section extraction). The salvaged payload still goes
// through contract validation.
func (d Deps) generateWithFallback(ctx context.Context, stage string, spec prompt.StructuredPromptSpec, input any, fallback func(text string) (json.RawMessage, bool)) (json.RawMessage, error) {
	ctx = llm.WithStage(ctx, stage)
	log := d.logger()

	filled, text, err := d.attempt(ctx, stage, spec, input)
	if err == nil {
		return filled, nil
	}
	var pErr *llm.PermanentError
	if errors.As(err, &pErr) || ctx.Err() != nil {
		return nil, &StageError{Stage: stage, Err: err}
	}
	log.Warn("agent: stage attempt failed, retrying with strict prompt",
		zap.String("stage", stage), zap.Error(err))

	filled, retryText, err := d.attempt(ctx, stage, prompt.ApplyPresets(spec, prompt.PresetRetryStrict()), input)
	if err == nil {
		return filled, nil
	}
	if fallback != nil && errors.Is(err, jsonrepair.ErrUnparseable) {
		if retryText == "" {
			retryText = text
		}
		if raw, ok := fallback(retryText); ok {
			if valid, f := d.Contract.Validate(stage, raw); valid {
				log.Warn("agent: structural repair failed, salvaged via line extraction",
					zap.String("stage", stage))
				return f, nil
			}
		}
	}
	return nil, &StageError{Stage: stage, Err: err}
}

func (d Deps) attempt(ctx context.Context, stage string, spec prompt.StructuredPromptSpec, input any) (json.RawMessage, string, error) {
	p, err := prompt.Build(spec, input)
	if err != nil {
		return nil, "", err
	}
	text, err := d.Client.Generate(ctx, p)
	if err != nil {
		return nil, "", err
	}
	raw, err := d.Normalize.Normalize(text)
	if err != nil {
		return nil, text, err
	}
	ok, filled := d.Contract.Validate(stage, raw)
	if !ok {
		return nil, text, fmt.Errorf("response violates %s contract after fill", stage)
	}
	return filled, text, nil
}

// persist saves the stage result. Durability is best-effort: a failed
// save is logged and the in-memory result stays usable for the next
// stage.
func (d Deps) persist(ctx context.Context, stage string, payload json.RawMessage) {
	if d.Store == nil {
		return
	}
	err := d.Store.Save(ctx, types.StageResult{
		Stage:     stage,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		d.logger().Warn("agent: persist stage result failed",
			zap.String("stage", stage), zap.Error(err))
	}
}
