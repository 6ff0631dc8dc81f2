// Package pipeline drives the four stages in fixed order and owns the
// state machine around them, including the requirements confirmation
// gate and terminal error handling.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"testforge/internal/agent"
	"testforge/internal/types"
)

// State is the coordinator's position in the run.
type State string

const (
	StateInit          State = "INIT"
	StateRequirements  State = "REQUIREMENTS"
	StateDesign        State = "DESIGN"
	StateWriting       State = "WRITING"
	StateReview        State = "REVIEW"
	StateDone          State = "DONE"
	StateNeedsRevision State = "NEEDS_REVISION"
	StateError         State = "ERROR"
)

// ErrNeedsRevision is returned when the confirmation gate rejects the
// analysis. It is a normal terminal outcome, not a stage failure; the
// analysis payload rides along in the Result for human correction.
var ErrNeedsRevision = errors.New("pipeline: requirement analysis needs revision")

// Stage statuses mirrored into progress snapshots.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// StageStatus is one stage's slice of a progress snapshot.
type StageStatus struct {
	Status     string `json:"status"`
	Completion int    `json:"completion"`
}

// Progress is a point-in-time copy of the coordinator's state. It is
// safe to retain; nothing in it aliases coordinator internals.
type Progress struct {
	State    State                  `json:"state"`
	Stages   map[string]StageStatus `json:"stages"`
	Revision string                 `json:"revision,omitempty"`
	Err      string                 `json:"error,omitempty"`
}

// Result carries whatever the run produced before it stopped. On
// NEEDS_REVISION only Requirements and RevisionMessage are set.
type Result struct {
	types.PipelineResult
	RevisionMessage string
}

// Coordinator wires the stage agents together. One coordinator runs one
// pipeline at a time; Progress may be called concurrently with Run.
type Coordinator struct {
	analyst  *agent.Analyst
	designer *agent.Designer
	writer   *agent.Writer
	reviewer *agent.Reviewer
	log      *zap.Logger
	notify   func(Progress)

	mu       sync.RWMutex
	state    State
	stages   map[string]StageStatus
	revision string
	lastErr  string
}

type Option func(*Coordinator)

// WithNotify registers a callback invoked after every state change with
// a fresh progress snapshot.
func WithNotify(fn func(Progress)) Option {
	return func(c *Coordinator) { c.notify = fn }
}

func New(analyst *agent.Analyst, designer *agent.Designer, writer *agent.Writer, reviewer *agent.Reviewer, log *zap.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		analyst:  analyst,
		designer: designer,
		writer:   writer,
		reviewer: reviewer,
		log:      log,
		state:    StateInit,
		stages:   make(map[string]StageStatus, len(types.Stages)),
	}
	for _, stage := range types.Stages {
		c.stages[stage] = StageStatus{Status: StatusPending}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the full pipeline over the document. The returned Result
// holds everything produced up to the point the run stopped, so a gate
// rejection still surfaces the analysis.
func (c *Coordinator) Run(ctx context.Context, doc string) (Result, error) {
	var out Result

	c.setState(StateRequirements)
	c.setStage(types.StageRequirementAnalyst, StatusRunning, 0)
	analysis, err := c.analyst.Analyze(ctx, doc)
	if err != nil {
		return out, c.fail(types.StageRequirementAnalyst, err)
	}
	out.Requirements = analysis
	c.setStage(types.StageRequirementAnalyst, StatusCompleted, 100)

	decision := c.analyst.Confirm(ctx, analysis)
	if !decision.Approved {
		c.log.Info("pipeline: gate rejected analysis", zap.String("message", decision.Message))
		out.RevisionMessage = decision.Message
		c.setRevision(decision.Message)
		if decision.Message != "" {
			return out, fmt.Errorf("%w: %s", ErrNeedsRevision, decision.Message)
		}
		return out, ErrNeedsRevision
	}

	c.setState(StateDesign)
	c.setStage(types.StageTestDesigner, StatusRunning, 0)
	strategy, err := c.designer.Design(ctx, analysis)
	if err != nil {
		return out, c.fail(types.StageTestDesigner, err)
	}
	out.Strategy = strategy
	c.setStage(types.StageTestDesigner, StatusCompleted, 100)

	c.setState(StateWriting)
	c.setStage(types.StageTestCaseWriter, StatusRunning, 0)
	cases, err := c.writer.Generate(ctx, strategy)
	if err != nil {
		return out, c.fail(types.StageTestCaseWriter, err)
	}
	out.TestCases = cases
	c.setStage(types.StageTestCaseWriter, StatusCompleted, 100)

	c.setState(StateReview)
	c.setStage(types.StageQualityReviewer, StatusRunning, 0)
	review, err := c.reviewer.Review(ctx, cases)
	if err != nil {
		return out, c.fail(types.StageQualityReviewer, err)
	}
	out.Review = review
	out.TestCases = review.TestCases
	c.setStage(types.StageQualityReviewer, StatusCompleted, 100)

	c.setState(StateDone)
	return out, nil
}

// Progress returns a snapshot. It never blocks a running pipeline beyond
// the copy itself.
func (c *Coordinator) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Progress {
	stages := make(map[string]StageStatus, len(c.stages))
	for k, v := range c.stages {
		stages[k] = v
	}
	return Progress{State: c.state, Stages: stages, Revision: c.revision, Err: c.lastErr}
}

func (c *Coordinator) fail(stage string, err error) error {
	c.mu.Lock()
	c.state = StateError
	c.stages[stage] = StageStatus{Status: StatusError}
	c.lastErr = err.Error()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.log.Error("pipeline: stage failed", zap.String("stage", stage), zap.Error(err))
	c.publish(snap)
	return err
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Coordinator) setStage(stage, status string, completion int) {
	c.mu.Lock()
	c.stages[stage] = StageStatus{Status: status, Completion: completion}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Coordinator) setRevision(msg string) {
	c.mu.Lock()
	c.state = StateNeedsRevision
	c.revision = msg
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Coordinator) publish(p Progress) {
	if c.notify != nil {
		c.notify(p)
	}
}
