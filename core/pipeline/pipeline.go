package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/ottoq/ottoq/core/clock"
	"github.com/ottoq/ottoq/core/model"
)

// Pipeline states.
const (
	StateArrived       = "arrived"
	StateQueued        = "queued"
	StateInService     = "in_service"
	StateTransitioning = "transitioning"
	StateStaging       = "staging"
	StateDeployed      = "deployed"
	StateCancelled     = "cancelled"
)

// Pipeline events.
const (
	EventEnqueue = "enqueue"
	EventAssign  = "assign_stall"
	EventFinish  = "finish_step"
	EventNext    = "next_step"
	EventStage   = "stage"
	EventDeploy  = "deploy"
	EventRequeue = "requeue"
	EventCancel  = "cancel"
)

// ErrInvalidTransition is returned when an event is not legal from the
// pipeline's current state. The pipeline is left unchanged.
var ErrInvalidTransition = errors.New("pipeline: invalid transition")

// StepStatus tracks one service step's lifecycle.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepActive
	StepCompleted
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepActive:
		return "active"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Step is one service stop inside a depot visit.
type Step struct {
	Type      model.ServiceType
	StallID   string // empty until allocated
	Estimated time.Duration
	Progress  float64 // 0-100
	Status    StepStatus
	startedAt time.Time
}

// Pipeline is one vehicle's journey from arrival to redeployment.
type Pipeline struct {
	mu        sync.Mutex
	vehicleID string
	steps     []Step
	current   int
	machine   *fsm.FSM
	clk       clock.Clock
	emit      func(model.TransitionEvent)
}

// New creates a pipeline in the arrived state. onTransition receives every
// state change; a nil callback disables the audit feed.
func New(vehicleID string, steps []Step, clk clock.Clock, onTransition func(model.TransitionEvent)) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline: vehicle %s has no steps", vehicleID)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	p := &Pipeline{
		vehicleID: vehicleID,
		steps:     steps,
		clk:       clk,
		emit:      onTransition,
	}
	p.machine = fsm.NewFSM(
		StateArrived,
		fsm.Events{
			{Name: EventEnqueue, Src: []string{StateArrived}, Dst: StateQueued},
			{Name: EventAssign, Src: []string{StateQueued}, Dst: StateInService},
			{Name: EventFinish, Src: []string{StateInService}, Dst: StateTransitioning},
			{Name: EventNext, Src: []string{StateTransitioning}, Dst: StateQueued},
			{Name: EventStage, Src: []string{StateTransitioning}, Dst: StateStaging},
			{Name: EventDeploy, Src: []string{StateStaging}, Dst: StateDeployed},
			{Name: EventRequeue, Src: []string{StateInService}, Dst: StateQueued},
			{Name: EventCancel, Src: []string{
				StateArrived, StateQueued, StateInService, StateTransitioning, StateStaging,
			}, Dst: StateCancelled},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				if p.emit == nil || e.Src == e.Dst {
					return
				}
				p.emit(model.TransitionEvent{
					ID:        uuid.NewString(),
					VehicleID: p.vehicleID,
					From:      e.Src,
					To:        e.Dst,
					Step:      p.stepLabel(),
					Timestamp: p.clk.Now(),
				})
			},
		},
	)
	return p, nil
}

func (p *Pipeline) stepLabel() string {
	if p.current >= len(p.steps) {
		return ""
	}
	return p.steps[p.current].Type.String()
}

func (p *Pipeline) fire(event string) error {
	if err := p.machine.Event(context.Background(), event); err != nil {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, p.machine.Current())
	}
	return nil
}

// VehicleID returns the owning vehicle.
func (p *Pipeline) VehicleID() string { return p.vehicleID }

// State returns the aggregate pipeline state.
func (p *Pipeline) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.Current()
}

// Steps returns a copy of the step list.
func (p *Pipeline) Steps() []Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// CurrentStep returns the active step index and a copy of the step. The
// second return is false once all steps are complete.
func (p *Pipeline) CurrentStep() (int, Step, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current >= len(p.steps) {
		return p.current, Step{}, false
	}
	return p.current, p.steps[p.current], true
}

// TotalEstimated sums the estimated durations of all steps.
func (p *Pipeline) TotalEstimated() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	var d time.Duration
	for _, s := range p.steps {
		d += s.Estimated
	}
	return d
}

// Enqueue moves a freshly created pipeline into the queue.
func (p *Pipeline) Enqueue() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fire(EventEnqueue)
}

// AssignStall binds the current step to a stall and starts service.
func (p *Pipeline) AssignStall(stallID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current >= len(p.steps) {
		return fmt.Errorf("%w: no pending step", ErrInvalidTransition)
	}
	if err := p.fire(EventAssign); err != nil {
		return err
	}
	step := &p.steps[p.current]
	step.StallID = stallID
	step.Status = StepActive
	step.startedAt = p.clk.Now()
	step.Progress = 0
	return nil
}

// Advance recomputes the current step's progress from elapsed time and
// applies any due transitions. It returns the id of the stall freed by a
// completed step, or empty if nothing completed.
func (p *Pipeline) Advance() (freedStall string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.machine.Current() != StateInService || p.current >= len(p.steps) {
		return "", nil
	}
	step := &p.steps[p.current]
	if step.Estimated <= 0 {
		step.Progress = 100
	} else {
		elapsed := p.clk.Now().Sub(step.startedAt)
		pct := elapsed.Seconds() / step.Estimated.Seconds() * 100
		if pct > 100 {
			pct = 100
		}
		if pct > step.Progress {
			step.Progress = pct
		}
	}
	if step.Progress < 100 {
		return "", nil
	}
	return p.completeCurrent()
}

// CompleteStep forces the current step to 100% and applies the same
// transitions as Advance. Used by fast-forward simulation and by explicit
// completion signals.
func (p *Pipeline) CompleteStep() (freedStall string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.machine.Current() != StateInService || p.current >= len(p.steps) {
		return "", fmt.Errorf("%w: no active step", ErrInvalidTransition)
	}
	p.steps[p.current].Progress = 100
	return p.completeCurrent()
}

// completeCurrent finishes the active step and advances to the next queue
// position or to staging. Caller holds the lock.
func (p *Pipeline) completeCurrent() (string, error) {
	step := &p.steps[p.current]
	if err := p.fire(EventFinish); err != nil {
		return "", err
	}
	step.Status = StepCompleted
	freed := step.StallID
	p.current++
	if p.current < len(p.steps) {
		if err := p.fire(EventNext); err != nil {
			return freed, err
		}
	} else {
		if err := p.fire(EventStage); err != nil {
			return freed, err
		}
	}
	return freed, nil
}

// Requeue forces an in-service step back to the queue with its stall
// unassigned. This is the recovery path when an occupied stall is pulled
// into maintenance.
func (p *Pipeline) Requeue() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fire(EventRequeue); err != nil {
		return err
	}
	step := &p.steps[p.current]
	step.StallID = ""
	step.Status = StepPending
	step.Progress = 0
	step.startedAt = time.Time{}
	return nil
}

// ConfirmDeployment releases a staged vehicle back to active service. It is
// rejected from any other state.
func (p *Pipeline) ConfirmDeployment() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fire(EventDeploy)
}

// Cancel terminates the pipeline from any non-terminal state and returns
// the stall held by the interrupted step, if any. Completed steps are not
// undone.
func (p *Pipeline) Cancel() (heldStall string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < len(p.steps) && p.steps[p.current].Status == StepActive {
		heldStall = p.steps[p.current].StallID
	}
	if err := p.fire(EventCancel); err != nil {
		return "", err
	}
	return heldStall, nil
}

// Done reports whether the pipeline reached a terminal state.
func (p *Pipeline) Done() bool {
	st := p.State()
	return st == StateDeployed || st == StateCancelled
}
