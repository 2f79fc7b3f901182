package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ottoq/ottoq/core/allocator"
	"github.com/ottoq/ottoq/core/booking"
	"github.com/ottoq/ottoq/core/bundling"
	"github.com/ottoq/ottoq/core/clock"
	"github.com/ottoq/ottoq/core/fleet"
	"github.com/ottoq/ottoq/core/forecast"
	"github.com/ottoq/ottoq/core/logger"
	"github.com/ottoq/ottoq/core/metrics"
	"github.com/ottoq/ottoq/core/model"
	"github.com/ottoq/ottoq/core/pipeline"
	"github.com/ottoq/ottoq/core/urgency"
	"github.com/ottoq/ottoq/internal/eventbus"
)

// ErrNoPipeline is returned when an operation targets a vehicle without an
// open pipeline.
var ErrNoPipeline = errors.New("engine: no open pipeline for vehicle")

// ErrPipelineOpen is returned when admitting a vehicle that already has one.
var ErrPipelineOpen = errors.New("engine: vehicle already has an open pipeline")

// Engine is the depot scheduling orchestrator.
type Engine struct {
	cfg     Config
	fleet   *fleet.Store
	scorer  *urgency.Engine
	tracker *urgency.Tracker
	advisor *bundling.Advisor
	alloc   *allocator.Allocator
	demand  *forecast.Demand
	ledger  *forecast.Ledger
	booking *booking.Service
	pricing model.PricingSchedule
	clk     clock.Clock
	log     logger.Logger
	sink    metrics.MetricsSink

	transitions *eventbus.Bus[model.TransitionEvent]
	alerts      *eventbus.Bus[model.UrgencyAlert]

	scanMu sync.Mutex // serializes scheduling passes

	mu          sync.Mutex
	pipelines   map[string]*pipeline.Pipeline
	lastQueue   []model.ServiceNeed
	lastWindows []model.DemandWindow
	lastEnergy  forecast.EnergyReport
	scans       int
}

// New wires the engine from its collaborators. sink may be nil.
func New(cfg Config, fl *fleet.Store, scorer *urgency.Engine, advisor *bundling.Advisor,
	alloc *allocator.Allocator, book *booking.Service, pricing model.PricingSchedule,
	clk clock.Clock, log logger.Logger, sink metrics.MetricsSink) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fl == nil || scorer == nil || advisor == nil || alloc == nil {
		return nil, fmt.Errorf("engine: nil collaborator")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	e := &Engine{
		cfg:         cfg,
		fleet:       fl,
		scorer:      scorer,
		tracker:     urgency.NewTracker(),
		advisor:     advisor,
		alloc:       alloc,
		demand:      forecast.NewDemand(alloc),
		ledger:      forecast.NewLedger(),
		booking:     book,
		pricing:     pricing,
		clk:         clk,
		log:         log,
		sink:        sink,
		transitions: eventbus.New[model.TransitionEvent](0),
		alerts:      eventbus.New[model.UrgencyAlert](0),
		pipelines:   make(map[string]*pipeline.Pipeline),
	}
	e.demand.SetSurge(cfg.SurgeMultiplier)
	return e, nil
}

// Run triggers a scan at the configured interval until the context is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(e.cfg.ScanIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	e.log.Infof("scan loop started, interval %s", interval)
	for {
		select {
		case <-ticker.C:
			e.Scan()
		case <-ctx.Done():
			e.log.Infof("scan loop stopped")
			return ctx.Err()
		}
	}
}

// Scan runs one scheduling pass. A pass already in flight makes this call a
// no-op; overlapping scans must never contend for the same stall.
func (e *Engine) Scan() bool {
	if !e.scanMu.TryLock() {
		e.log.Warnf("scan still running, skipping trigger")
		return false
	}
	defer e.scanMu.Unlock()

	started := e.clk.Now()
	for _, id := range e.alloc.ExpireReservations(started) {
		e.log.Warnf("reservation on %s lapsed, stall released", id)
	}
	vehicles := e.fleet.List()
	queue := e.scorer.Scan(vehicles, started)
	queue = e.filterSuppressed(queue, started)

	for _, a := range e.tracker.Observe(queue, started) {
		e.alerts.Publish(a)
		if a.Boundary == "overdue" {
			e.log.Warnf("vehicle %s %s crossed overdue (%.0f -> %.0f)",
				a.VehicleID, a.Service, a.Previous, a.Current)
		}
	}

	e.admitDue(queue, started)
	e.allocate(queue, started)
	e.advance(started)
	e.propose(queue, started)

	windows := e.demand.Windows(queue, started)
	energy := forecast.ComputeEnergy(e.ledger.Sessions(), e.pricing, e.clk.Now())

	e.mu.Lock()
	e.lastQueue = queue
	e.lastWindows = windows
	e.lastEnergy = energy
	e.scans++
	active := len(e.pipelines)
	e.mu.Unlock()

	e.record(started, vehicles, queue, windows, energy, active)
	return true
}

// filterSuppressed drops needs muted by declined or expired offers.
func (e *Engine) filterSuppressed(queue []model.ServiceNeed, now time.Time) []model.ServiceNeed {
	if e.booking == nil {
		return queue
	}
	out := queue[:0]
	for _, n := range queue {
		if e.booking.Suppressed(n.VehicleID, n.Type, now) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Admit opens a pipeline for an arriving vehicle, bundling its current
// needs into an ordered visit.
func (e *Engine) Admit(vehicleID string) error {
	e.mu.Lock()
	if _, open := e.pipelines[vehicleID]; open {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPipelineOpen, vehicleID)
	}
	e.mu.Unlock()

	v, ok := e.fleet.Get(vehicleID)
	if !ok {
		return fmt.Errorf("engine: unknown vehicle %s", vehicleID)
	}
	now := e.clk.Now()
	needs := e.scorer.BuildQueue(e.scorer.NeedsFor(v, now))
	needs = e.filterSuppressed(needs, now)
	return e.openPipeline(v, needs)
}

// admitDue opens pipelines for autonomous-fleet vehicles whose most urgent
// need crossed the auto-admit bound. Member-owned vehicles arrive only via
// Admit or an accepted offer.
func (e *Engine) admitDue(queue []model.ServiceNeed, now time.Time) {
	byVehicle := make(map[string][]model.ServiceNeed)
	var order []string
	for _, n := range queue {
		if _, seen := byVehicle[n.VehicleID]; !seen {
			order = append(order, n.VehicleID)
		}
		byVehicle[n.VehicleID] = append(byVehicle[n.VehicleID], n)
	}
	for _, id := range order {
		needs := byVehicle[id]
		if needs[0].Urgency < e.cfg.AutoAdmitUrgency {
			continue
		}
		v, ok := e.fleet.Get(id)
		if !ok || v.Category != model.CategoryAutonomousFleet || v.Status != model.StatusActive {
			continue
		}
		e.mu.Lock()
		_, open := e.pipelines[id]
		e.mu.Unlock()
		if open {
			continue
		}
		if err := e.openPipeline(v, needs); err != nil {
			e.log.Errorf("auto-admit %s: %v", id, err)
		} else {
			e.log.Infof("admitted %s, top urgency %.0f", id, needs[0].Urgency)
		}
	}
}

func (e *Engine) openPipeline(v model.Vehicle, needs []model.ServiceNeed) error {
	if len(needs) == 0 {
		return fmt.Errorf("engine: vehicle %s has no pending needs", v.ID)
	}
	bundles := e.advisor.Bundles(needs)
	if len(bundles) == 0 {
		return fmt.Errorf("engine: no bundle for vehicle %s", v.ID)
	}
	var steps []pipeline.Step
	for _, n := range bundles[0].Needs {
		th, ok := e.scorer.Threshold(n.Type)
		if !ok {
			continue
		}
		steps = append(steps, pipeline.Step{Type: n.Type, Estimated: th.EstimatedDuration()})
	}
	p, err := pipeline.New(v.ID, steps, e.clk, e.transitions.Publish)
	if err != nil {
		return err
	}
	if err := p.Enqueue(); err != nil {
		return err
	}
	e.mu.Lock()
	e.pipelines[v.ID] = p
	e.mu.Unlock()
	e.fleet.SetStatus(v.ID, model.StatusInService)
	return nil
}

// allocate binds queued pipelines to free stalls in priority-queue order.
// Losers stay queued and are revisited next pass.
func (e *Engine) allocate(queue []model.ServiceNeed, now time.Time) {
	seen := make(map[string]bool)
	for _, n := range queue {
		if seen[n.VehicleID] {
			continue
		}
		seen[n.VehicleID] = true
		e.tryAllocate(n.VehicleID, now)
	}
	// Pipelines whose needs dropped off the queue still deserve a stall.
	e.mu.Lock()
	var rest []string
	for id := range e.pipelines {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	e.mu.Unlock()
	for _, id := range rest {
		e.tryAllocate(id, now)
	}
}

func (e *Engine) tryAllocate(vehicleID string, now time.Time) {
	e.mu.Lock()
	p, ok := e.pipelines[vehicleID]
	e.mu.Unlock()
	if !ok || p.State() != pipeline.StateQueued {
		return
	}
	_, step, ok := p.CurrentStep()
	if !ok {
		return
	}
	stall, err := e.alloc.Claim(step.Type.StallsFor(), vehicleID, now, step.Estimated)
	if err != nil {
		if errors.Is(err, allocator.ErrConflict) {
			return // contention is not an error, retry next scan
		}
		e.log.Errorf("claim for %s: %v", vehicleID, err)
		return
	}
	if err := p.AssignStall(stall.ID); err != nil {
		e.log.Errorf("assign %s to %s: %v", stall.ID, vehicleID, err)
		if relErr := e.alloc.Release(stall.ID); relErr != nil {
			e.log.Errorf("release %s: %v", stall.ID, relErr)
		}
		return
	}
	if step.Type == model.ServiceCharge {
		e.ledger.Open(vehicleID, stall.ID, stall.PowerKW, now)
		e.fleet.SetStatus(vehicleID, model.StatusCharging)
	} else {
		e.fleet.SetStatus(vehicleID, model.StatusInService)
	}
	e.log.Debugw("stall claimed", map[string]any{
		"vehicle": vehicleID,
		"stall":   stall.ID,
		"service": step.Type.String(),
	})
}

// advance moves every in-service pipeline forward and releases stalls freed
// by completed steps.
func (e *Engine) advance(now time.Time) {
	e.mu.Lock()
	ps := make([]*pipeline.Pipeline, 0, len(e.pipelines))
	for _, p := range e.pipelines {
		ps = append(ps, p)
	}
	e.mu.Unlock()

	for _, p := range ps {
		id := p.VehicleID()
		_, step, _ := p.CurrentStep()
		freed, err := p.Advance()
		if err != nil {
			e.log.Errorf("advance %s: %v", id, err)
			continue
		}
		if freed == "" {
			continue
		}
		if err := e.alloc.Release(freed); err != nil {
			e.log.Errorf("release %s: %v", freed, err)
		}
		if step.Type == model.ServiceCharge {
			e.ledger.Close(id, now)
		}
		e.fleet.RecordService(id, step.Type, now)
		if p.State() == pipeline.StateStaging {
			e.fleet.SetStatus(id, model.StatusStaged)
		}
	}
}

// propose turns urgent unserviced member needs into booking offers with a
// charge advice slot where applicable.
func (e *Engine) propose(queue []model.ServiceNeed, now time.Time) {
	if e.booking == nil {
		return
	}
	for _, n := range queue {
		if n.Urgency < e.cfg.OfferUrgency {
			break // queue is ordered, nothing below the bound follows
		}
		v, ok := e.fleet.Get(n.VehicleID)
		if !ok || v.Category == model.CategoryAutonomousFleet {
			continue // fleet vehicles wait for auto-admission, not an offer
		}
		e.mu.Lock()
		_, open := e.pipelines[n.VehicleID]
		e.mu.Unlock()
		if open {
			continue
		}
		slot := n.PredictedNeed
		if n.Type == model.ServiceCharge {
			th, _ := e.scorer.Threshold(model.ServiceCharge)
			if advice, due := e.advisor.AdviseCharge(v, n.PredictedNeed, th.EstimatedDuration(), now); due {
				slot = advice.Start
			}
		}
		if _, err := e.booking.Propose(n, slot, now); err != nil {
			e.log.Errorf("offer for %s: %v", n.VehicleID, err)
		}
	}
}

// ConfirmDeployment closes a staged pipeline after the external "exit
// staging" confirmation. Any other state is rejected unchanged.
func (e *Engine) ConfirmDeployment(vehicleID string) error {
	e.mu.Lock()
	p, ok := e.pipelines[vehicleID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPipeline, vehicleID)
	}
	if err := p.ConfirmDeployment(); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.pipelines, vehicleID)
	e.mu.Unlock()
	e.fleet.SetStatus(vehicleID, model.StatusActive)
	e.log.Infof("vehicle %s deployed", vehicleID)
	return nil
}

// Cancel terminates a vehicle's pipeline, releasing any held stall.
// Completed steps stay recorded.
func (e *Engine) Cancel(vehicleID string) error {
	e.mu.Lock()
	p, ok := e.pipelines[vehicleID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPipeline, vehicleID)
	}
	held, err := p.Cancel()
	if err != nil {
		return err
	}
	if held != "" {
		if err := e.alloc.Release(held); err != nil {
			e.log.Errorf("release %s: %v", held, err)
		}
	}
	for _, stallID := range e.alloc.ReleaseVehicle(vehicleID) {
		e.log.Debugf("released %s on cancel", stallID)
	}
	e.ledger.Close(vehicleID, e.clk.Now())
	e.mu.Lock()
	delete(e.pipelines, vehicleID)
	e.mu.Unlock()
	e.fleet.SetStatus(vehicleID, model.StatusActive)
	return nil
}

// StallMaintenance forces a stall in or out of maintenance. A vehicle
// displaced mid-service is requeued with its stall unassigned and picked up
// on the next pass.
func (e *Engine) StallMaintenance(stallID string, down bool) error {
	displaced, err := e.alloc.SetMaintenance(stallID, down)
	if err != nil {
		return err
	}
	if displaced == "" {
		return nil
	}
	e.log.Warnf("stall %s down, requeueing %s", stallID, displaced)
	e.ledger.Close(displaced, e.clk.Now())
	e.mu.Lock()
	p, ok := e.pipelines[displaced]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Requeue()
}

// ApplyTelemetry feeds one telemetry push into the fleet store.
func (e *Engine) ApplyTelemetry(t model.Telemetry) error {
	return e.fleet.ApplyTelemetry(t)
}

// SetSurge toggles the demand surge multiplier.
func (e *Engine) SetSurge(m float64) { e.demand.SetSurge(m) }

// Transitions exposes the append-only transition feed.
func (e *Engine) Transitions() *eventbus.Bus[model.TransitionEvent] { return e.transitions }

// Alerts exposes urgency boundary-crossing alerts.
func (e *Engine) Alerts() *eventbus.Bus[model.UrgencyAlert] { return e.alerts }

// Queue returns the priority queue from the latest scan.
func (e *Engine) Queue() []model.ServiceNeed {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ServiceNeed, len(e.lastQueue))
	copy(out, e.lastQueue)
	return out
}

// Windows returns the latest demand forecast.
func (e *Engine) Windows() []model.DemandWindow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.DemandWindow, len(e.lastWindows))
	copy(out, e.lastWindows)
	return out
}

// Energy returns the latest energy arbitrage summary.
func (e *Engine) Energy() forecast.EnergyReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEnergy
}

// Ledger exposes the charge-session ledger.
func (e *Engine) Ledger() *forecast.Ledger { return e.ledger }

// PipelineState returns the aggregate state of a vehicle's pipeline.
func (e *Engine) PipelineState(vehicleID string) (string, bool) {
	e.mu.Lock()
	p, ok := e.pipelines[vehicleID]
	e.mu.Unlock()
	if !ok {
		return "", false
	}
	return p.State(), true
}

// PipelineSteps returns a copy of a vehicle's step list.
func (e *Engine) PipelineSteps(vehicleID string) ([]pipeline.Step, bool) {
	e.mu.Lock()
	p, ok := e.pipelines[vehicleID]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	return p.Steps(), true
}

// Stalls returns a snapshot of the stall table for visualization.
func (e *Engine) Stalls() []model.DepotStall { return e.alloc.Snapshot() }

// Booking returns the booking boundary, nil when not configured.
func (e *Engine) Booking() *booking.Service { return e.booking }

// Close shuts the event buses down.
func (e *Engine) Close() error {
	e.transitions.Close()
	e.alerts.Close()
	return nil
}

func (e *Engine) record(started time.Time, vehicles []model.Vehicle,
	queue []model.ServiceNeed, windows []model.DemandWindow,
	energy forecast.EnergyReport, active int) {
	overdue := 0
	for _, n := range queue {
		if n.Overdue {
			overdue++
		}
	}
	occupied, free := 0, 0
	for _, s := range e.alloc.Snapshot() {
		switch s.Status {
		case model.StallOccupied, model.StallReserved:
			occupied++
		case model.StallAvailable:
			free++
		}
	}
	sum := metrics.ScanSummary{
		Time:            started,
		Vehicles:        len(vehicles),
		Needs:           len(queue),
		Overdue:         overdue,
		QueueDepth:      len(queue),
		ActivePipelines: active,
		StallsOccupied:  occupied,
		StallsFree:      free,
		PeakDeficit:     forecast.PeakDeficit(windows),
		Duration:        e.clk.Now().Sub(started),
	}
	if err := e.sink.RecordScan(sum); err != nil {
		e.log.Errorf("scan metrics: %v", err)
	}
	if dr, ok := e.sink.(metrics.DemandRecorder); ok {
		if err := dr.RecordDemand(windows); err != nil {
			e.log.Errorf("demand metrics: %v", err)
		}
	}
	if er, ok := e.sink.(metrics.EnergyRecorder); ok {
		if err := er.RecordEnergy(energy); err != nil {
			e.log.Errorf("energy metrics: %v", err)
		}
	}
}
