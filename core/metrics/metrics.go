package metrics

import (
	"time"

	"github.com/ottoq/ottoq/core/forecast"
	"github.com/ottoq/ottoq/core/model"
)

// ScanSummary captures one scheduling pass for observability.
type ScanSummary struct {
	Time            time.Time
	Vehicles        int
	Needs           int
	Overdue         int
	QueueDepth      int
	ActivePipelines int
	StallsOccupied  int
	StallsFree      int
	PeakDeficit     int
	Duration        time.Duration
}

// MetricsSink records scan summaries for observability purposes.
type MetricsSink interface {
	RecordScan(ScanSummary) error
}

// TransitionRecorder records pipeline transition events.
type TransitionRecorder interface {
	RecordTransition(model.TransitionEvent) error
}

// DemandRecorder records the hourly demand forecast.
type DemandRecorder interface {
	RecordDemand([]model.DemandWindow) error
}

// EnergyRecorder records energy arbitrage summaries.
type EnergyRecorder interface {
	RecordEnergy(forecast.EnergyReport) error
}

// Config selects and parameterises the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// NopSink discards everything. Used when no sink is configured or a sink
// fails its health check.
type NopSink struct{}

func (NopSink) RecordScan(ScanSummary) error                 { return nil }
func (NopSink) RecordTransition(model.TransitionEvent) error { return nil }
func (NopSink) RecordDemand([]model.DemandWindow) error      { return nil }
func (NopSink) RecordEnergy(forecast.EnergyReport) error     { return nil }
