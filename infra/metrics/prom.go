package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ottoq/ottoq/core/forecast"
	coremetrics "github.com/ottoq/ottoq/core/metrics"
	"github.com/ottoq/ottoq/core/model"
)

// PromSink exposes scan, transition, demand and energy metrics through
// Prometheus.
type PromSink struct {
	scans       prometheus.Counter
	scanSeconds prometheus.Histogram
	queueDepth  prometheus.Gauge
	overdue     prometheus.Gauge
	pipelines   prometheus.Gauge
	occupied    prometheus.Gauge
	free        prometheus.Gauge
	peakDeficit prometheus.Gauge
	transitions *prometheus.CounterVec
	savingsPct  prometheus.Gauge
	totalKWh    prometheus.Gauge
}

// NewPromSink registers the depot metrics on the default Prometheus
// registerer. The metrics server is started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer. A
// nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "depot_scans_total",
			Help: "Total number of completed scheduling scans",
		}),
		scanSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "depot_scan_duration_seconds",
			Help:    "Duration of one scheduling scan",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_queue_depth",
			Help: "Service needs in the priority queue",
		}),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_overdue_needs",
			Help: "Service needs past their threshold",
		}),
		pipelines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_active_pipelines",
			Help: "Vehicles currently inside the depot workflow",
		}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_stalls_occupied",
			Help: "Stalls occupied or reserved",
		}),
		free: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_stalls_free",
			Help: "Stalls available for allocation",
		}),
		peakDeficit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_peak_demand_deficit",
			Help: "Largest hourly capacity deficit over the 24h horizon",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depot_pipeline_transitions_total",
			Help: "Pipeline state transitions",
		}, []string{"from", "to"}),
		savingsPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_energy_savings_percent",
			Help: "Charge cost savings versus the all-peak baseline",
		}),
		totalKWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "depot_energy_total_kwh",
			Help: "Energy delivered across recorded charge sessions",
		}),
	}
	collectors := []prometheus.Collector{
		s.scans, s.scanSeconds, s.queueDepth, s.overdue, s.pipelines,
		s.occupied, s.free, s.peakDeficit, s.transitions, s.savingsPct, s.totalKWh,
	}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	return s, nil
}

// RecordScan publishes one scan summary.
func (s *PromSink) RecordScan(sum coremetrics.ScanSummary) error {
	s.scans.Inc()
	s.scanSeconds.Observe(sum.Duration.Seconds())
	s.queueDepth.Set(float64(sum.QueueDepth))
	s.overdue.Set(float64(sum.Overdue))
	s.pipelines.Set(float64(sum.ActivePipelines))
	s.occupied.Set(float64(sum.StallsOccupied))
	s.free.Set(float64(sum.StallsFree))
	s.peakDeficit.Set(float64(sum.PeakDeficit))
	return nil
}

// RecordTransition counts a pipeline transition by edge.
func (s *PromSink) RecordTransition(ev model.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.From, ev.To).Inc()
	return nil
}

// RecordDemand publishes the peak deficit of the latest forecast.
func (s *PromSink) RecordDemand(windows []model.DemandWindow) error {
	s.peakDeficit.Set(float64(forecast.PeakDeficit(windows)))
	return nil
}

// RecordEnergy publishes the latest arbitrage summary.
func (s *PromSink) RecordEnergy(rep forecast.EnergyReport) error {
	s.savingsPct.Set(rep.SavingsPct)
	s.totalKWh.Set(rep.TotalKWh)
	return nil
}
