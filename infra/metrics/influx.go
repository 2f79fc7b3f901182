package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ottoq/ottoq/core/forecast"
	coremetrics "github.com/ottoq/ottoq/core/metrics"
	"github.com/ottoq/ottoq/core/model"
	"github.com/ottoq/ottoq/infra/logger"
)

// InfluxSink writes scan summaries, transitions and energy reports to an
// InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	base := strings.TrimSuffix(cfg.InfluxURL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordScan writes one scan summary point.
func (s *InfluxSink) RecordScan(sum coremetrics.ScanSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("depot_scan").
		AddTag("component", "engine").
		AddField("vehicles", sum.Vehicles).
		AddField("needs", sum.Needs).
		AddField("overdue", sum.Overdue).
		AddField("active_pipelines", sum.ActivePipelines).
		AddField("stalls_occupied", sum.StallsOccupied).
		AddField("stalls_free", sum.StallsFree).
		AddField("peak_deficit", sum.PeakDeficit).
		AddField("duration_ms", sum.Duration.Milliseconds()).
		SetTime(sum.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTransition writes one pipeline transition point.
func (s *InfluxSink) RecordTransition(ev model.TransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("pipeline_transition").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("from", ev.From).
		AddTag("to", ev.To).
		AddTag("step", ev.Step).
		AddField("event_id", ev.ID).
		SetTime(ev.Timestamp)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDemand writes the hourly forecast as one point per window.
func (s *InfluxSink) RecordDemand(windows []model.DemandWindow) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	now := time.Now()
	for _, w := range windows {
		p := write.NewPointWithMeasurement("demand_window").
			AddTag("hour", w.Hour).
			AddField("needed", w.Needed).
			AddField("available", w.Available).
			AddField("deficit", w.Deficit).
			SetTime(now)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordEnergy writes the arbitrage summary.
func (s *InfluxSink) RecordEnergy(rep forecast.EnergyReport) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("energy_arbitrage").
		AddField("total_kwh", round3(rep.TotalKWh)).
		AddField("total_cost", round3(rep.TotalCost)).
		AddField("avg_rate", round3(rep.AvgRate)).
		AddField("savings_usd", round3(rep.SavingsUSD)).
		AddField("savings_pct", round3(rep.SavingsPct)).
		AddField("monthly_savings", round3(rep.MonthlySavings)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and closes the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
