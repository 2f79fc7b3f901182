package app

import (
	"context"
	"fmt"

	"github.com/ottoq/ottoq/config"
	"github.com/ottoq/ottoq/core/allocator"
	"github.com/ottoq/ottoq/core/booking"
	"github.com/ottoq/ottoq/core/bundling"
	"github.com/ottoq/ottoq/core/clock"
	"github.com/ottoq/ottoq/core/engine"
	"github.com/ottoq/ottoq/core/fleet"
	coremetrics "github.com/ottoq/ottoq/core/metrics"
	"github.com/ottoq/ottoq/core/model"
	"github.com/ottoq/ottoq/core/urgency"
	"github.com/ottoq/ottoq/infra/logger"
	"github.com/ottoq/ottoq/infra/metrics"
	"github.com/ottoq/ottoq/infra/mqtt"
)

// Service wires the engine to its infrastructure and runs the scan loop.
type Service struct {
	Engine    *engine.Engine
	Fleet     *fleet.Store
	connector *mqtt.Connector
	sink      coremetrics.MetricsSink
	log       logger.Logger

	promEnabled bool
	promPort    string
}

// New builds a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	schedule, err := cfg.Schedule()
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	inventory, err := cfg.Depot.Inventory()
	if err != nil {
		return nil, fmt.Errorf("depot: %w", err)
	}

	scorer, err := urgency.NewEngine(catalog)
	if err != nil {
		return nil, fmt.Errorf("urgency engine: %w", err)
	}
	alloc, err := allocator.New(inventory)
	if err != nil {
		return nil, fmt.Errorf("allocator: %w", err)
	}
	advisor := bundling.NewAdvisor(cfg.Bundling, scorer, schedule)

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	var connector *mqtt.Connector
	var notifier booking.Notifier
	if cfg.MQTT.Enabled {
		connector, err = mqtt.NewConnector(cfg.MQTT.Config)
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		notifier = connector
	}

	fl := fleet.NewStore()
	book := booking.NewService(alloc, notifier)
	eng, err := engine.New(cfg.Engine, fl, scorer, advisor, alloc, book,
		schedule, clock.Real{}, logger.New("engine"), sink)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Service{
		Engine:      eng,
		Fleet:       fl,
		connector:   connector,
		sink:        sink,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run starts subscriptions, observers and the scan loop, blocking until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.connector != nil {
		if err := s.connector.SubscribeTelemetry(func(t model.Telemetry) {
			if err := s.Engine.ApplyTelemetry(t); err != nil {
				s.log.Warnf("telemetry: %v", err)
			}
		}); err != nil {
			return err
		}
		if err := s.connector.SubscribeTasks(s.handleTask); err != nil {
			return err
		}
	}

	go s.forwardTransitions(ctx)

	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	err := s.Engine.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// forwardTransitions fans the audit feed out to MQTT and the metric sinks.
func (s *Service) forwardTransitions(ctx context.Context) {
	sub := s.Engine.Transitions().Subscribe()
	defer s.Engine.Transitions().Unsubscribe(sub)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if s.connector != nil {
				if err := s.connector.PublishTransition(ev); err != nil {
					s.log.Errorf("publish transition: %v", err)
				}
			}
			if tr, ok := s.sink.(coremetrics.TransitionRecorder); ok {
				if err := tr.RecordTransition(ev); err != nil {
					s.log.Errorf("transition metrics: %v", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) handleTask(sig mqtt.TaskSignal) {
	var err error
	switch sig.Action {
	case "deploy_confirmed":
		err = s.Engine.ConfirmDeployment(sig.VehicleID)
	case "cancel":
		err = s.Engine.Cancel(sig.VehicleID)
	case "stall_down":
		err = s.Engine.StallMaintenance(sig.StallID, true)
	case "stall_up":
		err = s.Engine.StallMaintenance(sig.StallID, false)
	default:
		err = fmt.Errorf("unknown action %q", sig.Action)
	}
	if err != nil {
		s.log.Warnf("task %s: %v", sig.Action, err)
	}
}

// Close releases held resources.
func (s *Service) Close() error {
	if s.connector != nil {
		s.connector.Close()
	}
	return s.Engine.Close()
}
