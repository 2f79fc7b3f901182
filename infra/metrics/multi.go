package metrics

import (
	"errors"

	"github.com/ottoq/ottoq/core/forecast"
	coremetrics "github.com/ottoq/ottoq/core/metrics"
	"github.com/ottoq/ottoq/core/model"
)

// MultiSink fans records out to several sinks, joining their errors.
type MultiSink struct {
	sinks []coremetrics.MetricsSink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordScan(sum coremetrics.ScanSummary) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordScan(sum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordTransition(ev model.TransitionEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if tr, ok := s.(coremetrics.TransitionRecorder); ok {
			if err := tr.RecordTransition(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordDemand(windows []model.DemandWindow) error {
	var errs []error
	for _, s := range m.sinks {
		if dr, ok := s.(coremetrics.DemandRecorder); ok {
			if err := dr.RecordDemand(windows); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordEnergy(rep forecast.EnergyReport) error {
	var errs []error
	for _, s := range m.sinks {
		if er, ok := s.(coremetrics.EnergyRecorder); ok {
			if err := er.RecordEnergy(rep); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
