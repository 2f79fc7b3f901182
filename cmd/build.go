package cmd

import (
	"fmt"

	"github.com/ottoq/ottoq/config"
	"github.com/ottoq/ottoq/core/allocator"
	"github.com/ottoq/ottoq/core/booking"
	"github.com/ottoq/ottoq/core/bundling"
	"github.com/ottoq/ottoq/core/clock"
	"github.com/ottoq/ottoq/core/engine"
	"github.com/ottoq/ottoq/core/fleet"
	"github.com/ottoq/ottoq/core/metrics"
	"github.com/ottoq/ottoq/core/urgency"
	"github.com/ottoq/ottoq/infra/logger"
)

// buildEngine wires a fully in-process engine for the one-shot commands.
func buildEngine(cfg *config.Config, clk clock.Clock) (*engine.Engine, *fleet.Store, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}
	schedule, err := cfg.Schedule()
	if err != nil {
		return nil, nil, fmt.Errorf("pricing: %w", err)
	}
	inventory, err := cfg.Depot.Inventory()
	if err != nil {
		return nil, nil, fmt.Errorf("depot: %w", err)
	}
	scorer, err := urgency.NewEngine(catalog)
	if err != nil {
		return nil, nil, err
	}
	alloc, err := allocator.New(inventory)
	if err != nil {
		return nil, nil, err
	}
	fl := fleet.NewStore()
	book := booking.NewService(alloc, nil)
	advisor := bundling.NewAdvisor(cfg.Bundling, scorer, schedule)
	eng, err := engine.New(cfg.Engine, fl, scorer, advisor, alloc, book,
		schedule, clk, logger.New("engine"), metrics.NopSink{})
	if err != nil {
		return nil, nil, err
	}
	return eng, fl, nil
}
