package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ottoq/ottoq/config"
	"github.com/ottoq/ottoq/core/clock"
	"github.com/ottoq/ottoq/core/pipeline"
)

var simHours int

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Fast-forward a depot day with a simulated clock",
	RunE:  simulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simHours, "hours", 24, "hours of depot time to simulate")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	start := time.Now().Truncate(time.Hour)
	clk := clock.NewSimulated(start)
	eng, fl, err := buildEngine(cfg, clk)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	for _, v := range demoFleet(start) {
		if err := fl.Upsert(v); err != nil {
			return err
		}
	}

	sub := eng.Transitions().Subscribe()
	defer eng.Transitions().Unsubscribe(sub)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub {
			fmt.Fprintf(os.Stdout, "%s  %-8s %s -> %s  (%s)\n",
				ev.Timestamp.Format("15:04"), ev.VehicleID, ev.From, ev.To, ev.Step)
		}
	}()

	step := time.Duration(cfg.Engine.ScanIntervalSeconds) * time.Second
	end := start.Add(time.Duration(simHours) * time.Hour)
	for clk.Now().Before(end) {
		eng.Scan()
		clk.Advance(step)
	}

	// Staged vehicles get their deployment confirmed at end of day.
	for _, v := range fl.List() {
		if st, ok := eng.PipelineState(v.ID); ok && st == pipeline.StateStaging {
			if err := eng.ConfirmDeployment(v.ID); err != nil {
				return err
			}
		}
	}
	eng.Transitions().Close()
	<-done

	rep := eng.Energy()
	fmt.Fprintf(os.Stdout, "\nenergy: %.1f kWh, $%.2f total, avg $%.3f/kWh, saved $%.2f (%.0f%%)\n",
		rep.TotalKWh, rep.TotalCost, rep.AvgRate, rep.SavingsUSD, rep.SavingsPct)
	return nil
}
