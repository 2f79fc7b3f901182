package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ottoq/ottoq/config"
	"github.com/ottoq/ottoq/core/clock"
	"github.com/ottoq/ottoq/pkg/export"
)

var forecastFormat string

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run one scan over the demo fleet and print queue and demand outlook",
	RunE:  runForecast,
}

func init() {
	forecastCmd.Flags().StringVar(&forecastFormat, "format", "csv", "output format: csv or json")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	eng, fl, err := buildEngine(cfg, clock.Real{})
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	for _, v := range demoFleet(time.Now()) {
		if err := fl.Upsert(v); err != nil {
			return err
		}
	}
	eng.Scan()

	queue := eng.Queue()
	windows := eng.Windows()
	switch forecastFormat {
	case "json":
		if err := export.WriteQueueJSON(os.Stdout, queue); err != nil {
			return err
		}
	case "csv":
		if err := export.WriteQueueCSV(os.Stdout, queue); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
	default:
		return fmt.Errorf("unknown format %q", forecastFormat)
	}
	return export.WriteDemandCSV(os.Stdout, windows)
}
