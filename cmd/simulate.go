package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/wildguard/config"
	"github.com/kilianp07/wildguard/infra/logger"
	"github.com/kilianp07/wildguard/infra/mqtt"
	"github.com/kilianp07/wildguard/simulator"
)

var simulateFlags struct {
	count    int
	interval time.Duration
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish synthetic field reports over MQTT",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simulateFlags.count, "count", "n", 10, "reports to send, 0 runs until interrupted")
	simulateCmd.Flags().DurationVar(&simulateFlags.interval, "interval", 5*time.Second, "delay between reports")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("simulate: mqtt.broker is not configured")
	}
	mcfg := cfg.MQTT.Config
	mcfg.SetDefaults()
	mcfg.ClientID += "-simulator"
	log := logger.New("simulator")
	rep, err := mqtt.NewReporter(mcfg, log)
	if err != nil {
		return err
	}
	defer rep.Close()

	n, err := simulator.Run(ctx, simulator.Config{
		Boundary: cfg.Boundary,
		Hotspots: cfg.Places,
		Count:    simulateFlags.count,
		Interval: simulateFlags.interval,
	}, rep)
	log.Infof("sent %d reports", n)
	return err
}
