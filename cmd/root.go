package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/wildguard/app"
	"github.com/kilianp07/wildguard/config"
	"github.com/kilianp07/wildguard/infra/logger"
)

var (
	cfgPath string
	envPath string
)

var rootCmd = &cobra.Command{
	Use:   "wildguard",
	Short: "Wildlife incident dispatch engine",
	RunE:  run,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnvFile(envPath)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine until interrupted",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "optional dotenv file")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
		_ = logger.Close()
	}()
	return svc.Run(ctx)
}

func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
