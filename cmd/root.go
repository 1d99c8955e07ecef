package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rainbarrel/config"
	coremon "github.com/kilianp07/rainbarrel/core/monitoring"
	"github.com/kilianp07/rainbarrel/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "rainbarrel",
	Short:        "Rain barrel and plant telemetry agents",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (empty for defaults and RB_* variables)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// agent is what the start commands run.
type agent interface {
	Run(ctx context.Context) error
	Close() error
}

func runAgent(build func(*config.Config) (agent, error)) error {
	defer coremon.Recover()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.New("main").Errorf("agent close: %v", err)
		}
	}()
	return a.Run(ctx)
}
