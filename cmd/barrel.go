package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/rainbarrel/app"
	"github.com/kilianp07/rainbarrel/config"
)

var barrelCmd = &cobra.Command{
	Use:   "barrel",
	Short: "Run the barrel agent: water on command and report the fill level",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(func(cfg *config.Config) (agent, error) {
			return app.NewBarrel(cfg)
		})
	},
}

func init() {
	rootCmd.AddCommand(barrelCmd)
}
