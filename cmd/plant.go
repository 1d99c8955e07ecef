package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/rainbarrel/app"
	"github.com/kilianp07/rainbarrel/config"
)

var plantCmd = &cobra.Command{
	Use:   "plant",
	Short: "Run the plant agent: report soil moisture",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(func(cfg *config.Config) (agent, error) {
			return app.NewPlant(cfg)
		})
	},
}

func init() {
	rootCmd.AddCommand(plantCmd)
}
