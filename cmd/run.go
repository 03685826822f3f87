package cmd

import (
	"log"

	"github.com/ostrander/kestrel/kestrel"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the Kestrel bot and (optionally) the status API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := kestrel.New(cfg)
		if err != nil {
			log.Fatalf("error creating kestrel: %s", err.Error())
		}

		if err = bot.Run(ctx); err != nil {
			log.Fatalf("error running kestrel: %s", err.Error())
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
