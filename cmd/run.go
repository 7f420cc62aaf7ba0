package cmd

import (
	"log"

	"github.com/TheVenuePresents/VenueBot-Main/venuebot"
	"github.com/spf13/cobra"
)

var (
	runCmd = &cobra.Command{
		Use:   "run [flags]",
		Short: "Starts the VenueBot discord bot and dashboard",
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			bot, err := venuebot.New(cfg)
			if err != nil {
				log.Fatalf("error creating venuebot: %s", err.Error())
			}

			if err = bot.Run(ctx); err != nil {
				log.Fatalf("error running venuebot: %s", err.Error())
			}
		},
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
}
