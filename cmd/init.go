package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/TheVenuePresents/VenueBot-Main/venuebot"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// secretReader is a function type for reading secrets without echo. It's
// really only here to make testing easier.
type secretReader func() ([]byte, error)

var customSecretReader secretReader

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database and store the bot's discord credentials",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			log.Fatal("Environment variable VB_DATABASE_TYPE not set (must be one of: sqlite, postgres)")
		}
		if cfg.Database == "" {
			log.Fatal(
				"Environment variable VB_DATABASE not set (must be a valid " +
					"database connection string or sqlite file path)",
			)
		}

		// Run database migrations
		if _, err := venuebot.CreateDB(
			ctx,
			cfg.DatabaseType,
			cfg.Database,
			nil,
			cfg.DatabaseSlowThreshold,
		); err != nil {
			log.Fatalf("Error creating database: %v", err)
		}

		out := cmd.OutOrStdout()
		store := venuebot.NewStorage(cfg.Storage, cfg.HTTPClient, nil)

		stored := store.BotConfig(ctx)
		if stored != nil && stored.Token != "" {
			fmt.Fprintln(out, "Discord credentials are already stored.")
			fmt.Fprintln(
				out,
				"Initialization complete. You can now start the bot with the 'run' subcommand.",
			)
			return
		}

		fmt.Fprintln(out, "Discord credentials are not stored. Let's set them up.")

		reader := bufio.NewReader(os.Stdin)

		if customSecretReader == nil {
			customSecretReader = func() ([]byte, error) {
				return term.ReadPassword(int(syscall.Stdin))
			}
		}
		fmt.Fprint(out, "Enter discord bot token: ")
		tokenBytes, _ := customSecretReader()
		token := strings.TrimSpace(string(tokenBytes))
		fmt.Fprintln(out)

		fmt.Fprint(out, "Enter host channel ID: ")
		channelID, _ := reader.ReadString('\n')
		channelID = strings.TrimSpace(channelID)

		fmt.Fprint(out, "Enter log channel ID: ")
		logChannelID, _ := reader.ReadString('\n')
		logChannelID = strings.TrimSpace(logChannelID)

		if err := store.SaveBotConfig(
			ctx, venuebot.StoredBotConfig{
				Token:        token,
				ChannelID:    channelID,
				LogChannelID: logChannelID,
			},
		); err != nil {
			log.Fatalf("Error storing discord credentials: %v", err)
		}

		fmt.Fprintln(out, "Discord credentials stored successfully.")
		fmt.Fprintln(
			out,
			"Initialization complete. You can now start the bot with the 'run' subcommand.",
		)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
