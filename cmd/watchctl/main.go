package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"watchsync/internal/client/roomapi"
	"watchsync/pkg/config"
	"watchsync/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "watchctl",
	Short:         "Create, check and join watchsync rooms from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagConfig   string
	flagAPIURL   string
	flagRelayURL string
	flagLogLevel string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "configs/config.yaml", "config file (defaults are used if it does not exist)")
	flags.StringVar(&flagAPIURL, "api-url", "", "room API base URL (overrides client.api_url)")
	flags.StringVar(&flagRelayURL, "relay-url", "", "relay websocket URL (overrides client.relay_url)")
	flags.StringVar(&flagLogLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(createCmd, checkCmd, joinCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and applies command line overrides.
func setup() (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if flagAPIURL != "" {
		cfg.Client.APIURL = flagAPIURL
	}
	if flagRelayURL != "" {
		cfg.Client.RelayURL = flagRelayURL
	}

	log, err := logger.New(flagLogLevel, "console")
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a room and print its code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		name, _ := cmd.Flags().GetString("name")
		code, err := roomapi.NewClient(cfg.Client.APIURL).CreateRoom(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <code>",
	Short: "Report whether a room exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		code, err := parseCode(args[0])
		if err != nil {
			return err
		}
		room, err := roomapi.NewClient(cfg.Client.APIURL).GetRoom(cmd.Context(), code)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s exists (created %s", room.Code, room.CreatedAt.Format("2006-01-02 15:04:05"))
		if room.CreatedBy != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " by %s", room.CreatedBy)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ")")
		return nil
	},
}

func init() {
	createCmd.Flags().String("name", "", "display name recorded as the room's creator")
}
