// Package cli contains the hemogram-alerts commands.
package cli

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "hemogram-alerts",
	Short: "Hemogram alerts viewer",
	Long: `hemogram-alerts shows the hematology alerts published by the
hemogram API and turns delivered push messages into notifications.

Examples:
  # Run the viewer on :8080
  hemogram-alerts serve

  # Fetch once and print the alerts
  hemogram-alerts list`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(parsed).With().Timestamp().Logger()
}

func effectiveLevel(fromEnv string) string {
	if logLevel != "" {
		return logLevel
	}
	if fromEnv != "" {
		return fromEnv
	}
	return os.Getenv("LOG_LEVEL")
}
