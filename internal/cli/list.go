package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hemogram-alerts-go/internal/api"
	"hemogram-alerts-go/internal/ui"
	"hemogram-alerts-go/internal/viewmodel"
)

var (
	listJSON    bool
	listTimeout time.Duration
)

var errFetchFailed = errors.New("fetch failed")

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch the alerts once and print them",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr, effectiveLevel(""))

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if listTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, listTimeout)
			defer cancel()
		}

		vm := viewmodel.NewIdle(api.NewClient(), logger)
		vm.FetchAlerts(ctx)
		return printState(cmd.OutOrStdout(), vm.State(), listJSON)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print the state as JSON")
	listCmd.Flags().DurationVar(&listTimeout, "timeout", 0, "give up after this long (0 waits indefinitely)")
	rootCmd.AddCommand(listCmd)
}

func printState(w io.Writer, s viewmodel.State, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return err
		}
	} else if err := ui.RenderText(w, s); err != nil {
		return err
	}

	if s.HasError() {
		return errFetchFailed
	}
	return nil
}
