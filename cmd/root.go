package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/epunch/internal/tracker"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

var userFlag string

var rootCmd = &cobra.Command{
	Use:   "epunch",
	Short: "epunch – a punch clock for employees and their managers",
	Long: `epunch records when employees punch in and out and sums their shifts
per company week. Shifts live in JSON files under ~/.epunch/, in SQLite or in
Cloud Firestore, depending on ~/.epunch/config.json.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Act as this user id (default: \"user\" from config.json)")

	rootCmd.AddCommand(inCmd)
	rootCmd.AddCommand(outCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(teamCmd)
	rootCmd.AddCommand(companyCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupError marks failures to load the config or open the store.
type setupError struct {
	err error
}

func (e *setupError) Error() string { return e.err.Error() }

func (e *setupError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit status: 1 for refused
// operations and bad input, 2 when the store or its data cannot be used.
func exitCode(err error) int {
	var (
		integrity *tracker.DataIntegrityError
		store     *tracker.StoreError
		setup     *setupError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &integrity), errors.As(err, &store), errors.As(err, &setup):
		return 2
	default:
		return 1
	}
}
