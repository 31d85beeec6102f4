package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type sessionFlags struct {
	scenario    string
	sessionID   string
	sessionData string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "checkout",
		Short:        "Run scripted checkouts against a checkout backend",
		Long:         "Configuration is read from CHECKOUT_* environment variables, e.g. CHECKOUT_CLIENT__BASE_URL.",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(newPayCmd())
	root.AddCommand(newBalanceCmd())
	return root
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.scenario, "scenario", "s", "", "scenario file (YAML)")
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "resume this session instead of creating one")
	cmd.Flags().StringVar(&f.sessionData, "session-data", "", "session data of --session-id")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagsRequiredTogether("session-id", "session-data")
}
