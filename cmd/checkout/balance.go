package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

func newBalanceCmd() *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Check the balance of every gift card in the scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, &flags)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			snapshot, err := a.snapshot(ctx, &flags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			checked := 0
			for _, p := range a.scenario.Payments {
				if p.Method != domain.MethodGiftCard {
					continue
				}
				checked++

				balance, next, err := a.runner.CheckBalance(ctx, snapshot, p)
				snapshot = next
				switch {
				case errors.Is(err, domain.ErrZeroBalance):
					fmt.Fprintf(out, "%s: empty\n", p.Number)
				case err != nil:
					return fmt.Errorf("gift card %s: %w", p.Number, err)
				default:
					fmt.Fprintf(out, "%s: %s available, %s spendable\n", p.Number, balance.AvailableAmount.Format(), balance.Spendable().Format())
				}
			}
			if checked == 0 {
				return errors.New("scenario has no gift card payments")
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
