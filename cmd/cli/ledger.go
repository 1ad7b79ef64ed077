package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newLedgerCmd() *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the record of transactions pushed to each target",
	}

	var provider, account string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List synced transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProvider(provider)
			if err != nil {
				return err
			}
			database, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			records, err := database.ListSynced(p, account)
			if err != nil {
				return err
			}
			printLedger(cmd.OutOrStdout(), records)
			return nil
		},
	}
	listCmd.Flags().StringVar(&provider, "provider", "ynab", "Target provider")
	listCmd.Flags().StringVar(&account, "account", "", "Only list this target account")

	forgetCmd := &cobra.Command{
		Use:   "forget <akahu_id>",
		Short: "Forget a synced transaction so the next sync pushes it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProvider(provider)
			if err != nil {
				return err
			}
			database, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.RemoveSynced(args[0], p); err != nil {
				return fmt.Errorf("error removing transaction: %w", err)
			}
			log.Info().Str("akahu_id", args[0]).Str("provider", p.String()).Msg("Transaction removed from ledger")
			return nil
		},
	}
	forgetCmd.Flags().StringVar(&provider, "provider", "ynab", "Target provider")

	adjustmentsCmd := &cobra.Command{
		Use:   "adjustments",
		Short: "List balance adjustments posted to tracking accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProvider(provider)
			if err != nil {
				return err
			}
			database, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			adjustments, err := database.GetAdjustments(p)
			if err != nil {
				return err
			}
			printAdjustments(cmd.OutOrStdout(), adjustments)
			return nil
		},
	}
	adjustmentsCmd.Flags().StringVar(&provider, "provider", "ynab", "Target provider")

	ledgerCmd.AddCommand(listCmd, forgetCmd, adjustmentsCmd)
	return ledgerCmd
}
