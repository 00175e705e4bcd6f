package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/banner-cli/internal/observability"
)

// newTermsCmd creates the `terms` command, which logs in and lists the terms
// the portal offers.
func newTermsCmd() *cobra.Command {
	termsCmd := &cobra.Command{
		Use:   "terms",
		Short: "Lists the terms the portal offers for registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			session, err := openSession(ctx, cfg, cmd.ErrOrStderr(), observability.GetLogger())
			if err != nil {
				return err
			}
			return writeTerms(cmd.OutOrStdout(), cfg.Register().Format, session.Terms())
		},
	}

	termsCmd.Flags().String("url", "", "portal base URL")
	termsCmd.Flags().String("user", "", "portal username (student ID)")
	termsCmd.Flags().String("format", "", "output format: text or json")
	return termsCmd
}
