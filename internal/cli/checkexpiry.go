package cli

import (
	"github.com/annahri/zmssl/internal/options"
	"github.com/spf13/cobra"
)

var checkExpiryCmd = &cobra.Command{
	Use:   "check-expiry",
	Short: "Report remaining certificate lifetime",
	Long: `Report how many days remain until the deployed certificate expires.
Exits 0 when the certificate is already within the renewal window and
nonzero when renewal is not yet due.

Examples:
  zmssl check-expiry
  zmssl check-expiry -w 14 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(options.ActionCheckExpiry)
	},
}

func init() {
	rootCmd.AddCommand(checkExpiryCmd)
}
