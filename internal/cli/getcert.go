package cli

import (
	"github.com/annahri/zmssl/internal/options"
	"github.com/spf13/cobra"
)

var getCertCmd = &cobra.Command{
	Use:   "get-cert",
	Short: "Acquire a certificate and build its chain bundle",
	Long: `Run the acquisition and chain-building stages only: obtain the
certificate through the ACME client and assemble the trust chain bundle,
without verifying, deploying, or restarting anything.

Examples:
  zmssl get-cert -d mail.example.com -e admin@example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(options.ActionGetCert)
	},
}

func init() {
	rootCmd.AddCommand(getCertCmd)
}
