package cli

import (
	"github.com/annahri/zmssl/internal/options"
	"github.com/spf13/cobra"
)

var verifyCertCmd = &cobra.Command{
	Use:   "verify-cert",
	Short: "Verify key, certificate and chain coherence",
	Long: `Ask the platform's certificate manager to validate that the private
key, certificate and chain bundle belong together, without deploying
anything.

Examples:
  zmssl verify-cert`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(options.ActionVerifyCert)
	},
}

func init() {
	rootCmd.AddCommand(verifyCertCmd)
}
