package cli

import (
	"github.com/annahri/zmssl/internal/options"
	"github.com/spf13/cobra"
)

var copyCertCmd = &cobra.Command{
	Use:   "copy-cert",
	Short: "Copy issued material into the platform staging area",
	Long: `Copy the ACME client's live certificate and private key into the
platform's staging directory. Existing files are never overwritten
unless --force-copy is given.

Examples:
  zmssl copy-cert
  zmssl copy-cert --force-copy`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(options.ActionCopyCert)
	},
}

func init() {
	rootCmd.AddCommand(copyCertCmd)
}
