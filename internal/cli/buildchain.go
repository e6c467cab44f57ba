package cli

import (
	"github.com/annahri/zmssl/internal/options"
	"github.com/spf13/cobra"
)

var buildChainCmd = &cobra.Command{
	Use:   "build-chain",
	Short: "Assemble the trust chain bundle",
	Long: `Inspect the issued chain, download the matching upstream root
certificate, and write the concatenated chain bundle into the platform's
staging area. Use --force-getchain to rebuild an up-to-date bundle.

Examples:
  zmssl build-chain
  zmssl build-chain --force-getchain`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(options.ActionBuildChain)
	},
}

func init() {
	rootCmd.AddCommand(buildChainCmd)
}
