package cli

import (
	"github.com/annahri/zmssl/internal/options"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Verify and deploy the certificate material",
	Long: `Validate that key, certificate and chain bundle belong together and
install them into the platform's active certificate slot. Verification
failure aborts before anything is installed.

Examples:
  zmssl deploy
  zmssl deploy -c ./cert.pem -C ./chain-bundle.pem -p ./privkey.pem`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(options.ActionDeploy)
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
}
