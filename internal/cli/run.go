package cli

import (
	"github.com/annahri/zmssl/internal/options"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full certificate pipeline",
	Long: `Acquire a certificate, build the trust chain, verify and deploy the
material, and restart services. The renewal policy check is skipped; the
ACME client itself may still report the certificate as not yet due, which
ends the run as a successful skip.

Examples:
  zmssl run -d mail.example.com -e admin@example.com
  zmssl run -d mail.example.com -d smtp.example.com --noconfirm`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(options.ActionRun)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
