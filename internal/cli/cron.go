package cli

import (
	"github.com/annahri/zmssl/internal/options"
	"github.com/spf13/cobra"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Unattended renewal check and pipeline run",
	Long: `Evaluate the renewal policy and, only when the certificate is due,
run the full pipeline without prompting. Finding renewal not due is a
successful outcome with exit code 0, so the scheduler keeps retrying on
its own cadence.

Examples:
  zmssl cron -d mail.example.com -w 14`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(options.ActionCron)
	},
}

func init() {
	rootCmd.AddCommand(cronCmd)
}
