package cli

import (
	"os"

	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/logger"
	"github.com/annahri/zmssl/internal/output"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	verbose    bool
	version    = "dev"
)

// Certificate flags shared by all actions.
var (
	flagDomains       []string
	flagCertPath      string
	flagChainPath     string
	flagKeyPath       string
	flagName          string
	flagEmail         string
	flagDays          int
	flagForceGetCert  bool
	flagForceGetChain bool
	flagForceCopy     bool
	flagNoConfirm     bool
	flagNoRestart     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "zmssl",
	Short: "TLS certificate lifecycle automation for the mail platform",
	Long: `zmssl automates the TLS certificate lifecycle of a groupware mail
platform: it checks renewal due-ness, acquires a certificate through the
ACME client, assembles the trust chain, verifies and deploys the material
into the platform's certificate store, and restarts the affected services.

It runs interactively (run, deploy, ...) or unattended from a scheduler
(cron). Set ZMSSL_STAGING to any value to use the ACME provider's staging
environment.`,
}

// Execute runs the root command and maps errors to exit codes. Skip
// outcomes were already reported by the command; everything else is
// printed before exiting nonzero.
func Execute() {
	cobra.OnInitialize(func() {
		logger.Init(verbose)
	})

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		if !errors.IsSkip(err) {
			output.Error("%v", err)
		}
		os.Exit(1)
	}
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging for debugging")

	pf := rootCmd.PersistentFlags()
	pf.StringArrayVarP(&flagDomains, "domain", "d", nil, "Domain to cover (repeatable, first becomes the subject)")
	pf.StringVarP(&flagCertPath, "cert", "c", "", "Certificate file override")
	pf.StringVarP(&flagChainPath, "chain", "C", "", "Chain bundle file override")
	pf.StringVarP(&flagKeyPath, "priv", "p", "", "Private key file override")
	pf.StringVarP(&flagName, "name", "n", "", "Certificate name (defaults to the platform identity)")
	pf.StringVarP(&flagEmail, "email", "e", "", "Contact email for the ACME account")
	pf.IntVarP(&flagDays, "days", "w", 0, "Renewal threshold in days (1..30)")
	pf.BoolVar(&flagForceGetCert, "force-getcert", false, "Force acquisition even if renewal is not due")
	pf.BoolVar(&flagForceGetChain, "force-getchain", false, "Force chain bundle rebuild")
	pf.BoolVar(&flagForceCopy, "force-copy", false, "Overwrite existing files on copy-cert")
	pf.BoolVar(&flagNoConfirm, "noconfirm", false, "Skip confirmation prompts")
	pf.BoolVar(&flagNoRestart, "norestart", false, "Skip the service restart stage")
}
