package cli

import (
	"github.com/annahri/zmssl/internal/config"
	"github.com/annahri/zmssl/internal/options"
)

// currentFlags snapshots the parsed flag values into the resolver input.
func currentFlags() options.Flags {
	return options.Flags{
		Domains:       flagDomains,
		CertPath:      flagCertPath,
		ChainPath:     flagChainPath,
		KeyPath:       flagKeyPath,
		Name:          flagName,
		Email:         flagEmail,
		Days:          flagDays,
		DaysSet:       rootCmd.PersistentFlags().Changed("days"),
		ForceGetCert:  flagForceGetCert,
		ForceGetChain: flagForceGetChain,
		ForceCopy:     flagForceCopy,
		NoConfirm:     flagNoConfirm,
		NoRestart:     flagNoRestart,
	}
}

// runAction detects the platform, resolves the invocation into an
// immutable Options value, and hands it to the pipeline. check-expiry is
// read-only and may run without root.
func runAction(action options.Action) error {
	if action != options.ActionCheckExpiry {
		if err := deps.RootChecker.RequireRoot(); err != nil {
			return err
		}
	}

	v, err := deps.PlatformDetector.Detect()
	if err != nil {
		return err
	}

	defaults, err := deps.DefaultsLoader.Load(v.ConfPath(config.DefaultsFile))
	if err != nil {
		return err
	}

	opts, err := options.Resolve(action, currentFlags(), defaults, v)
	if err != nil {
		return err
	}

	return deps.PipelineFactory.Create(opts, v).Run()
}
