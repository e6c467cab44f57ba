// Package options resolves raw invocation parameters into one immutable
// Options value consumed by the pipeline. All validation of conflicting
// or out-of-range parameters happens here, before any external call.
package options

import (
	"os"
	"path/filepath"

	"github.com/annahri/zmssl/internal/config"
	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/platform"
)

// Action is one CLI action token.
type Action string

// Supported actions.
const (
	ActionRun         Action = "run"
	ActionCron        Action = "cron"
	ActionGetCert     Action = "get-cert"
	ActionBuildChain  Action = "build-chain"
	ActionDeploy      Action = "deploy"
	ActionCopyCert    Action = "copy-cert"
	ActionCheckExpiry Action = "check-expiry"
	ActionVerifyCert  Action = "verify-cert"
)

// RequiresDomains reports whether the action performs certificate
// acquisition and therefore needs at least one domain.
func (a Action) RequiresDomains() bool {
	switch a {
	case ActionRun, ActionCron, ActionGetCert:
		return true
	}
	return false
}

// StagingEnv routes the acquisition tool to the ACME provider's staging
// environment when set to any non-empty value.
const StagingEnv = "ZMSSL_STAGING"

// Flags carries the raw flag values as parsed by the CLI layer.
type Flags struct {
	Domains       []string
	CertPath      string
	ChainPath     string
	KeyPath       string
	Name          string
	Email         string
	Days          int  // renewal threshold in days
	DaysSet       bool // whether -w/--days was given explicitly
	ForceGetCert  bool
	ForceGetChain bool
	ForceCopy     bool
	NoConfirm     bool
	NoRestart     bool
}

// Identity names the ACME client's certificate slot and its domain set.
// The first domain becomes the subject; all become SANs.
type Identity struct {
	Name    string
	Domains []string
	Email   string
}

// Bundle is the resolved certificate material location.
type Bundle struct {
	CertPath        string // issued leaf certificate
	KeyPath         string // private key
	ChainBundlePath string // assembled chain bundle (leaf's chain + root)
	LiveChainPath   string // ACME client's issued chain, chain builder input
}

// Policy holds the renewal decision parameters.
type Policy struct {
	ThresholdDays      int
	ForceAcquire       bool
	ForceChainRebuild  bool
	ForceCopyOverwrite bool
}

// Options is the single resolved configuration value for one run.
// It is constructed once and never mutated afterwards.
type Options struct {
	Action    Action
	Identity  Identity
	Bundle    Bundle
	Policy    Policy
	NoConfirm bool
	NoRestart bool
	Staging   bool
}

// Resolve validates and normalizes the invocation parameters against the
// defaults file and the detected platform. Any violation yields a
// configuration error before a single subprocess is spawned.
func Resolve(action Action, f Flags, d *config.Defaults, v platform.Variant) (*Options, error) {
	name := f.Name
	if name == "" {
		name = d.Name
	}
	if name == "" {
		name = v.Name
	}

	hasOverride := f.CertPath != "" || f.ChainPath != "" || f.KeyPath != ""
	if hasOverride && name != v.Name {
		return nil, errors.Configuration(
			"a custom certificate name (-n %s) cannot be combined with --cert/--chain/--priv overrides", name)
	}

	days := f.Days
	// An explicit -w 0 is a mistake, not a request for the default.
	if f.DaysSet && days < 1 {
		return nil, errors.Configuration("renewal threshold must be between 1 and 30 days, got %d", days)
	}
	if days == 0 {
		days = d.Days
	}
	if days == 0 {
		days = config.DefaultThresholdDays
	}
	if days < 0 {
		return nil, errors.Configuration("renewal threshold must be positive, got %d", days)
	}
	if days > 30 && !f.ForceGetCert {
		return nil, errors.Configuration(
			"renewal threshold %d exceeds the 30 day ACME renewal window (use --force-getcert to override)", days)
	}

	if action.RequiresDomains() && len(f.Domains) == 0 {
		return nil, errors.Configuration("action %s requires at least one -d/--domain", action)
	}

	live := v.LiveDir(name)
	bundle := Bundle{
		CertPath:        filepath.Join(live, platform.LiveCertFile),
		KeyPath:         filepath.Join(live, platform.LiveKeyFile),
		ChainBundlePath: filepath.Join(v.DeployedSSLDir(), platform.ChainBundleFile),
		LiveChainPath:   filepath.Join(live, platform.LiveChainFile),
	}
	if f.CertPath != "" {
		bundle.CertPath = f.CertPath
	}
	if f.KeyPath != "" {
		bundle.KeyPath = f.KeyPath
	}
	if f.ChainPath != "" {
		bundle.ChainBundlePath = f.ChainPath
	}

	email := f.Email
	if email == "" {
		email = d.Email
	}

	return &Options{
		Action: action,
		Identity: Identity{
			Name:    name,
			Domains: append([]string(nil), f.Domains...),
			Email:   email,
		},
		Bundle: bundle,
		Policy: Policy{
			ThresholdDays:      days,
			ForceAcquire:       f.ForceGetCert,
			ForceChainRebuild:  f.ForceGetChain,
			ForceCopyOverwrite: f.ForceCopy,
		},
		NoConfirm: f.NoConfirm,
		NoRestart: f.NoRestart || d.NoRestart,
		Staging:   os.Getenv(StagingEnv) != "",
	}, nil
}
