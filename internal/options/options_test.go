package options

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/annahri/zmssl/internal/config"
	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/platform"
)

var testVariant = platform.Variant{Name: "zimbra", User: "zimbra", Home: "/opt/zimbra"}

func TestResolve_ThresholdValidation(t *testing.T) {
	tests := []struct {
		name    string
		flags   Flags
		wantErr bool
	}{
		{"default threshold", Flags{Domains: []string{"mail.example.com"}}, false},
		{"valid threshold", Flags{Domains: []string{"mail.example.com"}, Days: 30}, false},
		{"too large without force", Flags{Domains: []string{"mail.example.com"}, Days: 31}, true},
		{"too large with force", Flags{Domains: []string{"mail.example.com"}, Days: 31, ForceGetCert: true}, false},
		{"negative", Flags{Domains: []string{"mail.example.com"}, Days: -1}, true},
		{"explicit zero", Flags{Domains: []string{"mail.example.com"}, Days: 0, DaysSet: true}, true},
		{"explicit valid value", Flags{Domains: []string{"mail.example.com"}, Days: 14, DaysSet: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(ActionRun, tt.flags, &config.Defaults{}, testVariant)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var perr *errors.PipelineError
				if !errors.As(err, &perr) || perr.Code != errors.ErrCodeConfiguration {
					t.Errorf("expected configuration error, got %v", err)
				}
			}
		})
	}
}

func TestResolve_NameOverrideConflict(t *testing.T) {
	// The conflict must be detected regardless of which override
	// accompanies the custom name.
	overrides := []Flags{
		{Name: "custom", CertPath: "./my.pem"},
		{Name: "custom", ChainPath: "./chain.pem"},
		{Name: "custom", KeyPath: "./key.pem"},
		{CertPath: "./my.pem", Name: "custom"},
	}

	for _, f := range overrides {
		f.Domains = []string{"mail.example.com"}
		_, err := Resolve(ActionRun, f, &config.Defaults{}, testVariant)
		if err == nil {
			t.Fatalf("Resolve(%+v) expected conflict error", f)
		}
		if !strings.Contains(err.Error(), "cannot be combined") {
			t.Errorf("unexpected error: %v", err)
		}
	}

	// The platform-default name alongside overrides is fine.
	f := Flags{Domains: []string{"mail.example.com"}, Name: "zimbra", CertPath: "./my.pem"}
	if _, err := Resolve(ActionRun, f, &config.Defaults{}, testVariant); err != nil {
		t.Errorf("default name with override should resolve, got %v", err)
	}
}

func TestResolve_DomainsRequired(t *testing.T) {
	for _, action := range []Action{ActionRun, ActionCron, ActionGetCert} {
		t.Run(string(action), func(t *testing.T) {
			_, err := Resolve(action, Flags{}, &config.Defaults{}, testVariant)
			if err == nil {
				t.Fatalf("action %s without domains should be rejected", action)
			}
		})
	}

	for _, action := range []Action{ActionBuildChain, ActionDeploy, ActionCopyCert, ActionCheckExpiry, ActionVerifyCert} {
		t.Run(string(action), func(t *testing.T) {
			if _, err := Resolve(action, Flags{}, &config.Defaults{}, testVariant); err != nil {
				t.Errorf("action %s should not need domains, got %v", action, err)
			}
		})
	}
}

func TestResolve_ConventionalPaths(t *testing.T) {
	opts, err := Resolve(ActionRun, Flags{Domains: []string{"mail.example.com"}}, &config.Defaults{}, testVariant)
	if err != nil {
		t.Fatal(err)
	}

	live := filepath.Join("/etc/letsencrypt/live", "zimbra")
	if opts.Bundle.CertPath != filepath.Join(live, "cert.pem") {
		t.Errorf("CertPath = %s", opts.Bundle.CertPath)
	}
	if opts.Bundle.KeyPath != filepath.Join(live, "privkey.pem") {
		t.Errorf("KeyPath = %s", opts.Bundle.KeyPath)
	}
	if opts.Bundle.LiveChainPath != filepath.Join(live, "chain.pem") {
		t.Errorf("LiveChainPath = %s", opts.Bundle.LiveChainPath)
	}
	if opts.Bundle.ChainBundlePath != "/opt/zimbra/ssl/letsencrypt/chain-bundle.pem" {
		t.Errorf("ChainBundlePath = %s", opts.Bundle.ChainBundlePath)
	}
	if opts.Identity.Name != "zimbra" {
		t.Errorf("Name = %s, want platform default", opts.Identity.Name)
	}
	if opts.Policy.ThresholdDays != config.DefaultThresholdDays {
		t.Errorf("ThresholdDays = %d, want default", opts.Policy.ThresholdDays)
	}
}

func TestResolve_OverridesApplied(t *testing.T) {
	f := Flags{
		CertPath:  "/x/cert.pem",
		ChainPath: "/x/bundle.pem",
		KeyPath:   "/x/key.pem",
	}
	opts, err := Resolve(ActionDeploy, f, &config.Defaults{}, testVariant)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Bundle.CertPath != "/x/cert.pem" || opts.Bundle.ChainBundlePath != "/x/bundle.pem" || opts.Bundle.KeyPath != "/x/key.pem" {
		t.Errorf("overrides not applied: %+v", opts.Bundle)
	}
}

func TestResolve_DefaultsFile(t *testing.T) {
	d := &config.Defaults{Name: "mail.example.com", Email: "admin@example.com", Days: 7, NoRestart: true}
	opts, err := Resolve(ActionCheckExpiry, Flags{}, d, testVariant)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Identity.Name != "mail.example.com" {
		t.Errorf("Name = %s, want from defaults", opts.Identity.Name)
	}
	if opts.Identity.Email != "admin@example.com" {
		t.Errorf("Email = %s", opts.Identity.Email)
	}
	if opts.Policy.ThresholdDays != 7 {
		t.Errorf("ThresholdDays = %d, want 7", opts.Policy.ThresholdDays)
	}
	if !opts.NoRestart {
		t.Error("NoRestart should come from defaults")
	}

	// Flags win over the defaults file.
	opts, err = Resolve(ActionCheckExpiry, Flags{Email: "ops@example.com", Days: 3}, d, testVariant)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Identity.Email != "ops@example.com" || opts.Policy.ThresholdDays != 3 {
		t.Errorf("flags should override defaults: %+v", opts)
	}
}

func TestResolve_StagingEnv(t *testing.T) {
	f := Flags{Domains: []string{"mail.example.com"}}

	t.Setenv(StagingEnv, "")
	opts, err := Resolve(ActionRun, f, &config.Defaults{}, testVariant)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Staging {
		t.Error("Staging should be off without the env var")
	}

	t.Setenv(StagingEnv, "1")
	opts, err = Resolve(ActionRun, f, &config.Defaults{}, testVariant)
	if err != nil {
		t.Fatal(err)
	}
	if !opts.Staging {
		t.Error("Staging should be on with ZMSSL_STAGING set")
	}
}

func TestResolve_DomainsCopied(t *testing.T) {
	domains := []string{"mail.example.com", "smtp.example.com"}
	opts, err := Resolve(ActionRun, Flags{Domains: domains}, &config.Defaults{}, testVariant)
	if err != nil {
		t.Fatal(err)
	}
	domains[0] = "mutated.example.com"
	if opts.Identity.Domains[0] != "mail.example.com" {
		t.Error("Options must hold its own copy of the domain list")
	}
}
