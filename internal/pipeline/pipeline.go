// Package pipeline sequences the certificate lifecycle stages under the
// protection of the execution lock.
//
// The orchestrator composes the renewal policy evaluator, the proxy
// availability guard, the chain builder and the external tool gateway
// into the stage sequence selected by the CLI action. A failure in any
// stage aborts the remaining stages; the lock is released and the proxy
// restored on every exit path, including interrupt signals.
package pipeline

import (
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/annahri/zmssl/internal/chain"
	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/executor"
	"github.com/annahri/zmssl/internal/gateway"
	"github.com/annahri/zmssl/internal/input"
	"github.com/annahri/zmssl/internal/lock"
	"github.com/annahri/zmssl/internal/logger"
	"github.com/annahri/zmssl/internal/options"
	"github.com/annahri/zmssl/internal/output"
	"github.com/annahri/zmssl/internal/platform"
	"github.com/annahri/zmssl/internal/policy"
	"github.com/annahri/zmssl/internal/proxy"
)

// Pipeline executes one invocation's stage sequence.
type Pipeline struct {
	// Collaborators are exported so tests can substitute them after New.
	Gateway   *gateway.Gateway
	Lock      *lock.Lock
	Guard     *proxy.Guard
	Evaluator *policy.Evaluator
	Builder   *chain.Builder
	Stdin     input.Reader

	// JSONOutput switches reporting commands to JSON.
	JSONOutput bool

	opts    *options.Options
	variant platform.Variant
	state   State

	// cleanupMu serializes cleanup between the signal handler and the
	// normal exit path.
	cleanupMu sync.Mutex
}

// New wires a Pipeline for the resolved options on the detected platform.
func New(opts *options.Options, v platform.Variant, exec executor.CommandExecutor, stdin input.Reader) *Pipeline {
	gw := gateway.New(exec, v, os.TempDir())
	return &Pipeline{
		Gateway: gw,
		Lock:    lock.Default(),
		Guard:   proxy.NewGuard(gw),
		Evaluator: &policy.Evaluator{
			DeployedCertPath: filepath.Join(v.CommercialDir(), platform.CommercialCertFile),
			LiveCertPath:     opts.Bundle.CertPath,
			LiveChainPath:    opts.Bundle.LiveChainPath,
		},
		Builder: chain.NewBuilder(v),
		Stdin:   stdin,
		opts:    opts,
		variant: v,
	}
}

// State returns the orchestrator's current state.
func (p *Pipeline) State() State {
	return p.state
}

// enter records a state transition.
func (p *Pipeline) enter(s State) {
	logger.Debug("pipeline state %s -> %s", p.state, s)
	p.state = s
}

// Run acquires the execution lock, executes the stage sequence for the
// configured action, and guarantees lock release and proxy restoration
// on every exit path.
func (p *Pipeline) Run() (err error) {
	if err := p.Lock.Acquire(); err != nil {
		return err
	}

	// Release the lock and restore the proxy even when the run is cut
	// short by a signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			logger.Warn("interrupted, restoring state before exit")
			p.cleanup()
			os.Exit(1)
		}
	}()
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
		p.cleanup()
		if err != nil && !errors.IsSkip(err) {
			p.state = StateFailed
		}
	}()

	switch p.opts.Action {
	case options.ActionRun:
		err = p.fullPipeline(false)
	case options.ActionCron:
		err = p.fullPipeline(true)
	case options.ActionGetCert:
		if err = p.acquire(); err == nil {
			err = p.buildChain()
		} else if errors.Is(err, errors.ErrNotYetDue) {
			output.Info("acquisition tool reports certificate not yet due for renewal, nothing to do")
			err = nil
		}
	case options.ActionBuildChain:
		err = p.buildChain()
	case options.ActionDeploy:
		if err = p.verify(); err == nil {
			if p.confirm("Deploy the verified certificate and overwrite the active slot?") {
				err = p.deploy()
			} else {
				output.Info("deployment aborted by operator")
			}
		}
	case options.ActionCopyCert:
		err = p.copyCert()
	case options.ActionCheckExpiry:
		err = p.checkExpiry()
	case options.ActionVerifyCert:
		err = p.verify()
	default:
		err = errors.Configuration("unknown action %q", p.opts.Action)
	}

	if err == nil {
		p.enter(StateDone)
	}
	return err
}

// cleanup restores the proxy if the guard intervened and releases the
// execution lock. Safe to call more than once, including concurrently
// from the signal handler.
func (p *Pipeline) cleanup() {
	p.cleanupMu.Lock()
	defer p.cleanupMu.Unlock()

	if rerr := p.Guard.RestoreIfIntervened(); rerr != nil {
		output.Error("failed to restart proxy, manual intervention needed: %v", rerr)
	}
	if rerr := p.Lock.Release(); rerr != nil {
		logger.Error("failed to release lock: %v", rerr)
	}
}

// fullPipeline runs Acquire through Restart. With enforceDue set (cron)
// the renewal policy is evaluated first and a not-due certificate ends
// the run as a successful skip.
func (p *Pipeline) fullPipeline(enforceDue bool) error {
	if enforceDue {
		p.enter(StateEvaluating)
		ev, err := p.Evaluator.IsRenewalDue(p.opts.Policy.ThresholdDays, p.opts.Policy.ForceAcquire)
		if err != nil {
			if !errors.Is(err, errors.ErrMissingCertificate) {
				return err
			}
			// No certificate yet: the very first cron run proceeds
			// straight to acquisition.
			logger.Info("no existing certificate, proceeding with initial acquisition")
		} else if !ev.Due {
			output.Info("certificate expires in %d days, renewal not due (threshold %d days)",
				ev.RemainingDays, p.opts.Policy.ThresholdDays)
			return nil
		} else if ev.Drift {
			output.Warn("deployed certificate differs from issued material")
		}
	}

	if err := p.acquire(); err != nil {
		if errors.Is(err, errors.ErrNotYetDue) {
			output.Info("acquisition tool reports certificate not yet due for renewal, nothing to do")
			return nil
		}
		return err
	}
	if err := p.buildChain(); err != nil {
		return err
	}
	if err := p.verify(); err != nil {
		return err
	}
	if !p.confirm("Deploy the new certificate and restart services?") {
		output.Info("deployment aborted by operator")
		return nil
	}
	if err := p.deploy(); err != nil {
		return err
	}
	if p.opts.NoRestart {
		output.Info("skipping service restart (--norestart)")
		return nil
	}
	return p.restart()
}

// acquire frees the validation port, runs the ACME client, and restores
// the proxy before returning, on success and on failure alike.
func (p *Pipeline) acquire() error {
	p.enter(StateAcquiring)

	if _, err := p.Guard.EnsurePortFree(); err != nil {
		return err
	}

	_, err := p.Gateway.Acquire(gateway.AcquireRequest{
		Name:         p.opts.Identity.Name,
		Domains:      p.opts.Identity.Domains,
		Email:        p.opts.Identity.Email,
		Staging:      p.opts.Staging,
		ForceRenewal: p.opts.Policy.ForceAcquire,
	})

	// The proxy is only needed down for the validation listener; put it
	// back before any later stage runs.
	if rerr := p.Guard.RestoreIfIntervened(); rerr != nil {
		output.Error("failed to restart proxy after acquisition: %v", rerr)
		if err == nil {
			err = rerr
		}
	}
	if err == nil {
		output.Success("certificate acquired for %s", p.opts.Identity.Name)
	}
	return err
}

// buildChain assembles the chain bundle from the issued chain plus the
// downloaded root.
func (p *Pipeline) buildChain() error {
	p.enter(StateChainBuilding)
	err := p.Builder.Build(p.opts.Bundle.LiveChainPath, p.opts.Bundle.ChainBundlePath,
		p.opts.Policy.ForceChainRebuild)
	if err == nil {
		output.Success("chain bundle written to %s", p.opts.Bundle.ChainBundlePath)
	}
	return err
}

// verify stages the private key into the commercial slot and asks the
// certificate manager to validate key, leaf and chain coherence. Nothing
// is ever installed unverified.
func (p *Pipeline) verify() error {
	p.enter(StateVerifying)

	b := p.opts.Bundle
	for _, f := range []string{b.KeyPath, b.CertPath, b.ChainBundlePath} {
		if _, err := os.Stat(f); err != nil {
			return errors.Precondition("required file missing: %s", f)
		}
	}

	keyPath, err := p.stageKey()
	if err != nil {
		return err
	}
	if _, err := p.Gateway.VerifyCert(keyPath, b.CertPath, b.ChainBundlePath); err != nil {
		return err
	}
	output.Success("certificate material verified")
	return nil
}

// deploy installs the verified material into the platform's active
// certificate slot. Deployment is durable once the tool succeeds; a
// later restart failure does not roll it back.
func (p *Pipeline) deploy() error {
	p.enter(StateDeploying)
	b := p.opts.Bundle
	if _, err := p.Gateway.DeployCert(b.CertPath, b.ChainBundlePath); err != nil {
		return err
	}
	output.Success("certificate deployed to the %s slot", p.variant.Name)
	return nil
}

// restart restarts the platform services against the new certificate.
func (p *Pipeline) restart() error {
	p.enter(StateRestarting)
	if _, err := p.Gateway.Control("restart"); err != nil {
		return err
	}
	output.Success("services restarted")
	return nil
}

// copyCert copies the live acquisition output into the platform's
// staging area, refusing to overwrite existing files unless forced.
func (p *Pipeline) copyCert() error {
	dest := p.variant.DeployedSSLDir()
	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "cannot create staging directory", err)
	}

	copies := []struct {
		src, dst string
		perm     os.FileMode
	}{
		{p.opts.Bundle.CertPath, filepath.Join(dest, platform.LiveCertFile), 0644},
		{p.opts.Bundle.KeyPath, filepath.Join(dest, platform.LiveKeyFile), 0600},
	}
	for _, c := range copies {
		if _, err := os.Stat(c.dst); err == nil && !p.opts.Policy.ForceCopyOverwrite {
			return errors.Precondition("%s already exists (use --force-copy to overwrite)", c.dst)
		}
		if err := copyFile(c.src, c.dst, c.perm); err != nil {
			return err
		}
	}
	output.Success("certificate material copied to %s", dest)
	return nil
}

// checkExpiry reports remaining days and signals via ErrNotWithinWindow
// when the certificate is not yet inside the renewal window.
func (p *Pipeline) checkExpiry() error {
	p.enter(StateEvaluating)
	ev, err := p.Evaluator.IsRenewalDue(p.opts.Policy.ThresholdDays, false)
	if err != nil {
		return err
	}

	if p.JSONOutput {
		if err := output.JSON(ev); err != nil {
			return err
		}
	} else {
		if ev.Drift {
			output.Warn("deployed certificate differs from issued material, evaluating %s", ev.Source)
		}
		output.Print("Certificate: %s", ev.Source)
		output.Print("Expires:     %s (%d days)", ev.Expiry, ev.RemainingDays)
	}

	if !ev.Due {
		return errors.ErrNotWithinWindow
	}
	if !p.JSONOutput {
		output.Success("certificate is within the %d day renewal window", p.opts.Policy.ThresholdDays)
	}
	return nil
}

// stageKey copies the private key into the commercial slot where the
// verify and deploy tool expects it.
func (p *Pipeline) stageKey() (string, error) {
	dir := p.variant.CommercialDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "cannot create commercial slot directory", err)
	}
	dst := filepath.Join(dir, platform.CommercialKeyFile)
	if err := copyFile(p.opts.Bundle.KeyPath, dst, 0600); err != nil {
		return "", err
	}
	if p.Builder != nil && p.Builder.Chown != nil {
		if err := p.Builder.Chown(dst); err != nil {
			return "", errors.Wrap(errors.ErrCodeInternal, "cannot assign key ownership", err)
		}
	}
	return dst, nil
}

// confirm prompts the operator before deployment. Unattended runs and
// --noconfirm skip the prompt.
func (p *Pipeline) confirm(prompt string) bool {
	if p.opts.NoConfirm || p.opts.Action == options.ActionCron || p.Stdin == nil {
		return true
	}
	output.Print("%s [y/N]", prompt)
	ok, err := input.Confirm(p.Stdin)
	if err != nil {
		logger.Error("could not read confirmation: %v", err)
		return false
	}
	return ok
}

// copyFile copies src to dst with the given permissions.
func copyFile(src, dst string, perm os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodePrecondition, "cannot read "+src, err)
	}
	if err := os.WriteFile(dst, data, perm); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "cannot write "+dst, err)
	}
	return nil
}
