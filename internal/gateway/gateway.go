// Package gateway adapts the external programs the pipeline
// depends on: the ACME client (certbot) for acquisition, the platform's
// certificate manager (zmcertmgr) for verification and deployment, and
// the platform's service controllers (zmcontrol, zmproxyctl).
//
// Every invocation is a blocking subprocess call. Combined output is
// captured to a per-run diagnostic log file and returned in a structured
// Result. The gateway never retries; the cron scheduler is the retry
// mechanism.
package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/executor"
	"github.com/annahri/zmssl/internal/logger"
	"github.com/annahri/zmssl/internal/platform"
)

// Tool identifies one external program kind.
type Tool string

// The tool kinds, named after their binaries.
const (
	ToolAcquire Tool = "certbot"
	ToolCertMgr Tool = "zmcertmgr"
	ToolControl Tool = "zmcontrol"
	ToolProxy   Tool = "zmproxyctl"
)

// notYetDueMarker is the acquisition tool's output when the certificate
// is not yet eligible for renewal. This is a fragile contract with the
// external tool, not a guarantee: certbot prints "Certificate not yet due
// for renewal" in that case and exits zero. Keep the match localized here
// so a tool-version change needs exactly one update.
const notYetDueMarker = "not yet due for renewal"

// Result is the structured outcome of one tool invocation.
type Result struct {
	Tool     Tool
	ExitCode int
	Output   []byte
	LogPath  string
}

// Gateway invokes external tools on behalf of the pipeline.
type Gateway struct {
	exec    executor.CommandExecutor
	variant platform.Variant
	logDir  string
	seed    string
	seq     int
}

// New creates a Gateway writing diagnostic logs under logDir. The seed
// namespaces this run's log files so sequential runs never overwrite
// each other's diagnostics.
func New(exec executor.CommandExecutor, v platform.Variant, logDir string) *Gateway {
	return &Gateway{
		exec:    exec,
		variant: v,
		logDir:  logDir,
		seed:    newSeed(),
	}
}

// newSeed builds a per-run log namespace from a timestamp and a random
// suffix.
func newSeed() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return time.Now().Format("20060102-150405") + "-" + hex.EncodeToString(buf)
}

// invoke runs one external command, captures its combined output to the
// diagnostic log, and returns the structured result. A nonzero exit is
// returned as a tool failure carrying the log path.
func (g *Gateway) invoke(tool Tool, name string, args ...string) (*Result, error) {
	g.seq++
	logPath := filepath.Join(g.logDir, fmt.Sprintf("zmssl-%s-%02d-%s.log", g.seed, g.seq, tool))

	logger.DebugFields("invoking external tool", map[string]interface{}{
		"tool": tool,
		"cmd":  name + " " + strings.Join(args, " "),
		"log":  logPath,
	})

	out, err := g.exec.Execute(name, args...)
	if werr := os.WriteFile(logPath, out, 0600); werr != nil {
		logger.Warn("could not write diagnostic log %s: %v", logPath, werr)
		logPath = ""
	}

	res := &Result{
		Tool:     tool,
		ExitCode: executor.ExitCode(err),
		Output:   out,
		LogPath:  logPath,
	}
	if err != nil {
		return res, errors.ToolFailure(string(tool), logPath, err)
	}
	return res, nil
}

// asUser wraps a platform tool invocation in a login shell for the
// service-owning account. zmcertmgr and the service controllers refuse
// to run as root on current platform releases.
func (g *Gateway) asUser(tool Tool, command string) (*Result, error) {
	return g.invoke(tool, "su", "-", g.variant.User, "-c", command)
}

// AcquireRequest describes one acquisition (issue or renew) call.
type AcquireRequest struct {
	Name           string
	Domains        []string
	Email          string
	Staging        bool
	ForceRenewal   bool
	PreferredChain string
}

// Acquire runs the ACME client in standalone HTTP-01 mode for the named
// certificate slot. The tool's "not yet due" outcome is surfaced as the
// skip sentinel ErrNotYetDue, not as a failure.
func (g *Gateway) Acquire(req AcquireRequest) (*Result, error) {
	args := []string{
		"certonly",
		"--standalone",
		"--non-interactive",
		"--agree-tos",
		"--cert-name", req.Name,
	}
	if req.Email != "" {
		args = append(args, "--email", req.Email)
	} else {
		args = append(args, "--register-unsafely-without-email")
	}
	if req.Staging {
		args = append(args, "--staging")
	}
	if req.ForceRenewal {
		args = append(args, "--force-renewal")
	}
	if req.PreferredChain != "" {
		args = append(args, "--preferred-chain", req.PreferredChain)
	}
	for _, d := range req.Domains {
		args = append(args, "-d", d)
	}

	res, err := g.invoke(ToolAcquire, "certbot", args...)
	if err != nil {
		return res, err
	}
	if strings.Contains(string(res.Output), notYetDueMarker) {
		return res, errors.ErrNotYetDue
	}
	return res, nil
}

// VerifyCert asks the certificate manager to validate that key, leaf and
// chain belong together before anything is installed.
func (g *Gateway) VerifyCert(keyPath, certPath, chainPath string) (*Result, error) {
	cmd := fmt.Sprintf("%s verifycrt comm %s %s %s",
		g.variant.BinPath("zmcertmgr"), keyPath, certPath, chainPath)
	return g.asUser(ToolCertMgr, cmd)
}

// DeployCert installs validated material into the platform's commercial
// certificate slot. The matching key must already be staged at
// commercial.key in the slot directory.
func (g *Gateway) DeployCert(certPath, chainPath string) (*Result, error) {
	cmd := fmt.Sprintf("%s deploycrt comm %s %s",
		g.variant.BinPath("zmcertmgr"), certPath, chainPath)
	return g.asUser(ToolCertMgr, cmd)
}

// Control runs the platform service controller with the given verb
// (start, stop, status, restart).
func (g *Gateway) Control(verb string) (*Result, error) {
	return g.asUser(ToolControl, fmt.Sprintf("%s %s", g.variant.BinPath("zmcontrol"), verb))
}

// StopProxy stops the platform's internal proxy.
func (g *Gateway) StopProxy() error {
	_, err := g.asUser(ToolProxy, g.variant.BinPath("zmproxyctl")+" stop")
	return err
}

// StartProxy starts the platform's internal proxy.
func (g *Gateway) StartProxy() error {
	_, err := g.asUser(ToolProxy, g.variant.BinPath("zmproxyctl")+" start")
	return err
}
