// Package chain assembles the platform's trust chain bundle.
//
// The ACME provider's issued chain alone is insufficient for some legacy
// clients, which need the cross-signed root explicitly appended. The
// builder inspects the issued chain to identify which upstream root
// signed it, downloads that root, and concatenates issued chain + root
// into the platform's chain bundle file.
package chain

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/logger"
	"github.com/annahri/zmssl/internal/platform"
)

// Root certificate download URLs, production and staging, for the two
// provider roots. The staging roots carry a parenthetical "(STAGING)"
// marker in their common name.
const (
	rootAProdURL    = "https://letsencrypt.org/certs/isrgrootx1.pem"
	rootBProdURL    = "https://letsencrypt.org/certs/isrg-root-x2.pem"
	rootAStagingURL = "https://letsencrypt.org/certs/staging/letsencrypt-stg-root-x1.pem"
	rootBStagingURL = "https://letsencrypt.org/certs/staging/letsencrypt-stg-root-x2.pem"
)

// Root identifies the upstream root certificate to append.
type Root struct {
	Name string // common name that selected it
	URL  string
}

// Builder assembles the chain bundle file.
type Builder struct {
	// Client performs the root certificate download.
	Client *http.Client

	// Chown assigns platform ownership to the written bundle,
	// overridable in tests.
	Chown func(path string) error
}

// NewBuilder creates a Builder whose written bundle is owned by the
// platform's service account.
func NewBuilder(v platform.Variant) *Builder {
	return &Builder{
		Client: &http.Client{Timeout: 30 * time.Second},
		Chown:  ownerFunc(v.User),
	}
}

// SelectRoot inspects an issued chain and picks the root certificate URL
// matching it. The chain's terminal certificate names its root in the
// issuer common name; the "(STAGING)" parenthetical selects the staging
// URL set and the trailing identifier (X1 or X2) selects root A or B.
func SelectRoot(chainPEM []byte) (Root, error) {
	certs, err := parseCerts(chainPEM)
	if err != nil {
		return Root{}, err
	}
	if len(certs) == 0 {
		return Root{}, errors.Precondition("chain file contains no certificates")
	}

	last := certs[len(certs)-1]
	name := last.Issuer.CommonName
	if name == "" || last.Subject.CommonName == last.Issuer.CommonName {
		name = last.Subject.CommonName
	}

	staging := strings.Contains(name, "(STAGING)")
	rootB := strings.HasSuffix(name, "X2")

	r := Root{Name: name}
	switch {
	case staging && rootB:
		r.URL = rootBStagingURL
	case staging:
		r.URL = rootAStagingURL
	case rootB:
		r.URL = rootBProdURL
	default:
		r.URL = rootAProdURL
	}
	return r, nil
}

// Build assembles bundlePath from the issued chain at liveChainPath plus
// the downloaded root. An existing bundle newer than the issued chain is
// left alone unless force is set.
func (b *Builder) Build(liveChainPath, bundlePath string, force bool) error {
	chainPEM, err := os.ReadFile(liveChainPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Precondition("no issued chain at %s", liveChainPath)
		}
		return errors.Wrap(errors.ErrCodePrecondition, "cannot read issued chain", err)
	}

	if !force && upToDate(bundlePath, liveChainPath) {
		logger.Info("chain bundle %s is current, skipping rebuild", bundlePath)
		return nil
	}

	root, err := SelectRoot(chainPEM)
	if err != nil {
		return err
	}
	logger.InfoFields("fetching root certificate", map[string]interface{}{
		"root": root.Name,
		"url":  root.URL,
	})

	rootPEM, err := b.fetch(root.URL)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(bundlePath), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "cannot create bundle directory", err)
	}

	bundle := make([]byte, 0, len(chainPEM)+len(rootPEM)+1)
	bundle = append(bundle, chainPEM...)
	if len(bundle) > 0 && bundle[len(bundle)-1] != '\n' {
		bundle = append(bundle, '\n')
	}
	bundle = append(bundle, rootPEM...)

	if err := os.WriteFile(bundlePath, bundle, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "cannot write chain bundle", err)
	}
	if b.Chown != nil {
		if err := b.Chown(bundlePath); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "cannot assign bundle ownership", err)
		}
	}
	return nil
}

// fetch downloads one root certificate and sanity-checks that the body
// is PEM material.
func (b *Builder) fetch(url string) ([]byte, error) {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTool, "root certificate download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Precondition("root certificate download returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTool, "root certificate download failed", err)
	}
	if !strings.Contains(string(body), "BEGIN CERTIFICATE") {
		return nil, errors.Precondition("downloaded root from %s is not PEM material", url)
	}
	return body, nil
}

// parseCerts decodes every CERTIFICATE block in data.
func parseCerts(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodePrecondition, "malformed certificate in chain", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// upToDate reports whether the bundle exists and is at least as new as
// the issued chain.
func upToDate(bundlePath, chainPath string) bool {
	bi, err := os.Stat(bundlePath)
	if err != nil {
		return false
	}
	ci, err := os.Stat(chainPath)
	if err != nil {
		return false
	}
	return !bi.ModTime().Before(ci.ModTime())
}

// ownerFunc resolves the service account once per call and applies its
// uid/gid to the given path.
func ownerFunc(username string) func(path string) error {
	return func(path string) error {
		u, err := user.Lookup(username)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", username, err)
		}
		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			return err
		}
		gid, err := strconv.Atoi(u.Gid)
		if err != nil {
			return err
		}
		return os.Chown(path, uid, gid)
	}
}
