// Package platform detects which groupware installation is present and
// derives the conventional paths and service account from it.
//
// Exactly one of two mutually exclusive directory trees is expected:
// the classic tree rooted at /opt/zimbra (service account "zimbra") or
// the forked tree rooted at /opt/zextras (service account "zextras").
// Detection runs once at startup; everything downstream receives the
// resolved Variant instead of re-probing the filesystem.
package platform

import (
	"os"
	"path/filepath"

	"github.com/annahri/zmssl/internal/errors"
)

// Variant describes one detected platform installation.
type Variant struct {
	Name string // platform identifier, also the default certificate name
	User string // service-owning account
	Home string // installation root
}

// letsencryptLiveDir is where the ACME client keeps issued material,
// one subdirectory per certificate name.
const letsencryptLiveDir = "/etc/letsencrypt/live"

// Conventional live-directory file names (ACME client output).
const (
	LiveCertFile  = "cert.pem"
	LiveKeyFile   = "privkey.pem"
	LiveChainFile = "chain.pem"
)

// ChainBundleFile is the assembled chain written by the chain builder.
const ChainBundleFile = "chain-bundle.pem"

// Commercial certificate slot file names (deploy tool input).
const (
	CommercialCertFile = "commercial.crt"
	CommercialKeyFile  = "commercial.key"
)

// knownVariants lists the supported installations in probe order.
var knownVariants = []Variant{
	{Name: "zimbra", User: "zimbra", Home: "/opt/zimbra"},
	{Name: "zextras", User: "zextras", Home: "/opt/zextras"},
}

// Detect probes the known installation roots and returns the variant
// whose home directory exists. Fails with ErrPlatformNotFound when
// neither tree is present.
func Detect() (Variant, error) {
	return DetectWith(pathExists)
}

// DetectWith is Detect with an injectable existence probe, for tests.
func DetectWith(exists func(path string) bool) (Variant, error) {
	for _, v := range knownVariants {
		if exists(v.Home) {
			return v, nil
		}
	}
	return Variant{}, errors.ErrPlatformNotFound
}

// LiveDir returns the ACME client's live directory for a certificate name.
func (v Variant) LiveDir(name string) string {
	return filepath.Join(letsencryptLiveDir, name)
}

// DeployedSSLDir returns the staging directory holding the active
// cert.pem, privkey.pem and chain-bundle.pem.
func (v Variant) DeployedSSLDir() string {
	return filepath.Join(v.Home, "ssl", "letsencrypt")
}

// CommercialDir returns the platform's commercial certificate slot.
func (v Variant) CommercialDir() string {
	return filepath.Join(v.Home, "ssl", v.Name, "commercial")
}

// BinPath returns the path of a platform tool under <home>/bin.
func (v Variant) BinPath(tool string) string {
	return filepath.Join(v.Home, "bin", tool)
}

// ConfPath returns the path of a file under <home>/conf.
func (v Variant) ConfPath(file string) string {
	return filepath.Join(v.Home, "conf", file)
}

// pathExists checks if a path exists on the filesystem.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
