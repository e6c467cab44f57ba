package chain

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// certPEM generates a certificate with the given subject CN, signed by
// parent (self-signed when parent is nil).
func certPEM(t *testing.T, cn string, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) ([]byte, *x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(90 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	signer, signerKey := tmpl, key
	if parent != nil {
		signer, signerKey = parent, parentKey
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, signer, &key.PublicKey, signerKey)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), cert, key
}

func TestSelectRoot(t *testing.T) {
	tests := []struct {
		name    string
		rootCN  string
		wantURL string
	}{
		{"production root A", "ISRG Root X1", rootAProdURL},
		{"production root B", "ISRG Root X2", rootBProdURL},
		{"staging root A", "(STAGING) Pretend Pear X1", rootAStagingURL},
		{"staging root B", "(STAGING) Bogus Broccoli X2", rootBStagingURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Issued chain: an intermediate signed by the named root.
			_, rootCert, rootKey := certPEM(t, tt.rootCN, nil, nil)
			interPEM, _, _ := certPEM(t, "R3", rootCert, rootKey)

			root, err := SelectRoot(interPEM)
			if err != nil {
				t.Fatal(err)
			}
			if root.URL != tt.wantURL {
				t.Errorf("URL = %s, want %s", root.URL, tt.wantURL)
			}
			if root.Name != tt.rootCN {
				t.Errorf("Name = %s, want %s", root.Name, tt.rootCN)
			}
		})
	}
}

func TestSelectRoot_SelfSignedTerminal(t *testing.T) {
	// A chain already ending in the self-signed root still selects that
	// root by its subject.
	rootPEM, _, _ := certPEM(t, "ISRG Root X2", nil, nil)

	root, err := SelectRoot(rootPEM)
	if err != nil {
		t.Fatal(err)
	}
	if root.URL != rootBProdURL {
		t.Errorf("URL = %s, want production root B", root.URL)
	}
}

func TestSelectRoot_EmptyChain(t *testing.T) {
	if _, err := SelectRoot([]byte("no pem here")); err == nil {
		t.Error("empty chain should be an error")
	}
}

// fakeTransport serves canned bodies per URL.
type fakeTransport struct {
	bodies map[string]string
	status int
	calls  []string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls = append(f.calls, req.URL.String())
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	body, ok := f.bodies[req.URL.String()]
	if !ok {
		status = http.StatusNotFound
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}, nil
}

const fakeRootPEM = "-----BEGIN CERTIFICATE-----\nZmFrZSByb290\n-----END CERTIFICATE-----\n"

func testBuilder(bodies map[string]string) (*Builder, *fakeTransport) {
	ft := &fakeTransport{bodies: bodies}
	return &Builder{
		Client: &http.Client{Transport: ft},
		Chown:  func(string) error { return nil },
	}, ft
}

func TestBuild_AssemblesBundle(t *testing.T) {
	dir := t.TempDir()
	_, rootCert, rootKey := certPEM(t, "ISRG Root X1", nil, nil)
	interPEM, _, _ := certPEM(t, "R3", rootCert, rootKey)

	chainPath := filepath.Join(dir, "chain.pem")
	bundlePath := filepath.Join(dir, "deployed", "chain-bundle.pem")
	if err := os.WriteFile(chainPath, interPEM, 0644); err != nil {
		t.Fatal(err)
	}

	b, ft := testBuilder(map[string]string{rootAProdURL: fakeRootPEM})
	if err := b.Build(chainPath, bundlePath, false); err != nil {
		t.Fatal(err)
	}

	bundle, err := os.ReadFile(bundlePath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(bundle, interPEM) {
		t.Error("bundle should start with the issued chain")
	}
	if !bytes.HasSuffix(bundle, []byte(fakeRootPEM)) {
		t.Error("bundle should end with the downloaded root")
	}
	if len(ft.calls) != 1 || ft.calls[0] != rootAProdURL {
		t.Errorf("downloads = %v, want one fetch of root A", ft.calls)
	}
}

func TestBuild_SkipsUpToDateBundle(t *testing.T) {
	dir := t.TempDir()
	_, rootCert, rootKey := certPEM(t, "ISRG Root X1", nil, nil)
	interPEM, _, _ := certPEM(t, "R3", rootCert, rootKey)

	chainPath := filepath.Join(dir, "chain.pem")
	bundlePath := filepath.Join(dir, "chain-bundle.pem")
	if err := os.WriteFile(chainPath, interPEM, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bundlePath, []byte("existing"), 0644); err != nil {
		t.Fatal(err)
	}
	// Bundle is newer than the chain.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(chainPath, old, old); err != nil {
		t.Fatal(err)
	}

	b, ft := testBuilder(map[string]string{rootAProdURL: fakeRootPEM})
	if err := b.Build(chainPath, bundlePath, false); err != nil {
		t.Fatal(err)
	}
	if len(ft.calls) != 0 {
		t.Error("up-to-date bundle must not trigger a download")
	}

	// Force rebuilds regardless.
	if err := b.Build(chainPath, bundlePath, true); err != nil {
		t.Fatal(err)
	}
	if len(ft.calls) != 1 {
		t.Error("force should rebuild the bundle")
	}
}

func TestBuild_MissingChain(t *testing.T) {
	dir := t.TempDir()
	b, _ := testBuilder(nil)
	err := b.Build(filepath.Join(dir, "chain.pem"), filepath.Join(dir, "bundle.pem"), false)
	if err == nil {
		t.Error("missing issued chain should be an error")
	}
}

func TestBuild_DownloadFailure(t *testing.T) {
	dir := t.TempDir()
	_, rootCert, rootKey := certPEM(t, "ISRG Root X1", nil, nil)
	interPEM, _, _ := certPEM(t, "R3", rootCert, rootKey)

	chainPath := filepath.Join(dir, "chain.pem")
	if err := os.WriteFile(chainPath, interPEM, 0644); err != nil {
		t.Fatal(err)
	}

	b, _ := testBuilder(nil) // no bodies: every fetch 404s
	err := b.Build(chainPath, filepath.Join(dir, "bundle.pem"), false)
	if err == nil {
		t.Fatal("expected download failure")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "bundle.pem")); statErr == nil {
		t.Error("failed build must not leave a bundle behind")
	}
}

func TestBuild_RejectsNonPEMBody(t *testing.T) {
	dir := t.TempDir()
	_, rootCert, rootKey := certPEM(t, "ISRG Root X1", nil, nil)
	interPEM, _, _ := certPEM(t, "R3", rootCert, rootKey)

	chainPath := filepath.Join(dir, "chain.pem")
	if err := os.WriteFile(chainPath, interPEM, 0644); err != nil {
		t.Fatal(err)
	}

	b, _ := testBuilder(map[string]string{rootAProdURL: "<html>error page</html>"})
	if err := b.Build(chainPath, filepath.Join(dir, "bundle.pem"), false); err == nil {
		t.Error("non-PEM download body should be rejected")
	}
}
