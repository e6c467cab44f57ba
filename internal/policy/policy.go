// Package policy decides whether certificate renewal is due.
//
// The evaluator prefers the expiry of the certificate actually installed
// in the platform's serving slot. When the installed copy no longer
// matches the locally issued material byte-for-byte, the deployment has
// drifted; the locally issued certificate is then the most current
// material and its expiry is evaluated instead. This fallback is a
// deliberate policy decision: a stale installed copy must not delay
// renewal of an already reissued certificate.
package policy

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"math"
	"os"
	"time"

	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/logger"
)

// secondsPerDay converts an expiry delta to whole remaining days.
const secondsPerDay = 86400

// Evaluator reads certificate expiry from the deployed and locally
// issued material.
type Evaluator struct {
	DeployedCertPath string // certificate installed in the serving slot
	LiveCertPath     string // locally issued leaf
	LiveChainPath    string // locally issued chain

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time
}

// Evaluation is the outcome of one due-ness check.
type Evaluation struct {
	RemainingDays int    `json:"remaining_days"`
	Expiry        string `json:"expiry"`
	Source        string `json:"source"` // file whose expiry was evaluated
	Drift         bool   `json:"drift"`  // deployed copy differs from issued material
	Due           bool   `json:"due"`
	Forced        bool   `json:"forced,omitempty"`
}

// IsRenewalDue evaluates the certificate against thresholdDays. When
// forceAcquire is set the check is short-circuited and renewal is always
// due. Fails with ErrMissingCertificate when no certificate exists yet.
func (e *Evaluator) IsRenewalDue(thresholdDays int, forceAcquire bool) (*Evaluation, error) {
	if forceAcquire {
		return &Evaluation{Due: true, Forced: true}, nil
	}

	ev, err := e.Evaluate()
	if err != nil {
		return nil, err
	}
	ev.Due = ev.RemainingDays <= thresholdDays
	return ev, nil
}

// Evaluate determines the remaining days until expiry without applying a
// threshold.
func (e *Evaluator) Evaluate() (*Evaluation, error) {
	deployed, deployedErr := os.ReadFile(e.DeployedCertPath)
	live, liveErr := os.ReadFile(e.LiveCertPath)

	if deployedErr != nil && liveErr != nil {
		return nil, errors.MissingCertificate("no certificate found at %s or %s",
			e.DeployedCertPath, e.LiveCertPath)
	}

	ev := &Evaluation{}
	var target []byte
	switch {
	case deployedErr != nil:
		// Nothing installed yet, evaluate the issued material.
		logger.Debug("no deployed certificate at %s, evaluating %s", e.DeployedCertPath, e.LiveCertPath)
		target = live
		ev.Source = e.LiveCertPath
	case liveErr != nil:
		target = deployed
		ev.Source = e.DeployedCertPath
	default:
		chain, _ := os.ReadFile(e.LiveChainPath)
		issued := append(append([]byte(nil), live...), chain...)
		if !bytes.Equal(normalize(deployed), normalize(issued)) {
			logger.Warn("deployed certificate %s differs from issued material, evaluating %s",
				e.DeployedCertPath, e.LiveCertPath)
			ev.Drift = true
			target = live
			ev.Source = e.LiveCertPath
		} else {
			target = deployed
			ev.Source = e.DeployedCertPath
		}
	}

	expiry, err := endDate(target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePrecondition, "cannot read certificate end date from "+ev.Source, err)
	}

	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	ev.Expiry = expiry.UTC().Format(time.RFC3339)
	ev.RemainingDays = int(math.Floor(expiry.Sub(now).Seconds() / secondsPerDay))
	return ev, nil
}

// endDate parses the first CERTIFICATE block in data and returns its
// NotAfter field.
func endDate(data []byte) (time.Time, error) {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return time.Time{}, errors.ErrMissingCertificate
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return time.Time{}, err
		}
		return cert.NotAfter, nil
	}
}

// normalize strips trailing whitespace so a byte comparison is not
// defeated by a missing final newline.
func normalize(data []byte) []byte {
	return bytes.TrimRight(data, "\r\n")
}
