// Package proxy ensures the HTTP-01 validation port is free before
// acquisition and restores the platform proxy to its exact prior state
// afterwards.
package proxy

import (
	"fmt"
	"net"
	"sync"

	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/logger"
)

// ValidationPort is the listener port required for HTTP-01 validation.
const ValidationPort = 80

// Controller stops and starts the platform's internal proxy.
type Controller interface {
	StopProxy() error
	StartProxy() error
}

// State records whether the guard itself stopped the proxy. Only then
// may it be restarted afterwards; a proxy that was already down stays
// down.
type State struct {
	Intervened bool
}

// Guard frees the validation port by stopping the proxy when necessary.
type Guard struct {
	Port    int
	Control Controller

	// Listen is the probe used to test port availability,
	// overridable in tests. Nil means net.Listen.
	Listen func(network, address string) (net.Listener, error)

	// mu guards state; restoration may race with a signal-triggered
	// cleanup.
	mu    sync.Mutex
	state State
}

// NewGuard creates a Guard for the HTTP-01 validation port.
func NewGuard(ctrl Controller) *Guard {
	return &Guard{
		Port:    ValidationPort,
		Control: ctrl,
	}
}

// EnsurePortFree checks the validation port and stops the proxy if
// something is listening on it. Returns the resulting guard state; with
// Intervened false the call had no side effects.
func (g *Guard) EnsurePortFree() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.free() {
		return g.state, nil
	}

	logger.Info("port %d busy, stopping proxy for HTTP validation", g.Port)
	if err := g.Control.StopProxy(); err != nil {
		return g.state, err
	}
	g.state.Intervened = true

	if !g.free() {
		return g.state, errors.Precondition("port %d still busy after stopping proxy", g.Port)
	}
	return g.state, nil
}

// RestoreIfIntervened restarts the proxy only if this guard stopped it.
// Idempotent: a second call after a successful restart does nothing.
// Callers must reach this on every exit path after intervention so a
// failed acquisition never leaves the platform without its proxy.
func (g *Guard) RestoreIfIntervened() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.state.Intervened {
		return nil
	}
	if err := g.Control.StartProxy(); err != nil {
		return err
	}
	g.state.Intervened = false
	return nil
}

// Intervened reports whether the guard has stopped the proxy and not yet
// restored it.
func (g *Guard) Intervened() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Intervened
}

// free probes the port with a listen attempt.
func (g *Guard) free() bool {
	listen := g.Listen
	if listen == nil {
		listen = net.Listen
	}
	l, err := listen("tcp", fmt.Sprintf(":%d", g.Port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
