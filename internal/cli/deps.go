package cli

import (
	"os"

	"github.com/annahri/zmssl/internal/config"
	"github.com/annahri/zmssl/internal/errors"
	"github.com/annahri/zmssl/internal/executor"
	"github.com/annahri/zmssl/internal/input"
	"github.com/annahri/zmssl/internal/options"
	"github.com/annahri/zmssl/internal/pipeline"
	"github.com/annahri/zmssl/internal/platform"
)

// Dependencies aggregates all CLI external dependencies for testability
type Dependencies struct {
	DefaultsLoader   DefaultsLoader
	PlatformDetector PlatformDetector
	RootChecker      RootChecker
	PipelineFactory  PipelineFactory
	StdinReader      input.Reader
}

// DefaultsLoader loads the optional defaults file
type DefaultsLoader interface {
	Load(path string) (*config.Defaults, error)
}

// PlatformDetector resolves the installed platform variant
type PlatformDetector interface {
	Detect() (platform.Variant, error)
}

// RootChecker checks root privileges
type RootChecker interface {
	RequireRoot() error
}

// PipelineRunner executes one resolved invocation
type PipelineRunner interface {
	Run() error
}

// PipelineFactory creates pipeline instances
type PipelineFactory interface {
	Create(opts *options.Options, v platform.Variant) PipelineRunner
}

// errRootRequired is returned when the process lacks root privileges.
var errRootRequired = errors.Precondition("root privileges required")

// Package-level dependencies (can be overridden for testing)
var deps = defaultDeps()

func defaultDeps() *Dependencies {
	return &Dependencies{
		DefaultsLoader:   &realDefaultsLoader{},
		PlatformDetector: &realPlatformDetector{},
		RootChecker:      &realRootChecker{},
		PipelineFactory:  &realPipelineFactory{},
		StdinReader:      input.NewStdinReader(),
	}
}

// SetDeps replaces the package dependencies (for testing)
func SetDeps(d *Dependencies) {
	deps = d
}

// ResetDeps restores the real dependencies (for testing)
func ResetDeps() {
	deps = defaultDeps()
}

// Real implementations that delegate to the underlying packages

type realDefaultsLoader struct{}

func (r *realDefaultsLoader) Load(path string) (*config.Defaults, error) {
	return config.Load(path)
}

type realPlatformDetector struct{}

func (r *realPlatformDetector) Detect() (platform.Variant, error) {
	return platform.Detect()
}

type realRootChecker struct{}

func (r *realRootChecker) RequireRoot() error {
	if os.Geteuid() != 0 {
		return errRootRequired
	}
	return nil
}

type realPipelineFactory struct{}

func (r *realPipelineFactory) Create(opts *options.Options, v platform.Variant) PipelineRunner {
	p := pipeline.New(opts, v, executor.NewSystemExecutor(), deps.StdinReader)
	p.JSONOutput = jsonOutput
	return p
}
