package cli

import (
	"github.com/annahri/zmssl/internal/config"
	"github.com/annahri/zmssl/internal/input"
	"github.com/annahri/zmssl/internal/options"
	"github.com/annahri/zmssl/internal/platform"
)

// MockDefaultsLoader is a test double for DefaultsLoader
type MockDefaultsLoader struct {
	Defaults *config.Defaults
	Err      error
}

func (m *MockDefaultsLoader) Load(path string) (*config.Defaults, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Defaults == nil {
		return &config.Defaults{}, nil
	}
	return m.Defaults, nil
}

// MockPlatformDetector is a test double for PlatformDetector
type MockPlatformDetector struct {
	Variant platform.Variant
	Err     error
}

func (m *MockPlatformDetector) Detect() (platform.Variant, error) {
	if m.Err != nil {
		return platform.Variant{}, m.Err
	}
	if m.Variant.Name == "" {
		return platform.Variant{Name: "zimbra", User: "zimbra", Home: "/opt/zimbra"}, nil
	}
	return m.Variant, nil
}

// MockRootChecker is a test double for RootChecker
type MockRootChecker struct {
	Err error
}

func (m *MockRootChecker) RequireRoot() error {
	return m.Err
}

// MockPipelineFactory records created pipelines and returns a canned runner
type MockPipelineFactory struct {
	Opts    []*options.Options
	Variant platform.Variant
	RunErr  error
}

func (m *MockPipelineFactory) Create(opts *options.Options, v platform.Variant) PipelineRunner {
	m.Opts = append(m.Opts, opts)
	m.Variant = v
	return &mockRunner{err: m.RunErr}
}

type mockRunner struct {
	err error
}

func (r *mockRunner) Run() error {
	return r.err
}

// MockDepsBuilder assembles Dependencies for tests
type MockDepsBuilder struct {
	deps *Dependencies
}

// NewMockDeps creates a builder with all dependencies mocked
func NewMockDeps() *MockDepsBuilder {
	return &MockDepsBuilder{
		deps: &Dependencies{
			DefaultsLoader:   &MockDefaultsLoader{},
			PlatformDetector: &MockPlatformDetector{},
			RootChecker:      &MockRootChecker{},
			PipelineFactory:  &MockPipelineFactory{},
			StdinReader:      input.NewStringReader(),
		},
	}
}

// WithDefaults sets the defaults returned by the loader
func (b *MockDepsBuilder) WithDefaults(d *config.Defaults) *MockDepsBuilder {
	b.deps.DefaultsLoader = &MockDefaultsLoader{Defaults: d}
	return b
}

// WithVariant sets the detected platform variant
func (b *MockDepsBuilder) WithVariant(v platform.Variant) *MockDepsBuilder {
	b.deps.PlatformDetector = &MockPlatformDetector{Variant: v}
	return b
}

// WithRootError makes the root check fail
func (b *MockDepsBuilder) WithRootError(err error) *MockDepsBuilder {
	b.deps.RootChecker = &MockRootChecker{Err: err}
	return b
}

// WithFactory sets the pipeline factory
func (b *MockDepsBuilder) WithFactory(f PipelineFactory) *MockDepsBuilder {
	b.deps.PipelineFactory = f
	return b
}

// Build returns the assembled Dependencies
func (b *MockDepsBuilder) Build() *Dependencies {
	return b.deps
}
