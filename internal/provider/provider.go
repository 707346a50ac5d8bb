// internal/provider/provider.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnavailable reports that the requested provider could not be
// constructed, either because the name is unknown or because its binary is
// not installed.
var ErrUnavailable = errors.New("provider unavailable")

// Settings is the per-provider block from agent.yml.
type Settings struct {
	// Binary overrides the executable path for CLI-backed providers.
	Binary string `yaml:"binary"`
	// Model selects the model for providers that accept one.
	Model string `yaml:"model"`
	// Command is the shell command run by the script provider.
	Command string `yaml:"command"`
}

// Context is the bag of information handed to a provider for one task run.
// AutoAccept and ContinueSession are passed through verbatim from the task
// options.
type Context struct {
	ProjectDir      string
	ProjectContext  string
	Task            string
	Timestamp       time.Time
	CheckpointID    string
	AutoAccept      bool
	ContinueSession bool
}

// Result is the outcome of one provider run. Provider-level failures are
// data: they arrive as Success=false, never as a panic or error escaping the
// gateway.
type Result struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	Error    string `json:"error"`
	Provider string `json:"provider"`
}

// Provider executes agent tasks. How it reaches its answer, and which files
// it touches along the way, is opaque to the engine; the engine only
// snapshots around the call.
type Provider interface {
	// ID returns the provider's registry name.
	ID() string

	// Run executes one task and reports the outcome. Implementations must
	// honor ctx cancellation and must not panic.
	Run(ctx context.Context, prompt string, pc Context) Result
}

// Factory constructs a provider from its settings block.
type Factory func(Settings) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a provider constructor available under name. New providers
// plug in here; the executor never switches on provider types.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs the named provider. Unknown names and construction failures
// both surface as ErrUnavailable.
func New(name string, settings Settings) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnavailable, name)
	}

	p, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	return p, nil
}

// Names lists the registered provider names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run invokes the provider and guarantees the gateway contract: nothing
// thrown past this boundary. A panicking provider is captured into a failed
// result.
func Run(ctx context.Context, p Provider, prompt string, pc Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Success:  false,
				Error:    fmt.Sprintf("provider panic: %v", r),
				Provider: p.ID(),
			}
		}
	}()

	return p.Run(ctx, prompt, pc)
}
