package stage

import (
	"context"
	"sort"

	"github.com/flarebyte/lambundle/internal/deploy"
	"github.com/flarebyte/lambundle/internal/install"
)

// Deps carries the external collaborators used by stages. Zero fields fall
// back to the real implementations.
type Deps struct {
	Installer       install.Installer
	NewLambdaClient deploy.ClientFactory
	// Describe returns the default function description for an entry path.
	Describe func(entry string) string
}

// Runner executes a stage.
type Runner func(ctx context.Context, in Envelope, deps Deps) (Envelope, error)

var registry = map[string]Runner{}

// Register adds a stage runner.
func Register(name string, r Runner) {
	registry[name] = r
}

// Run executes a registered stage by name.
func Run(ctx context.Context, name string, in Envelope, deps Deps) (Envelope, error) {
	r, ok := registry[name]
	if !ok {
		return Envelope{}, ErrUnknown{name: name}
	}
	return r(ctx, in, deps)
}

// Names lists registered stages, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ErrUnknown is returned when a stage is not found.
type ErrUnknown struct{ name string }

func (e ErrUnknown) Error() string { return "unknown stage: " + e.name }
