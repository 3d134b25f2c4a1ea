package providers

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/retry"
	"nathanbeddoewebdev/vmstate/internal/util"
)

// Options configure a backend for one invocation. Zero values select the
// provider's own defaults.
type Options struct {
	Endpoint     string
	AuthEndpoint string
	// Account names the single account exposed by providers that scope
	// credentials to one project.
	Account    string
	HTTPClient *http.Client
	Retry      retry.Config
}

// Defaults are per-provider values for desired-state fields the user
// left unset.
type Defaults struct {
	Zone            string
	HardwareProfile string
	StorageGrade    string
	Distribution    string
}

type Factory func(opts Options) (domain.Backend, error)

type entry struct {
	factory  Factory
	defaults Defaults
}

var (
	mu       sync.RWMutex
	registry = map[string]entry{}
)

func Register(name string, factory Factory, defaults Defaults) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("providers: empty provider name")
	}
	if factory == nil {
		panic("providers: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("providers: provider %q already registered", name))
	}

	registry[normalizedName] = entry{factory: factory, defaults: defaults}
}

func Get(name string, opts Options) (domain.Backend, error) {
	e, ok := lookup(name)
	if !ok {
		return nil, fmt.Errorf("providers: unknown provider %q", name)
	}

	backend, err := e.factory(opts)
	if err != nil {
		return nil, err
	}

	return backend, nil
}

// DefaultsFor returns the registered defaults for name.
func DefaultsFor(name string) (Defaults, error) {
	e, ok := lookup(name)
	if !ok {
		return Defaults{}, fmt.Errorf("providers: unknown provider %q", name)
	}
	return e.defaults, nil
}

func lookup(name string) (entry, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[util.NormalizeKey(name)]
	return e, ok
}

// RegisterAll registers every built-in provider.
func RegisterAll() {
	RegisterBytemark()
	RegisterHetzner()
}

// Reset clears the provider registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]entry{}
}

// List returns the registered provider names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
