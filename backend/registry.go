package backend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/poisson/internal/gpu"
)

// registry holds registered device openers.
var (
	registryMu sync.RWMutex
	openers    = make(map[string]Opener)
	// Priority order for backend selection (first that opens wins).
	// Real hardware first, noop as the headless fallback.
	backendPriority = []string{BackendVulkan, BackendNoop}
)

// Register registers an opener with the given name.
// This is typically called from init() functions.
// If an opener with the same name is already registered, it is replaced.
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	openers[name] = open
}

// Unregister removes an opener from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(openers, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := openers[name]
	return ok
}

// Open opens a device with the named backend.
func Open(name string) (*gpu.Context, error) {
	registryMu.RLock()
	open, ok := openers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	ctx, err := open()
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	logger().Debug("backend: opened", "backend", name)
	return ctx, nil
}

// OpenDefault opens the first backend in priority order that succeeds,
// then any other registered backend. It returns the chosen name.
func OpenDefault() (string, *gpu.Context, error) {
	tried := make(map[string]bool)
	for _, name := range append(slices.Clone(backendPriority), Available()...) {
		if tried[name] || !IsRegistered(name) {
			continue
		}
		tried[name] = true
		ctx, err := Open(name)
		if err != nil {
			logger().Warn("backend: open failed, trying next", "backend", name, "error", err)
			continue
		}
		logger().Info("backend: selected", "backend", name, "adapter", ctx.AdapterName())
		return name, ctx, nil
	}
	return "", nil, ErrBackendNotAvailable
}
