package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/cmt/gpucore"
)

// DriverFactory creates a new driver instance.
type DriverFactory func() gpucore.Driver

// registry holds registered drivers.
var (
	registryMu sync.RWMutex
	drivers    = make(map[string]DriverFactory)
	// Priority order for driver selection (first that opens wins).
	// Metal > WGPU > Software (native first, CPU reference last).
	driverPriority = []string{BackendMetal, BackendWGPU, BackendSoftware}
)

// Register registers a driver factory with the given name.
// This is typically called from init() functions in driver packages.
// If a driver with the same name is already registered, it will be replaced.
func Register(name string, factory DriverFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	drivers[name] = factory
}

// Unregister removes a driver from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(drivers, name)
}

// Available returns the registered driver names in selection order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return orderedLocked()
}

// orderedLocked returns priority drivers first, then the rest by name.
// The caller must hold registryMu.
func orderedLocked() []string {
	names := make([]string, 0, len(drivers))
	seen := make(map[string]bool, len(drivers))
	for _, name := range driverPriority {
		if _, ok := drivers[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range drivers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// IsRegistered checks if a driver with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := drivers[name]
	return ok
}

// Get returns a driver instance by name.
// Returns nil if the driver is not registered.
func Get(name string) gpucore.Driver {
	registryMu.RLock()
	factory, ok := drivers[name]
	registryMu.RUnlock()

	if !ok {
		return nil
	}
	return factory()
}

// Open opens a device on the named driver.
func Open(name string) (gpucore.Device, error) {
	d := Get(name)
	if d == nil {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := d.Open()
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return dev, nil
}

// OpenDefault opens a device on the best available driver.
// Drivers are tried in priority order; a driver that fails to open is
// logged and skipped. The returned error joins every failure.
func OpenDefault() (gpucore.Device, error) {
	registryMu.RLock()
	names := orderedLocked()
	registryMu.RUnlock()

	var errs []error
	for _, name := range names {
		dev, err := Open(name)
		if err == nil {
			slogger().Info("backend: device opened", "driver", name, "device", dev.Info().Name)
			return dev, nil
		}
		slogger().Warn("backend: driver unavailable, trying next", "driver", name, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNoDriver
	}
	return nil, fmt.Errorf("%w: %w", ErrNoDriver, errors.Join(errs...))
}
