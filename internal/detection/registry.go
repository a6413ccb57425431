package detection

import (
	"fmt"
	"sort"
	"sync"
)

// BackendOpenCV reads OpenCV Haar/LBP XML cascades through gocv. It is only
// functional in builds tagged gocv.
const BackendOpenCV = "opencv"

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Loader)
)

// Register makes a backend loader available by name. Registering the same
// name twice replaces the earlier loader.
func Register(l Loader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[l.Name()] = l
}

// Lookup returns the loader registered under name.
func Lookup(name string) (Loader, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	l, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown detector backend: %s (available: %v)", name, backendsLocked())
	}
	return l, nil
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return backendsLocked()
}

func backendsLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
