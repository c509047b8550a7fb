package rvswd

import (
	"runtime"
	"sync"
	"unsafe"
	"weak"
)

// registry is the process-scoped registry of live Target handles (§9).
// Handles register on Create and deregister on Destroy; lookup never
// confers ownership — entries are weak references so a Target that is
// garbage-collected without an explicit Destroy call does not keep the
// registry alive indefinitely.
var registry = struct {
	mu      sync.Mutex
	handles map[uintptr]weak.Pointer[Target]
}{handles: make(map[uintptr]weak.Pointer[Target])}

func targetKey(t *Target) uintptr {
	return uintptr(unsafe.Pointer(t))
}

func registerTarget(t *Target) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.handles[targetKey(t)] = weak.Make(t)
}

func deregisterTarget(t *Target) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.handles, targetKey(t))
}

// LiveTargets returns the Targets currently registered and still
// reachable. Entries whose Target has already been collected are pruned
// as they are encountered.
func LiveTargets() []*Target {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	out := make([]*Target, 0, len(registry.handles))
	for k, w := range registry.handles {
		if t := w.Value(); t != nil {
			out = append(out, t)
		} else {
			delete(registry.handles, k)
		}
	}
	runtime.KeepAlive(out)
	return out
}
