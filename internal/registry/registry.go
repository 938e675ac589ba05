// Package registry is a process-wide lookup of the scheduler's running
// components, generalizing the package-level servers map rest/server keeps
// for its own Server instances to the dispatch core, execution core, and
// catalog store that make up this process.
package registry

import (
	"sync"

	"github.com/nandlabs/jobsched/internal/catalog"
	"github.com/nandlabs/jobsched/internal/dispatch"
	"github.com/nandlabs/jobsched/internal/execution"
)

var (
	mutex         sync.RWMutex
	dispatchCore  *dispatch.Core
	executionCore *execution.Pool
	catalogStore  catalog.Store
)

// SetDispatchCore registers the process's dispatch core.
func SetDispatchCore(c *dispatch.Core) {
	mutex.Lock()
	defer mutex.Unlock()
	dispatchCore = c
}

// DispatchCore returns the registered dispatch core, or nil if none is set.
func DispatchCore() *dispatch.Core {
	mutex.RLock()
	defer mutex.RUnlock()
	return dispatchCore
}

// SetExecutionCore registers the process's execution core.
func SetExecutionCore(p *execution.Pool) {
	mutex.Lock()
	defer mutex.Unlock()
	executionCore = p
}

// ExecutionCore returns the registered execution core, or nil if none is set.
func ExecutionCore() *execution.Pool {
	mutex.RLock()
	defer mutex.RUnlock()
	return executionCore
}

// SetCatalogStore registers the process's catalog store handle.
func SetCatalogStore(s catalog.Store) {
	mutex.Lock()
	defer mutex.Unlock()
	catalogStore = s
}

// CatalogStore returns the registered catalog store, or nil if none is set.
func CatalogStore() catalog.Store {
	mutex.RLock()
	defer mutex.RUnlock()
	return catalogStore
}

// Ready reports whether all three components are registered, i.e. the
// process has finished start-up wiring.
func Ready() bool {
	mutex.RLock()
	defer mutex.RUnlock()
	return dispatchCore != nil && executionCore != nil && catalogStore != nil
}
