package core

import (
	"log"

	"restep/internal/metrics"
)

// callHook runs user code on the core thread. A panic is logged and counted
// instead of unwinding the simulation loop.
func callHook(hook string, id uint64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Recovered panic in %s hook (entity %d): %v", hook, id, r)
			metrics.RecordHookPanic(hook)
		}
	}()
	fn()
}
