// Package session wires store, builder, preview and persistence into a
// single-threaded editing session. Callers send events with Dispatch or Do;
// the goroutine running Run applies them in order and persistence results
// come back through the same queue, so a stale load can never overwrite a
// newer one.
package session
