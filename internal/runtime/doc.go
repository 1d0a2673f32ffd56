// Package runtime wires the store backend, the live process, and the
// periodic reduction cycle into a single-node Stele instance. It exposes
// Open/Close plus the lifecycle operations a server or CLI builds on.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg, Engine: engine, InitialBundle: bundle})
//	defer rt.Close()
//	resp, _ := rt.Process().ProcessAppEvent([]byte(`{"add":1}`))
package runtime
