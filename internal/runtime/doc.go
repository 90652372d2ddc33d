// Package runtime wires storage, config, and the facade into a single
// process instance of Qakka, the shape spec.md §4.5 calls "a Process":
// one Pebble database, one facade, one body-GC job, restored queues, and
// (via internal/transport/http) the server that exposes it.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg}, nil)
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
package runtime
