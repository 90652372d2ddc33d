// Package serverrun implements the `qakka serve` subcommand: open the
// runtime, start the facade's background loops, serve the HTTP surface
// (internal/transport/http), and, if a config file is given, watch it for
// changes so tunables can be reloaded without a restart, until the process
// receives a shutdown signal.
//
// Example:
//
//	opts := serverrun.Options{DataDir: "./data", HTTPAddr: ":8080", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun
