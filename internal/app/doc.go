// Package app bootstraps and runs the berth control plane.
//
// NewApplication initializes logging, loads the configuration, ensures the
// workspace root exists and wires the components in dependency order:
//
//	bus -> agent directory -> lifecycle tracker -> service registry ->
//	notifier and gateway -> worker pool -> launcher -> controller ->
//	importer -> workspace watcher -> HTTP server
//
// Run starts them, autostarts services whose settings ask for it, sweeps
// expired lifecycle guards on a timer and tells systemd when it is ready.
// On SIGINT, SIGTERM or context cancellation the components are stopped in
// reverse order.
package app
