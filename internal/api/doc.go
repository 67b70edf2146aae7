// Package api holds the types shared by every berth component.
//
// The orchestration core is split into small packages (events, agents,
// lifecycle, workspace, notify, importer) that never import each other's
// internals. Everything they exchange lives here: service descriptors and
// groups, the derived service status, lifecycle transitions, the payloads
// carried on the event bus, and the error taxonomy.
//
// # Service status
//
// A service's status is never stored. It is computed on read from two
// independent signals:
//
//   - the lifecycle guard sets (a start or stop is in flight)
//   - agent liveness (the in-process agent holds an open session)
//
// ServiceStatus therefore only has the four values STARTING, RUNNING,
// STOPPING and STOPPED.
//
// # Errors
//
// The error taxonomy follows the typed-error pattern used throughout the
// project: each kind is a struct implementing error with an Is* helper
// that unwraps.
//
//   - ConfigurationError: the workspace root or configuration is unusable (fatal)
//   - ConflictError: an operation for the same key is already in progress (recoverable)
//   - ValidationError: a bundle or request is malformed (recoverable)
//   - NotFoundError: a service id or name does not resolve
//
// Example:
//
//	if _, err := importer.Receive("svc.zip", body); api.IsConflict(err) {
//	    // reject, nothing changed
//	}
package api
