// Package lifecycle owns the per-service start/stop state machine.
//
// The Tracker keeps two guard sets, starting and stopping, and derives the
// visible status of a service from them and agent liveness on every read:
//
//	STOPPED --start--> STARTING --agent online--> RUNNING
//	RUNNING --stop--> STOPPING --agent offline--> STOPPED
//	STARTING --failure or timeout--> STOPPED
//	STOPPING --stop failure--> RUNNING
//
// The Controller executes operator commands on top of the Tracker. A second
// start or stop of the same service while one is in flight is refused with
// an api.ConflictError. A service whose stop fails StuckThreshold times in a
// row is flagged as stuck until it goes offline, and guards older than
// GuardTTL are dropped by Sweep.
package lifecycle
