// Package agents tracks the liveness of the in-process agents that run inside
// every managed service.
//
// An agent opens a session to the control plane when its service has
// started. The Directory records the sid as online for as long as a session
// is bound and publishes lifecycle events on the transition edges only:
// AFTER_STARTED when a sid comes online, AFTER_STOPPED on an explicit
// shutdown, EXCEPTION_OFFLINE when the transport ends without one.
//
// Liveness timeouts belong to the transport; the directory reacts only to
// the resulting session close.
package agents
