// Package notify pushes control plane events to management clients.
//
// The Gateway subscribes to the bus and fans lifecycle transitions, operator
// notices, operation progress and catalog changes out to every connected
// Session as Message values. Clients never send requests on this channel.
// The Notifier is the publishing side used by the lifecycle controller and
// the import workflow.
package notify
