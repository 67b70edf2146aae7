// Package client is the command-line side of the berth server API.
//
// It lists services, sends start and stop commands, uploads bundles and
// follows the push stream. Commands are accepted asynchronously; their
// outcome is reported on the stream that Watch consumes.
package client
