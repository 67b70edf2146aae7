// Package workers provides the shared worker pool that runs lifecycle
// commands and bundle imports off the request path.
package workers
