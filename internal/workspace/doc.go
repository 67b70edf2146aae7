// Package workspace discovers services from the workspace directory.
//
// Each immediate subdirectory of the workspace root is a service unless it
// is hidden, its name contains whitespace, or it is in the exclude list.
// A service is identified by its sid, derived from the canonical path of
// its directory, and may carry a service.yaml settings file declaring its
// group, launch command and autostart flag.
//
// The filesystem is the only source of truth: every List call rescans it.
package workspace
