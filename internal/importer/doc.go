// Package importer installs packaged services into the workspace.
//
// A bundle is a zip archive holding exactly one top-level directory. The
// Workflow stages it in a temp workspace, extracts it, checks the layout,
// refuses to replace a service whose agent is online, and moves the
// directory into the workspace root. Progress, refusals and failures are
// reported as notices keyed by the operation id; callers only see errors
// raised before the pipeline is scheduled.
package importer
