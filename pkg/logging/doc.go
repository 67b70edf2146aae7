// Package logging provides the structured, subsystem-tagged logger used by
// every berth component.
//
// It is a thin layer over Go's log/slog. Each call names the subsystem that
// produced it so that output from the bus, the agent directory, the import
// workflow and the transports can be filtered independently.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stdout)
//
//	logging.Info("Workspace", "Scanned %d services", n)
//	logging.Warn("Agents", "Session for %s ended: %s", sid, cause)
//	logging.Error("Import", err, "Failed to extract bundle %s", id)
//
// Levels are filtered at the handler, so disabled messages are never
// formatted. The package is safe for concurrent use.
package logging
