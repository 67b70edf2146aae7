// Package launcher spawns and stops service processes.
//
// A service is launched from the command, args and env of its settings
// file, in its own directory and process group. The launcher exports the
// service's sid and the agent endpoint so the in-process agent can report
// back; liveness itself is only ever derived from that agent session.
package launcher
