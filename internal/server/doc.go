// Package server exposes the control plane over HTTP.
//
// Routes:
//
//	GET /ws/agent?sid=<sid>  agent handshake websocket
//	GET /ws/events           push stream for management clients
//	PUT /bundles/{name}      bundle upload, answered with 202 and the operation id
//	GET /metrics             Prometheus metrics
//	GET /healthz             liveness probe
//	GET /services            services with their status
//	GET /services/tree       services grouped
//	POST /services/{sid}/start
//	POST /services/{sid}/stop
//
// Agents send {"type":"heartbeat"} and {"type":"shutdown"}. A connection
// that ends without a shutdown message marks the service offline with the
// detected cause. Start and stop answer 202 once accepted and 409 when the
// service is busy or already in the requested state.
//
// Both websockets are pinged every PingInterval.
package server
