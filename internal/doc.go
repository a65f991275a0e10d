// Package internal contains the implementation packages of the athena engine.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - request: HTTP/1.x request parsing with lazily computed accessors
//   - response: status codes, ordered headers, cookies and serialization
//   - registry: path to page file mapping with accessibility and caching
//   - renderer: <#> template expansion that fails closed
//   - server: TCP accept loop, connection lifecycle and hook dispatch
//   - workerpool: fixed worker pool used by the pool scheduling mode
//   - app: wiring from configuration to a running engine
//   - config: Viper backed configuration with validation
//   - admin: side-channel HTTP endpoint for health and page listing
//   - watcher: debounced page file watching that invalidates the registry
//   - websocket: page change notifications for admin clients
//   - logging, metrics, telemetry: structured logs and OpenTelemetry
//
// # Connection Flow
//
// A connection is read once, parsed into a request.Request, passed to the
// request hook, answered with the response hook's response.Response and
// closed. Hooks are fixed when the server is constructed. A panicking hook
// closes its connection without affecting the rest of the engine.
//
// # Inter-Package Communication
//
//   - Registry publishes page change events to the websocket hub
//   - Watcher turns file system events into registry invalidations
//   - Server reports connection outcomes to the metrics recorder
//
// For detailed documentation, see the individual package documentation.
package internal
