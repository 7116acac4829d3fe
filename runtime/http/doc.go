// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http runs an [net/http.Server] as part of a service's lifecycle.
//
// A [Runtime] marks the shared [lifecycle.State] as started once it begins
// serving. When its context is cancelled it first marks the state as stopping,
// so readiness probes fail, then waits the configured drain delay before
// gracefully shutting the server down within a bounded timeout.
//
// Every request is traced with otelhttp before reaching the wrapped handler.
//
// # Default Values
//
//   - ReadTimeout: 5 seconds
//   - ReadHeaderTimeout: 2 seconds
//   - WriteTimeout: 10 seconds
//   - IdleTimeout: 120 seconds
//   - MaxHeaderBytes: 1048576 bytes (1 MB)
//   - ShutdownTimeout: 15 seconds
//   - DrainDelay: 0
package http
