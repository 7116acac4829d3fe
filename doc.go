// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package keel runs HTTP services with a fixed request pipeline, resilient
// outbound calls and an explicit lifecycle.
//
// An application is described by a config type and an [AppBuilder]. [Run]
// reads the config sources, validates the decoded config and builds the
// [App] before running it:
//
//	err := keel.Run(ctx, keel.AppBuilderFunc[Config](build), config.FromYaml(f))
//
// The sub packages provide the pieces a service is assembled from:
//
//   - pipeline: correlation, error translation, latency logging and security headers
//   - resilience: per attempt timeouts, retries with jittered backoff and circuit breaking
//   - lifecycle: started, stopping and ready flags plus startup warmup
//   - health: liveness and readiness probes over HTTP and gRPC
//   - runtime/http: graceful HTTP serving tied to the lifecycle
package keel
