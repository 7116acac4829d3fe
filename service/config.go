// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/z5labs/keel/config"
	"github.com/z5labs/keel/health/pgcheck"
	"github.com/z5labs/keel/logging"
	"github.com/z5labs/keel/pipeline"
	"github.com/z5labs/keel/resilience"
	"github.com/z5labs/keel/telemetry"
)

// Config is the complete service configuration.
type Config struct {
	Environment  pipeline.Environment `config:"environment"`
	HTTP         HTTPConfig           `config:"http"`
	GRPC         GRPCConfig           `config:"grpc"`
	Logging      logging.Config       `config:"logging"`
	Baseline     BaselineConfig       `config:"baseline"`
	OutboundHTTP resilience.Config    `config:"outbound_http"`
	Warmup       WarmupConfig         `config:"warmup"`
	Database     pgcheck.Config       `config:"database"`
	OTel         telemetry.Config     `config:"otel"`
	Demo         DemoConfig           `config:"demo"`
}

type HTTPConfig struct {
	Port              uint          `config:"port"`
	ReadTimeout       time.Duration `config:"read_timeout"`
	ReadHeaderTimeout time.Duration `config:"read_header_timeout"`
	WriteTimeout      time.Duration `config:"write_timeout"`
	IdleTimeout       time.Duration `config:"idle_timeout"`
	ShutdownTimeout   time.Duration `config:"shutdown_timeout"`
	DrainDelay        time.Duration `config:"drain_delay"`
}

// GRPCConfig controls the gRPC health server. A zero HealthPort disables it.
type GRPCConfig struct {
	HealthPort uint `config:"health_port"`
}

// BaselineConfig toggles and tunes the request pipeline stages.
type BaselineConfig struct {
	CorrelationHeader              string   `config:"correlation_header"`
	IncludeTraceID                 bool     `config:"include_trace_id"`
	EnableRequestLogging           bool     `config:"enable_request_logging"`
	SlowRequestThresholdMs         int      `config:"slow_request_threshold_ms"`
	SuppressRequestLogPathPrefixes []string `config:"suppress_request_log_path_prefixes"`
	LogRequestHeaders              bool     `config:"log_request_headers"`
	EnableSecurityHeaders          bool     `config:"enable_security_headers"`
}

// SlowRequestThreshold is SlowRequestThresholdMs as a time.Duration.
func (c BaselineConfig) SlowRequestThreshold() time.Duration {
	return time.Duration(c.SlowRequestThresholdMs) * time.Millisecond
}

type WarmupConfig struct {
	Delay time.Duration `config:"delay"`
}

type DemoConfig struct {
	UpstreamURL string `config:"upstream_url"`
}

// InvalidValueError reports a single config key holding an unusable value.
type InvalidValueError struct {
	Key    string
	Value  any
	Reason string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %v %s", e.Key, e.Value, e.Reason)
}

// Validate reports every invalid value at once.
func (c Config) Validate() error {
	errs := []error{
		c.Logging.Validate(),
		c.OutboundHTTP.Validate(),
		c.Database.Validate(),
		c.OTel.Validate(),
	}
	if c.HTTP.Port > 65535 {
		errs = append(errs, InvalidValueError{Key: "http.port", Value: c.HTTP.Port, Reason: "is not a valid port"})
	}
	if c.GRPC.HealthPort > 65535 {
		errs = append(errs, InvalidValueError{Key: "grpc.health_port", Value: c.GRPC.HealthPort, Reason: "is not a valid port"})
	}
	if c.GRPC.HealthPort != 0 && c.GRPC.HealthPort == c.HTTP.Port {
		errs = append(errs, InvalidValueError{Key: "grpc.health_port", Value: c.GRPC.HealthPort, Reason: "conflicts with http.port"})
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, InvalidValueError{Key: "http.shutdown_timeout", Value: c.HTTP.ShutdownTimeout, Reason: "must be positive"})
	}
	if c.HTTP.DrainDelay < 0 {
		errs = append(errs, InvalidValueError{Key: "http.drain_delay", Value: c.HTTP.DrainDelay, Reason: "must not be negative"})
	}
	if c.Baseline.CorrelationHeader == "" {
		errs = append(errs, InvalidValueError{Key: "baseline.correlation_header", Value: `""`, Reason: "must not be empty"})
	}
	if c.Baseline.SlowRequestThresholdMs <= 0 {
		errs = append(errs, InvalidValueError{Key: "baseline.slow_request_threshold_ms", Value: c.Baseline.SlowRequestThresholdMs, Reason: "must be positive"})
	}
	if c.Warmup.Delay < 0 {
		errs = append(errs, InvalidValueError{Key: "warmup.delay", Value: c.Warmup.Delay, Reason: "must not be negative"})
	}
	if c.Demo.UpstreamURL == "" {
		errs = append(errs, InvalidValueError{Key: "demo.upstream_url", Value: `""`, Reason: "must not be empty"})
	}
	return errors.Join(errs...)
}

// Defaults is the config source every other source overrides.
func Defaults() config.Map {
	outbound := resilience.DefaultConfig()

	return config.Map{
		"environment": string(pipeline.Production),
		"http": map[string]any{
			"port":                8080,
			"read_timeout":        "5s",
			"read_header_timeout": "2s",
			"write_timeout":       "10s",
			"idle_timeout":        "120s",
			"shutdown_timeout":    "15s",
			"drain_delay":         "0s",
		},
		"grpc": map[string]any{
			"health_port": 0,
		},
		"logging": map[string]any{
			"level":  "INFO",
			"format": string(logging.FormatJSON),
		},
		"baseline": map[string]any{
			"correlation_header":                 "X-Correlation-Id",
			"include_trace_id":                   true,
			"enable_request_logging":             true,
			"slow_request_threshold_ms":          750,
			"suppress_request_log_path_prefixes": []string{"/health", "/metrics"},
			"log_request_headers":                false,
			"enable_security_headers":            true,
		},
		"outbound_http": map[string]any{
			"timeout_ms":         outbound.TimeoutMs,
			"max_retry_attempts": outbound.MaxRetryAttempts,
			"base_delay_ms":      outbound.BaseDelayMs,
			"circuit_breaker": map[string]any{
				"enabled":      false,
				"trip_after":   outbound.CircuitBreaker.TripAfter,
				"open_timeout": outbound.CircuitBreaker.OpenTimeout.String(),
			},
		},
		"warmup": map[string]any{
			"delay": "2s",
		},
		"database": map[string]any{
			"connection_string":       "",
			"health_check_timeout_ms": 500,
		},
		"otel": map[string]any{
			"service_name":    "keel",
			"traces_exporter": string(telemetry.ExporterNone),
			"metrics_enabled": true,
		},
		"demo": map[string]any{
			"upstream_url": "https://api.ipify.org?format=json",
		},
	}
}
