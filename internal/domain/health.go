package domain

import "time"

// HealthStatus grades the availability of a dependency or the whole system.
type HealthStatus string

const (
	// HealthStatusOK indicates the dependency responded normally.
	HealthStatusOK HealthStatus = "ok"
	// HealthStatusDegraded indicates the dependency responded with errors.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusError indicates the dependency timed out or is unreachable.
	HealthStatusError HealthStatus = "error"
)

// SystemHealthCheck captures a single dependency probe result.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes for readiness responses.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
