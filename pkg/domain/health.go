package domain

import (
	"fmt"
	"time"
)

// HealthStatusValue represents the health state of a pipeline
type HealthStatusValue string

const (
	HealthHealthy   HealthStatusValue = "healthy"
	HealthDegraded  HealthStatusValue = "degraded"
	HealthUnhealthy HealthStatusValue = "unhealthy"
	HealthUnknown   HealthStatusValue = "unknown"
)

// String returns the string representation of the health status
func (h HealthStatusValue) String() string {
	return string(h)
}

// IsHealthy returns true if the status represents a healthy state
func (h HealthStatusValue) IsHealthy() bool {
	return h == HealthHealthy
}

// HealthStatus represents the health of one pipeline
type HealthStatus struct {
	Status    HealthStatusValue `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Component string            `json:"component,omitempty"`

	LastTick      time.Time `json:"last_tick,omitempty"`
	LastErrorText string    `json:"last_error,omitempty"`

	Ticks         int64 `json:"ticks"`
	PointsWritten int64 `json:"points_written"`
	ErrorCount    int64 `json:"error_count"`
}

// NewHealthStatus creates a new health status with the given values
func NewHealthStatus(status HealthStatusValue, message string) *HealthStatus {
	return &HealthStatus{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthyStatus creates a healthy status
func NewHealthyStatus(message string) *HealthStatus {
	return NewHealthStatus(HealthHealthy, message)
}

// NewUnhealthyStatus creates an unhealthy status with error
func NewUnhealthyStatus(message string, err error) *HealthStatus {
	status := NewHealthStatus(HealthUnhealthy, message)
	if err != nil {
		status.LastErrorText = err.Error()
	}
	return status
}

// String returns a one-line summary.
func (h *HealthStatus) String() string {
	return fmt.Sprintf("%s: %s (ticks=%d errors=%d)", h.Status, h.Message, h.Ticks, h.ErrorCount)
}
