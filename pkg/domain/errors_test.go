package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("source nic: %w", NewValidationError("device", "eth9", "does not exist"))
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "source nic: invalid device eth9: does not exist", err.Error())

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, "device", ve.Field)

	assert.Equal(t, "invalid interval: is required", NewValidationError("interval", nil, "is required").Error())
	assert.False(t, IsValidationError(errors.New("boom")))
}

func TestSinkWriteErrorUnwraps(t *testing.T) {
	cause := errors.New("503 Service Unavailable")
	err := &SinkWriteError{Sink: "influx", Measurement: "nic_throughput", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "influx rejected nic_throughput point")
}

func TestHealthStatus(t *testing.T) {
	h := NewUnhealthyStatus("aggregation failing", errors.New("map gone"))
	assert.Equal(t, HealthUnhealthy, h.Status)
	assert.False(t, h.Status.IsHealthy())
	assert.Equal(t, "map gone", h.LastErrorText)
	assert.True(t, NewHealthyStatus("ok").Status.IsHealthy())
}
