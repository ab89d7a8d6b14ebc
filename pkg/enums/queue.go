package enums

import "fmt"

// JobType maps a queued job to the external system that produced it.
type JobType string

const (
	JobTypeOrders    JobType = "orders"
	JobTypeProducts  JobType = "products"
	JobTypeCustomers JobType = "customers"
	JobTypeCoinRecalc JobType = "coin_recalc"
)

var validJobTypes = []JobType{
	JobTypeOrders,
	JobTypeProducts,
	JobTypeCustomers,
	JobTypeCoinRecalc,
}

// IsValid reports whether the value matches a known job type.
func (j JobType) IsValid() bool {
	for _, candidate := range validJobTypes {
		if candidate == j {
			return true
		}
	}
	return false
}

// Priority returns the processing priority; lower values run first. Orders
// affect user-facing stats most directly, so they outrank products and
// customers.
func (j JobType) Priority() int {
	switch j {
	case JobTypeOrders, JobTypeCoinRecalc:
		return 1
	case JobTypeProducts:
		return 2
	default:
		return 3
	}
}

// ParseJobType converts raw input into a JobType.
func ParseJobType(value string) (JobType, error) {
	candidate := JobType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid job type %q", value)
	}
	return candidate, nil
}

// JobStatus maps to the job state machine:
// waiting -> active -> (completed | waiting on retryable failure | failed).
type JobStatus string

const (
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

var validJobStatuses = []JobStatus{
	JobStatusWaiting,
	JobStatusActive,
	JobStatusCompleted,
	JobStatusFailed,
}

// IsValid reports whether the value matches a known job status.
func (j JobStatus) IsValid() bool {
	for _, candidate := range validJobStatuses {
		if candidate == j {
			return true
		}
	}
	return false
}
