package domain

import (
	"math"
	"time"
)

// ThrottleStatus is the bucket report a cost-metered API returns with each response
type ThrottleStatus struct {
	MaximumAvailable   float64 `json:"maximumAvailable"`
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
}

// QueryCost is the cost report attached to a GraphQL response
type QueryCost struct {
	RequestedQueryCost float64        `json:"requestedQueryCost"`
	ActualQueryCost    *float64       `json:"actualQueryCost"`
	ThrottleStatus     ThrottleStatus `json:"throttleStatus"`
}

// ThrottleState is the local model of a token bucket, mirrored from the last
// server report and projected forward in time between reports.
type ThrottleState struct {
	MaximumAvailable     float64
	CurrentlyAvailable   float64
	RestoreRatePerSecond float64
	LastObservedAt       time.Time
}

// NewThrottleState seeds a state from a server report observed at now
func NewThrottleState(status ThrottleStatus, now time.Time) ThrottleState {
	return ThrottleState{
		MaximumAvailable:     status.MaximumAvailable,
		CurrentlyAvailable:   status.CurrentlyAvailable,
		RestoreRatePerSecond: status.RestoreRate,
		LastObservedAt:       now,
	}
}

// ProjectedAvailable estimates the budget available at now:
// min(max, current + restoreRate * elapsed).
func (s ThrottleState) ProjectedAvailable(now time.Time) float64 {
	elapsed := now.Sub(s.LastObservedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(s.MaximumAvailable, s.CurrentlyAvailable+s.RestoreRatePerSecond*elapsed)
}

// WaitFor returns how long to wait from now until at least required points are
// projected to be available. required is capped at MaximumAvailable. ok is false
// when the bucket never refills (restore rate <= 0) and the budget is short.
func (s ThrottleState) WaitFor(required float64, now time.Time) (wait time.Duration, ok bool) {
	if s.MaximumAvailable > 0 && required > s.MaximumAvailable {
		required = s.MaximumAvailable
	}
	available := s.ProjectedAvailable(now)
	if available >= required {
		return 0, true
	}
	if s.RestoreRatePerSecond <= 0 {
		return 0, false
	}
	seconds := (required - available) / s.RestoreRatePerSecond
	return time.Duration(math.Ceil(seconds * float64(time.Second))), true
}
