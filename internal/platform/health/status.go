package health

import "time"

// State is the overall health of the service.
type State int

const (
	StateHealthy State = iota
	// StateDegraded means Redis is unreachable; votes still work but request
	// quotas are not enforced.
	StateDegraded
	// StateUnavailable means the database is unreachable.
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnavailable:
		return "unavailable"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Report is the result of one check.
type Report struct {
	State     State             `json:"state"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checkedAt"`
}
