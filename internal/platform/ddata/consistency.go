package ddata

import (
	"fmt"
	"time"
)

// ConsistencyLevel selects how many replicas must acknowledge a write.
type ConsistencyLevel string

const (
	// LevelLocal acknowledges once the local replica applied the write.
	LevelLocal ConsistencyLevel = "local"
	// LevelMajority waits for a strict majority of all replicas.
	LevelMajority ConsistencyLevel = "majority"
	// LevelAll waits for every replica.
	LevelAll ConsistencyLevel = "all"
)

// WriteConsistency is the acknowledgement policy of a replicated write.
type WriteConsistency struct {
	Level   ConsistencyLevel
	Timeout time.Duration
}

// WriteLocal acknowledges after the local update.
func WriteLocal() WriteConsistency {
	return WriteConsistency{Level: LevelLocal}
}

// WriteMajority waits for a majority of replicas within timeout.
func WriteMajority(timeout time.Duration) WriteConsistency {
	return WriteConsistency{Level: LevelMajority, Timeout: timeout}
}

// WriteAll waits for every replica within timeout.
func WriteAll(timeout time.Duration) WriteConsistency {
	return WriteConsistency{Level: LevelAll, Timeout: timeout}
}

// ParseConsistency maps a configuration value onto a WriteConsistency.
func ParseConsistency(level string, timeout time.Duration) (WriteConsistency, error) {
	switch ConsistencyLevel(level) {
	case LevelLocal:
		return WriteLocal(), nil
	case LevelMajority:
		return WriteMajority(timeout), nil
	case LevelAll, "":
		return WriteAll(timeout), nil
	default:
		return WriteConsistency{}, fmt.Errorf("unknown write consistency %q", level)
	}
}

// required returns how many replicas, including the local one, must
// acknowledge a write in a cluster of size total.
func (c WriteConsistency) required(total int) int {
	switch c.Level {
	case LevelMajority:
		return total/2 + 1
	case LevelAll:
		return total
	default:
		return 1
	}
}

func (c WriteConsistency) String() string {
	if c.Level == "" {
		return string(LevelLocal)
	}
	return string(c.Level)
}
