package asset

import "time"

type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// CanTransition reports whether a worker may move from s to next.
func (s State) CanTransition(next State) bool {
	if next == StateRedundant {
		return s != StateRedundant
	}
	switch s {
	case StateNew:
		return next == StateInstalling
	case StateInstalling:
		return next == StateInstalled
	case StateInstalled:
		return next == StateActivating
	case StateActivating:
		return next == StateActivated
	}
	return false
}

// Strategy selects the fetch policy of a deployment. Exactly one runs per worker.
type Strategy string

const (
	StrategyNetworkFirst Strategy = "network-first"
	StrategyCacheFirst   Strategy = "cache-first"
)

func (s Strategy) Valid() bool {
	return s == StrategyNetworkFirst || s == StrategyCacheFirst
}

// Lifecycle is a point-in-time view of one worker instance.
type Lifecycle struct {
	ID          string     `json:"id"`
	State       State      `json:"state"`
	CacheName   string     `json:"cache_name"`
	Strategy    Strategy   `json:"strategy"`
	InstalledAt *time.Time `json:"installed_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}
