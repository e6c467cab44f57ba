package pipeline

// State is the orchestrator's position in the certificate lifecycle.
type State int

// Pipeline states. Failed is reachable from any non-terminal state.
const (
	StateIdle State = iota
	StateEvaluating
	StateAcquiring
	StateChainBuilding
	StateVerifying
	StateDeploying
	StateRestarting
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateAcquiring:
		return "acquiring"
	case StateChainBuilding:
		return "chain-building"
	case StateVerifying:
		return "verifying"
	case StateDeploying:
		return "deploying"
	case StateRestarting:
		return "restarting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
