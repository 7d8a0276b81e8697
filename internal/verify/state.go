package verify

// State is a task's position in the verification pipeline. Transitions
// only move forward; any stage failure jumps straight to a terminal
// state and no later stage is attempted.
type State string

const (
	StatePending      State = "PENDING"
	StateBuilt        State = "BUILT"
	StateContainerUp  State = "CONTAINER_UP"
	StateAgentPatched State = "AGENT_PATCHED"
	StateTestPatched  State = "TEST_PATCHED"
	StateTested       State = "TESTED"
	StateDone         State = "DONE"

	// Terminal failure states reachable from early stages.
	StateSkipped     State = "SKIPPED"
	StateBuildFailed State = "BUILD_FAILED"
)

// Terminal returns true if no further stage runs after this state.
func (s State) Terminal() bool {
	return s == StateDone || s == StateSkipped || s == StateBuildFailed
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
