package agent

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConfiguring
	StateReady
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// acceptsInput reports whether client input may be forwarded upstream.
func (s State) acceptsInput() bool {
	return s == StateConfiguring || s == StateReady
}

func (s State) terminal() bool {
	return s == StateClosed || s == StateErrored
}
