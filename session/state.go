package session

// RadioState is the modem readiness tier reported to the host.
type RadioState int

const (
	// RadioOff is the initial state and the state after a power-off request
	RadioOff RadioState = iota
	// RadioUnavailable means the AT channel is closed or timed out
	RadioUnavailable
	// RadioAwaitingReadiness means the radio is on but the identity module has not been polled yet
	RadioAwaitingReadiness
	// RadioReady means the radio is on and the identity module reported ready
	RadioReady
	// RadioLockedOrAbsent means the identity module is locked or missing
	RadioLockedOrAbsent
)

func (s RadioState) String() string {
	switch s {
	case RadioOff:
		return "Off"
	case RadioUnavailable:
		return "Unavailable"
	case RadioAwaitingReadiness:
		return "AwaitingReadiness"
	case RadioReady:
		return "Ready"
	case RadioLockedOrAbsent:
		return "LockedOrAbsent"
	default:
		return "Unknown"
	}
}

// legal reports whether the radio may move from s to next.
func (s RadioState) legal(next RadioState) bool {
	switch next {
	case RadioOff, RadioUnavailable:
		return true
	case RadioAwaitingReadiness:
		return s == RadioOff
	case RadioReady, RadioLockedOrAbsent:
		return s == RadioAwaitingReadiness
	default:
		return false
	}
}

// SelectionMode is the network selection mode shown to the host.
type SelectionMode int

const (
	SelectionAutomatic SelectionMode = 0
	SelectionManual    SelectionMode = 1
)

func (m SelectionMode) String() string {
	if m == SelectionAutomatic {
		return "Automatic"
	}
	return "Manual"
}

// Screen gates the periodic registration and signal polling.
type Screen int

const (
	ScreenOff Screen = iota
	ScreenOn
)

func (s Screen) String() string {
	if s == ScreenOn {
		return "On"
	}
	return "Off"
}

// DataCallState tracks the packet session.
type DataCallState int

const (
	DataDisconnected DataCallState = iota
	DataConnected
)

func (s DataCallState) String() string {
	if s == DataConnected {
		return "Connected"
	}
	return "Disconnected"
}

// Activation is the over-the-air provisioning outcome.
type Activation int

const (
	NotActivated Activation = iota
	Activated
	// ActivationFailed is terminal for the process lifetime
	ActivationFailed
)

func (a Activation) String() string {
	switch a {
	case NotActivated:
		return "No"
	case Activated:
		return "Yes"
	case ActivationFailed:
		return "Fail"
	default:
		return "Unknown"
	}
}

// MaxActivationRetries bounds automatic activation attempts per process run.
const MaxActivationRetries = 6
