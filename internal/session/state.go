package session

// State is the lifecycle state of a download session.
type State int

const (
	Downloading State = iota
	Paused
	Complete
	Cancelled
	Error
)

var stateNames = [...]string{
	Downloading: "Downloading",
	Paused:      "Paused",
	Complete:    "Complete",
	Cancelled:   "Cancelled",
	Error:       "Error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions can leave s.
func (s State) Terminal() bool { return s == Complete || s == Cancelled }

// Trigger is an event that may move a session between states.
type Trigger int

const (
	TriggerPause Trigger = iota
	TriggerResume
	TriggerCancel
	// TriggerFinish fires when every declared byte has been written.
	TriggerFinish
	// TriggerFail fires on a fetch, size or I/O failure inside the worker.
	TriggerFail
)

var triggerNames = [...]string{
	TriggerPause:  "pause",
	TriggerResume: "resume",
	TriggerCancel: "cancel",
	TriggerFinish: "finish",
	TriggerFail:   "fail",
}

func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return "unknown"
	}
	return triggerNames[t]
}

type edge struct {
	from State
	on   Trigger
}

// transitions is the complete table of legal moves. Anything absent is a no-op.
var transitions = map[edge]State{
	{Downloading, TriggerPause}:  Paused,
	{Downloading, TriggerFinish}: Complete,
	{Downloading, TriggerCancel}: Cancelled,
	{Downloading, TriggerFail}:   Error,
	{Paused, TriggerResume}:      Downloading,
	{Paused, TriggerCancel}:      Cancelled,
	{Error, TriggerResume}:       Downloading,
	{Error, TriggerCancel}:       Cancelled,
}

// Next returns the state reached from s on t and whether the move is legal.
// When it is not, s is returned unchanged.
func Next(s State, t Trigger) (State, bool) {
	to, ok := transitions[edge{s, t}]
	if !ok {
		return s, false
	}
	return to, true
}
