package downloader

// Event represents a state change or progress update from a downloader.
//
// For terminal events (Complete, Cancelled) the reconciler records the final
// status and ignores anything that arrives afterwards. Progress events carry
// the byte counters and only touch Size and Transferred.
type Event struct {
	ID       string
	Type     EventType
	Progress *Progress
	// Err describes the failure of an EventFailed.
	Err string
}

// EventType defines the set of events that downloaders may emit.
type EventType string

const (
	EventStart     EventType = "Start"
	EventPaused    EventType = "Paused"
	EventCancelled EventType = "Cancelled"
	EventComplete  EventType = "Complete"
	EventFailed    EventType = "Failed"
	EventProgress  EventType = "Progress"
)

// Progress carries byte counters. Total is -1 while the size is unknown.
type Progress struct {
	Completed int64
	Total     int64
}

// Droppable reports whether losing e is harmless because a later event
// supersedes it.
func (e Event) Droppable() bool { return e.Type == EventProgress }
