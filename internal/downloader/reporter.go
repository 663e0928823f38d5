package downloader

// Reporter publishes downloader events.
type Reporter interface {
	Report(Event)
}

// ChanReporter writes events to a channel. Progress events are dropped when
// the channel is full; state changes always block until delivered.
type ChanReporter struct {
	ch chan<- Event
}

func NewChanReporter(ch chan<- Event) *ChanReporter { return &ChanReporter{ch: ch} }

func (r *ChanReporter) Report(e Event) {
	if r == nil {
		return
	}
	if e.Droppable() {
		select {
		case r.ch <- e:
		default:
		}
		return
	}
	r.ch <- e
}
