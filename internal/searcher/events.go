package searcher

import (
	"time"

	"github.com/edittrail/edittrail/pkg/types"
)

// SearchEvent records a completed search for downstream consumers. Results
// is the final list the caller received, after fusion, rerank, and
// truncation.
type SearchEvent struct {
	Query     string
	Results   []types.SearchResult
	Duration  time.Duration
	Timestamp time.Time
}

// Notifier receives completion events after each successful search. The
// searcher never publishes implicitly; callers that want events inject one.
type Notifier interface {
	SearchCompleted(event SearchEvent)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) SearchCompleted(SearchEvent) {}

// ChannelNotifier delivers events on a buffered channel. Delivery is
// non-blocking; events are dropped when the consumer falls behind, so a slow
// listener can never stall a search.
type ChannelNotifier struct {
	ch chan SearchEvent
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelNotifier{ch: make(chan SearchEvent, buffer)}
}

func (n *ChannelNotifier) SearchCompleted(event SearchEvent) {
	select {
	case n.ch <- event:
	default:
	}
}

// Events returns the receive side of the notifier.
func (n *ChannelNotifier) Events() <-chan SearchEvent {
	return n.ch
}
