package bus

import "time"

// Event kinds published on the bus. Subscribers filter by namespace
// prefix, so "feed." matches every raw feed event.
const (
	KindFeedRaw       = "feed.raw"        // payload: normalize.RawEvent
	KindRefetchNeeded = "sync.refetch"    // payload: string (conversation id that triggered it)
	KindStateUpdated  = "state.updated"   // payload: string (conversation id)
	KindFeedConnected = "feed.connected"  // payload: nil
	KindFeedDropped   = "feed.disconnect" // payload: error text
)

// Event is one item on the in-process inbox shared by the CDC feed and
// the application event channel. Delivery order within the bus is the
// arrival order at Publish.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
