package transport

// EventType identifies what happened on a stream.
type EventType int

const (
	// EventStreamReset fires when the peer sends RESET_STREAM.
	EventStreamReset EventType = iota
	// EventStreamStop fires when the peer sends STOP_SENDING.
	EventStreamStop
	// EventStreamRecv fires when new data (or fin) is readable on a stream.
	EventStreamRecv
	// EventStreamComplete fires once every byte sent on a stream has been acked.
	EventStreamComplete
)

// Event is a single application-visible notification surfaced through
// Conn.Events. StreamID and ErrorCode are populated according to Type.
type Event struct {
	Type      EventType
	StreamID  uint64
	ErrorCode uint64
}

func newStreamResetEvent(streamID, errorCode uint64) Event {
	return Event{Type: EventStreamReset, StreamID: streamID, ErrorCode: errorCode}
}

func newStreamStopEvent(streamID, errorCode uint64) Event {
	return Event{Type: EventStreamStop, StreamID: streamID, ErrorCode: errorCode}
}

func newStreamRecvEvent(streamID uint64) Event {
	return Event{Type: EventStreamRecv, StreamID: streamID}
}

func newStreamCompleteEvent(streamID uint64) Event {
	return Event{Type: EventStreamComplete, StreamID: streamID}
}
