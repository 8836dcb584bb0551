package handle

// Handle is an opaque reference correlating a native object with its
// script-side proxy. Handle 0 is reserved and always invalid.
//
// The low bits address a slot in the table and the high bits carry the
// slot's generation, so a handle that outlived its object never resolves
// to a later occupant of the same slot.
type Handle uint32

const (
	slotBits = 20
	slotMask = 1<<slotBits - 1
	genMask  = 1<<(32-slotBits) - 1

	// MaxLive is the number of handles a table can hold at once.
	MaxLive = slotMask
)

func makeHandle(slot int, gen uint32) Handle {
	return Handle((gen&genMask)<<slotBits | uint32(slot+1))
}

// slot returns the zero-based slot index, or -1 for the invalid handle.
func (h Handle) slot() int {
	return int(uint32(h)&slotMask) - 1
}

func (h Handle) generation() uint32 {
	return uint32(h) >> slotBits
}

// Valid reports whether h could address a table entry.
func (h Handle) Valid() bool {
	return h.slot() >= 0
}

// EventType identifies a handle lifecycle notification.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventUnregistered
)

func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventUnregistered:
		return "unregistered"
	}
	return "unknown"
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

type funcObserver struct {
	fn func(Event)
}

func (o *funcObserver) OnHandleEvent(e Event) { o.fn(e) }

// Disposer is optionally implemented by values that need cleanup when
// their handle is unregistered or the table closes.
type Disposer interface {
	Dispose()
}
