package wire

// Kind names one of the four event kinds exchanged with the robot.
type Kind string

const (
	KindCall   Kind = "call"
	KindReply  Kind = "reply"
	KindError  Kind = "error"
	KindSignal Kind = "signal"
)

// Message is a decoded protocol event.
type Message interface {
	Kind() Kind
}

// Call asks the remote side to invoke Member on Object.
type Call struct {
	ID     uint64
	Object any
	Member string
	Args   []any
}

// Reply carries the result of the call with the same ID.
type Reply struct {
	ID     uint64
	Result any
}

// Error reports a failed call. ID is nil for connection-level errors.
type Error struct {
	ID     *uint64
	Result any
}

// Signal is a push notification for a subscription link.
type Signal struct {
	Object any
	Signal string
	Link   any
	Data   []any
}

func (*Call) Kind() Kind   { return KindCall }
func (*Reply) Kind() Kind  { return KindReply }
func (*Error) Kind() Kind  { return KindError }
func (*Signal) Kind() Kind { return KindSignal }

// payload shapes as they appear inside the event args.

type callPayload struct {
	ID     uint64     `json:"idm"`
	Params callParams `json:"params"`
}

type callParams struct {
	Object any    `json:"obj"`
	Member string `json:"member"`
	Args   []any  `json:"args"`
}

type resultPayload struct {
	ID     *uint64 `json:"idm,omitempty"`
	Result any     `json:"result"`
}

type signalPayload struct {
	Result signalResult `json:"result"`
}

type signalResult struct {
	Object any    `json:"obj"`
	Signal string `json:"signal"`
	Link   any    `json:"link"`
	Data   []any  `json:"data"`
}
