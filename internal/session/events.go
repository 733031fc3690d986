package session

// Event types published for a session.
const (
	EventMessage = "message"
	EventState   = "state"
)

// Event is a change notification for one session. Payload is a
// requirements.ChatMessage for EventMessage and a Snapshot for EventState.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publisher receives session events. Publish is called with the session
// lock held and must not block.
type Publisher interface {
	Publish(sessionID string, ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, Event) {}
