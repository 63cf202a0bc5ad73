package wire

// Kind tags the active variant of a Message.
type Kind string

const (
	KindJoin         Kind = "join"
	KindRoomStart    Kind = "room_start"
	KindSnapshot     Kind = "snapshot"
	KindMove         Kind = "move"
	KindChat         Kind = "chat"
	KindDrawOffer    Kind = "draw_offer"
	KindDrawResponse Kind = "draw_response"
	KindResign       Kind = "resign"
	KindError        Kind = "error"
)

// Message is the entire wire contract between host and guest: a tagged union
// serialized as JSON. Exactly one variant is active per message; receivers
// ignore unknown kinds instead of failing the session.
type Message struct {
	Kind Kind `json:"kind"`

	Name         string       `json:"name,omitempty"`          // join
	AssignedSide Side         `json:"assigned_side,omitempty"` // room_start
	Snapshot     *Snapshot    `json:"snapshot,omitempty"`      // room_start, snapshot
	Move         string       `json:"move,omitempty"`          // move (UCI, SAN fallback)
	Chat         *ChatMessage `json:"chat,omitempty"`          // chat
	Accepted     bool         `json:"accepted,omitempty"`      // draw_response
	Text         string       `json:"text,omitempty"`          // error
}

// Known reports whether the kind is part of the current contract.
func (m Message) Known() bool {
	switch m.Kind {
	case KindJoin, KindRoomStart, KindSnapshot, KindMove, KindChat,
		KindDrawOffer, KindDrawResponse, KindResign, KindError:
		return true
	}
	return false
}

func JoinMsg(name string) Message { return Message{Kind: KindJoin, Name: name} }

func RoomStartMsg(s Snapshot, assigned Side) Message {
	c := s.Clone()
	return Message{Kind: KindRoomStart, Snapshot: &c, AssignedSide: assigned}
}

func SnapshotMsg(s Snapshot) Message {
	c := s.Clone()
	return Message{Kind: KindSnapshot, Snapshot: &c}
}

func MoveMsg(move string) Message { return Message{Kind: KindMove, Move: move} }

func ChatMsg(m ChatMessage) Message { return Message{Kind: KindChat, Chat: &m} }

func DrawOfferMsg() Message { return Message{Kind: KindDrawOffer} }

func DrawResponseMsg(accepted bool) Message {
	return Message{Kind: KindDrawResponse, Accepted: accepted}
}

func ResignMsg() Message { return Message{Kind: KindResign} }

func ErrorMsg(text string) Message { return Message{Kind: KindError, Text: text} }
