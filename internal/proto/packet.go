// Package proto defines the wire protocol: self-describing JSON packets
// tagged with an integer type field.
package proto

import (
	"encoding/json"
	"fmt"
)

// Type is the integer tag carried in every packet envelope.
type Type int

const (
	TypeError Type = iota
	TypeSystem
	TypeMessage
	TypeOnlineList
	TypeAuth
	TypeStatus
	TypeJoin
	TypeLeave
	TypeCreateRoom // reserved, no client-facing variant
	TypeRemoveRoom // reserved, no client-facing variant
	TypePing
)

// MemberStatus is the numeric status value carried by Status packets.
type MemberStatus int

const (
	// StatusBad is the zero-value sentinel, never sent intentionally.
	StatusBad MemberStatus = iota
	StatusOnline
	StatusOffline
	StatusNickChange
)

// MaxMessageLen bounds the stored and outgoing text of a Message packet.
const MaxMessageLen = 30000

// Packet is one typed protocol message.
type Packet interface {
	PacketType() Type
}

// System is an informational packet. Never produced by a client; its
// fields are ignored on decode.
type System struct {
	Type    Type   `json:"type"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

func NewSystem(target, message string) *System {
	return &System{Type: TypeSystem, Target: target, Message: message}
}

func (*System) PacketType() Type { return TypeSystem }

// Message is a chat message, either broadcast to a room or private (pm).
type Message struct {
	Type   Type   `json:"type"`
	Target string `json:"target"`
	Time   int64  `json:"time"`
	Login  string `json:"login"`
	PM     bool   `json:"pm"`
	Text   string `json:"message"`
}

// NewMessage builds a server-originated message, truncating the text.
func NewMessage(target, login, text string, t int64) *Message {
	if len(text) > MaxMessageLen {
		text = text[:MaxMessageLen]
	}
	return &Message{Type: TypeMessage, Target: target, Time: t, Login: login, Text: text}
}

func (*Message) PacketType() Type { return TypeMessage }

// OnlineList carries the roster of a room as pre-encoded Status packets.
type OnlineList struct {
	Type   Type              `json:"type"`
	Target string            `json:"target"`
	List   []json.RawMessage `json:"list"`
}

func NewOnlineList(target string) *OnlineList {
	return &OnlineList{Type: TypeOnlineList, Target: target, List: []json.RawMessage{}}
}

func (*OnlineList) PacketType() Type { return TypeOnlineList }

// Auth carries an opaque key resolved through the credential cache.
type Auth struct {
	Type Type   `json:"type"`
	UKey string `json:"ukey"`
}

func NewAuth(ukey string) *Auth {
	return &Auth{Type: TypeAuth, UKey: ukey}
}

func (*Auth) PacketType() Type { return TypeAuth }

// Status announces a member's presence change to a room.
type Status struct {
	Type   Type         `json:"type"`
	Target string       `json:"target"`
	Status MemberStatus `json:"status"`
	Name   string       `json:"name"`
	Data   string       `json:"data"`
}

func NewStatus(target, name string, status MemberStatus, data string) *Status {
	return &Status{Type: TypeStatus, Target: target, Status: status, Name: name, Data: data}
}

func (*Status) PacketType() Type { return TypeStatus }

// Join requests membership in the named room; the server echoes it back
// as the join confirmation.
type Join struct {
	Type   Type   `json:"type"`
	Target string `json:"target"`
}

func NewJoin(target string) *Join {
	return &Join{Type: TypeJoin, Target: target}
}

func (*Join) PacketType() Type { return TypeJoin }

// Leave requests departure from the named room; the server sends it back
// to the departing session.
type Leave struct {
	Type   Type   `json:"type"`
	Target string `json:"target"`
}

func NewLeave(target string) *Leave {
	return &Leave{Type: TypeLeave, Target: target}
}

func (*Leave) PacketType() Type { return TypeLeave }

// Ping has no payload. Its receipt only refreshes liveness bookkeeping.
type Ping struct {
	Type Type `json:"type"`
}

func NewPing() *Ping {
	return &Ping{Type: TypePing}
}

func (*Ping) PacketType() Type { return TypePing }

// Encode serializes a packet into its wire form.
func Encode(p Packet) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode packet type %d: %w", p.PacketType(), err)
	}
	return data, nil
}

// Decode parses the envelope tag and instantiates the matching variant.
// Unrecognized or malformed input yields an error; the caller drops the
// packet and keeps the connection open.
func Decode(raw []byte) (Packet, error) {
	var env struct {
		Type *Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("decode envelope: missing type tag")
	}

	switch *env.Type {
	case TypeSystem:
		// Field decode is a no-op: System is a display packet.
		return NewSystem("", ""), nil
	case TypeMessage:
		p := &Message{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		p.Type = TypeMessage
		return p, nil
	case TypeOnlineList:
		p := &OnlineList{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode online_list: %w", err)
		}
		p.Type = TypeOnlineList
		return p, nil
	case TypeAuth:
		p := &Auth{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode auth: %w", err)
		}
		p.Type = TypeAuth
		return p, nil
	case TypeStatus:
		p := &Status{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		p.Type = TypeStatus
		return p, nil
	case TypeJoin:
		p := &Join{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode join: %w", err)
		}
		p.Type = TypeJoin
		return p, nil
	case TypeLeave:
		p := &Leave{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode leave: %w", err)
		}
		p.Type = TypeLeave
		return p, nil
	case TypePing:
		return NewPing(), nil
	default:
		return nil, fmt.Errorf("unknown packet type %d", *env.Type)
	}
}
