package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/maestroprog/wschatserver/internal/proto"
)

// Session is one connected principal. It is a guest (user id 0) until a
// successful Auth packet elevates it. All fields are owned by the engine
// goroutine.
type Session struct {
	id   string
	conn Conn
	ip   string

	userID int64
	name   string
	admin  bool

	lastActivity time.Time
	rooms        []*Room

	srv *Server
}

func newSession(srv *Server, conn Conn, ip string) *Session {
	return &Session{
		id:           uuid.NewString(),
		conn:         conn,
		ip:           ip,
		lastActivity: time.Now(),
		srv:          srv,
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) IP() string    { return s.ip }
func (s *Session) UserID() int64 { return s.userID }
func (s *Session) Name() string  { return s.name }
func (s *Session) IsGuest() bool { return s.userID == 0 }
func (s *Session) IsAdmin() bool { return s.admin }

// SendPacket encodes and pushes a packet to this session's transport.
func (s *Session) SendPacket(p proto.Packet) {
	data, err := proto.Encode(p)
	if err != nil {
		s.srv.log.Error().Err(err).Str("session", s.id).Msg("encode outbound packet")
		return
	}
	s.conn.Send(data)
}

// SendRaw pushes an already-encoded frame verbatim. Used to replay room
// history byte-for-byte without re-decoding.
func (s *Session) SendRaw(data []byte) {
	s.conn.Send(data)
}

// JoinRoom delegates to the room's admission path; only on success is the
// membership recorded locally.
func (s *Session) JoinRoom(room *Room) *Member {
	member := room.AddMember(s)
	if member == nil {
		return nil
	}
	s.rooms = append(s.rooms, room)
	member.status = proto.StatusOnline
	return member
}

// LeaveRoom removes the local membership record, then the room-side one.
func (s *Session) LeaveRoom(room *Room) {
	if s.dropRoom(room) {
		room.RemoveMember(s)
	}
}

// RoomByName scans this session's own memberships.
func (s *Session) RoomByName(name string) *Room {
	for _, room := range s.rooms {
		if room.name == name {
			return room
		}
	}
	return nil
}

// onDisconnect tears down every membership. The room side broadcasts the
// offline status and snapshots member info as usual.
func (s *Session) onDisconnect() {
	rooms := s.rooms
	s.rooms = nil
	for _, room := range rooms {
		room.RemoveMember(s)
	}
}

// onKick detaches only the given room's membership record; the room-side
// cleanup has already been done by the caller.
func (s *Session) onKick(room *Room) {
	s.dropRoom(room)
}

func (s *Session) dropRoom(room *Room) bool {
	for i, r := range s.rooms {
		if r == room {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			return true
		}
	}
	return false
}
