package chat

import (
	"regexp"

	"github.com/maestroprog/wschatserver/internal/proto"
)

// nickPattern allows 1-24 characters of ASCII letters, digits, space,
// hyphen, underscore, or Cyrillic letters.
var nickPattern = regexp.MustCompile(`^[0-9A-Za-z _\-а-яА-ЯёЁ]{1,24}$`)

// Member is a session's identity within exactly one room. The id is
// unique within the room at any instant and never zero.
type Member struct {
	id     int64
	nick   string
	status proto.MemberStatus

	girl  bool
	color string

	room *Room
	sess *Session
}

func (m *Member) ID() int64                   { return m.id }
func (m *Member) Nick() string                { return m.nick }
func (m *Member) Status() proto.MemberStatus  { return m.status }
func (m *Member) Room() *Room                 { return m.room }
func (m *Member) Session() *Session           { return m.sess }

// Role predicates are computed on every call, never cached.

func (m *Member) IsAdmin() bool {
	return m.sess.admin
}

func (m *Member) IsOwner() bool {
	return m.sess.admin || (!m.sess.IsGuest() && m.sess.userID == m.room.ownerID)
}

func (m *Member) IsModer() bool {
	return m.IsOwner() || (!m.sess.IsGuest() && m.room.isModerator(m.sess.userID))
}

// SetNick validates and assigns a new nickname, broadcasting the change
// to the room. Rejections are reported to the requester only and mutate
// nothing.
func (m *Member) SetNick(nick string) {
	if nick == m.nick {
		return
	}

	if r := m.room; r.isBannedNick(nick) && !m.IsModer() {
		m.sess.SendPacket(proto.NewSystem(r.name, "Данный ник запрещен, выберите другой"))
		return
	}

	if !nickPattern.MatchString(nick) {
		m.sess.SendPacket(proto.NewSystem(m.room.name, "Ник должен содержать только латинские буквоцифры и _-, и не длинее 24 символов"))
		return
	}

	if other := m.room.FindMemberByNick(nick); other != nil && other != m {
		m.sess.SendPacket(proto.NewSystem(m.room.name, "Такой ник уже занят"))
		return
	}

	oldNick := m.nick
	m.nick = nick

	pack := m.statusPacket()
	if oldNick != "" {
		if m.nick == "" {
			pack.Status = proto.StatusOffline
			pack.Name = oldNick
		} else {
			pack.Status = proto.StatusNickChange
			pack.Data = oldNick
		}
	}
	m.room.SendToAll(pack)

	if m.nick != "" {
		m.room.srv.log.Info().Str("room", m.room.name).Str("nick", m.nick).Str("ip", m.sess.ip).Msg("nick assigned")
	}
}

// statusPacket builds this member's presence announcement.
func (m *Member) statusPacket() *proto.Status {
	return proto.NewStatus(m.room.name, m.nick, m.status, "")
}

// info snapshots the persisted identity of the owning user.
func (m *Member) info() MemberInfo {
	return MemberInfo{
		UserID: m.sess.userID,
		Nick:   m.nick,
		Girl:   m.girl,
		Color:  m.color,
	}
}
