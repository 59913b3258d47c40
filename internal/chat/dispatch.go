package chat

import (
	"context"
	"time"

	"github.com/maestroprog/wschatserver/internal/proto"
)

const resolveTimeout = 5 * time.Second

// processPacket executes one packet's contract against a session. The
// switch is the closed dispatch table over the protocol's variants;
// display-only packets are terminal no-ops.
func (s *Server) processPacket(sess *Session, p proto.Packet) {
	switch pkt := p.(type) {
	case *proto.Message:
		s.processMessage(sess, pkt)
	case *proto.OnlineList:
		s.processOnlineList(sess, pkt)
	case *proto.Auth:
		s.processAuth(sess, pkt)
	case *proto.Join:
		s.processJoin(sess, pkt)
	case *proto.Leave:
		s.processLeave(sess, pkt)
	case *proto.System, *proto.Status, *proto.Ping:
		// Server-originated or liveness-only packets: nothing to do.
	}
}

func (s *Server) processMessage(sess *Session, pkt *proto.Message) {
	if pkt.Target == "" || pkt.Text == "" {
		return
	}

	room := sess.RoomByName(pkt.Target)
	if room == nil {
		sess.SendPacket(proto.NewSystem("", "Вы не можете писать в комнату \""+pkt.Target+"\""))
		return
	}

	member := room.FindMemberBySession(sess)
	if member == nil {
		return
	}

	if s.runCommand(member, room, pkt.Text) {
		return
	}

	if member.nick == "" {
		sess.SendPacket(proto.NewSystem(pkt.Target, "Перед началом общения укажите свой ник: /nick MyNick"))
		return
	}

	room.SendToAll(proto.NewMessage(pkt.Target, member.nick, pkt.Text, time.Now().Unix()))
}

func (s *Server) processOnlineList(sess *Session, pkt *proto.OnlineList) {
	room := sess.RoomByName(pkt.Target)
	if room == nil {
		sess.SendPacket(proto.NewSystem("", "Не удалось получить список онлайна комнаты \""+pkt.Target+"\""))
		return
	}

	sess.SendPacket(room.onlineListPacket())
}

// processAuth resolves the key off the engine goroutine and applies the
// guest-to-authenticated transition back on it, so the transition is
// observed atomically between packets of the same session.
func (s *Server) processAuth(sess *Session, pkt *proto.Auth) {
	if pkt.UKey == "" || s.resolver == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		ident, found, err := s.resolver.Resolve(ctx, pkt.UKey)

		s.post(func() {
			if _, ok := s.sessions[sess]; !ok {
				return
			}
			if err != nil {
				s.log.Error().Err(err).Str("ip", sess.ip).Msg("auth resolution failed")
				sess.SendPacket(proto.NewSystem("", "Ошибка подключения к БД при авторизации!"))
				return
			}
			if !found {
				// Cache miss: stays a guest, no error.
				return
			}
			sess.userID = ident.UserID
			sess.name = ident.Login
			sess.admin = ident.Admin
			s.log.Info().Int64("user_id", ident.UserID).Str("login", ident.Login).Str("ip", sess.ip).Msg("session authenticated")
		})
	}()
}

func (s *Server) processJoin(sess *Session, pkt *proto.Join) {
	if sess.RoomByName(pkt.Target) != nil {
		sess.SendPacket(proto.NewSystem("", "Вы уже подключены к комнате \""+pkt.Target+"\""))
		return
	}

	room, ok := s.rooms[pkt.Target]
	if !ok {
		sess.SendPacket(proto.NewSystem("", "Комнаты \""+pkt.Target+"\" не существует"))
		return
	}

	member := sess.JoinRoom(room)
	if member == nil {
		return
	}

	for _, frame := range room.history {
		sess.SendRaw([]byte(frame))
	}

	if member.nick == "" {
		sess.SendPacket(proto.NewSystem(pkt.Target, "Перед началом общения укажите свой ник: /nick MyNick"))
	} else {
		room.SendToAll(member.statusPacket())
	}
}

func (s *Server) processLeave(sess *Session, pkt *proto.Leave) {
	room := sess.RoomByName(pkt.Target)
	if room == nil {
		sess.SendPacket(proto.NewSystem("", "Вы не подключены к комнате \""+pkt.Target+"\""))
		return
	}

	// RemoveMember broadcasts the offline status for nicked members.
	sess.LeaveRoom(room)
}
