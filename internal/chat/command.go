package chat

import (
	"strings"
	"time"

	"github.com/maestroprog/wschatserver/internal/proto"
)

const helpText = "Доступные команды:\n" +
	"/help\tвсе понятно\n" +
	"/nick <новый ник>\tсменить ник\n" +
	"/msg <ник> <сообщение>\tнаписать личное сообщение в пределах комнаты (функия тестовая)"

// parseCommand splits "/cmd arg..." into the whitespace-free command word
// and the argument run following the first whitespace run. ok is false
// when the text is not a command at all (no leading slash).
func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	rest := text[1:]

	idx := strings.IndexFunc(rest, isSpace)
	if idx < 0 {
		return rest, "", true
	}

	cmd = rest[:idx]
	arg = strings.TrimLeftFunc(rest[idx:], isSpace)
	return cmd, arg, true
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// splitFirstWord cuts the first whitespace-free token off the argument,
// returning it and the remainder after the following whitespace run.
func splitFirstWord(arg string) (word, rest string) {
	idx := strings.IndexFunc(arg, isSpace)
	if idx < 0 {
		return arg, ""
	}
	return arg[:idx], strings.TrimLeftFunc(arg[idx:], isSpace)
}

// runCommand executes the command sub-language. Returns false when the
// text is plain chat; a true return means the input was consumed, whether
// or not the command was recognized.
func (s *Server) runCommand(member *Member, room *Room, text string) bool {
	cmd, arg, ok := parseCommand(text)
	if !ok {
		return false
	}

	sess := member.sess

	switch {
	case cmd == "help":
		sess.SendPacket(proto.NewSystem(room.name, helpText))

	case cmd == "nick":
		member.SetNick(arg)

	case cmd == "kick" && sess.admin:
		target := room.FindMemberByNick(arg)
		if target == nil {
			sess.SendPacket(proto.NewSystem(room.name, "Такой пользователь не найден"))
			return true
		}
		room.KickMember(target, "")

	case cmd == "msg":
		nick, body := splitFirstWord(arg)
		target := room.FindMemberByNick(nick)
		if target == nil {
			sess.SendPacket(proto.NewSystem(room.name, "Указанный пользователь не найден"))
			return true
		}
		pm := proto.NewMessage(room.name, member.nick, body, time.Now().Unix())
		pm.PM = true
		sess.SendPacket(pm)
		target.sess.SendPacket(pm)

	default:
		// Unparseable command words land here too, as does /kick from a
		// non-admin: it is indistinguishable from an unknown command.
		sess.SendPacket(proto.NewSystem(room.name, "Такая команда не существует"))
	}

	return true
}
