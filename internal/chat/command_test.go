package chat

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		cmd  string
		arg  string
		ok   bool
	}{
		{"hello", "", "", false},
		{"", "", "", false},
		{"/", "", "", true},
		{"/help", "help", "", true},
		{"/nick Bob", "nick", "Bob", true},
		{"/nick   Bob Smith", "nick", "Bob Smith", true},
		{"/msg\tBob\thi", "msg", "Bob\thi", true},
		{"/kick Bob ", "kick", "Bob ", true},
	}
	for _, tt := range tests {
		cmd, arg, ok := parseCommand(tt.text)
		if cmd != tt.cmd || arg != tt.arg || ok != tt.ok {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.text, cmd, arg, ok, tt.cmd, tt.arg, tt.ok)
		}
	}
}

func TestSplitFirstWord(t *testing.T) {
	tests := []struct {
		arg  string
		word string
		rest string
	}{
		{"Bob", "Bob", ""},
		{"Bob hi there", "Bob", "hi there"},
		{"Bob   hi", "Bob", "hi"},
		{"", "", ""},
	}
	for _, tt := range tests {
		word, rest := splitFirstWord(tt.arg)
		if word != tt.word || rest != tt.rest {
			t.Errorf("splitFirstWord(%q) = (%q, %q), want (%q, %q)",
				tt.arg, word, rest, tt.word, tt.rest)
		}
	}
}

func TestRunCommandPlainTextPassesThrough(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	sess, _ := bareSession(s, "127.0.0.1")
	m := sess.JoinRoom(room)

	if s.runCommand(m, room, "hello") {
		t.Fatalf("plain text was consumed as a command")
	}
}

func TestRunCommandHelp(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	sess, conn := bareSession(s, "127.0.0.1")
	m := sess.JoinRoom(room)

	if !s.runCommand(m, room, "/help") {
		t.Fatalf("help was not consumed")
	}
	sys := conn.lastSystem(t)
	if !strings.HasPrefix(sys.Message, "Доступные команды:") {
		t.Fatalf("unexpected help text: %q", sys.Message)
	}
}

func TestRunCommandUnknown(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	sess, conn := bareSession(s, "127.0.0.1")
	m := sess.JoinRoom(room)

	for _, text := range []string{"/frobnicate", "/"} {
		if !s.runCommand(m, room, text) {
			t.Fatalf("%q was not consumed", text)
		}
		if got := conn.lastSystem(t).Message; got != "Такая команда не существует" {
			t.Fatalf("unexpected reply for %q: %q", text, got)
		}
	}
}

func TestRunCommandKickRequiresAdmin(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")

	victim, _ := bareSession(s, "127.0.0.1")
	victim.JoinRoom(room).SetNick("Bob")

	plain, plainConn := bareSession(s, "127.0.0.2")
	pm := plain.JoinRoom(room)
	pm.SetNick("Eve")

	s.runCommand(pm, room, "/kick Bob")

	// A non-admin /kick is reported as an unknown command and kicks nobody.
	if got := plainConn.lastSystem(t).Message; got != "Такая команда не существует" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if room.FindMemberByNick("Bob") == nil {
		t.Fatalf("non-admin kicked a member")
	}
}

func TestRunCommandKickAsAdmin(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")

	victim, _ := bareSession(s, "127.0.0.1")
	victim.JoinRoom(room).SetNick("Bob")

	admin, adminConn := bareSession(s, "127.0.0.2")
	admin.admin = true
	am := admin.JoinRoom(room)

	s.runCommand(am, room, "/kick Ghost")
	if got := adminConn.lastSystem(t).Message; got != "Такой пользователь не найден" {
		t.Fatalf("unexpected reply: %q", got)
	}

	s.runCommand(am, room, "/kick Bob")
	if room.FindMemberByNick("Bob") != nil {
		t.Fatalf("member still present after admin kick")
	}
	if victim.RoomByName("r") != nil {
		t.Fatalf("kicked session still records the membership")
	}
}

func TestRunCommandMsgIsPrivate(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")

	alice, aliceConn := bareSession(s, "127.0.0.1")
	am := alice.JoinRoom(room)
	am.SetNick("Alice")

	bob, bobConn := bareSession(s, "127.0.0.2")
	bob.JoinRoom(room).SetNick("Bob")

	carol, carolConn := bareSession(s, "127.0.0.3")
	carol.JoinRoom(room).SetNick("Carol")

	s.runCommand(am, room, "/msg Bob hi there")

	for _, conn := range []*fakeConn{aliceConn, bobConn} {
		msgs := conn.messages(t)
		if len(msgs) != 1 {
			t.Fatalf("participant saw %d messages, want 1", len(msgs))
		}
		m := msgs[0]
		if !m.PM || m.Login != "Alice" || m.Text != "hi there" || m.Target != "r" {
			t.Fatalf("unexpected private message: %+v", m)
		}
	}

	if msgs := carolConn.messages(t); len(msgs) != 0 {
		t.Fatalf("bystander saw the private message")
	}
	if len(room.history) != 0 {
		t.Fatalf("private message was recorded in history")
	}
}

func TestRunCommandMsgUnknownTarget(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	sess, conn := bareSession(s, "127.0.0.1")
	m := sess.JoinRoom(room)
	m.SetNick("Alice")

	s.runCommand(m, room, "/msg Ghost hello")
	if got := conn.lastSystem(t).Message; got != "Указанный пользователь не найден" {
		t.Fatalf("unexpected reply: %q", got)
	}
}
