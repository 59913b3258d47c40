package chat

import (
	"strings"
	"testing"

	"github.com/maestroprog/wschatserver/internal/proto"
)

func TestSetNickRejectsBannedNick(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	room.BanNick("Hitler")

	sess, conn := bareSession(s, "127.0.0.1")
	m := sess.JoinRoom(room)

	m.SetNick("Hitler")

	if m.nick != "" {
		t.Fatalf("banned nick was assigned: %q", m.nick)
	}
	sys := conn.lastSystem(t)
	if sys.Message != "Данный ник запрещен, выберите другой" {
		t.Fatalf("unexpected rejection: %q", sys.Message)
	}
	if sys.Target != "r" {
		t.Fatalf("rejection target = %q, want room name", sys.Target)
	}
}

func TestSetNickBannedNickAllowedForModerator(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	room.BanNick("Boss")
	room.AddModerator(9)

	sess, _ := authedSession(s, "127.0.0.1", 9, "moder")
	m := sess.JoinRoom(room)

	m.SetNick("Boss")
	if m.nick != "Boss" {
		t.Fatalf("moderator could not take the reserved nick, got %q", m.nick)
	}
}

func TestSetNickRejectsInvalidPattern(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	sess, conn := bareSession(s, "127.0.0.1")
	m := sess.JoinRoom(room)

	for _, nick := range []string{
		"",
		strings.Repeat("a", 25),
		"bad!nick",
		"semi;colon",
	} {
		m.SetNick(nick)
		if m.nick != "" {
			t.Fatalf("invalid nick %q was assigned", nick)
		}
		sys := conn.lastSystem(t)
		if sys.Message != "Ник должен содержать только латинские буквоцифры и _-, и не длинее 24 символов" {
			t.Fatalf("unexpected rejection for %q: %q", nick, sys.Message)
		}
	}

	// The full allowed alphabet, including Cyrillic, space, - and _.
	m.SetNick("Вася_Пупкин-9 ё")
	if m.nick != "Вася_Пупкин-9 ё" {
		t.Fatalf("valid nick rejected, got %q", m.nick)
	}
}

func TestSetNickRejectsCollision(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")

	first, firstConn := bareSession(s, "127.0.0.1")
	holder := first.JoinRoom(room)
	holder.SetNick("Alice")
	before := firstConn.frameCount()

	second, conn := bareSession(s, "127.0.0.2")
	m := second.JoinRoom(room)
	m.SetNick("Alice")

	if m.nick != "" {
		t.Fatalf("colliding nick was assigned")
	}
	if got := conn.lastSystem(t).Message; got != "Такой ник уже занят" {
		t.Fatalf("unexpected rejection: %q", got)
	}
	if holder.nick != "Alice" {
		t.Fatalf("holder's nick changed: %q", holder.nick)
	}
	if firstConn.frameCount() != before {
		t.Fatalf("rejection was broadcast to the room")
	}
}

func TestSetNickSameNickIsNoOp(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	sess, conn := bareSession(s, "127.0.0.1")
	m := sess.JoinRoom(room)

	m.SetNick("Alice")
	before := conn.frameCount()
	m.SetNick("Alice")
	if conn.frameCount() != before {
		t.Fatalf("re-assigning the same nick produced traffic")
	}
}

func TestSetNickFirstAssignmentBroadcastsOnline(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")

	observer, observerConn := bareSession(s, "127.0.0.1")
	observer.JoinRoom(room)

	sess, _ := bareSession(s, "127.0.0.2")
	sess.JoinRoom(room).SetNick("Alice")

	statuses := observerConn.statuses(t)
	if len(statuses) != 1 {
		t.Fatalf("observer saw %d status packets, want 1", len(statuses))
	}
	st := statuses[0]
	if st.Status != proto.StatusOnline || st.Name != "Alice" || st.Data != "" {
		t.Fatalf("unexpected broadcast: %+v", st)
	}
}

func TestSetNickRenameBroadcastsNickChange(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")

	observer, observerConn := bareSession(s, "127.0.0.1")
	observer.JoinRoom(room)

	sess, _ := bareSession(s, "127.0.0.2")
	m := sess.JoinRoom(room)
	m.SetNick("Alice")
	m.SetNick("Alicia")

	statuses := observerConn.statuses(t)
	if len(statuses) != 2 {
		t.Fatalf("observer saw %d status packets, want 2", len(statuses))
	}
	st := statuses[1]
	if st.Status != proto.StatusNickChange {
		t.Fatalf("rename status = %d, want nick_change", st.Status)
	}
	if st.Name != "Alicia" || st.Data != "Alice" {
		t.Fatalf("rename carries name=%q data=%q", st.Name, st.Data)
	}
}

func TestRolePredicates(t *testing.T) {
	s := bareServer()
	room := newRoom(s, "r")
	room.SetOwner(5)
	room.AddModerator(6)

	guest, _ := bareSession(s, "127.0.0.1")
	gm := guest.JoinRoom(room)
	if gm.IsOwner() || gm.IsModer() || gm.IsAdmin() {
		t.Fatalf("guest has privileges")
	}

	owner, _ := authedSession(s, "127.0.0.2", 5, "owner")
	om := owner.JoinRoom(room)
	if !om.IsOwner() || !om.IsModer() {
		t.Fatalf("owner predicates wrong: owner=%v moder=%v", om.IsOwner(), om.IsModer())
	}

	moder, _ := authedSession(s, "127.0.0.3", 6, "moder")
	mm := moder.JoinRoom(room)
	if mm.IsOwner() {
		t.Fatalf("moderator reported as owner")
	}
	if !mm.IsModer() {
		t.Fatalf("moderator not recognized")
	}

	admin, _ := bareSession(s, "127.0.0.4")
	admin.admin = true
	am := admin.JoinRoom(room)
	if !am.IsAdmin() || !am.IsOwner() || !am.IsModer() {
		t.Fatalf("admin predicates wrong")
	}

	// Roles are derived, so revoking moderator status takes effect at once.
	room.RemoveModerator(6)
	if mm.IsModer() {
		t.Fatalf("revoked moderator still privileged")
	}
}
