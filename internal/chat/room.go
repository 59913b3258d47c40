package chat

import (
	"encoding/json"
	"sort"

	"github.com/maestroprog/wschatserver/internal/proto"
)

// MemberInfo is the persisted identity snapshot of an authenticated user
// within a room. It survives disconnects; guests are never snapshotted.
type MemberInfo struct {
	UserID int64  `json:"user_id"`
	Nick   string `json:"nick"`
	Girl   bool   `json:"girl"`
	Color  string `json:"color"`
}

// RoomSnapshot is the persisted form of a room. History entries are the
// already-encoded message frames, replayed verbatim on join.
type RoomSnapshot struct {
	OwnerID     int64        `json:"owner_id"`
	Name        string       `json:"name"`
	History     []string     `json:"history"`
	MembersInfo []MemberInfo `json:"members_info"`
	BannedNicks []string     `json:"bannedNicks"`
	BannedIPs   []string     `json:"bannedIps"`
	BannedUIDs  []int64      `json:"bannedUids"`
	Moderators  []int64      `json:"moderators"`
}

// Room is a named channel owning live members, persisted member info, ban
// lists, the moderator set, and a rolling history of public messages.
// The name is immutable after creation. All state is owned by the engine
// goroutine.
type Room struct {
	name    string
	ownerID int64

	nextMemberID int64
	members      map[int64]*Member

	membersInfo map[int64]MemberInfo
	history     []string

	bannedNicks map[string]struct{}
	bannedIPs   map[string]struct{}
	bannedUIDs  map[int64]struct{}
	moderators  map[int64]struct{}

	srv *Server
}

func newRoom(srv *Server, name string) *Room {
	return &Room{
		name:        name,
		ownerID:     -1,
		members:     make(map[int64]*Member),
		membersInfo: make(map[int64]MemberInfo),
		bannedNicks: make(map[string]struct{}),
		bannedIPs:   make(map[string]struct{}),
		bannedUIDs:  make(map[int64]struct{}),
		moderators:  make(map[int64]struct{}),
		srv:         srv,
	}
}

func (r *Room) Name() string          { return r.name }
func (r *Room) OwnerID() int64        { return r.ownerID }
func (r *Room) SetOwner(uid int64)    { r.ownerID = uid }
func (r *Room) MemberCount() int      { return len(r.members) }
func (r *Room) HistoryLen() int       { return len(r.history) }

func (r *Room) BanNick(nick string) { r.bannedNicks[nick] = struct{}{} }
func (r *Room) BanIP(ip string)     { r.bannedIPs[ip] = struct{}{} }
func (r *Room) BanUID(uid int64)    { r.bannedUIDs[uid] = struct{}{} }

func (r *Room) UnbanNick(nick string) { delete(r.bannedNicks, nick) }
func (r *Room) UnbanIP(ip string)     { delete(r.bannedIPs, ip) }
func (r *Room) UnbanUID(uid int64)    { delete(r.bannedUIDs, uid) }

func (r *Room) AddModerator(uid int64)    { r.moderators[uid] = struct{}{} }
func (r *Room) RemoveModerator(uid int64) { delete(r.moderators, uid) }

func (r *Room) isBannedNick(nick string) bool {
	_, ok := r.bannedNicks[nick]
	return ok
}

func (r *Room) isModerator(uid int64) bool {
	_, ok := r.moderators[uid]
	return ok
}

// genNextMemberID scans upward from the last assigned id, skipping zero
// and any id still held by a live member.
func (r *Room) genNextMemberID() int64 {
	for {
		r.nextMemberID++
		if r.nextMemberID <= 0 {
			r.nextMemberID = 0
			continue
		}
		if _, used := r.members[r.nextMemberID]; !used {
			return r.nextMemberID
		}
	}
}

// AddMember admits a session into the room. Ban checks are skipped
// entirely for moderators, owners, and admins. Returns nil on rejection.
func (r *Room) AddMember(sess *Session) *Member {
	m := &Member{
		id:     r.genNextMemberID(),
		status: proto.StatusBad,
		room:   r,
		sess:   sess,
	}

	if !m.IsModer() {
		if _, banned := r.bannedIPs[sess.ip]; banned {
			sess.SendPacket(proto.NewSystem("", "Вы были забанены"))
			return nil
		}
		if _, banned := r.bannedUIDs[sess.userID]; banned {
			if sess.IsGuest() {
				sess.SendPacket(proto.NewSystem("", "Гости не могут войти в эту комнату. Авторизуйтесь на сайте"))
			} else {
				sess.SendPacket(proto.NewSystem("", "Вы были забанены"))
			}
			return nil
		}
	}

	if _, dup := r.members[m.id]; dup {
		return nil
	}
	r.members[m.id] = m

	if !sess.IsGuest() {
		if info, ok := r.membersInfo[sess.userID]; ok {
			m.girl = info.Girl
			m.color = info.Color
		}
	}

	sess.SendPacket(proto.NewJoin(r.name))
	sess.SendPacket(r.onlineListPacket())

	return m
}

// RemoveMember handles a session leaving: offline status broadcast for
// nicked members, a Leave notification to the departing session, and a
// MemberInfo snapshot for authenticated users.
func (r *Room) RemoveMember(sess *Session) bool {
	m := r.FindMemberBySession(sess)
	if m == nil {
		return false
	}

	if m.nick != "" {
		r.SendToAll(proto.NewStatus(r.name, m.nick, proto.StatusOffline, ""))
	}

	sess.SendPacket(proto.NewLeave(r.name))

	if !sess.IsGuest() {
		r.membersInfo[sess.userID] = m.info()
	}

	delete(r.members, m.id)
	return true
}

// KickMember forces the member's session out of this room only; the rest
// of the session's memberships stay intact.
func (r *Room) KickMember(m *Member, reason string) bool {
	if _, ok := r.members[m.id]; !ok {
		return false
	}

	m.sess.onKick(r)

	if m.nick != "" {
		r.SendToAll(proto.NewStatus(r.name, m.nick, proto.StatusOffline, ""))
	}

	m.sess.SendPacket(proto.NewLeave(r.name))

	if !m.sess.IsGuest() {
		r.membersInfo[m.sess.userID] = m.info()
	}

	delete(r.members, m.id)
	r.srv.log.Info().Str("room", r.name).Str("nick", m.nick).Str("reason", reason).Msg("member kicked")
	return true
}

// onDestroy makes every live member leave before the room is discarded.
func (r *Room) onDestroy() {
	sessions := make([]*Session, 0, len(r.members))
	for _, m := range r.members {
		sessions = append(sessions, m.sess)
	}
	for _, sess := range sessions {
		sess.LeaveRoom(r)
	}
}

// FindMemberBySession locates the member owned by the given session.
func (r *Room) FindMemberBySession(sess *Session) *Member {
	for _, m := range r.members {
		if m.sess == sess {
			return m
		}
	}
	return nil
}

// FindMemberByNick locates a member by exact (case-sensitive) non-empty nick.
func (r *Room) FindMemberByNick(nick string) *Member {
	if nick == "" {
		return nil
	}
	for _, m := range r.members {
		if m.nick == nick {
			return m
		}
	}
	return nil
}

// FindMemberByID locates a live member by its room-scoped id.
func (r *Room) FindMemberByID(id int64) *Member {
	return r.members[id]
}

// SendToAll broadcasts a packet to every live member, recording public
// messages into the rolling history first.
func (r *Room) SendToAll(p proto.Packet) {
	data, err := proto.Encode(p)
	if err != nil {
		r.srv.log.Error().Err(err).Str("room", r.name).Msg("encode broadcast packet")
		return
	}

	if msg, ok := p.(*proto.Message); ok && !msg.PM {
		r.history = append(r.history, string(data))
		if limit := r.srv.opts.HistoryLimit; len(r.history) > limit {
			r.history = r.history[len(r.history)-limit:]
		}
	}

	for _, m := range r.members {
		m.sess.SendRaw(data)
	}
}

// History returns the stored pre-encoded frames, oldest first.
func (r *Room) History() []string {
	return r.history
}

// onlineListPacket builds the roster snapshot: one encoded Status per
// member with a non-empty nick.
func (r *Room) onlineListPacket() *proto.OnlineList {
	list := proto.NewOnlineList(r.name)

	ids := make([]int64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		m := r.members[id]
		if m.nick == "" {
			continue
		}
		data, err := proto.Encode(m.statusPacket())
		if err != nil {
			r.srv.log.Error().Err(err).Str("room", r.name).Msg("encode roster status")
			continue
		}
		list.List = append(list.List, json.RawMessage(data))
	}
	return list
}

// snapshot serializes the persistent parts of the room. Live members are
// excluded by definition.
func (r *Room) snapshot() RoomSnapshot {
	snap := RoomSnapshot{
		OwnerID:     r.ownerID,
		Name:        r.name,
		History:     append([]string(nil), r.history...),
		MembersInfo: []MemberInfo{},
		BannedNicks: sortedStrings(r.bannedNicks),
		BannedIPs:   sortedStrings(r.bannedIPs),
		BannedUIDs:  sortedInts(r.bannedUIDs),
		Moderators:  sortedInts(r.moderators),
	}
	if snap.History == nil {
		snap.History = []string{}
	}

	uids := make([]int64, 0, len(r.membersInfo))
	for uid := range r.membersInfo {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	for _, uid := range uids {
		snap.MembersInfo = append(snap.MembersInfo, r.membersInfo[uid])
	}

	return snap
}

// restore loads the persisted state into a freshly created room.
func (r *Room) restore(snap RoomSnapshot) {
	r.name = snap.Name
	r.ownerID = snap.OwnerID
	r.history = append([]string(nil), snap.History...)

	for _, info := range snap.MembersInfo {
		r.membersInfo[info.UserID] = info
	}
	for _, nick := range snap.BannedNicks {
		r.bannedNicks[nick] = struct{}{}
	}
	for _, ip := range snap.BannedIPs {
		r.bannedIPs[ip] = struct{}{}
	}
	for _, uid := range snap.BannedUIDs {
		r.bannedUIDs[uid] = struct{}{}
	}
	for _, uid := range snap.Moderators {
		r.moderators[uid] = struct{}{}
	}
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedInts(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
