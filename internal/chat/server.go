// Package chat implements the room-based chat engine: the connection
// registry, rooms with membership and moderation state, and the packet
// dispatcher. All shared state is owned by a single goroutine; transports
// and the admin API talk to it through serialized closures.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/maestroprog/wschatserver/internal/proto"
)

var (
	// ErrConnectionLimit is returned when an IP exceeds its concurrent
	// connection allowance. The caller closes the transport immediately.
	ErrConnectionLimit = errors.New("chat: connection limit reached for ip")
	// ErrRoomExists is returned when creating a room whose name is taken.
	ErrRoomExists = errors.New("chat: room already exists")
	// ErrRoomNotFound is returned for lookups of unknown rooms.
	ErrRoomNotFound = errors.New("chat: room not found")
)

// Conn is the transport seam: the engine only ever pushes bytes out or
// force-closes. Implementations must be safe to call from the engine
// goroutine and must never block.
type Conn interface {
	Send(data []byte)
	Close(code int, reason string)
}

// Identity is the result of resolving an auth key.
type Identity struct {
	UserID int64
	Login  string
	Admin  bool
}

// Resolver resolves opaque auth keys against external storage. A miss is
// reported via found=false with a nil error; err is reserved for
// infrastructure failures.
type Resolver interface {
	Resolve(ctx context.Context, ukey string) (ident Identity, found bool, err error)
}

// Options carries the engine thresholds. Explicit so tests can shrink them.
type Options struct {
	IPConnLimit    int
	HistoryLimit   int
	PingInterval   time.Duration
	PingTimeout    time.Duration
	ConnectTimeout time.Duration
}

// DefaultOptions mirrors the production configuration defaults.
func DefaultOptions() Options {
	return Options{
		IPConnLimit:    5,
		HistoryLimit:   50,
		PingInterval:   10 * time.Second,
		PingTimeout:    30 * time.Second,
		ConnectTimeout: 90 * time.Second,
	}
}

// Server is the process-wide registry of sessions and rooms.
type Server struct {
	opts     Options
	log      *zerolog.Logger
	resolver Resolver

	sessions map[*Session]struct{}
	ipConns  map[string]int
	rooms    map[string]*Room

	events chan func()
}

// NewServer builds the engine. The resolver may be nil, in which case Auth
// packets leave every session a guest.
func NewServer(opts Options, resolver Resolver, logger *zerolog.Logger) *Server {
	if opts.IPConnLimit <= 0 {
		opts.IPConnLimit = 5
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 10 * time.Second
	}
	return &Server{
		opts:     opts,
		log:      logger,
		resolver: resolver,
		sessions: make(map[*Session]struct{}),
		ipConns:  make(map[string]int),
		rooms:    make(map[string]*Room),
		events:   make(chan func(), 64),
	}
}

// Run drives the engine until the context is canceled. Every mutation of
// registry, room, and session state happens on this goroutine; the
// heartbeat sweep shares it, so no two of them ever run concurrently.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-s.events:
			fn()
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			return
		}
	}
}

// do runs fn on the engine goroutine and waits for it to finish.
func (s *Server) do(fn func()) {
	done := make(chan struct{})
	s.events <- func() {
		fn()
		close(done)
	}
	<-done
}

// post schedules fn on the engine goroutine without waiting. Used by
// async completions (auth resolution) to re-enter the serialized loop.
func (s *Server) post(fn func()) {
	s.events <- fn
}

// Connect admits a new transport connection. Admission is rejected, not
// queued: when the per-IP allowance is exhausted the caller must close
// the connection before any packet exchange.
func (s *Server) Connect(conn Conn, ip string) (*Session, error) {
	var (
		sess *Session
		err  error
	)
	s.do(func() {
		if s.ipConns[ip] >= s.opts.IPConnLimit {
			s.log.Info().Str("ip", ip).Msg("connection limit reached")
			err = ErrConnectionLimit
			return
		}
		sess = newSession(s, conn, ip)
		s.sessions[sess] = struct{}{}
		s.ipConns[ip]++
		s.log.Info().Str("ip", ip).Str("session", sess.ID()).Msg("opened connection")
	})
	return sess, err
}

// Disconnect tears down a session after a transport close or error. It is
// idempotent: a session already evicted (kick, heartbeat) is a no-op and
// the per-IP counter is never decremented twice.
func (s *Server) Disconnect(sess *Session) {
	s.do(func() {
		s.deregister(sess)
	})
}

// deregister removes the session from the registry and tears down all of
// its memberships. Loop-confined.
func (s *Server) deregister(sess *Session) bool {
	if _, ok := s.sessions[sess]; !ok {
		return false
	}
	delete(s.sessions, sess)

	if n := s.ipConns[sess.ip] - 1; n > 0 {
		s.ipConns[sess.ip] = n
	} else {
		delete(s.ipConns, sess.ip)
	}

	sess.onDisconnect()
	s.log.Info().Str("ip", sess.ip).Str("session", sess.ID()).Msg("closed connection")
	return true
}

// HandleData decodes one inbound frame and processes the packet. Malformed
// input is dropped and logged; the connection stays open.
func (s *Server) HandleData(sess *Session, raw []byte) {
	s.do(func() {
		if _, ok := s.sessions[sess]; !ok {
			return
		}
		p, err := proto.Decode(raw)
		if err != nil {
			s.log.Warn().Err(err).Str("ip", sess.ip).Msg("dropped invalid packet")
			return
		}
		sess.lastActivity = time.Now()
		s.processPacket(sess, p)
	})
}

// sweep is the heartbeat: sessions silent beyond the connect timeout are
// marked and evicted after the pass; sessions silent beyond the ping
// timeout get a single liveness probe. Loop-confined.
func (s *Server) sweep() {
	now := time.Now()

	var toKick []*Session
	for sess := range s.sessions {
		silent := now.Sub(sess.lastActivity)
		if silent > s.opts.ConnectTimeout {
			toKick = append(toKick, sess)
		} else if silent > s.opts.PingTimeout {
			sess.SendPacket(proto.NewPing())
		}
	}

	for _, sess := range toKick {
		s.evict(sess, "no ping")
		s.log.Info().Str("name", sess.Name()).Str("ip", sess.IP()).Msg("kicked by no ping")
	}
}

// evict force-removes a session: deregister, tear down memberships, close
// the transport. The later transport close event finds nothing to do.
func (s *Server) evict(sess *Session, reason string) {
	if s.deregister(sess) {
		sess.conn.Close(closeCodeNormal, reason)
	}
}

const closeCodeNormal = 1000

// CreateRoom creates an empty room with the given unique name.
func (s *Server) CreateRoom(name string) error {
	var err error
	s.do(func() {
		if _, ok := s.rooms[name]; ok {
			err = ErrRoomExists
			return
		}
		s.rooms[name] = newRoom(s, name)
		s.log.Info().Str("room", name).Msg("room created")
	})
	return err
}

// RemoveRoom destroys the named room, forcing every live member to leave
// first.
func (s *Server) RemoveRoom(name string) error {
	var err error
	s.do(func() {
		room, ok := s.rooms[name]
		if !ok {
			err = ErrRoomNotFound
			return
		}
		room.onDestroy()
		delete(s.rooms, name)
		s.log.Info().Str("room", name).Msg("room removed")
	})
	return err
}

// WithRoom runs fn against the named room on the engine goroutine. The
// room must not escape fn.
func (s *Server) WithRoom(name string, fn func(*Room) error) error {
	var err error
	s.do(func() {
		room, ok := s.rooms[name]
		if !ok {
			err = ErrRoomNotFound
			return
		}
		err = fn(room)
	})
	return err
}

// RoomInfo is a read-only view of a room for the admin surface.
type RoomInfo struct {
	Name       string `json:"name"`
	OwnerID    int64  `json:"owner_id"`
	Members    int    `json:"members"`
	History    int    `json:"history"`
	Moderators int    `json:"moderators"`
}

// RoomsInfo lists all rooms sorted by name.
func (s *Server) RoomsInfo() []RoomInfo {
	var infos []RoomInfo
	s.do(func() {
		for _, room := range s.rooms {
			infos = append(infos, RoomInfo{
				Name:       room.name,
				OwnerID:    room.ownerID,
				Members:    len(room.members),
				History:    len(room.history),
				Moderators: len(room.moderators),
			})
		}
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Stats reports registry sizes for the health surface.
func (s *Server) Stats() (sessions, rooms int) {
	s.do(func() {
		sessions = len(s.sessions)
		rooms = len(s.rooms)
	})
	return sessions, rooms
}

// BroadcastAll sends a packet to every registered session.
func (s *Server) BroadcastAll(p proto.Packet) {
	s.do(func() {
		data, err := proto.Encode(p)
		if err != nil {
			s.log.Error().Err(err).Msg("encode broadcast packet")
			return
		}
		for sess := range s.sessions {
			sess.SendRaw(data)
		}
	})
}

// sessionByName finds a registered session by its resolved login name.
// Loop-confined.
func (s *Server) sessionByName(name string) *Session {
	if name == "" {
		return nil
	}
	for sess := range s.sessions {
		if sess.name == name {
			return sess
		}
	}
	return nil
}

// sessionByID finds a registered authenticated session by user id.
// Loop-confined.
func (s *Server) sessionByID(uid int64) *Session {
	if uid <= 0 {
		return nil
	}
	for sess := range s.sessions {
		if sess.userID == uid {
			return sess
		}
	}
	return nil
}

// ServerSnapshot is the persisted form of the room directory. Live members
// and sessions are never persisted.
type ServerSnapshot struct {
	Rooms []RoomSnapshot `json:"rooms"`
}

// SnapshotJSON serializes every room for persistence.
func (s *Server) SnapshotJSON() ([]byte, error) {
	var snap ServerSnapshot
	s.do(func() {
		names := make([]string, 0, len(s.rooms))
		for name := range s.rooms {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			snap.Rooms = append(snap.Rooms, s.rooms[name].snapshot())
		}
	})
	data, err := json.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// RestoreSnapshot replaces the room directory with the persisted one.
func (s *Server) RestoreSnapshot(data []byte) error {
	var snap ServerSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	s.do(func() {
		for name, room := range s.rooms {
			room.onDestroy()
			delete(s.rooms, name)
		}
		for _, rs := range snap.Rooms {
			room := newRoom(s, rs.Name)
			room.restore(rs)
			s.rooms[room.name] = room
		}
	})
	return nil
}
