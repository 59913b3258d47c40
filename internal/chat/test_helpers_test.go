package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/maestroprog/wschatserver/internal/proto"
)

// fakeConn records everything the engine pushes out.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	code   int
	reason string
}

func (c *fakeConn) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.code = code
	c.reason = reason
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) rawFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// packets decodes every recorded frame.
func (c *fakeConn) packets(t *testing.T) []proto.Packet {
	t.Helper()
	var out []proto.Packet
	for _, frame := range c.rawFrames() {
		p, err := proto.Decode(frame)
		if err != nil {
			t.Fatalf("recorded frame does not decode: %v (%s)", err, frame)
		}
		out = append(out, p)
	}
	return out
}

// systems decodes only the System packets among the recorded frames.
// System field decode is a no-op by contract, so raw envelopes are
// unmarshaled directly here.
func (c *fakeConn) systems(t *testing.T) []proto.System {
	t.Helper()
	var out []proto.System
	for _, frame := range c.rawFrames() {
		var env struct {
			Type proto.Type `json:"type"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if env.Type != proto.TypeSystem {
			continue
		}
		var p proto.System
		if err := json.Unmarshal(frame, &p); err != nil {
			t.Fatalf("bad system frame: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func (c *fakeConn) lastSystem(t *testing.T) proto.System {
	t.Helper()
	systems := c.systems(t)
	if len(systems) == 0 {
		t.Fatalf("no system packets recorded")
	}
	return systems[len(systems)-1]
}

func (c *fakeConn) statuses(t *testing.T) []proto.Status {
	t.Helper()
	var out []proto.Status
	for _, p := range c.packets(t) {
		if st, ok := p.(*proto.Status); ok {
			out = append(out, *st)
		}
	}
	return out
}

func (c *fakeConn) messages(t *testing.T) []proto.Message {
	t.Helper()
	var out []proto.Message
	for _, p := range c.packets(t) {
		if msg, ok := p.(*proto.Message); ok {
			out = append(out, *msg)
		}
	}
	return out
}

func (c *fakeConn) hasPing(t *testing.T) bool {
	t.Helper()
	for _, p := range c.packets(t) {
		if _, ok := p.(*proto.Ping); ok {
			return true
		}
	}
	return false
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func testOptions() Options {
	opts := DefaultOptions()
	// Keep the heartbeat out of the way unless a test wants it.
	opts.PingInterval = time.Hour
	opts.PingTimeout = 2 * time.Hour
	opts.ConnectTimeout = 3 * time.Hour
	return opts
}

// newTestServer starts an engine with its loop running.
func newTestServer(t *testing.T, opts Options, resolver Resolver) *Server {
	t.Helper()
	s := NewServer(opts, resolver, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s
}

// connect admits a fake connection from the given IP.
func connect(t *testing.T, s *Server, ip string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess, err := s.Connect(conn, ip)
	if err != nil {
		t.Fatalf("connect from %s: %v", ip, err)
	}
	return sess, conn
}

// sendJSON feeds one encoded value through the inbound path.
func sendJSON(t *testing.T, s *Server, sess *Session, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal test packet: %v", err)
	}
	s.HandleData(sess, raw)
}

// joinedMember connects, creates the room if needed, joins, and
// optionally assigns a nick.
func joinedMember(t *testing.T, s *Server, room, ip, nick string) (*Session, *fakeConn) {
	t.Helper()
	if err := s.CreateRoom(room); err != nil && err != ErrRoomExists {
		t.Fatalf("create room: %v", err)
	}
	sess, conn := connect(t, s, ip)
	sendJSON(t, s, sess, proto.NewJoin(room))
	if nick != "" {
		sendJSON(t, s, sess, proto.NewMessage(room, "", "/nick "+nick, 0))
	}
	return sess, conn
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
