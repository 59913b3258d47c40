package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/maestroprog/wschatserver/internal/chat"
)

const outboundBuffer = 64

// WSHandler upgrades HTTP connections and bridges them to the chat engine.
type WSHandler struct {
	chat    *chat.Server
	log     *zerolog.Logger
	msgRate rate.Limit
	burst   int
}

// NewWSHandler builds a new WebSocket handler. msgRate 0 disables the
// inbound flood guard.
func NewWSHandler(chatSrv *chat.Server, logger *zerolog.Logger, msgRate float64, burst int) *WSHandler {
	return &WSHandler{
		chat:    chatSrv,
		log:     logger,
		msgRate: rate.Limit(msgRate),
		burst:   burst,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	ip := clientIP(r)

	wc := newWSConn(conn)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go wc.writeLoop(ctx)

	sess, err := h.chat.Connect(wc, ip)
	if err != nil {
		// Rejected admission: close before any packet exchange.
		conn.Close(websocket.StatusPolicyViolation, "connection limit reached")
		return
	}
	defer h.chat.Disconnect(sess)
	defer wc.Close(int(websocket.StatusNormalClosure), "closing")

	var limiter *rate.Limiter
	if h.msgRate > 0 {
		limiter = rate.NewLimiter(h.msgRate, h.burst)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.log.Warn().Err(err).Str("ip", ip).Msg("ws read error")
			}
			return
		}

		if limiter != nil && !limiter.Allow() {
			h.log.Warn().Str("ip", ip).Msg("inbound message rate exceeded, dropping")
			continue
		}

		h.chat.HandleData(sess, data)
	}
}

// clientIP honors the X-Real-IP header set by a fronting proxy.
func clientIP(r *stdhttp.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// wsConn adapts a websocket connection to the engine's Conn seam: a
// buffered outbound queue drained by a writer goroutine, dropping frames
// for slow consumers instead of blocking the engine.
type wsConn struct {
	conn *websocket.Conn
	out  chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn:   conn,
		out:    make(chan []byte, outboundBuffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(data []byte) {
	select {
	case c.out <- data:
	case <-c.closed:
	default:
		// Slow consumer: drop.
	}
}

func (c *wsConn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close(websocket.StatusCode(code), reason)
	})
}

func (c *wsConn) writeLoop(ctx context.Context) {
	for {
		select {
		case data := <-c.out:
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
