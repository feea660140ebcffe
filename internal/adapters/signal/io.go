package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edgemeet/huddle/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

const writeTimeout = 5 * time.Second

// request is a client→server RPC call.
type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Data   core.RawMessage `json:"data,omitempty"`
}

// response answers exactly one request.
type response struct {
	ID    uint64 `json:"id"`
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// notification is a fire-and-forget server→client event.
type notification struct {
	Method string `json:"method"`
	Data   any    `json:"data"`
}

// peerConn is the websocket-backed signal connection for one peer.
type peerConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newPeerConn(ws *websocket.Conn) *peerConn {
	return &peerConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
}

func (c *peerConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *peerConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (ctl *Controller) writePump(ctx context.Context, c *peerConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump delivers this peer's requests in arrival order; handler bodies run
// inline so one peer never has two requests in flight.
func (ctl *Controller) readPump(ctx context.Context, sess *session, c *peerConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("peer", string(sess.peerID)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("peer", string(sess.peerID)).Msg("readPump read error")
				return
			}
			ctl.handleData(ctx, sess, data)
		}
	}
}

func (ctl *Controller) handleData(ctx context.Context, sess *session, data []byte) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("peer", string(sess.peerID)).Msg("bad request json")
		return
	}
	resp := ctl.handleRequest(ctx, sess, &req)
	ctl.send(sess.conn, resp)
}

func (ctl *Controller) send(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("send marshal")
		return
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("send dropped")
	}
}

func encodeNotification(method string, data any) (core.Frame, error) {
	b, err := json.Marshal(notification{Method: method, Data: data})
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
