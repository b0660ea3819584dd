package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/domain/session"
	"chat-relay/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// envelope is the wire framing for every event in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one live websocket connection. It owns its Session and a buffered
// send queue; the read pump processes this client's events strictly in the
// order received.
type Client struct {
	conn      *websocket.Conn
	server    *Server
	sess      *session.Session
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	authTimer *time.Timer
	log       *slog.Logger
	monitor   *observability.Monitor
}

func newClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		conn:    conn,
		server:  server,
		sess:    session.New(),
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		log:     server.log,
		monitor: server.monitor,
	}
}

func (c *Client) Session() *session.Session {
	return c.sess
}

func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Emit queues an event for this connection. It never blocks: when the peer
// cannot drain its queue the event is dropped, so one dead connection cannot
// stall delivery to the rest of a room.
func (c *Client) Emit(event string, data any) {
	raw, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		c.log.Error("Failed to marshal outbound event", "event", event, "err", err)
		return
	}

	select {
	case c.send <- raw:
	case <-c.done:
	default:
		c.monitor.IncrDeliveryDrop()
		c.log.Warn("Dropping event for slow connection", "event", event, "remote", c.RemoteAddr())
	}
}

// Close initiates teardown. The write pump flushes whatever is already
// queued (the terminal authenticationFailed event in particular) before the
// underlying connection goes away. Safe to call from any goroutine, any
// number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump consumes events from the peer until the connection dies, then runs
// the disconnect callback. Any in-flight database writes issued by handlers
// complete normally; their results are simply never delivered.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if c.authTimer != nil {
			c.authTimer.Stop()
		}
		c.server.sessions.Disconnect(ctx, c)
		c.monitor.ConnClosed()
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Read failed", "remote", c.RemoteAddr(), "err", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.Emit(contract.EventError, contract.ErrorMessage{Message: "Invalid event envelope."})
			continue
		}

		if terminate := c.server.route(ctx, c, env); terminate {
			return
		}
	}
}

// writePump serializes all writes to the peer and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			for i := len(c.send); i > 0; i-- {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case raw := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
