/*
Package chat contains the room lifecycle and broadcast coordination engine.

This file defines the Client struct, the WebSocket side of a session. It runs
the read and write loops and turns inbound frames into session operations.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// sendQueueSize is the number of outbound frames buffered per client.
	sendQueueSize = 256

	// requestTimeout bounds the store work triggered by one inbound frame.
	requestTimeout = 5 * time.Second

	// inbound frame budget per connection.
	eventsPerSecond = 10
	eventBurst      = 20
)

// ErrClientGone is returned by Send once the client has disconnected.
var ErrClientGone = errors.New("client connection closed")

// ErrSendQueueFull is returned by Send when the client cannot keep up.
var ErrSendQueueFull = errors.New("client send queue full")

// Client struct represents an active WebSocket connection and its session.
type Client struct {
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	session *Session

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// closed when the client is torn down; guards send against late writers.
	done      chan struct{}
	closeOnce sync.Once

	limiter *rate.Limiter

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client for wsConn and opens its session in the lobby.
func NewClient(hub *Hub, wsConn *websocket.Conn, displayName string) *Client {
	id := randx.ConnectionID()

	c := &Client{
		id:      id,
		conn:    wsConn,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(eventsPerSecond, eventBurst),
		logger:  logx.Logger().With().Str("conn_id", id).Logger(),
	}
	c.session = hub.NewSession(c, displayName)

	return c
}

// ID implements Conn.
func (c *Client) ID() string { return c.id }

// Session returns the session bound to this client.
func (c *Client) Session() *Session { return c.session }

// Send implements Conn. It never blocks; a slow client loses frames rather
// than stalling the broadcaster.
func (c *Client) Send(evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClientGone
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientGone
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame")
		return ErrSendQueueFull
	}
}

// SendError reports a rejected request to this client only.
func (c *Client) SendError(err error) {
	customErr := errs.From(err)
	if customErr.Cause != nil {
		c.logger.Warn().Err(customErr.Cause).Int("code", customErr.Code).Msg("Request failed")
	}

	if sendErr := c.Send(Event{
		Type:    EventError,
		Payload: ErrorPayload{Code: customErr.Code, Reason: customErr.Message},
	}); sendErr != nil {
		c.logger.Error().Err(sendErr).Msg("Failed to queue error event")
	}
}

// ReadPump reads frames until the connection fails, then disconnects the session.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (Client close/going away)")
			}
			break
		}

		if !c.limiter.Allow() {
			c.SendError(errs.NewError(errs.ErrRateLimitExceeded))
			continue
		}

		c.processInboundFrame(frame)
	}
}

// cleanupOnDisconnect leaves the current room, drops subscriptions and stops the write loop.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.session.Disconnect()
	c.closeOnce.Do(func() { close(c.done) })

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundFrame decodes one frame and dispatches it to the session.
func (c *Client) processInboundFrame(frame []byte) {
	var inbound InboundEvent
	if err := json.Unmarshal(frame, &inbound); err != nil {
		c.logger.Warn().Err(err).Int("frame_bytes", len(frame)).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var err error
	switch inbound.Type {
	case EventJoinRoom:
		var p JoinRoomPayload
		if err = decodePayload(inbound.Payload, &p); err == nil {
			err = c.session.Join(ctx, p.RoomName, p.Password, p.DisplayName)
		}

	case EventSendMessage:
		var p SendMessagePayload
		if err = decodePayload(inbound.Payload, &p); err == nil {
			err = c.session.Send(ctx, p.RoomName, p.Body, p.DisplayName)
		}

	case EventLeaveRoom:
		var p LeaveRoomPayload
		if err = decodePayload(inbound.Payload, &p); err == nil {
			c.session.Leave(p.RoomName)
		}

	default:
		c.logger.Warn().Str("event", string(inbound.Type)).Msg("Client sent unsupported event")
		err = errs.NewError(errs.ErrUnsupportedEvent, string(inbound.Type))
	}

	if err != nil {
		c.SendError(err)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errs.NewError(errs.ErrInvalidParams, err)
	}
	return nil
}

// WritePump writes queued frames and heartbeats until the client is torn down.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(frame) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}

		case <-c.done:
			c.writeClose()
			return
		}
	}
}

// writeFrame writes one queued frame. Returns false if the loop should terminate.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePing sends a periodic WebSocket Ping to maintain the connection heartbeat.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

func (c *Client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
