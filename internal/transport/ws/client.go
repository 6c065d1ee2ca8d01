package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/inkboard/inkboard/internal/domain"
	"github.com/inkboard/inkboard/internal/service"
	"github.com/inkboard/inkboard/pkg/validator"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	// Board blobs ride the same socket as chat, so the read limit is
	// sized for serialized canvases, not text.
	maxMessageSize = 512 * 1024
	sendBufSize    = 256
)

// Client represents one authenticated WebSocket connection. The transport
// reports connection ids, not identities, so the hub's presence index is
// keyed by connID.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	user   *domain.User
	connID uuid.UUID
	log    *logrus.Entry

	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, user *domain.User) *Client {
	connID := uuid.New()
	return &Client{
		hub:    hub,
		conn:   conn,
		user:   user,
		connID: connID,
		log: logrus.WithFields(logrus.Fields{
			"component": "ws_client",
			"conn_id":   connID,
			"user_id":   user.ID,
		}),
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
}

// close makes the client stop receiving broadcasts. The send channel is
// never closed: fan-out from other rooms' goroutines may still race a
// teardown, and a non-blocking send to a full-but-open channel is safe
// where a send to a closed one is not.
func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// ReadPump reads events from the socket and routes them until the
// connection drops, then reports the disconnect to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.close()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.log.Info("client disconnected")
			} else {
				c.log.WithError(err).Warn("read error")
			}
			return
		}
		c.handleEvent(&event)
	}
}

// WritePump writes queued messages to the socket and keeps it alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.WithError(err).Warn("write error")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.WithError(err).Warn("ping error")
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes one inbound event. Per-event failures go back to
// this connection only; nothing here can take down the hub or another
// room.
func (c *Client) handleEvent(event *Event) {
	ctx := context.Background()

	switch event.Type {
	case EventTypeCreateRoom:
		var p CreateRoomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendFailure("INVALID_PAYLOAD", "invalid createRoom payload")
			return
		}
		if errs := validator.ValidateRoomName(p.Name); errs.HasErrors() {
			c.sendFailure("INVALID_PAYLOAD", errs.First())
			return
		}
		room, err := c.hub.CreateRoom(ctx, c, p.Name)
		if err != nil {
			c.reportError(err)
			return
		}
		c.sendEvent(EventTypeRoomCreated, RoomCreatedPayload{RoomID: room.PublicID, Name: room.Name})

	case EventTypeJoinRoom:
		var p JoinRoomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendFailure("INVALID_PAYLOAD", "invalid joinRoom payload")
			return
		}
		if err := c.hub.JoinRoom(ctx, c, p.RoomID); err != nil {
			c.reportError(err)
		}

	case EventTypeLeaveRoom:
		var p LeaveRoomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendFailure("INVALID_PAYLOAD", "invalid leaveRoom payload")
			return
		}
		c.hub.LeaveRoom(ctx, c, p.RoomID)

	case EventTypeUpdateBoard:
		var p UpdateBoardPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendFailure("INVALID_PAYLOAD", "invalid updateBoard payload")
			return
		}
		if errs := validator.ValidateBoardState(p.State); errs.HasErrors() {
			c.sendFailure("INVALID_PAYLOAD", errs.First())
			return
		}
		if err := c.hub.UpdateBoard(ctx, c, p.RoomID, p.State); err != nil {
			c.reportError(err)
		}

	case EventTypeRequestChatHistory:
		var p RequestChatHistoryPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendFailure("INVALID_PAYLOAD", "invalid requestChatHistory payload")
			return
		}
		if err := c.hub.SendChatHistory(ctx, c, p.RoomID); err != nil {
			c.reportError(err)
		}

	case EventTypeSendChatMessage:
		var p SendChatMessagePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendFailure("INVALID_PAYLOAD", "invalid sendChatMessage payload")
			return
		}
		if errs := validator.ValidateChatText(p.Text); errs.HasErrors() {
			c.sendFailure("INVALID_PAYLOAD", errs.First())
			return
		}
		if err := c.hub.SendChat(ctx, c, p.RoomID, p.Text); err != nil {
			c.reportError(err)
		}

	case EventTypeSetPermissions:
		var p SetPermissionsPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendFailure("INVALID_PAYLOAD", "invalid setPermissions payload")
			return
		}
		if err := c.hub.SetPermissions(ctx, c, p.RoomID, p.AllowedIdentities); err != nil {
			c.reportError(err)
		}

	default:
		c.sendFailure("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

// reportError maps service errors onto operationFailed codes.
func (c *Client) reportError(err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		c.sendFailure("ROOM_NOT_FOUND", "room not found")
	case errors.Is(err, service.ErrNotRoomHost):
		c.sendFailure("NOT_HOST", "only the room host can do this")
	case errors.Is(err, service.ErrStoreUnavailable):
		c.sendFailure("STORE_UNAVAILABLE", "the operation could not be saved, try again")
	default:
		c.log.WithError(err).Error("unhandled event error")
		c.sendFailure("INTERNAL", "something went wrong")
	}
}

func (c *Client) sendEvent(eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		c.log.WithError(err).WithField("event", eventType).Error("marshal error")
		return
	}
	c.enqueue(evt)
}

func (c *Client) sendFailure(code, message string) {
	evt, err := NewEvent(EventTypeOperationFailed, OperationFailedPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.enqueue(evt)
}

// enqueue marshals and queues one event for this client.
func (c *Client) enqueue(evt *Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	c.enqueueData(evt.Type, data)
}

// enqueueData queues pre-marshaled bytes without blocking. A full buffer
// means the client is too slow or gone; real-time delivery is
// best-effort, so the event is dropped and the durable state catches the
// client up when it reconnects.
func (c *Client) enqueueData(eventType string, data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.log.WithField("event", eventType).Warn("send buffer full, dropping event")
	}
}
