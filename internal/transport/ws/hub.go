package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inkboard/inkboard/internal/domain"
	"github.com/inkboard/inkboard/internal/service"
)

// Hub owns all live room state: the session map and the connection →
// session presence index. Roster mutations for one room are serialized by
// that session's mutex; unrelated rooms never contend.
type Hub struct {
	log     *logrus.Entry
	roomSvc *service.RoomService
	chatSvc *service.ChatService
	boards  *service.BoardSync

	mu    sync.RWMutex
	rooms map[string]*session

	// byConn is the socket-to-identity map from the original design,
	// owned privately here and mutated only through join/leave paths.
	connMu sync.RWMutex
	byConn map[uuid.UUID]*session
}

// session is one live room. Its mutex is the room's exclusive scope:
// every roster read or write and every fan-out goes through it.
type session struct {
	mu      sync.Mutex
	room    *domain.Room
	members []*member
	closed  bool
}

// member is one roster entry, unique by identity. A reconnect replaces
// client in place rather than appending.
type member struct {
	userID uuid.UUID
	name   string
	client *Client
}

func NewHub(roomSvc *service.RoomService, chatSvc *service.ChatService, boards *service.BoardSync) *Hub {
	return &Hub{
		log:     logrus.WithField("component", "hub"),
		roomSvc: roomSvc,
		chatSvc: chatSvc,
		boards:  boards,
		rooms:   make(map[string]*session),
		byConn:  make(map[uuid.UUID]*session),
	}
}

// CreateRoom allocates a room with the creator as host and sole
// participant. The caller sends roomCreated back to the creator.
func (h *Hub) CreateRoom(ctx context.Context, c *Client, name string) (*domain.Room, error) {
	// A connection is in at most one room; creating implies leaving.
	h.leaveCurrent(ctx, c)

	room, err := h.roomSvc.Create(ctx, name, c.user)
	if err != nil {
		return nil, err
	}

	sess := &session{room: room}
	sess.members = append(sess.members, &member{
		userID: c.user.ID,
		name:   c.user.DisplayName,
		client: c,
	})

	h.mu.Lock()
	h.rooms[room.PublicID] = sess
	h.mu.Unlock()
	h.setConn(c.connID, sess)

	return room, nil
}

// JoinRoom admits the connection to an active room, answering with
// roomJoined (roster + current board) and the room's chat history, and
// tells everyone else about the newcomer. Rejoining with an identity
// already on the roster is the reconnect path: it replaces the stale
// connection id without growing the roster or re-announcing.
func (h *Hub) JoinRoom(ctx context.Context, c *Client, roomID string) error {
	if cur := h.sessionByConn(c.connID); cur != nil && cur.roomIDLocked() != roomID {
		h.leaveCurrent(ctx, c)
	}

	sess, err := h.sessionFor(ctx, roomID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return fmt.Errorf("%w: %s is closed", service.ErrRoomNotFound, roomID)
	}

	existing := sess.memberByIdentity(c.user.ID)
	if existing == nil {
		// Fresh identity: the audit set grows before the roster does,
		// so a store failure leaves no phantom participant.
		if err := h.roomSvc.RecordJoin(ctx, roomID, c.user.ID); err != nil {
			return err
		}
	}

	history, err := h.chatSvc.History(ctx, roomID)
	if err != nil {
		return err
	}
	board := h.boards.Current(ctx, sess.room)

	if existing != nil {
		// Reconnect: the old connection is superseded and will get no
		// further broadcasts for this room.
		h.dropConn(existing.client.connID)
		existing.client = c
	} else {
		sess.members = append(sess.members, &member{
			userID: c.user.ID,
			name:   c.user.DisplayName,
			client: c,
		})
		sess.broadcast(EventTypeParticipantJoined, Participant{
			Identity: c.user.ID,
			Name:     c.user.DisplayName,
		}, c.connID)
	}
	h.setConn(c.connID, sess)

	c.sendEvent(EventTypeRoomJoined, RoomJoinedPayload{
		RoomID:     sess.room.PublicID,
		Name:       sess.room.Name,
		BoardState: json.RawMessage(board),
		Roster:     sess.roster(c.user.ID),
		Self:       Participant{Identity: c.user.ID, Name: c.user.DisplayName},
	})
	c.sendEvent(EventTypeChatHistory, ChatHistoryPayload{Messages: history})

	h.log.WithFields(logrus.Fields{
		"room_id":   roomID,
		"user_id":   c.user.ID,
		"conn_id":   c.connID,
		"reconnect": existing != nil,
	}).Info("participant joined")
	return nil
}

// UpdateBoard relays the opaque blob to every other participant first,
// then hands it to the coalescing persister. The sender never sees its
// own update echoed and never waits on (or hears about) persistence.
func (h *Hub) UpdateBoard(ctx context.Context, c *Client, roomID string, state []byte) error {
	sess := h.getSession(roomID)
	if sess == nil {
		return fmt.Errorf("%w: %s", service.ErrRoomNotFound, roomID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed || sess.memberByConn(c.connID) == nil {
		return fmt.Errorf("%w: %s", service.ErrRoomNotFound, roomID)
	}

	sess.broadcast(EventTypeBoardUpdate, BoardUpdatePayload{State: json.RawMessage(state)}, c.connID)
	h.boards.Submit(roomID, state)
	return nil
}

// SendChat appends the message and echoes it to every participant,
// sender included, so all clients render from the same authoritative
// event. A failed append is reported to the sender and nothing is
// broadcast.
func (h *Hub) SendChat(ctx context.Context, c *Client, roomID string, text string) error {
	sess := h.getSession(roomID)
	if sess == nil {
		return fmt.Errorf("%w: %s", service.ErrRoomNotFound, roomID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed || sess.memberByConn(c.connID) == nil {
		return fmt.Errorf("%w: %s", service.ErrRoomNotFound, roomID)
	}

	msg, err := h.chatSvc.Post(ctx, roomID, c.user, text)
	if err != nil {
		return err
	}
	sess.broadcast(EventTypeChatMessage, ChatMessagePayload{Message: *msg}, uuid.Nil)
	return nil
}

// SendChatHistory returns the ordered log to the requesting connection.
func (h *Hub) SendChatHistory(ctx context.Context, c *Client, roomID string) error {
	sess := h.getSession(roomID)
	if sess == nil {
		return fmt.Errorf("%w: %s", service.ErrRoomNotFound, roomID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed || sess.memberByConn(c.connID) == nil {
		return fmt.Errorf("%w: %s", service.ErrRoomNotFound, roomID)
	}

	history, err := h.chatSvc.History(ctx, roomID)
	if err != nil {
		return err
	}
	c.sendEvent(EventTypeChatHistory, ChatHistoryPayload{Messages: history})
	return nil
}

// SetPermissions broadcasts the host's edit-rights decision to everyone,
// host included. It is advisory state: nothing is persisted, and a
// reconnecting host re-issues it if still wanted. Non-hosts are refused.
func (h *Hub) SetPermissions(ctx context.Context, c *Client, roomID string, allowed []uuid.UUID) error {
	sess := h.getSession(roomID)
	if sess == nil {
		return fmt.Errorf("%w: %s", service.ErrRoomNotFound, roomID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed || sess.memberByConn(c.connID) == nil {
		return fmt.Errorf("%w: %s", service.ErrRoomNotFound, roomID)
	}
	if c.user.ID != sess.room.HostID {
		return service.ErrNotRoomHost
	}

	if allowed == nil {
		allowed = []uuid.UUID{}
	}
	sess.broadcast(EventTypePermissionsUpdated, PermissionsUpdatedPayload{AllowedIdentities: allowed}, uuid.Nil)
	return nil
}

// LeaveRoom handles an explicit leave without dropping the connection.
// Leaving a room the connection is not in is a no-op.
func (h *Hub) LeaveRoom(ctx context.Context, c *Client, roomID string) {
	sess := h.sessionByConn(c.connID)
	if sess == nil || sess.roomIDLocked() != roomID {
		return
	}
	h.leave(ctx, c, sess)
}

// Disconnect reacts to a transport-level drop. Resolving an unknown
// connection is a no-op, which makes double-fired disconnect
// notifications harmless.
func (h *Hub) Disconnect(c *Client) {
	h.leaveCurrent(context.Background(), c)
}

func (h *Hub) leaveCurrent(ctx context.Context, c *Client) {
	sess := h.sessionByConn(c.connID)
	if sess == nil {
		return
	}
	h.leave(ctx, c, sess)
}

// leave removes the connection's roster entry. Host departure is
// terminal: the room closes, everyone remaining hears roomClosed exactly
// once and is evicted. A non-host departure just shrinks the roster —
// an emptied room stays live until its host leaves or the TTL reaps it.
func (h *Hub) leave(ctx context.Context, c *Client, sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	h.dropConn(c.connID)

	m := sess.memberByConn(c.connID)
	if m == nil {
		// Superseded connection: the roster slot now belongs to a newer
		// connection of the same identity. Nothing to announce.
		return
	}
	sess.remove(m)

	roomID := sess.room.PublicID
	if m.userID == sess.room.HostID {
		sess.closed = true
		if err := h.roomSvc.Close(ctx, roomID); err != nil {
			// The in-memory close stands either way; the room record
			// stays active in the store until the write succeeds or the
			// TTL reaps it.
			h.log.WithError(err).WithField("room_id", roomID).Error("failed to persist room close")
		}
		sess.broadcast(EventTypeRoomClosed, struct{}{}, uuid.Nil)
		for _, rest := range sess.members {
			h.dropConn(rest.client.connID)
		}
		sess.members = nil
		h.boards.Forget(roomID)
		h.dropSession(roomID)
		h.log.WithFields(logrus.Fields{"room_id": roomID, "host_id": m.userID}).Info("host left, room closed")
		return
	}

	sess.broadcast(EventTypeParticipantLeft, Participant{Identity: m.userID, Name: m.name}, uuid.Nil)
	if len(sess.members) == 0 {
		// Drop the idle session; it is rebuilt from the store on the
		// next join.
		h.dropSession(roomID)
	}
	h.log.WithFields(logrus.Fields{"room_id": roomID, "user_id": m.userID}).Info("participant left")
}

// sessionFor returns the live session for an active room, rehydrating it
// from the store when this process has no in-memory state for it yet.
func (h *Hub) sessionFor(ctx context.Context, roomID string) (*session, error) {
	if sess := h.getSession(roomID); sess != nil {
		return sess, nil
	}

	room, err := h.roomSvc.FindActive(ctx, roomID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sess, ok := h.rooms[roomID]; ok {
		return sess, nil
	}
	sess := &session{room: room}
	h.rooms[roomID] = sess
	return sess, nil
}

func (h *Hub) getSession(roomID string) *session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) dropSession(roomID string) {
	h.mu.Lock()
	delete(h.rooms, roomID)
	h.mu.Unlock()
}

func (h *Hub) sessionByConn(connID uuid.UUID) *session {
	h.connMu.RLock()
	defer h.connMu.RUnlock()
	return h.byConn[connID]
}

func (h *Hub) setConn(connID uuid.UUID, sess *session) {
	h.connMu.Lock()
	h.byConn[connID] = sess
	h.connMu.Unlock()
}

func (h *Hub) dropConn(connID uuid.UUID) {
	h.connMu.Lock()
	delete(h.byConn, connID)
	h.connMu.Unlock()
}

// --- session helpers; all require sess.mu to be held ---

func (s *session) memberByIdentity(userID uuid.UUID) *member {
	for _, m := range s.members {
		if m.userID == userID {
			return m
		}
	}
	return nil
}

func (s *session) memberByConn(connID uuid.UUID) *member {
	for _, m := range s.members {
		if m.client.connID == connID {
			return m
		}
	}
	return nil
}

func (s *session) remove(target *member) {
	for i, m := range s.members {
		if m == target {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return
		}
	}
}

// roster lists the members other than self; the joiner is reported
// separately in the payload's Self field.
func (s *session) roster(self uuid.UUID) []Participant {
	roster := make([]Participant, 0, len(s.members))
	for _, m := range s.members {
		if m.userID == self {
			continue
		}
		roster = append(roster, Participant{Identity: m.userID, Name: m.name})
	}
	return roster
}

// broadcast marshals once and fans out non-blocking to every member
// except the connection named by except (uuid.Nil sends to everyone).
// Receivers are never waited on; a slow client only loses its own events.
func (s *session) broadcast(eventType string, payload any, except uuid.UUID) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", eventType).Error("broadcast marshal error")
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, m := range s.members {
		if except != uuid.Nil && m.client.connID == except {
			continue
		}
		m.client.enqueueData(eventType, data)
	}
}

// roomIDLocked takes the session lock just long enough to read the id.
func (s *session) roomIDLocked() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.PublicID
}
