package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/inkboard/inkboard/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeCreateRoom         = "createRoom"
	EventTypeJoinRoom           = "joinRoom"
	EventTypeLeaveRoom          = "leaveRoom"
	EventTypeUpdateBoard        = "updateBoard"
	EventTypeRequestChatHistory = "requestChatHistory"
	EventTypeSendChatMessage    = "sendChatMessage"
	EventTypeSetPermissions     = "setPermissions"
)

// Event types - Server → Client
const (
	EventTypeRoomCreated        = "roomCreated"
	EventTypeRoomJoined         = "roomJoined"
	EventTypeParticipantJoined  = "participantJoined"
	EventTypeParticipantLeft    = "participantLeft"
	EventTypeRoomClosed         = "roomClosed"
	EventTypeBoardUpdate        = "boardUpdate"
	EventTypeChatHistory        = "chatHistory"
	EventTypeChatMessage        = "chatMessage"
	EventTypePermissionsUpdated = "permissionsUpdated"
	EventTypeOperationFailed    = "operationFailed"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type CreateRoomPayload struct {
	Name string `json:"name"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type UpdateBoardPayload struct {
	RoomID string `json:"roomId"`
	// State is opaque to the engine: it is relayed and persisted
	// verbatim, never interpreted.
	State json.RawMessage `json:"state"`
}

type RequestChatHistoryPayload struct {
	RoomID string `json:"roomId"`
}

type SendChatMessagePayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type SetPermissionsPayload struct {
	RoomID            string      `json:"roomId"`
	AllowedIdentities []uuid.UUID `json:"allowedIdentities"`
}

// --- Server → Client payloads ---

// Participant identifies a roster member to clients.
type Participant struct {
	Identity uuid.UUID `json:"identity"`
	Name     string    `json:"name"`
}

type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type RoomJoinedPayload struct {
	RoomID     string          `json:"roomId"`
	Name       string          `json:"name"`
	BoardState json.RawMessage `json:"boardState"`
	Roster     []Participant   `json:"roster"`
	Self       Participant     `json:"self"`
}

type BoardUpdatePayload struct {
	State json.RawMessage `json:"state"`
}

type ChatHistoryPayload struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type ChatMessagePayload struct {
	Message domain.ChatMessage `json:"message"`
}

type PermissionsUpdatedPayload struct {
	AllowedIdentities []uuid.UUID `json:"allowedIdentities"`
}

type OperationFailedPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
