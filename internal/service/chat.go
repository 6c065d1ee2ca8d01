package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inkboard/inkboard/internal/domain"
	"github.com/inkboard/inkboard/internal/repository"
)

// ChatService is the append log: per-room, ordered by creation time with
// insertion order breaking ties, never mutated after the append.
type ChatService struct {
	messages repository.ChatRepository
}

func NewChatService(messages repository.ChatRepository) *ChatService {
	return &ChatService{messages: messages}
}

// Post appends a message authored by author. The author's display name is
// snapshotted at post time and never re-resolved. Unlike board snapshots,
// a failed append is reported to the caller after one attempt: the sender
// is waiting for the echo.
func (s *ChatService) Post(ctx context.Context, roomID string, author *domain.User, body string) (*domain.ChatMessage, error) {
	msg := &domain.ChatMessage{
		ID:         uuid.New(),
		RoomID:     roomID,
		AuthorID:   author.ID,
		AuthorName: author.DisplayName,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: appending chat message: %v", ErrStoreUnavailable, err)
	}
	return msg, nil
}

// History returns the room's full message log in send order. Read-only
// and safe to call any number of times.
func (s *ChatService) History(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	messages, err := s.messages.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading chat history: %v", ErrStoreUnavailable, err)
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}
