package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkboard/inkboard/internal/domain"
)

func testMessage(roomID string) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:         uuid.New(),
		RoomID:     roomID,
		AuthorID:   uuid.New(),
		AuthorName: "Someone",
		Body:       "hello",
		CreatedAt:  time.Now(),
	}
}

func TestChatService_PostSnapshotsAuthorName(t *testing.T) {
	svc := NewChatService(newFakeChatRepo())
	author := &domain.User{ID: uuid.New(), Username: "ada", DisplayName: "Ada"}

	msg, err := svc.Post(context.Background(), "rm_test0001", author, "hello")
	require.NoError(t, err)

	assert.Equal(t, author.ID, msg.AuthorID)
	assert.Equal(t, "Ada", msg.AuthorName)
	assert.Equal(t, "hello", msg.Body)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestChatService_HistoryKeepsSendOrder(t *testing.T) {
	repo := newFakeChatRepo()
	svc := NewChatService(repo)
	author := &domain.User{ID: uuid.New(), DisplayName: "Ada"}

	for i := 0; i < 5; i++ {
		_, err := svc.Post(context.Background(), "rm_test0001", author, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	history, err := svc.History(context.Background(), "rm_test0001")
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Body)
	}
}

func TestChatService_HistoryEmptyRoom(t *testing.T) {
	svc := NewChatService(newFakeChatRepo())

	history, err := svc.History(context.Background(), "rm_empty001")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestChatService_PostStoreFailure(t *testing.T) {
	repo := newFakeChatRepo()
	repo.createErr = assert.AnError
	svc := NewChatService(repo)

	_, err := svc.Post(context.Background(), "rm_test0001", &domain.User{ID: uuid.New()}, "hello")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
