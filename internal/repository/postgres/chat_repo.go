package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/inkboard/inkboard/internal/domain"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Create(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, room_id, author_id, author_name, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`
	return r.pool.QueryRow(ctx, query,
		msg.ID, msg.RoomID, msg.AuthorID, msg.AuthorName, msg.Body, msg.CreatedAt,
	).Scan(&msg.Seq)
}

func (r *ChatRepo) ListByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, room_id, author_id, author_name, body, created_at, seq
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at, seq`
	rows, err := r.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(
			&msg.ID, &msg.RoomID, &msg.AuthorID, &msg.AuthorName,
			&msg.Body, &msg.CreatedAt, &msg.Seq,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *ChatRepo) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chat_messages WHERE room_id = $1`, roomID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
