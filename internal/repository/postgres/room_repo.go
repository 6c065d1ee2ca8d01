package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/inkboard/inkboard/internal/domain"
	"github.com/inkboard/inkboard/internal/repository"
)

type RoomRepo struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

// Create inserts the room and the host's ever-joined row in one
// transaction so a half-created room is never visible to lookups.
func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rooms (id, public_id, name, host_id, active, board_snapshot, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.Exec(ctx, query,
		room.ID, room.PublicID, room.Name, room.HostID, room.Active,
		room.BoardSnapshot, room.CreatedAt, room.UpdatedAt, room.ExpiresAt,
	)
	if err != nil {
		return mapPgError(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		room.ID, room.HostID, room.CreatedAt,
	)
	if err != nil {
		return mapPgError(err)
	}

	return tx.Commit(ctx)
}

func (r *RoomRepo) GetByPublicID(ctx context.Context, publicID string) (*domain.Room, error) {
	query := `
		SELECT id, public_id, name, host_id, active, board_snapshot, created_at, updated_at, expires_at
		FROM rooms WHERE public_id = $1`
	var room domain.Room
	err := r.pool.QueryRow(ctx, query, publicID).Scan(
		&room.ID, &room.PublicID, &room.Name, &room.HostID, &room.Active,
		&room.BoardSnapshot, &room.CreatedAt, &room.UpdatedAt, &room.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepo) SetInactive(ctx context.Context, publicID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE rooms SET active = false, updated_at = $1 WHERE public_id = $2`,
		time.Now(), publicID,
	)
	return err
}

func (r *RoomRepo) SaveBoardSnapshot(ctx context.Context, publicID string, blob []byte) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE rooms SET board_snapshot = $1, updated_at = $2 WHERE public_id = $3`,
		blob, time.Now(), publicID,
	)
	return err
}

func (r *RoomRepo) AddMember(ctx context.Context, publicID string, userID uuid.UUID) error {
	query := `
		INSERT INTO room_members (room_id, user_id, joined_at)
		SELECT id, $2, $3 FROM rooms WHERE public_id = $1
		ON CONFLICT (room_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, publicID, userID, time.Now())
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE rooms SET updated_at = $1 WHERE public_id = $2`, time.Now(), publicID)
	return err
}

func (r *RoomRepo) ListMembers(ctx context.Context, publicID string) ([]uuid.UUID, error) {
	query := `
		SELECT rm.user_id
		FROM room_members rm
		JOIN rooms r ON r.id = rm.room_id
		WHERE r.public_id = $1
		ORDER BY rm.joined_at`
	rows, err := r.pool.Query(ctx, query, publicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// DeleteExpired is the TTL reaper. The row trigger in schema.sql
// publishes each deleted public_id on the room_deleted channel, which the
// lifecycle supervisor consumes for the chat cascade.
func (r *RoomRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// mapPgError converts unique violations to repository.ErrDuplicateKey so
// services can retry id generation without importing pgconn.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrDuplicateKey
	}
	return err
}
