package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"roomchat/internal/app/store"
	"roomchat/internal/pkg/errs"
	"roomchat/internal/pkg/randx"
)

var _ store.Store = (*Postgres)(nil)

func (p *Postgres) FindRoom(ctx context.Context, name string) (store.Room, error) {
	var room store.Room
	err := p.pool.QueryRow(ctx, `
		SELECT name, password, created_at
		FROM rooms
		WHERE name = $1
	`, name).Scan(&room.Name, &room.Password, &room.CreatedAt)

	return room, classify(err, errs.ErrRoomNotFound, 0)
}

func (p *Postgres) ListRooms(ctx context.Context) ([]store.Room, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT name, password, created_at
		FROM rooms
		ORDER BY created_at, name
	`)
	if err != nil {
		return nil, classify(err, 0, 0)
	}

	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Room, error) {
		var room store.Room
		err := row.Scan(&room.Name, &room.Password, &room.CreatedAt)
		return room, err
	})
	return rooms, classify(err, 0, 0)
}

func (p *Postgres) CreateRoom(ctx context.Context, name, password string) (store.Room, error) {
	var room store.Room
	err := p.pool.QueryRow(ctx, `
		INSERT INTO rooms (name, password)
		VALUES ($1, $2)
		RETURNING name, password, created_at
	`, name, password).Scan(&room.Name, &room.Password, &room.CreatedAt)

	return room, classify(err, 0, errs.ErrRoomNameExists)
}

func (p *Postgres) DeleteRoom(ctx context.Context, name string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rooms WHERE name = $1`, name)
	if err != nil {
		return classify(err, 0, 0)
	}
	p.logger.Debug().Str("room", name).Int64("rows", tag.RowsAffected()).Msg("Room row deleted")
	return nil
}

// AppendMessage clamps the timestamp to the room's newest message so that
// history order and timestamp order agree even if the database clock steps back.
func (p *Postgres) AppendMessage(ctx context.Context, roomName, author, body string) (store.Message, error) {
	msg := store.Message{
		ID:       randx.MessageID(),
		RoomName: roomName,
		Author:   author,
		Body:     body,
	}

	err := p.pool.QueryRow(ctx, `
		INSERT INTO messages (id, room_name, author, body, created_at)
		VALUES ($1, $2, $3, $4, GREATEST(
			clock_timestamp(),
			(SELECT max(created_at) FROM messages WHERE room_name = $2)
		))
		RETURNING created_at
	`, msg.ID, roomName, author, body).Scan(&msg.CreatedAt)
	if err != nil {
		return store.Message{}, classify(err, 0, 0)
	}

	return msg, nil
}

func (p *Postgres) ListMessages(ctx context.Context, roomName string) ([]store.Message, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, room_name, author, body, created_at
		FROM messages
		WHERE room_name = $1
		ORDER BY created_at, seq
	`, roomName)
	if err != nil {
		return nil, classify(err, 0, 0)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Message, error) {
		var msg store.Message
		err := row.Scan(&msg.ID, &msg.RoomName, &msg.Author, &msg.Body, &msg.CreatedAt)
		return msg, err
	})
	if err != nil {
		return nil, classify(err, 0, 0)
	}
	if messages == nil {
		messages = []store.Message{}
	}
	return messages, nil
}

func (p *Postgres) DeleteMessages(ctx context.Context, roomName string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM messages WHERE room_name = $1`, roomName)
	return classify(err, 0, 0)
}

func (p *Postgres) FindUser(ctx context.Context, name string) (store.User, error) {
	var user store.User
	err := p.pool.QueryRow(ctx, `
		SELECT name, created_at FROM users WHERE name = $1
	`, name).Scan(&user.Name, &user.CreatedAt)

	return user, classify(err, errs.ErrUserNotFound, 0)
}

func (p *Postgres) CreateUser(ctx context.Context, name string) (store.User, error) {
	var user store.User
	err := p.pool.QueryRow(ctx, `
		INSERT INTO users (name) VALUES ($1)
		RETURNING name, created_at
	`, name).Scan(&user.Name, &user.CreatedAt)

	return user, classify(err, 0, errs.ErrUserNameTaken)
}

// RenameUser is a single UPDATE: the primary key constraint rejects a taken
// new name and the old row is never observable as freed.
func (p *Postgres) RenameUser(ctx context.Context, oldName, newName string) (store.User, error) {
	var user store.User
	err := p.pool.QueryRow(ctx, `
		UPDATE users SET name = $2
		WHERE name = $1
		RETURNING name, created_at
	`, oldName, newName).Scan(&user.Name, &user.CreatedAt)

	return user, classify(err, errs.ErrUserNotFound, errs.ErrUserNameTaken)
}
