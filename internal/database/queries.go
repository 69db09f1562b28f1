package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"
)

const (
	uniqueViolation = "23505"

	archiveQuery = `
		WITH moved AS (
			DELETE FROM messages
			RETURNING id, username, color, content, created_at
		)
		INSERT INTO messages_archive (original_id, username, color, content, created_at, archived_at)
		SELECT id, username, color, content, created_at, $1 FROM moved`

	trimArchiveQuery = `
		DELETE FROM messages_archive
		WHERE id IN (SELECT id FROM messages_archive ORDER BY id DESC OFFSET $1)`
)

func (db *PgChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, password_hash, created_at) "+
			"VALUES ($1, $2, $3) RETURNING username, note, is_operator, created_at",
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := row.Scan(
		&a.Username,
		&a.Note,
		&a.IsOperator,
		&a.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Account{}, ErrDuplicate
		}
		return Account{}, fmt.Errorf("db error: %w", err)
	}

	a.PasswordHash = params.PasswordHash
	return a, nil
}

func (db *PgChatRepository) GetAccount(ctx context.Context, username string) (Account, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT username, password_hash, note, is_operator, created_at, last_login_at FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var (
		a         Account
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&a.Username,
		&a.PasswordHash,
		&a.Note,
		&a.IsOperator,
		&a.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("db error: %w", err)
	}

	a.LastLoginAt = lastLogin.Time
	return a, nil
}

func (db *PgChatRepository) UpdateNote(ctx context.Context, username, note string) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE accounts SET note = $2 WHERE username = $1",
		username,
		note,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return expectOneRow(res)
}

func (db *PgChatRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE accounts SET last_login_at = $2 WHERE username = $1",
		username,
		at,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PgChatRepository) CreateMessage(ctx context.Context, msg Message) (Message, error) {
	err := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (username, color, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		msg.Username,
		msg.Color,
		msg.Content,
		msg.CreatedAt,
	).Scan(&msg.Id)
	if err != nil {
		return Message{}, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

// GetRecentMessages returns up to limit of the newest live messages, oldest
// first.
func (db *PgChatRepository) GetRecentMessages(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, username, color, content, created_at FROM messages "+
			"ORDER BY id DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Id, &msg.Username, &msg.Color, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

func (db *PgChatRepository) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// ArchiveMessages moves every live message into the archive in a single
// transaction and trims the archive to the newest maxArchived rows. A message
// committed concurrently is either moved or left live, never both.
func (db *PgChatRepository) ArchiveMessages(ctx context.Context, maxArchived int) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, archiveQuery, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("move messages: %w", err)
	}

	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if maxArchived > 0 {
		if _, err = tx.ExecContext(ctx, trimArchiveQuery, maxArchived); err != nil {
			return 0, fmt.Errorf("trim archive: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return moved, nil
}

func (db *PgChatRepository) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM messages_archive WHERE created_at < $1",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return res.RowsAffected()
}
