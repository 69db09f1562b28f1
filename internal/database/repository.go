package database

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// ChatRepository is the durable side of the chat: accounts, the live message
// table and its archive.
type ChatRepository interface {
	Ping(ctx context.Context) error
	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	GetAccount(ctx context.Context, username string) (Account, error)
	UpdateNote(ctx context.Context, username, note string) error
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	CreateMessage(ctx context.Context, msg Message) (Message, error)
	GetRecentMessages(ctx context.Context, limit int) ([]Message, error)
	CountMessages(ctx context.Context) (int, error)
	ArchiveMessages(ctx context.Context, maxArchived int) (int64, error)
	DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
