// Package history is the durable chat log: the live message table replayed
// to new sessions, and the archive it is rotated into.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/npezzotti/classroom-chat/internal/database"
	"github.com/npezzotti/classroom-chat/internal/types"
)

type Store struct {
	db          database.ChatRepository
	maxArchived int
}

// NewStore returns a Store whose archive keeps at most maxArchived rows.
// A non-positive maxArchived leaves the archive uncapped.
func NewStore(db database.ChatRepository, maxArchived int) *Store {
	return &Store{db: db, maxArchived: maxArchived}
}

// Append stores one message stamped with the server time and returns it as
// it was stored.
func (s *Store) Append(ctx context.Context, author, color, body string) (types.Message, error) {
	msg, err := s.db.CreateMessage(ctx, database.Message{
		Username:  author,
		Color:     color,
		Content:   body,
		CreatedAt: Now(),
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}

	return toMessage(msg), nil
}

// Recent returns up to limit of the newest live messages, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.Message, error) {
	msgs, err := s.db.GetRecentMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}

	out := make([]types.Message, len(msgs))
	for i, m := range msgs {
		out[i] = toMessage(m)
	}
	return out, nil
}

// Snapshot returns a bounded view of the live table and its total row count.
func (s *Store) Snapshot(ctx context.Context, limit int) ([]types.Message, int, error) {
	msgs, err := s.Recent(ctx, limit)
	if err != nil {
		return nil, 0, err
	}

	n, err := s.db.CountMessages(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	return msgs, n, nil
}

// ArchiveAndClear moves the live table into the archive and returns the
// number of rows moved.
func (s *Store) ArchiveAndClear(ctx context.Context) (int64, error) {
	n, err := s.db.ArchiveMessages(ctx, s.maxArchived)
	if err != nil {
		return 0, fmt.Errorf("archive messages: %w", err)
	}
	return n, nil
}

// PruneArchive deletes archived messages older than maxAge.
func (s *Store) PruneArchive(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("invalid archive age %s", maxAge)
	}

	n, err := s.db.DeleteArchivedBefore(ctx, Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("delete archived messages: %w", err)
	}
	return n, nil
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Username:  m.Username,
		Color:     m.Color,
		Content:   m.Content,
		Timestamp: m.CreatedAt,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
