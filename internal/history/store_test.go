package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/classroom-chat/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// memRepository keeps the message tables in memory with the same
// transactional guarantees as the postgres repository.
type memRepository struct {
	database.ChatRepository
	mu       sync.Mutex
	nextId   int64
	live     []database.Message
	archived []database.Message
}

func (r *memRepository) CreateMessage(_ context.Context, msg database.Message) (database.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextId++
	msg.Id = r.nextId
	r.live = append(r.live, msg)
	return msg, nil
}

func (r *memRepository) GetRecentMessages(_ context.Context, limit int) ([]database.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := max(len(r.live)-limit, 0)
	return append([]database.Message(nil), r.live[start:]...), nil
}

func (r *memRepository) CountMessages(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live), nil
}

func (r *memRepository) ArchiveMessages(_ context.Context, maxArchived int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	moved := int64(len(r.live))
	r.archived = append(r.archived, r.live...)
	r.live = nil
	if maxArchived > 0 && len(r.archived) > maxArchived {
		r.archived = r.archived[len(r.archived)-maxArchived:]
	}
	return moved, nil
}

func (r *memRepository) DeleteArchivedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []database.Message
	for _, m := range r.archived {
		if !m.CreatedAt.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	removed := int64(len(r.archived) - len(kept))
	r.archived = kept
	return removed, nil
}

func TestRecentReturnsNewestOldestFirst(t *testing.T) {
	s := NewStore(&memRepository{}, 0)
	ctx := context.Background()

	for _, body := range []string{"A", "B", "C"} {
		_, err := s.Append(ctx, "alice", "red", body)
		assert.NoError(t, err)
	}

	msgs, err := s.Recent(ctx, 2)
	assert.NoError(t, err)
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, "B", msgs[0].Content)
		assert.Equal(t, "C", msgs[1].Content)
	}
}

func TestAppendCapturesColorAndTime(t *testing.T) {
	s := NewStore(&memRepository{}, 0)
	before := Now()

	msg, err := s.Append(context.Background(), "alice", "rainbow", "hi")
	assert.NoError(t, err)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "rainbow", msg.Color)
	assert.False(t, msg.Timestamp.Before(before), "expected server-assigned timestamp")
}

func TestArchiveAndClear(t *testing.T) {
	repo := &memRepository{}
	s := NewStore(repo, 0)
	ctx := context.Background()

	for i := range 5 {
		_, err := s.Append(ctx, "bob", "blue", fmt.Sprint(i))
		assert.NoError(t, err)
	}

	n, err := s.ArchiveAndClear(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Len(t, repo.archived, 5)

	msgs, err := s.Recent(ctx, 50)
	assert.NoError(t, err)
	assert.Empty(t, msgs, "expected live table to be empty after archive")
}

func TestArchiveAndClearCapsArchive(t *testing.T) {
	repo := &memRepository{}
	s := NewStore(repo, 3)
	ctx := context.Background()

	for i := range 5 {
		s.Append(ctx, "bob", "blue", fmt.Sprint(i))
	}

	_, err := s.ArchiveAndClear(ctx)
	assert.NoError(t, err)
	if assert.Len(t, repo.archived, 3) {
		assert.Equal(t, "2", repo.archived[0].Content, "expected oldest rows to be discarded")
	}
}

func TestArchiveAndClearConcurrentAppends(t *testing.T) {
	repo := &memRepository{}
	s := NewStore(repo, 0)
	ctx := context.Background()

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				s.Append(ctx, fmt.Sprint("w", w), "red", fmt.Sprint(i))
			}
		}()
	}

	var moved int64
	for range 10 {
		n, err := s.ArchiveAndClear(ctx)
		assert.NoError(t, err)
		moved += n
	}
	wg.Wait()

	live, err := s.Recent(ctx, writers*perWriter)
	assert.NoError(t, err)
	assert.Equal(t, writers*perWriter, int(moved)+len(live), "expected every message exactly once")
	assert.Len(t, repo.archived, int(moved))
}

func TestSnapshot(t *testing.T) {
	s := NewStore(&memRepository{}, 0)
	ctx := context.Background()
	for i := range 4 {
		s.Append(ctx, "bob", "blue", fmt.Sprint(i))
	}

	msgs, n, err := s.Snapshot(ctx, 2)
	assert.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, 4, n)
}

func TestPruneArchive(t *testing.T) {
	repo := &memRepository{archived: []database.Message{
		{Id: 1, CreatedAt: Now().Add(-48 * time.Hour)},
		{Id: 2, CreatedAt: Now().Add(-time.Hour)},
	}}
	s := NewStore(repo, 0)

	n, err := s.PruneArchive(context.Background(), 24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, repo.archived, 1)

	_, err = s.PruneArchive(context.Background(), 0)
	assert.Error(t, err, "expected non-positive age to be rejected")
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	db := &database.MockChatRepository{}
	dbErr := errors.New("connection reset")
	db.On("CreateMessage", mock.Anything).Return(database.Message{}, dbErr)
	db.On("GetRecentMessages", 10).Return(nil, dbErr)
	db.On("ArchiveMessages", 0).Return(int64(0), dbErr)

	s := NewStore(db, 0)
	ctx := context.Background()

	_, err := s.Append(ctx, "a", "b", "c")
	assert.ErrorIs(t, err, dbErr)
	_, err = s.Recent(ctx, 10)
	assert.ErrorIs(t, err, dbErr)
	_, err = s.ArchiveAndClear(ctx)
	assert.ErrorIs(t, err, dbErr)
}
