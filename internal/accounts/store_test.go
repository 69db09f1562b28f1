package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/npezzotti/classroom-chat/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRegisterThenVerify(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)

	var stored database.CreateAccountParams
	db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
		return p.Username == "alice"
	})).Run(func(args mock.Arguments) {
		stored = args.Get(0).(database.CreateAccountParams)
	}).Return(database.Account{Username: "alice", CreatedAt: time.Now()}, nil).Once()

	s := NewStore(db)
	acct, err := s.Register(context.Background(), "alice", "secret")
	assert.NoError(t, err, "expected register to succeed")
	assert.Equal(t, "alice", acct.Username)
	assert.NotEqual(t, "secret", stored.PasswordHash, "expected password to be hashed")
	assert.NotEmpty(t, stored.PasswordHash)

	db.On("GetAccount", "alice").Return(database.Account{
		Username:     "alice",
		PasswordHash: stored.PasswordHash,
	}, nil).Twice()

	acct, err = s.Verify(context.Background(), "alice", "secret")
	assert.NoError(t, err, "expected verify with same password to succeed")
	assert.Equal(t, "alice", acct.Username)

	_, err = s.Verify(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadPassword)
}

func TestRegisterValidation(t *testing.T) {
	tcases := []struct {
		name     string
		username string
		password string
	}{
		{name: "empty username", username: "", password: "secret"},
		{name: "username too long", username: strings.Repeat("a", MaxNameLength+1), password: "secret"},
		{name: "password too short", username: "bob", password: "abc"},
		{name: "password too long", username: "bob", password: strings.Repeat("p", 73)},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChatRepository{}
			defer db.AssertExpectations(t)

			_, err := NewStore(db).Register(context.Background(), tc.username, tc.password)
			assert.ErrorIs(t, err, ErrInvalidInput)
			db.AssertNotCalled(t, "CreateAccount", mock.Anything)
		})
	}

	t.Run("username of exactly max length", func(t *testing.T) {
		db := &database.MockChatRepository{}
		name := strings.Repeat("é", MaxNameLength)
		db.On("CreateAccount", mock.Anything).Return(database.Account{Username: name}, nil).Once()

		_, err := NewStore(db).Register(context.Background(), name, "pass")
		assert.NoError(t, err)
	})
}

func TestRegisterDuplicate(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateAccount", mock.Anything).Return(database.Account{}, database.ErrDuplicate).Once()

	_, err := NewStore(db).Register(context.Background(), "alice", "another")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestRegisterStorageError(t *testing.T) {
	db := &database.MockChatRepository{}
	db.On("CreateAccount", mock.Anything).Return(database.Account{}, errors.New("connection refused")).Once()

	_, err := NewStore(db).Register(context.Background(), "alice", "secret")
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, ErrDuplicateName)
}

func TestVerifyUnknownAccount(t *testing.T) {
	db := &database.MockChatRepository{}
	db.On("GetAccount", "ghost").Return(database.Account{}, database.ErrNotFound).Once()

	_, err := NewStore(db).Verify(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotes(t *testing.T) {
	t.Run("get note", func(t *testing.T) {
		db := &database.MockChatRepository{}
		db.On("GetAccount", "alice").Return(database.Account{Username: "alice", Note: "hello"}, nil).Once()

		note, err := NewStore(db).Note(context.Background(), "alice")
		assert.NoError(t, err)
		assert.Equal(t, "hello", note)
	})

	t.Run("set note truncates", func(t *testing.T) {
		db := &database.MockChatRepository{}
		defer db.AssertExpectations(t)
		long := strings.Repeat("x", MaxNoteLength+25)
		db.On("UpdateNote", "alice", strings.Repeat("x", MaxNoteLength)).Return(nil).Once()

		note, err := NewStore(db).SetNote(context.Background(), "alice", long)
		assert.NoError(t, err)
		assert.Len(t, note, MaxNoteLength)
	})

	t.Run("set note on missing account", func(t *testing.T) {
		db := &database.MockChatRepository{}
		db.On("UpdateNote", "ghost", "x").Return(database.ErrNotFound).Once()

		_, err := NewStore(db).SetNote(context.Background(), "ghost", "x")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTouchLogin(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	before := time.Now().UTC()
	db.On("UpdateLastLogin", "alice", mock.MatchedBy(func(at time.Time) bool {
		return !at.Before(before)
	})).Return(nil).Once()

	assert.NoError(t, NewStore(db).TouchLogin(context.Background(), "alice"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "日本", Truncate("日本語", 2))
}
