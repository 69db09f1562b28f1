// Package accounts holds registered identities: validation, salted password
// hashes, profile notes and signed login tokens.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/npezzotti/classroom-chat/internal/database"
	"github.com/npezzotti/classroom-chat/internal/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	MaxNameLength     = 20
	MinPasswordLength = 4
	MaxNoteLength     = 500

	// bcrypt only looks at the first 72 bytes
	maxPasswordBytes = 72
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrDuplicateName = errors.New("username already taken")
	ErrNotFound      = errors.New("account not found")
	ErrBadPassword   = errors.New("incorrect password")
)

// InputError is returned when a registration is rejected before it reaches
// storage. It matches ErrInvalidInput.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// dummyHash is compared against when an account does not exist so both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type Store struct {
	db database.ChatRepository
}

func NewStore(db database.ChatRepository) *Store {
	return &Store{db: db}
}

func (s *Store) Register(ctx context.Context, name, password string) (types.Account, error) {
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return types.Account{}, &InputError{Reason: fmt.Sprintf("username must be 1-%d characters", MaxNameLength)}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return types.Account{}, &InputError{Reason: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	if len(password) > maxPasswordBytes {
		return types.Account{}, &InputError{Reason: "password is too long"}
	}

	hash, err := hashPassword(password)
	if err != nil {
		return types.Account{}, fmt.Errorf("hash password: %w", err)
	}

	a, err := s.db.CreateAccount(ctx, database.CreateAccountParams{
		Username:     name,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return types.Account{}, ErrDuplicateName
		}
		return types.Account{}, fmt.Errorf("create account: %w", err)
	}

	return toAccount(a), nil
}

func (s *Store) Verify(ctx context.Context, name, password string) (types.Account, error) {
	a, err := s.db.GetAccount(ctx, name)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, fmt.Errorf("get account: %w", err)
	}

	if !verifyPassword(a.PasswordHash, password) {
		return types.Account{}, ErrBadPassword
	}

	return toAccount(a), nil
}

// Lookup returns the account without checking credentials.
func (s *Store) Lookup(ctx context.Context, name string) (types.Account, error) {
	a, err := s.db.GetAccount(ctx, name)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, fmt.Errorf("get account: %w", err)
	}

	return toAccount(a), nil
}

func (s *Store) Note(ctx context.Context, name string) (string, error) {
	a, err := s.Lookup(ctx, name)
	if err != nil {
		return "", err
	}
	return a.Note, nil
}

// SetNote overwrites the note, truncated to MaxNoteLength characters, and
// returns the stored text.
func (s *Store) SetNote(ctx context.Context, name, text string) (string, error) {
	text = Truncate(text, MaxNoteLength)
	if err := s.db.UpdateNote(ctx, name, text); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("update note: %w", err)
	}
	return text, nil
}

func (s *Store) TouchLogin(ctx context.Context, name string) error {
	if err := s.db.UpdateLastLogin(ctx, name, time.Now().UTC()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func toAccount(a database.Account) types.Account {
	return types.Account{
		Username:    a.Username,
		Note:        a.Note,
		IsOperator:  a.IsOperator,
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
