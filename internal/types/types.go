package types

import (
	"time"
)

// Message is a chat message as it is shown to clients, both live and in
// history replays.
type Message struct {
	Username  string    `json:"username"`
	Color     string    `json:"color"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Account struct {
	Username    string    `json:"username"`
	Note        string    `json:"note,omitempty"`
	IsOperator  bool      `json:"is_operator,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	LastLoginAt time.Time `json:"last_login_at,omitempty"`
}
