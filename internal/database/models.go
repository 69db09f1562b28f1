package database

import "time"

type Account struct {
	Username     string
	PasswordHash string
	Note         string
	IsOperator   bool
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

type Message struct {
	Id        int64
	Username  string
	Color     string
	Content   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	PasswordHash string
}
