package server

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/npezzotti/classroom-chat/internal/types"
)

// Inbound kinds.
const (
	KindMessage     = "message"
	KindUpdateName  = "update_name"
	KindUpdateColor = "update_color"
	KindPing        = "ping"
	KindDM          = "dm"
	KindResume      = "resume"

	KindTDTU        = "tdtu"
	KindAdminLogin  = "admin_login"
	KindSetRainbow  = "set_rainbow"
	KindChangeTheme = "change_theme"
	KindChangeTitle = "change_title"
	KindClearChat   = "clear_chat"
)

// Outbound kinds.
const (
	KindHistory      = "history"
	KindTheme        = "theme"
	KindTitle        = "title"
	KindInit         = "init"
	KindSystem       = "system"
	KindPong         = "pong"
	KindAdminGranted = "admin_granted"
	KindAuthSuccess  = "auth_success"
	KindAuthError    = "auth_error"
	KindClearHistory = "clear_history"
	KindDatabaseView = "database_view"
)

// Auth forms tell the client which dialog an auth reply belongs to.
const (
	formLogin    = "login"
	formRegister = "register"
	formResume   = "resume"
)

const (
	systemInvalidJSON = "Invalid message format."
	systemStorageFail = "Something went wrong, please try again."
)

type ClientMessage struct {
	Type      string          `json:"type"`
	Content   string          `json:"content,omitempty"`
	Target    string          `json:"target,omitempty"`
	StartTime json.RawMessage `json:"startTime,omitempty"`
	Theme     string          `json:"theme,omitempty"`
	Title     string          `json:"title,omitempty"`
	Token     string          `json:"token,omitempty"`
}

// ServerMessage is every outbound envelope. Which fields are set depends on
// Type. History and database_view always carry a Messages list, possibly
// empty.
type ServerMessage struct {
	Type      string           `json:"type"`
	Username  string           `json:"username,omitempty"`
	Color     string           `json:"color,omitempty"`
	Content   string           `json:"content,omitempty"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	From      string           `json:"from,omitempty"`
	To        string           `json:"to,omitempty"`
	StartTime json.RawMessage  `json:"startTime,omitempty"`
	Theme     string           `json:"theme,omitempty"`
	Title     string           `json:"title,omitempty"`
	Form      string           `json:"form,omitempty"`
	Token     string           `json:"token,omitempty"`
	Messages  *[]types.Message `json:"messages,omitempty"`
	Count     *int             `json:"count,omitempty"`
}

func HistoryMsg(msgs []types.Message) *ServerMessage {
	return &ServerMessage{Type: KindHistory, Messages: messageList(msgs)}
}

func messageList(msgs []types.Message) *[]types.Message {
	if msgs == nil {
		msgs = []types.Message{}
	}
	return &msgs
}

func ThemeMsg(theme string) *ServerMessage {
	return &ServerMessage{Type: KindTheme, Theme: theme}
}

func TitleMsg(title string) *ServerMessage {
	return &ServerMessage{Type: KindTitle, Title: title}
}

func InitMsg(username, color string) *ServerMessage {
	return &ServerMessage{Type: KindInit, Username: username, Color: color}
}

func ChatMsg(m types.Message) *ServerMessage {
	ts := m.Timestamp
	return &ServerMessage{
		Type:      KindMessage,
		Username:  m.Username,
		Color:     m.Color,
		Content:   m.Content,
		Timestamp: &ts,
	}
}

func SystemMsg(text string) *ServerMessage {
	return &ServerMessage{Type: KindSystem, Content: text}
}

func DMMsg(from, to, color, body string) *ServerMessage {
	ts := Now()
	return &ServerMessage{
		Type:      KindDM,
		From:      from,
		To:        to,
		Color:     color,
		Content:   body,
		Timestamp: &ts,
	}
}

// PongMsg echoes startTime untouched. Without one it carries the server
// clock in milliseconds.
func PongMsg(startTime json.RawMessage) *ServerMessage {
	if len(startTime) == 0 || !json.Valid(startTime) {
		startTime = json.RawMessage(strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	return &ServerMessage{Type: KindPong, StartTime: startTime}
}

func AdminGrantedMsg() *ServerMessage {
	return &ServerMessage{Type: KindAdminGranted}
}

func AuthSuccessMsg(form, username, color, token string) *ServerMessage {
	return &ServerMessage{
		Type:     KindAuthSuccess,
		Form:     form,
		Username: username,
		Color:    color,
		Token:    token,
		Content:  "Welcome, " + username + "!",
	}
}

func AuthErrorMsg(form, text string) *ServerMessage {
	return &ServerMessage{Type: KindAuthError, Form: form, Content: text}
}

func ClearHistoryMsg() *ServerMessage {
	return &ServerMessage{Type: KindClearHistory}
}

func DatabaseViewMsg(rows []types.Message, count int) *ServerMessage {
	return &ServerMessage{Type: KindDatabaseView, Messages: messageList(rows), Count: &count}
}

func ErrInvalidMessage() *ServerMessage {
	return SystemMsg(systemInvalidJSON)
}

func ErrStorage() *ServerMessage {
	return SystemMsg(systemStorageFail)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
