package server

import "sync"

// RoomState holds the presentation settings every session shares. It does
// no authorization; callers gate mutation and broadcast the new value.
type RoomState struct {
	mu    sync.RWMutex
	theme string
	title string
}

func NewRoomState(theme, title string) *RoomState {
	return &RoomState{theme: theme, title: title}
}

func (rs *RoomState) Theme() string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.theme
}

func (rs *RoomState) SetTheme(theme string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.theme = theme
}

func (rs *RoomState) Title() string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.title
}

func (rs *RoomState) SetTitle(title string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.title = title
}
