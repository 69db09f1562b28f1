package server

import "sync"

// Fanout delivers envelopes to live sessions. Broadcasts are serialized so
// every recipient sees them in the same relative order; each delivery is a
// non-blocking enqueue, and a recipient that cannot take the message is
// skipped.
type Fanout struct {
	registry     *Registry
	authRequired bool
	mu           sync.Mutex
}

func NewFanout(registry *Registry, authRequired bool) *Fanout {
	return &Fanout{registry: registry, authRequired: authRequired}
}

// BroadcastAll delivers msg to every session allowed to follow the chat:
// all sessions, or only authenticated ones when the auth gate is on. It
// returns the number of sessions that accepted the message.
func (f *Fanout) BroadcastAll(msg *ServerMessage) int {
	return f.broadcast(msg, f.eligible)
}

// BroadcastEveryone delivers msg to every live session regardless of
// authentication.
func (f *Fanout) BroadcastEveryone(msg *ServerMessage) int {
	return f.broadcast(msg, nil)
}

func (f *Fanout) SendTo(s *Session, msg *ServerMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return s.queueMessage(msg)
}

// SendRoomState queues the current theme and title to s. The values are
// read under the broadcast lock, so a change broadcast afterwards always
// reaches s after them.
func (f *Fanout) SendRoomState(s *Session, room *RoomState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.queueMessage(ThemeMsg(room.Theme()))
	s.queueMessage(TitleMsg(room.Title()))
}

func (f *Fanout) eligible(s *Session) bool {
	return !f.authRequired || s.Authenticated()
}

func (f *Fanout) broadcast(msg *ServerMessage, pred func(*Session) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	f.registry.ForEach(pred, func(s *Session) {
		if s.queueMessage(msg) {
			delivered++
		}
	})
	return delivered
}
