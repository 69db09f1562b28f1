package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/classroom-chat/internal/accounts"
	"github.com/npezzotti/classroom-chat/internal/assistant"
	"github.com/npezzotti/classroom-chat/internal/stats"
	"github.com/npezzotti/classroom-chat/internal/types"
)

const (
	AssistantName  = "Huybeo (AI)"
	AssistantColor = "#00ccff"
	wakePhrase     = "hey huybeo"

	// MaxBodyLength is the longest chat, direct message or requested name a
	// session may send, in characters.
	MaxBodyLength = 2000

	loginRequired = "You must log in first. Use /login <name> <password> or /register <name> <password>."
	bodyTooLong   = "Message is too long (max 2000 characters)."
)

const banner = `
 _____ ____ _____ _   _
|_   _|  _ \_   _| | | |
  | | | | | || | | | | |
  | | | |_| || | | |_| |
  |_| |____/ |_|  \___/
`

func (cs *ChatServer) handleRaw(s *Session, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		cs.log.Printf("session %s: error parsing message: %v", s.id, err)
		s.queueMessage(ErrInvalidMessage())
		return
	}

	cs.dispatch(s, &msg)
}

func (cs *ChatServer) dispatch(s *Session, msg *ClientMessage) {
	switch msg.Type {
	case KindMessage:
		if strings.HasPrefix(strings.TrimSpace(msg.Content), "/") {
			cs.handleCommand(s, msg.Content)
			return
		}
		cs.handleChat(s, msg.Content)
	case KindUpdateName:
		cs.handleRename(s, msg.Content)
	case KindUpdateColor:
		cs.handleColor(s, msg.Content)
	case KindPing:
		s.queueMessage(PongMsg(msg.StartTime))
	case KindDM:
		cs.handleDM(s, msg.Target, msg.Content)
	case KindResume:
		cs.resume(s, msg.Token)
	case KindTDTU:
		cs.handleBanner(s)
	case KindAdminLogin:
		// the legacy client sends the trigger it was typed with
		cs.handleCommand(s, msg.Content)
	case KindSetRainbow:
		cs.handleCommand(s, "/rainbow")
	case KindChangeTheme:
		cs.handleCommand(s, "/theme "+msg.Theme)
	case KindChangeTitle:
		cs.handleCommand(s, "/title "+msg.Title)
	case KindClearChat:
		cs.handleCommand(s, "/clearall")
	default:
		cs.log.Printf("session %s: unknown message type %q", s.id, msg.Type)
		s.queueMessage(ErrInvalidMessage())
	}
}

// canChat reports whether s may post to the room, telling it why not.
func (cs *ChatServer) canChat(s *Session) bool {
	if cs.cfg.AuthRequired && !s.Authenticated() {
		s.queueMessage(SystemMsg(loginRequired))
		return false
	}
	return true
}

func (cs *ChatServer) handleChat(s *Session, body string) {
	if !cs.canChat(s) {
		return
	}
	if strings.TrimSpace(body) == "" {
		s.queueMessage(SystemMsg("Message cannot be empty."))
		return
	}
	if tooLong(s, body) {
		return
	}

	if !cs.post(s, body) {
		return
	}

	if prompt, ok := wakePrompt(body); ok {
		cs.summonAssistant(prompt)
	}
}

// post persists body under the session's current name and color and
// broadcasts it.
func (cs *ChatServer) post(s *Session, body string) bool {
	name, color := s.identity()
	m, err := cs.history.Append(s.ctx, name, color, body)
	if err != nil {
		cs.storageFailure(s, "Append", err)
		return false
	}

	cs.stats.Incr(stats.Messages)
	cs.fanout.BroadcastAll(ChatMsg(m))
	return true
}

// wakePrompt reports whether text starts with the wake phrase and returns
// the rest of it.
func wakePrompt(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if len(text) < len(wakePhrase) || !strings.EqualFold(text[:len(wakePhrase)], wakePhrase) {
		return "", false
	}
	return strings.TrimSpace(text[len(wakePhrase):]), true
}

// summonAssistant answers prompt in the background so the asking session
// keeps processing its own envelopes.
func (cs *ChatServer) summonAssistant(prompt string) {
	if prompt == "" {
		cs.fanout.BroadcastAll(ChatMsg(types.Message{
			Username:  AssistantName,
			Color:     AssistantColor,
			Content:   assistant.GreetReply,
			Timestamp: Now(),
		}))
		return
	}

	cs.bg.Add(1)
	go func() {
		defer cs.bg.Done()

		ctx, cancel := context.WithTimeout(cs.ctx, cs.cfg.AITimeout)
		reply := cs.assistant.Ask(ctx, prompt)
		cancel()

		m, err := cs.history.Append(cs.ctx, AssistantName, AssistantColor, reply)
		if err != nil {
			cs.log.Println("Append assistant reply:", err)
			m = types.Message{Username: AssistantName, Color: AssistantColor, Content: reply, Timestamp: Now()}
		}
		cs.fanout.BroadcastAll(ChatMsg(m))
	}()
}

// tooLong tells s when text exceeds MaxBodyLength.
func tooLong(s *Session, text string) bool {
	if utf8.RuneCountInString(text) <= MaxBodyLength {
		return false
	}
	s.queueMessage(SystemMsg(bodyTooLong))
	return true
}

func (cs *ChatServer) handleRename(s *Session, requested string) {
	if !cs.canChat(s) || tooLong(s, requested) {
		return
	}

	name := accounts.Truncate(strings.TrimSpace(requested), accounts.MaxNameLength)
	old := s.Name()
	switch {
	case name == "":
		s.queueMessage(SystemMsg("Name cannot be empty."))
		return
	case name == old:
		s.queueMessage(SystemMsg("That is already your name."))
		return
	}

	s.setName(name)
	s.queueMessage(InitMsg(name, s.Color()))
	cs.fanout.BroadcastAll(SystemMsg(fmt.Sprintf("%s is now known as %s", old, name)))
}

func (cs *ChatServer) handleColor(s *Session, color string) {
	if !cs.canChat(s) {
		return
	}
	s.setColor(color)
}

// handleDM delivers body to the earliest-connected session named target
// and echoes it to the sender. Sessions that cannot follow the chat are not
// valid targets.
func (cs *ChatServer) handleDM(s *Session, target, body string) {
	if !cs.canChat(s) {
		return
	}

	target = strings.TrimSpace(target)
	if target == "" || strings.TrimSpace(body) == "" {
		s.queueMessage(SystemMsg("Usage: /m <name> <message>"))
		return
	}
	if tooLong(s, body) {
		return
	}

	recipient := cs.registry.Find(func(other *Session) bool {
		return other.Name() == target && cs.fanout.eligible(other)
	})
	if recipient == nil {
		s.queueMessage(SystemMsg(fmt.Sprintf("Error: User '%s' not found.", target)))
		return
	}

	name, color := s.identity()
	dm := DMMsg(name, recipient.Name(), color, body)
	cs.fanout.SendTo(recipient, dm)
	cs.fanout.SendTo(s, dm)
}

func (cs *ChatServer) handleBanner(s *Session) {
	if !cs.canChat(s) {
		return
	}
	cs.post(s, banner)
}
