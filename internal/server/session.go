package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBufferSize = 256

	// RainbowColor is the color sentinel clients animate.
	RainbowColor = "rainbow"
)

// Session is one live connection and the state attached to it. The
// connection-owned fields are fixed at construction; the identity fields may
// change while the session is live and are guarded by mu.
type Session struct {
	id         string
	conn       *websocket.Conn
	cs         *ChatServer
	log        *log.Logger
	remoteAddr string
	send       chan *ServerMessage
	stop       chan struct{}
	stopOnce   sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
	limiter    *rate.Limiter

	mu            sync.RWMutex
	name          string
	color         string
	account       string
	authenticated bool
	operator      bool
	announced     bool
	lastSeen      time.Time
}

// NewSession creates a session for conn. remoteAddr is only used for logs
// and to derive the guest name.
func NewSession(conn *websocket.Conn, cs *ChatServer, l *log.Logger, remoteAddr string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := shortid.MustGenerate()
	return &Session{
		id:         id,
		conn:       conn,
		cs:         cs,
		log:        l,
		remoteAddr: remoteAddr,
		send:       make(chan *ServerMessage, sendBufferSize),
		stop:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		limiter:    rate.NewLimiter(rate.Limit(cs.cfg.RateLimit), cs.cfg.RateBurst),
		name:       guestName(remoteAddr, id),
		color:      randomColor(),
		lastSeen:   time.Now(),
	}
}

// guestName is the port the peer connected from, or the session id when the
// address has none.
func guestName(remoteAddr, id string) string {
	if _, port, err := net.SplitHostPort(remoteAddr); err == nil && port != "" {
		return port
	}
	return "guest-" + id
}

func randomColor() string {
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", rand.IntN(360))
}

func (s *Session) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.log.Printf("session %s: write exiting", s.id)
	}()

	for {
		select {
		case msg := <-s.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				s.log.Println("failed to serialize message:", err)
				continue
			}

			if !s.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-s.stop:
			s.sendMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !s.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// Read processes inbound envelopes one at a time, in arrival order, until the
// connection fails.
func (s *Session) Read() {
	defer func() {
		s.conn.Close()
		s.cs.Disconnect(s)
		s.stopSession()
		s.log.Printf("session %s: read exiting", s.id)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(appData string) error {
		s.touch()
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("ws: read: %v", err)
			}
			break
		}
		s.touch()

		if !s.limiter.Allow() {
			s.queueMessage(SystemMsg("You are sending messages too fast. Slow down."))
			continue
		}

		s.cs.handleRaw(s, raw)
	}
}

// queueMessage hands msg to the writer without blocking. It reports false
// when the session is stopping or its buffer is full; the message is dropped.
func (s *Session) queueMessage(msg *ServerMessage) bool {
	select {
	case <-s.stop:
		return false
	default:
	}

	select {
	case s.send <- msg:
	default:
		s.log.Printf("session %s: send buffer full, dropping %s", s.id, msg.Type)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (s *Session) sendMessage(msgType int, msg []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// stopSession signals the writer to close the connection and abandons any
// storage call still running on the session's behalf. Safe to call twice.
func (s *Session) stopSession() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.cancel()
	})
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Session) Color() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.color
}

// Account is the name of the account the session logged in as, empty before
// login. It does not follow later renames.
func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) Operator() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operator
}

func (s *Session) Announced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.announced
}

func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

func (s *Session) identity() (name, color string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.color
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *Session) setColor(color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = color
}

func (s *Session) grantOperator() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operator = true
}

func (s *Session) markAnnounced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announced = true
}

// login binds the session to account and moves it to the authenticated
// state. It reports false if the session was already authenticated.
func (s *Session) login(account, color string, operator bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated {
		return false
	}
	s.authenticated = true
	s.announced = true
	s.account = account
	s.name = account
	s.color = color
	if operator {
		s.operator = true
	}
	return true
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}
