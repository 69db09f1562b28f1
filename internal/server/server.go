package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/classroom-chat/internal/accounts"
	"github.com/npezzotti/classroom-chat/internal/config"
	"github.com/npezzotti/classroom-chat/internal/stats"
	"github.com/npezzotti/classroom-chat/internal/types"
)

// CredentialStore is the account table as the dispatcher sees it.
type CredentialStore interface {
	Register(ctx context.Context, name, password string) (types.Account, error)
	Verify(ctx context.Context, name, password string) (types.Account, error)
	Lookup(ctx context.Context, name string) (types.Account, error)
	Note(ctx context.Context, name string) (string, error)
	SetNote(ctx context.Context, name, text string) (string, error)
	TouchLogin(ctx context.Context, name string) error
}

// MessageStore is the durable chat log.
type MessageStore interface {
	Append(ctx context.Context, author, color, body string) (types.Message, error)
	Recent(ctx context.Context, limit int) ([]types.Message, error)
	Snapshot(ctx context.Context, limit int) ([]types.Message, int, error)
	ArchiveAndClear(ctx context.Context) (int64, error)
	PruneArchive(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Assistant answers wake-phrase prompts. Ask must not fail; it returns a
// fallback text instead.
type Assistant interface {
	Ask(ctx context.Context, prompt string) string
}

type stopReq struct {
	done chan struct{}
}

type ChatServer struct {
	log       *log.Logger
	cfg       *config.Config
	accounts  CredentialStore
	history   MessageStore
	assistant Assistant
	tokens    *accounts.Tokens
	stats     stats.StatsProvider
	registry  *Registry
	room      *RoomState
	fanout    *Fanout

	// ctx outlives individual sessions; it bounds work such as assistant
	// replies that finish after the asking session has gone.
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
	stop   chan stopReq
}

func NewChatServer(logger *log.Logger, cfg *config.Config, accts CredentialStore, hist MessageStore, ai Assistant, su stats.StatsProvider) (*ChatServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	return &ChatServer{
		log:       logger,
		cfg:       cfg,
		accounts:  accts,
		history:   hist,
		assistant: ai,
		tokens:    accounts.NewTokens(cfg.SigningKey, cfg.TokenExp),
		stats:     su,
		registry:  registry,
		room:      NewRoomState(cfg.DefaultTheme, cfg.DefaultTitle),
		fanout:    NewFanout(registry, cfg.AuthRequired),
		ctx:       ctx,
		cancel:    cancel,
		stop:      make(chan stopReq),
	}, nil
}

// Tokens verifies login tokens for the HTTP layer.
func (cs *ChatServer) Tokens() *accounts.Tokens {
	return cs.tokens
}

// Connect registers s and sends it the initial identity and room state. With
// the auth gate off the session also gets history and is announced.
func (cs *ChatServer) Connect(s *Session) {
	name, color := s.identity()
	s.queueMessage(InitMsg(name, color))

	cs.registry.Register(s)
	cs.stats.Incr(stats.ActiveSessions)
	cs.log.Printf("session %s connected from %s as %q", s.id, s.remoteAddr, name)

	cs.fanout.SendRoomState(s, cs.room)

	if cs.cfg.AuthRequired {
		s.queueMessage(SystemMsg("Welcome! Use /login <name> <password> or /register <name> <password> to join the chat."))
		return
	}

	cs.sendHistory(s)
	s.markAnnounced()
	cs.fanout.BroadcastAll(SystemMsg(fmt.Sprintf("User %s joined the chat.", name)))
}

// Disconnect removes s from the registry and announces the departure if the
// session had been announced. Calling it again for the same session is a
// no-op.
func (cs *ChatServer) Disconnect(s *Session) {
	if !cs.registry.Deregister(s) {
		return
	}
	cs.stats.Decr(stats.ActiveSessions)
	cs.log.Printf("session %s disconnected (%s)", s.id, s.Name())

	if s.Announced() {
		cs.fanout.BroadcastAll(SystemMsg(fmt.Sprintf("User %s disconnected.", s.Name())))
	}
}

func (cs *ChatServer) sendHistory(s *Session) {
	msgs, err := cs.history.Recent(s.ctx, cs.cfg.HistoryLimit)
	if err != nil {
		cs.storageFailure(s, "Recent", err)
		return
	}
	s.queueMessage(HistoryMsg(msgs))
}

// Run prunes the archive on every tick until Shutdown is called.
func (cs *ChatServer) Run() {
	ticker := time.NewTicker(cs.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cs.pruneArchive()
		case req := <-cs.stop:
			cs.log.Println("closing sessions")
			for _, s := range cs.registry.Snapshot() {
				s.stopSession()
			}
			cs.cancel()
			cs.bg.Wait()

			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) pruneArchive() {
	ctx, cancel := context.WithTimeout(cs.ctx, cs.cfg.PruneInterval)
	defer cancel()

	n, err := cs.history.PruneArchive(ctx, cs.cfg.ArchiveMaxAge)
	if err != nil {
		cs.log.Println("PruneArchive:", err)
		return
	}
	if n > 0 {
		cs.log.Printf("pruned %d archived messages", n)
	}
}

// Shutdown stops every session and waits for Run to finish or ctx to end.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *ChatServer) storageFailure(s *Session, op string, err error) {
	cs.log.Printf("%s: %v", op, err)
	s.queueMessage(ErrStorage())
}
