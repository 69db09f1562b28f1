package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/classroom-chat/internal/accounts"
	"github.com/npezzotti/classroom-chat/internal/assistant"
	"github.com/npezzotti/classroom-chat/internal/config"
	"github.com/npezzotti/classroom-chat/internal/history"
	"github.com/npezzotti/classroom-chat/internal/stats"
	"github.com/npezzotti/classroom-chat/internal/testutil"
	"github.com/npezzotti/classroom-chat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/time/rate"
)

const testSigningKey = "Y2xhc3Nyb29tLXNpZ25pbmctc2VjcmV0"

type testDeps struct {
	accounts  *accounts.MockStore
	history   *history.MockStore
	assistant *assistant.MockAssistant
	stats     *stats.MockStatsUpdater
}

func testConfig(t *testing.T) *config.Config {
	cfg, err := config.NewConfig("localhost:3000", "dsn", testSigningKey, nil)
	if err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	return cfg
}

// newTestChatServer creates a ChatServer backed by mocks. Stats calls are
// always allowed.
func newTestChatServer(t *testing.T, mutate ...func(*config.Config)) (*ChatServer, *testDeps) {
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}

	deps := &testDeps{
		accounts:  &accounts.MockStore{},
		history:   &history.MockStore{},
		assistant: &assistant.MockAssistant{},
		stats:     &stats.MockStatsUpdater{},
	}
	deps.stats.On("Incr", mock.Anything).Maybe()
	deps.stats.On("Decr", mock.Anything).Maybe()

	cs, err := NewChatServer(testutil.TestLogger(t), cfg, deps.accounts, deps.history, deps.assistant, deps.stats)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs, deps
}

func authOff(c *config.Config) {
	c.AuthRequired = false
}

// newTestSession creates a session with no connection that is registered
// with cs. Its outbound envelopes stay in its send buffer.
func newTestSession(t *testing.T, cs *ChatServer, name string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := &Session{
		id:       name,
		cs:       cs,
		log:      testutil.TestLogger(t),
		send:     make(chan *ServerMessage, sendBufferSize),
		stop:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		name:     name,
		color:    "red",
		lastSeen: time.Now(),
	}
	cs.registry.Register(s)
	return s
}

// newLoggedInSession is a registered session already authenticated as name.
func newLoggedInSession(t *testing.T, cs *ChatServer, name string) *Session {
	s := newTestSession(t, cs, name)
	s.login(name, "red", false)
	return s
}

func drain(s *Session) []*ServerMessage {
	var msgs []*ServerMessage
	for {
		select {
		case msg := <-s.send:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func kindsOf(msgs []*ServerMessage) []string {
	kinds := make([]string, len(msgs))
	for i, m := range msgs {
		kinds[i] = m.Type
	}
	return kinds
}

func TestNewChatServer(t *testing.T) {
	cs, _ := newTestChatServer(t)
	assert.NotNil(t, cs.registry, "expected registry to be initialized")
	assert.NotNil(t, cs.fanout, "expected fanout to be initialized")
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
	assert.Equal(t, config.DefaultTheme, cs.room.Theme())
	assert.Equal(t, config.DefaultTitle, cs.room.Title())
	assert.NotNil(t, cs.Tokens())

	cfg := testConfig(t)
	cfg.HistoryLimit = 0
	_, err := NewChatServer(testutil.TestLogger(t), cfg, nil, nil, nil, nil)
	assert.Error(t, err, "expected invalid config to be rejected")
}

func TestConnect(t *testing.T) {
	t.Run("auth required", func(t *testing.T) {
		cs, deps := newTestChatServer(t)
		cs.room.SetTitle("Midterm Review")
		watcher := newLoggedInSession(t, cs, "watcher")

		s := &Session{send: make(chan *ServerMessage, 8), stop: make(chan struct{}), ctx: context.Background(), name: "51234", color: "blue"}
		cs.Connect(s)

		msgs := drain(s)
		assert.Equal(t, []string{KindInit, KindTheme, KindTitle, KindSystem}, kindsOf(msgs))
		assert.Equal(t, "51234", msgs[0].Username)
		assert.Equal(t, "Midterm Review", msgs[2].Title)
		assert.Equal(t, 2, cs.registry.Len())
		assert.False(t, s.Announced())
		assert.Empty(t, drain(watcher), "expected no join notice before login")
		deps.history.AssertNotCalled(t, "Recent", mock.Anything)
	})

	t.Run("auth off", func(t *testing.T) {
		cs, deps := newTestChatServer(t, authOff)
		watcher := newTestSession(t, cs, "watcher")
		deps.history.On("Recent", config.DefaultHistoryLimit).Return([]types.Message{{Username: "a", Content: "hi"}}, nil)

		s := &Session{send: make(chan *ServerMessage, 8), stop: make(chan struct{}), ctx: context.Background(), name: "51234"}
		cs.Connect(s)

		msgs := drain(s)
		assert.Equal(t, []string{KindInit, KindTheme, KindTitle, KindHistory, KindSystem}, kindsOf(msgs))
		assert.Len(t, *msgs[3].Messages, 1)
		assert.True(t, s.Announced())

		joined := drain(watcher)
		if assert.Len(t, joined, 1) {
			assert.Equal(t, "User 51234 joined the chat.", joined[0].Content)
		}
		deps.history.AssertExpectations(t)
	})

	t.Run("history unavailable", func(t *testing.T) {
		cs, deps := newTestChatServer(t, authOff)
		deps.history.On("Recent", mock.Anything).Return(nil, errors.New("db down"))

		s := &Session{send: make(chan *ServerMessage, 8), stop: make(chan struct{}), ctx: context.Background(), name: "1"}
		cs.Connect(s)

		msgs := drain(s)
		assert.Contains(t, kindsOf(msgs), KindSystem)
		assert.Equal(t, 1, cs.registry.Len(), "expected the session to stay connected")
	})
}

func TestDisconnect(t *testing.T) {
	cs, _ := newTestChatServer(t)
	alice := newLoggedInSession(t, cs, "alice")
	bob := newLoggedInSession(t, cs, "bob")
	guest := newTestSession(t, cs, "guest")

	cs.Disconnect(bob)
	msgs := drain(alice)
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, "User bob disconnected.", msgs[0].Content)
	}

	cs.Disconnect(bob)
	assert.Empty(t, drain(alice), "expected a second disconnect to be a no-op")

	cs.Disconnect(guest)
	assert.Empty(t, drain(alice), "expected no notice for a session that never joined")
	assert.Equal(t, 1, cs.registry.Len())
}

func TestChatServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		cs, _ := newTestChatServer(t)
		s := newLoggedInSession(t, cs, "alice")
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")

		select {
		case <-s.stop:
		default:
			t.Error("expected session to be stopped")
		}
		assert.Error(t, s.ctx.Err(), "expected session context to be canceled")
		assert.Error(t, cs.ctx.Err(), "expected server context to be canceled")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs, _ := newTestChatServer(t)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected shutdown to time out without Run")
	})
}

func TestRunPrunesArchive(t *testing.T) {
	cs, deps := newTestChatServer(t, func(c *config.Config) {
		c.PruneInterval = 10 * time.Millisecond
	})

	pruned := make(chan struct{}, 1)
	deps.history.On("PruneArchive", config.DefaultArchiveMaxAge).Return(int64(3), nil).Run(func(mock.Arguments) {
		select {
		case pruned <- struct{}{}:
		default:
		}
	})

	go cs.Run()
	defer cs.Shutdown(context.Background())

	select {
	case <-pruned:
	case <-time.After(time.Second):
		t.Fatal("expected the archive to be pruned on tick")
	}
}
