package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/classroom-chat/internal/accounts"
	"github.com/npezzotti/classroom-chat/internal/config"
	"github.com/npezzotti/classroom-chat/internal/server"
	"github.com/npezzotti/classroom-chat/internal/types"
)

// Pinger reports whether the durable store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HistoryReader serves the live chat log to HTTP clients.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]types.Message, error)
}

type GoChatApp struct {
	log            *log.Logger
	db             Pinger
	history        HistoryReader
	mux            *http.Server
	cs             *server.ChatServer
	tokens         *accounts.Tokens
	allowedOrigins []string
	historyLimit   int
}

// NewGoChatApp registers the chat routes on mux. Routes registered on mux
// beforehand, such as the stats endpoint, are served as well.
func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db Pinger, hist HistoryReader, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		db:             db,
		history:        hist,
		cs:             cs,
		tokens:         cs.Tokens(),
		allowedOrigins: cfg.AllowedOrigins,
		historyLimit:   cfg.HistoryLimit,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /api/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/history", s.authMiddleware(s.getHistory))
	if cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	if logger != nil {
		h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	}

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}
	return s
}

func (s *GoChatApp) Handler() http.Handler {
	return s.mux.Handler
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
