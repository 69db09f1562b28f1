package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/classroom-chat/internal/accounts"
	"github.com/npezzotti/classroom-chat/internal/api"
	"github.com/npezzotti/classroom-chat/internal/assistant"
	"github.com/npezzotti/classroom-chat/internal/config"
	"github.com/npezzotti/classroom-chat/internal/database"
	"github.com/npezzotti/classroom-chat/internal/history"
	"github.com/npezzotti/classroom-chat/internal/server"
	"github.com/npezzotti/classroom-chat/internal/stats"
)

const (
	defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="
	defaultDSN        = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// listenAddr turns a bare PORT value into a listen address.
func listenAddr(port string) string {
	if _, err := strconv.Atoi(port); err == nil {
		return ":" + port
	}
	return port
}

var (
	addr           string
	dsn            string
	signingKey     string
	staticDir      string
	authRequired   bool
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[classroom-chat] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("load .env:", err)
	}

	envAuth, err := strconv.ParseBool(envOr("AUTH_REQUIRED", "true"))
	if err != nil {
		logger.Fatal("AUTH_REQUIRED:", err)
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins.Set(origins)
	}

	flag.StringVar(&addr, "addr", listenAddr(envOr("PORT", "3000")), "server address")
	flag.StringVar(&dsn, "dsn", envOr("DATABASE_URL", defaultDSN), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.StringVar(&staticDir, "static", envOr("STATIC_DIR", config.DefaultStaticDir), "directory of static assets to serve")
	flag.BoolVar(&authRequired, "auth-required", envAuth, "require /login or /register before chatting")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}
	cfg.StaticDir = staticDir
	cfg.AuthRequired = authRequired
	cfg.AIKey = os.Getenv("GEMINI_API_KEY")
	if trigger, ok := os.LookupEnv("OPERATOR_TRIGGER"); ok {
		cfg.OperatorTrigger = trigger
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	if cfg.AIKey == "" {
		logger.Println("GEMINI_API_KEY is not set, the assistant will answer with a fallback")
	}

	messages := history.NewStore(dbConn, cfg.ArchiveMaxRows)
	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(
		logger,
		cfg,
		accounts.NewStore(dbConn),
		messages,
		assistant.NewClient(cfg.AIKey, logger, assistant.WithTimeout(cfg.AITimeout)),
		statsUpdater,
	)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewGoChatApp(mux, logger, chatServer, dbConn, messages, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
