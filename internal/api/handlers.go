package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/classroom-chat/internal/server"
	"github.com/npezzotti/classroom-chat/internal/types"
)

const (
	healthCheckTimeout = 2 * time.Second
	maxHistoryLimit    = 500
)

type historyResponse struct {
	Messages []types.Message `json:"messages"`
}

type sessionResponse struct {
	Username string `json:"username"`
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewServiceUnavailableError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GoChatApp) session(w http.ResponseWriter, r *http.Request) {
	username, ok := Username(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, sessionResponse{Username: username})
}

// getHistory returns the newest live messages, oldest first. The limit
// query parameter defaults to the replay size.
func (s *GoChatApp) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		limit = n
	}

	msgs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.log.Printf("Recent: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if msgs == nil {
		msgs = []types.Message{}
	}

	s.writeJson(w, http.StatusOK, historyResponse{Messages: msgs})
}

// checkOrigin accepts requests without an Origin header, from the serving
// host itself, or from a configured origin.
func (s *GoChatApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	return slices.Contains(s.allowedOrigins, origin)
}

// clientAddr is the peer address for logs and guest names, preferring the
// first X-Forwarded-For entry when a proxy set one.
func clientAddr(r *http.Request) string {
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return r.RemoteAddr
	}

	ip := strings.TrimSpace(strings.Split(fwd, ",")[0])
	if _, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.JoinHostPort(ip, port)
	}
	return ip
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	session := server.NewSession(conn, s.cs, s.log, clientAddr(r))
	s.cs.Connect(session)
	go session.Write()
	go session.Read()
}
