// File: web/server.go
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/crazy8156/okx/utilities"
)

// Server exposes the bot's control surface over HTTP: a small JSON API plus
// the static dashboard.
type Server struct {
	controller BotController
	logger     *utilities.Logger
	httpServer *http.Server
	staticDir  string
}

// NewServer builds the server and its routes.
func NewServer(cfg *utilities.WebConfig, controller BotController, logger *utilities.Logger) *Server {
	addr := cfg.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = "web/static"
	}

	s := &Server{
		controller: controller,
		logger:     logger,
		staticDir:  staticDir,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/news", s.handleNews)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.LogInfo("Web: listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
