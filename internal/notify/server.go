package notify

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ServerConfig holds push endpoint configuration.
type ServerConfig struct {
	// Host is the listen address.
	Host string
	// Port is the listen port.
	Port int
	// BearerToken authenticates callers. Required; the server refuses to
	// start without one.
	BearerToken string
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host: "localhost",
		Port: 8790,
	}
}

// Server exposes POST /push over HTTP for admin surfaces.
type Server struct {
	config  ServerConfig
	gateway *Gateway
	logger  *log.Logger

	mu       sync.Mutex
	running  bool
	listener net.Listener
	httpSrv  *http.Server
}

// NewServer creates a push server. A nil logger disables logging.
func NewServer(config ServerConfig, gateway *Gateway, logger *log.Logger) (*Server, error) {
	if config.BearerToken == "" {
		return nil, fmt.Errorf("bearer token is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{config: config, gateway: gateway, logger: logger}, nil
}

// Start begins listening. Non-blocking; use Stop to shut down.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/push", s.handlePush)
	mux.HandleFunc("/health", s.handleHealth)

	s.listener = listener
	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.running = true

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("push server: %v", err)
		}
	}()

	s.logger.Printf("push server listening on %s", addr)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.httpSrv.Shutdown(ctx)
}

// Addr returns the bound address, useful when Port was 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var msg Message
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&msg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := msg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := s.gateway.Send(r.Context(), msg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	s.logger.Printf("push: sent=%d failed=%d", receipt.Sent, receipt.Failed)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(receipt); err != nil {
		s.logger.Printf("push response encode: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.BearerToken)) == 1
}
