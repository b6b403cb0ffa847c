package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatgraph-poc/server/internal/agent/model"
	errx "github.com/chatgraph-poc/server/internal/core/error"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

//go:embed static
var staticFiles embed.FS

const maxRequestBytes = 1 << 20

// Server is the web chat endpoint.
type Server struct {
	router          *Router
	addr            string
	turnTimeout     time.Duration
	shutdownTimeout time.Duration
	upgrader        websocket.Upgrader
}

// NewServer creates a Server for router.
func NewServer(router *Router, config model.ServerConfig) (*Server, error) {
	turnTimeout := config.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = 2 * time.Minute
	}
	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	addr := config.Addr
	if addr == "" {
		addr = ":50505"
	}
	return &Server{
		router:          router,
		addr:            addr,
		turnTimeout:     turnTimeout,
		shutdownTimeout: shutdownTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}, nil
}

// Handler returns the endpoint's routes.
func (s *Server) Handler() (http.Handler, error) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /chat/ws", s.handleChatWS)
	return mux, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", ln.Addr().String()).Msg("Web chat endpoint listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server error: %w", err)
	case <-ctx.Done():
	}

	logx.Info().Msg("Shutting down web chat endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "online",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleChatStream answers with newline-delimited JSON: a single line holding
// the reply message or an error.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeLine(w, http.StatusBadRequest, ChatReply{Error: errx.BadRequest(err).Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.turnTimeout)
	defer cancel()

	reply, status := s.answer(ctx, req)
	writeLine(w, status, reply)
}

// answer runs the router and turns its outcome into a reply line. Route
// failures are reported in the line with status 200; only malformed requests
// get 400.
func (s *Server) answer(ctx context.Context, req ChatRequest) (ChatReply, int) {
	msg, err := s.router.Reply(ctx, req)
	if err != nil {
		if errx.StatusOf(err) == http.StatusBadRequest {
			return ChatReply{Error: errorText(err)}, http.StatusBadRequest
		}
		if !errors.Is(err, ErrNoResponse) {
			logx.Error().Err(err).Msg("Chat request failed")
		}
		return ChatReply{Error: errorText(err)}, http.StatusOK
	}
	return ChatReply{Role: msg.Role, Content: msg.Content}, http.StatusOK
}

func writeLine(w http.ResponseWriter, status int, reply ChatReply) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(status)
	b, err := json.Marshal(reply)
	if err != nil {
		b = []byte(`{"error":"internal server error"}`)
	}
	_, _ = w.Write(append(b, '\n'))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
