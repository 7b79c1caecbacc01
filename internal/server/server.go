package server

import (
	"context"
	"embed"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/alexwox/research-assistant/internal/agent/graph"
	"github.com/alexwox/research-assistant/internal/agent/model"
	logx "github.com/alexwox/research-assistant/pkg/logger"
)

//go:embed static
var staticFS embed.FS

const defaultRevealDelay = 50 * time.Millisecond

// Config holds the chat surface settings.
type Config struct {
	Addr string
	// RevealDelay is the pause between streamed chunks. Zero means the
	// default; negative disables the delay.
	RevealDelay time.Duration
}

// Server is the websocket chat surface in front of the research runner.
type Server struct {
	addr        string
	runner      graph.Runner
	revealDelay time.Duration
	upgrader    websocket.Upgrader
	mux         *http.ServeMux
}

// New builds the chat server around a compiled research runner.
func New(cfg Config, runner graph.Runner) *Server {
	delay := cfg.RevealDelay
	if delay == 0 {
		delay = defaultRevealDelay
	}
	if delay < 0 {
		delay = 0
	}

	s := &Server{
		addr:        cfg.Addr,
		runner:      runner,
		revealDelay: delay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/ws", s.handleWS)
	return s
}

// Handler exposes the HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	b, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

// wsFrameWriter serializes frame writes onto one websocket connection.
type wsFrameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsFrameWriter) WriteFrame(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(f)
}

type clientRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	// Each connection is its own conversation; the transcript lives and dies
	// with the socket unless a persistent repo is configured.
	conversationID := uuid.NewString()
	writer := &wsFrameWriter{conn: conn}

	logx.Info().Str("conversation_id", conversationID).Msg("chat client connected")
	_ = writer.WriteFrame(Frame{Type: FrameStatus, Message: "ready", ConversationID: conversationID})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logx.Debug().Err(err).Str("conversation_id", conversationID).Msg("chat client disconnected")
			return
		}

		var req clientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = writer.WriteFrame(Frame{Type: FrameError, Message: "could not read your question, please resend it"})
			continue
		}
		if strings.TrimSpace(req.Query) == "" {
			_ = writer.WriteFrame(Frame{Type: FrameError, Message: "please type a question first"})
			continue
		}

		s.serveQuery(r.Context(), writer, conversationID, req.Query)
	}
}

func (s *Server) serveQuery(ctx context.Context, writer FrameWriter, conversationID, query string) {
	_ = writer.WriteFrame(Frame{Type: FrameStatus, Message: "researching..."})

	result, err := s.runner.Run(ctx, model.QueryInput{
		ConversationID: conversationID,
		Query:          query,
	})
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("research run failed")
		_ = writer.WriteFrame(Frame{Type: FrameError, Message: errorMessage(err)})
		return
	}

	if err := streamResult(writer, result, s.revealDelay); err != nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("client went away mid-answer")
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logx.Info().Str("addr", s.addr).Msg("chat server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		logx.Info().Msg("shutting down chat server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("server shutdown error")
			return err
		}
		return nil
	})

	return eg.Wait()
}
