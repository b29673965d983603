package netplay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// CommandKind says what a Command carries.
type CommandKind uint8

const (
	CommandJoin CommandKind = iota
	CommandLeave
	CommandReel
	CommandFire
	CommandRelease
)

// Command is one input for the tick loop, tagged with its session.
type Command struct {
	Kind    CommandKind
	Session string
	Name    string  // on join
	Reeling bool    // on reel
	X, Y    float64 // fire target in world coordinates
}

const outQueue = 16

// Server accepts websocket players. Connection goroutines only ever talk to
// the tick loop through the inbox channel.
type Server struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	tickRate int

	inbox chan Command
	done  chan struct{}
	once  sync.Once

	mu       sync.Mutex
	sessions map[string]chan []byte
}

// NewServer creates a server with an inbox of inboxSize commands.
func NewServer(inboxSize, tickRate int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if inboxSize < 1 {
		inboxSize = 1
	}
	return &Server{
		log: logger.With("component", "netplay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tickRate: tickRate,
		inbox:    make(chan Command, inboxSize),
		done:     make(chan struct{}),
		sessions: make(map[string]chan []byte),
	}
}

// Inbox is drained by the tick loop.
func (s *Server) Inbox() <-chan Command {
	return s.inbox
}

// Sessions returns the number of connected players.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops accepting commands. Connected players are dropped as their
// writers notice.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
}

// Handler upgrades HTTP requests to player sessions.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		session, out, err := s.handshake(conn)
		if err != nil {
			s.log.Info("handshake rejected", "remote", r.RemoteAddr, "err", err)
			return
		}
		defer s.leave(session)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.done:
					_ = conn.Close()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cmd, err := ParseInput(session, msg)
			if err != nil {
				s.log.Debug("dropping message", "session", session, "err", err)
				continue
			}
			if !s.push(cmd) {
				return
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, chan []byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil, fmt.Errorf("reading hello: %w", err)
	}

	hello, err := ParseHello(msg)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return "", nil, err
	}

	session := uuid.NewString()
	welcome := WelcomeMsg{
		Type:            TypeWelcome,
		ProtocolVersion: Version,
		SessionID:       session,
		TickRateHz:      s.tickRate,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(welcome); err != nil {
		return "", nil, fmt.Errorf("writing welcome: %w", err)
	}

	out := make(chan []byte, outQueue)
	s.mu.Lock()
	s.sessions[session] = out
	s.mu.Unlock()

	if !s.push(Command{Kind: CommandJoin, Session: session, Name: hello.Name}) {
		s.forget(session)
		return "", nil, fmt.Errorf("server closed")
	}
	s.log.Info("player joined", "session", session, "name", hello.Name)
	return session, out, nil
}

func (s *Server) leave(session string) {
	s.forget(session)
	s.push(Command{Kind: CommandLeave, Session: session})
	s.log.Info("player left", "session", session)
}

func (s *Server) forget(session string) {
	s.mu.Lock()
	delete(s.sessions, session)
	s.mu.Unlock()
}

// push hands a command to the tick loop. It reports false once the server is closed.
func (s *Server) push(cmd Command) bool {
	select {
	case s.inbox <- cmd:
		return true
	case <-s.done:
		return false
	}
}

// Send queues msg for one session. Slow readers lose messages instead of
// stalling the tick.
func (s *Server) Send(session string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling %T: %w", msg, err)
	}
	s.mu.Lock()
	out, ok := s.sessions[session]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %q", session)
	}
	select {
	case out <- b:
	default:
		s.log.Warn("send queue full", "session", session)
	}
	return nil
}

// Broadcast queues msg for every session and returns how many accepted it.
func (s *Server) Broadcast(msg any) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("marshaling %T: %w", msg, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, out := range s.sessions {
		select {
		case out <- b:
			n++
		default:
		}
	}
	return n, nil
}
