package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/guseggert/nailgun/protocol"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"nhooyr.io/websocket"
)

const wsReadLimit = 1<<32 + protocol.HeaderLen

// Server accepts nailgun connections and runs one process per connection.
type Server struct {
	logger *zap.SugaredLogger

	// aliases map a command name to the argv that replaces it
	aliases map[string][]string

	active atomic.Int64
	wg     sync.WaitGroup
}

type Option func(s *Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l.Named("nailgun_server").Sugar()
	}
}

func WithLogLevel(l zapcore.Level) Option {
	return func(s *Server) {
		s.logger = s.logger.WithOptions(zap.IncreaseLevel(l))
	}
}

// WithAlias makes the command name run argv instead, with the client's arguments appended.
func WithAlias(name string, argv ...string) Option {
	return func(s *Server) {
		if len(argv) > 0 {
			s.aliases[name] = argv
		}
	}
}

// ParseAlias parses "name=command arg..." into a name and argv.
func ParseAlias(spec string) (string, []string, error) {
	name, cmdline, ok := strings.Cut(spec, "=")
	argv := strings.Fields(cmdline)
	if !ok || strings.TrimSpace(name) == "" || len(argv) == 0 {
		return "", nil, fmt.Errorf("invalid alias %q, expected name=command [args...]", spec)
	}
	return strings.TrimSpace(name), argv, nil
}

// New constructs a server. Options are applied in order.
func New(opts ...Option) (*Server, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := &Server{
		logger:  logger.Named("nailgun_server").Sugar(),
		aliases: map[string][]string{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Serve accepts connections until ctx is done or the listener fails, then waits for running sessions to end.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	defer s.wg.Wait()

	s.logger.Infof("listening on %s", l.Addr())
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting conn: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn runs one session on conn and closes it when done.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	s.active.Add(1)
	defer s.active.Add(-1)

	r := &runner{
		log:     s.logger.Named("runner").With("Session", uuid.NewString(), "Remote", conn.RemoteAddr().String()),
		conn:    conn,
		aliases: s.aliases,
		exited:  make(chan struct{}),
	}
	r.run(ctx)
}

// ActiveSessions returns the number of connections currently being served.
func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

// Handler returns the HTTP surface: GET /nailgun upgrades to a WebSocket carrying the chunk stream,
// and GET /heartbeat reports liveness.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/heartbeat", s.heartbeat)
	router.GET("/nailgun", s.nailgunWS)
	return router
}

func (s *Server) nailgunWS(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debugf("error accepting WebSocket conn: %s", err)
		return
	}
	s.logger.Debug("accepted WebSocket conn")
	wsConn.SetReadLimit(wsReadLimit)

	conn := websocket.NetConn(r.Context(), wsConn, websocket.MessageBinary)
	s.ServeConn(r.Context(), conn)
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	response := struct {
		ActiveSessions int64
	}{
		ActiveSessions: s.ActiveSessions(),
	}
	b, err := json.Marshal(response)
	if err != nil {
		s.logger.Debugf("error marshaling heartbeat response: %s", err)
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}
