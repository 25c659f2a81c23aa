package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPort is the port a nailgun server listens on unless configured otherwise.
const DefaultPort = 2113

// DefaultHost is the server host used when none is configured.
const DefaultHost = "127.0.0.1"

// SessionRequest describes one remote invocation.
type SessionRequest struct {
	Command string
	Args    []string
	// Env holds NAME=VALUE entries, sent in order after the two separator entries.
	Env []string
	WD  string

	// Stdin is forwarded to the server until it returns an error or io.EOF. A nil Stdin is sent as an immediate EOF.
	Stdin io.Reader
	// Stdout and Stderr receive the server's output. Nil writers discard it.
	Stdout io.Writer
	Stderr io.Writer
}

type Client struct {
	Addr   string
	Logger *zap.SugaredLogger
	Dialer *net.Dialer
}

type Option func(c *Client)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.Logger = l
	}
}

func WithDialer(d *net.Dialer) Option {
	return func(c *Client) {
		c.Dialer = d
	}
}

// New builds a client for the server at addr, which is host:port or a ws:// or wss:// URL.
func New(addr string, opts ...Option) *Client {
	c := &Client{
		Addr:   addr,
		Logger: zap.NewNop().Sugar(),
		Dialer: &net.Dialer{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run starts a session and waits for it to end, returning the exit code the process should use.
func (c *Client) Run(ctx context.Context, req SessionRequest) (int, error) {
	s, err := c.StartSession(ctx, req)
	if err != nil {
		return ExitCode(err), err
	}
	return s.Wait(ctx)
}

// StartSession connects, sends the handshake and starts streaming.
// The returned session owns the connection until it terminates.
func (c *Client) StartSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("%w: no command given", ErrBadArguments)
	}

	id := uuid.NewString()
	log := c.Logger.Named("session").With("Session", id)

	log.Debugw("connecting", "Addr", c.Addr)
	transport, err := Dial(ctx, c.Dialer, c.Addr)
	if err != nil {
		log.Debugf("connect error: %s", err)
		return nil, err
	}

	s := &Session{
		id:        id,
		log:       log,
		transport: transport,
		stdin:     req.Stdin,
		stdout:    io.Discard,
		stderr:    io.Discard,
		done:      make(chan struct{}),
	}
	if req.Stdout != nil {
		s.stdout = req.Stdout
	}
	if req.Stderr != nil {
		s.stderr = req.Stderr
	}

	log.Debugw("sending handshake", "Command", req.Command, "Args", len(req.Args), "Env", len(req.Env), "WD", req.WD)
	err = sendHandshake(transport, req)
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("sending handshake: %w", err)
	}

	go s.readChunks()
	go s.forwardStdin()
	return s, nil
}

type result struct {
	code int
	err  error
}

// Session is one invocation in its streaming state.
type Session struct {
	id        string
	log       *zap.SugaredLogger
	transport *Transport

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	finishOnce sync.Once
	done       chan struct{}
	res        result
}

func (s *Session) ID() string { return s.id }

// Wait blocks until the session terminates and returns the exit code to use.
// On a client-side failure the code is the reserved code for the error.
// If ctx is canceled first, the session is terminated by closing its connection.
func (s *Session) Wait(ctx context.Context) (int, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.log.Debugf("wait context done: %s", ctx.Err())
		s.finish(result{err: fmt.Errorf("%w: %w", ErrConnectionBroken, ctx.Err())})
		<-s.done
	}
	s.log.Debugf("session ended with exit code %d, err: %v", s.res.code, s.res.err)
	return s.res.code, s.res.err
}

// Done is closed once the session has terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// finish records the first outcome and closes the connection. Later calls are no-ops.
func (s *Session) finish(res result) {
	s.finishOnce.Do(func() {
		if res.err != nil {
			res.code = ExitCode(res.err)
		}
		s.res = res
		if err := s.transport.Close(); err != nil {
			s.log.Debugf("error closing conn: %s", err)
		}
		close(s.done)
	})
}

func (s *Session) terminated() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
