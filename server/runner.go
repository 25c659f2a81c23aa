package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/guseggert/nailgun/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// lingerTimeout bounds how long the server keeps reading after the exit chunk, waiting for the client to hang up.
const lingerTimeout = 5 * time.Second

// exitStartFailed is sent when the command can't be started, matching what shells use for "command not found".
const exitStartFailed = 127

type invocation struct {
	Command string
	Args    []string
	Env     []string
	Dir     string
}

type runner struct {
	log     *zap.SugaredLogger
	conn    net.Conn
	aliases map[string][]string

	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMut      sync.Mutex
	exited        chan struct{}
	closeConnOnce sync.Once
}

func (r *runner) close() {
	r.closeConnOnce.Do(func() {
		err := r.conn.Close()
		if err != nil {
			r.log.Debugf("error closing conn: %s", err)
		}
	})
}

func (r *runner) run(ctx context.Context) {
	defer r.close()

	inv, err := readHandshake(r.conn)
	if err != nil {
		r.log.Debugf("error reading handshake: %s", err)
		return
	}
	r.log.Debugw("got handshake", "Command", inv.Command, "Args", inv.Args, "Dir", inv.Dir)

	err = r.start(inv)
	if err != nil {
		r.log.Debugf("error starting process: %s", err)
		_ = r.writeChunk(protocol.TypeStderr, []byte(fmt.Sprintf("nailgun: %s\n", err)))
		_ = r.writeChunk(protocol.TypeExit, protocol.FormatExitCode(exitStartFailed))
		r.linger()
		_, _ = io.Copy(io.Discard, r.conn)
		return
	}
	r.log.Debug("process started")

	// server shutdown kills the process and hangs up
	go func() {
		select {
		case <-ctx.Done():
			r.kill()
			r.close()
		case <-r.exited:
		}
	}()

	var group errgroup.Group
	group.Go(r.readMessages)
	group.Go(r.waitAndWriteResult)
	err = group.Wait()
	if err != nil {
		r.log.Debugf("session error: %s", err)
	}
}

// readHandshake collects argument, environment and directory chunks until the command chunk.
func readHandshake(conn io.Reader) (invocation, error) {
	var inv invocation
	for {
		c, err := protocol.ReadChunk(conn)
		if err != nil {
			return inv, err
		}
		switch c.Type {
		case protocol.TypeArgument:
			inv.Args = append(inv.Args, string(c.Payload))
		case protocol.TypeEnvironment:
			entry := string(c.Payload)
			if !protocol.IsProtocolEnv(entry) {
				inv.Env = append(inv.Env, entry)
			}
		case protocol.TypeDirectory:
			inv.Dir = string(c.Payload)
		case protocol.TypeCommand:
			inv.Command = string(c.Payload)
			if inv.Command == "" {
				return inv, errors.New("empty command")
			}
			return inv, nil
		default:
			return inv, fmt.Errorf("unexpected %s chunk during handshake", c.Type)
		}
	}
}

func (r *runner) start(inv invocation) error {
	argv := []string{inv.Command}
	if alias, ok := r.aliases[inv.Command]; ok {
		argv = append([]string{}, alias...)
	}
	argv = append(argv, inv.Args...)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = inv.Dir
	// non-nil, so nothing of the server's own environment leaks in
	cmd.Env = append([]string{}, inv.Env...)
	cmd.Stdout = &chunkWriter{r: r, typ: protocol.TypeStdout}
	cmd.Stderr = &chunkWriter{r: r, typ: protocol.TypeStderr}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	r.stdin = stdin
	r.cmd = cmd

	return cmd.Start()
}

func (r *runner) kill() {
	if r.cmd != nil && r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
}

func (r *runner) hasExited() bool {
	select {
	case <-r.exited:
		return true
	default:
		return false
	}
}

func (r *runner) writeChunk(typ protocol.ChunkType, payload []byte) error {
	r.writeMut.Lock()
	defer r.writeMut.Unlock()
	return protocol.WriteChunk(r.conn, typ, payload)
}

// readMessages feeds stdin chunks to the process until the client hangs up.
func (r *runner) readMessages() error {
	closedStdin := false
	closeStdin := func() {
		if !closedStdin {
			closedStdin = true
			r.stdin.Close()
		}
	}
	defer closeStdin()

	for {
		c, err := protocol.ReadChunk(r.conn)
		if err != nil {
			if r.hasExited() {
				return nil
			}
			r.log.Debugf("client went away before the process exited: %s", err)
			r.kill()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading chunk: %w", err)
		}

		switch c.Type {
		case protocol.TypeStdin:
			if closedStdin {
				continue
			}
			_, err := r.stdin.Write(c.Payload)
			if err != nil {
				r.log.Debugf("stdin write error: %s", err)
				closeStdin()
			}
		case protocol.TypeStdinEOF:
			r.log.Debug("got stdin EOF")
			closeStdin()
		default:
			r.kill()
			return fmt.Errorf("unexpected %s chunk from client", c.Type)
		}
	}
}

func (r *runner) waitAndWriteResult() error {
	err := r.cmd.Wait()
	close(r.exited)
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			r.log.Debugf("unexpected exit error: %s", err)
		}
	}

	exitCode := r.cmd.ProcessState.ExitCode()
	if status, ok := r.cmd.ProcessState.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		exitCode = 128 + int(status.Signal())
	}

	r.log.Debugf("process %d exited with code %d, sending exit chunk", r.cmd.Process.Pid, exitCode)
	err = r.writeChunk(protocol.TypeExit, protocol.FormatExitCode(exitCode))
	r.linger()
	if err != nil {
		return fmt.Errorf("sending exit code: %w", err)
	}
	return nil
}

// linger half-closes the conn where possible and bounds how long reads may continue, so the client gets to hang up
// first and stdin it sent late isn't answered with a reset.
func (r *runner) linger() {
	if cw, ok := r.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = r.conn.SetReadDeadline(time.Now().Add(lingerTimeout))
}
