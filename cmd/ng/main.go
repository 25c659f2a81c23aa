package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/guseggert/nailgun/client"
	"github.com/guseggert/nailgun/config"
	"github.com/guseggert/nailgun/protocol"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var version = "0.9.3"

const (
	clientName = "ng"

	flagServer  = "nailgun-server"
	flagPort    = "nailgun-port"
	flagConfig  = "nailgun-config"
	flagVerbose = "nailgun-verbose"
	flagTimeout = "nailgun-connect-timeout"

	versionCommand = "ng-version"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{Name: "nailgun-version", Usage: "print the client version and exit"}
	cli.HelpFlag = &cli.BoolFlag{Name: "nailgun-help", Usage: "show help and exit"}
}

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// run executes the client and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	exitCode := 0
	app := &cli.App{
		Name:            clientName,
		Usage:           "run a command on a nailgun server",
		UsageText:       "ng [options] command [args...]",
		Version:         version,
		HideHelpCommand: true,
		Reader:          stdin,
		Writer:          stdout,
		ErrWriter:       stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagServer,
				Usage:   "The server host, or a ws:// or wss:// URL.",
				EnvVars: []string{"NAILGUN_SERVER"},
			},
			&cli.StringFlag{
				Name:    flagPort,
				Usage:   fmt.Sprintf("The server port (default %d).", client.DefaultPort),
				EnvVars: []string{"NAILGUN_PORT"},
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Usage:   "YAML file with server, port and aliases.",
				EnvVars: []string{"NAILGUN_CONFIG"},
				Value:   config.DefaultPath(),
			},
			&cli.DurationFlag{
				Name:    flagTimeout,
				Usage:   "Give up connecting after this long. Zero waits as long as the OS does.",
				EnvVars: []string{"NAILGUN_CONNECT_TIMEOUT"},
			},
			&cli.BoolFlag{
				Name:  flagVerbose,
				Usage: "Log client activity to stderr.",
			},
		},
		OnUsageError: func(cCtx *cli.Context, err error, isSubcommand bool) error {
			return fmt.Errorf("%w: %w", client.ErrBadArguments, err)
		},
		// exit codes are decided below, never inside the app
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(cCtx *cli.Context) error {
			code, err := runCommand(cCtx, stdin, stdout, stderr)
			exitCode = code
			return err
		},
	}

	err := app.RunContext(context.Background(), aliasArgs(args))
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", clientName, err)
		return client.ExitCode(err)
	}
	return exitCode
}

// aliasArgs handles invocation through a link named after the command: every argument is passed through untouched.
func aliasArgs(args []string) []string {
	if len(args) == 0 {
		return []string{clientName}
	}
	name := strings.TrimSuffix(filepath.Base(args[0]), ".exe")
	if name == clientName {
		return args
	}
	return append([]string{clientName, "--", name}, args[1:]...)
}

func runCommand(cCtx *cli.Context, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if cCtx.NArg() == 0 {
		return client.ExitBadArguments, fmt.Errorf("%w: no command given", client.ErrBadArguments)
	}

	cfg, err := config.Load(cCtx.String(flagConfig))
	if err != nil {
		return client.ExitBadArguments, fmt.Errorf("%w: %w", client.ErrBadArguments, err)
	}

	command := cfg.ResolveCommand(cCtx.Args().First())
	if command == versionCommand {
		fmt.Fprintf(stdout, "NailGun client version %s\n", version)
		return 0, nil
	}

	addr, err := serverAddr(cCtx, cfg)
	if err != nil {
		return client.ExitBadArguments, err
	}

	logger := buildLogger(stderr, cCtx.Bool(flagVerbose))
	defer logger.Sync()

	wd, err := os.Getwd()
	if err != nil {
		logger.Debugf("unable to get working directory: %s", err)
	}

	env := append(os.Environ(), ttyEnv(stdin, stdout, stderr)...)

	c := client.New(addr,
		client.WithLogger(logger),
		client.WithDialer(&net.Dialer{Timeout: cCtx.Duration(flagTimeout)}),
	)
	session, err := c.StartSession(cCtx.Context, client.SessionRequest{
		Command: command,
		Args:    cCtx.Args().Tail(),
		Env:     env,
		WD:      wd,
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
	})
	if err != nil {
		return client.ExitCode(err), err
	}
	logger.Debugw("session started", "Session", session.ID(), "Addr", addr)
	return session.Wait(cCtx.Context)
}

// serverAddr picks flags and environment over the config file over the defaults.
func serverAddr(cCtx *cli.Context, cfg *config.Config) (string, error) {
	host := client.DefaultHost
	if cfg.Server != "" {
		host = cfg.Server
	}
	if cCtx.IsSet(flagServer) {
		host = cCtx.String(flagServer)
	}
	if client.IsWebSocketAddr(host) {
		return host, nil
	}

	port := client.DefaultPort
	if cfg.Port != 0 {
		port = cfg.Port
	}
	if cCtx.IsSet(flagPort) {
		p, err := strconv.Atoi(cCtx.String(flagPort))
		if err != nil || p <= 0 || p > 65535 {
			return "", fmt.Errorf("%w: invalid port %q", client.ErrBadArguments, cCtx.String(flagPort))
		}
		port = p
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// ttyEnv tells the server which of the client's descriptors are terminals.
func ttyEnv(stdin io.Reader, stdout, stderr io.Writer) []string {
	fds := []any{stdin, stdout, stderr}
	env := make([]string, 0, len(fds))
	for i, fd := range fds {
		isTTY := false
		if f, ok := fd.(*os.File); ok {
			isTTY = term.IsTerminal(int(f.Fd()))
		}
		env = append(env, protocol.TTYEnv(i, isTTY))
	}
	return env
}

// buildLogger logs to stderr, which the remote command shares, so only errors are shown unless verbose.
func buildLogger(w io.Writer, verbose bool) *zap.SugaredLogger {
	level := zapcore.ErrorLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core).Named(clientName).Sugar()
}
