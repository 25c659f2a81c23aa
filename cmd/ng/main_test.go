package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/guseggert/nailgun/client"
	inet "github.com/guseggert/nailgun/internal/net"
	"github.com/guseggert/nailgun/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startServer(t *testing.T) string {
	s, err := server.New(server.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	l, err := inet.ListenLoopback()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ctx, l)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	_, port, _ := strings.Cut(l.Addr().String(), ":")
	return port
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runNG(t *testing.T, stdin string, args ...string) result {
	// keep the developer's config file out of tests
	t.Setenv("NAILGUN_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestRunCommand(t *testing.T) {
	port := startServer(t)

	res := runNG(t, "", "ng", "--nailgun-port", port, "echo", "hi")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "hi\n", res.stdout)
}

func TestPassthroughFlags(t *testing.T) {
	port := startServer(t)

	// flags after the command belong to the remote command
	res := runNG(t, "", "ng", "--nailgun-server", "127.0.0.1", "--nailgun-port", port, "sh", "-c", "printf '%s' \"$0\"; exit 4", "--nailgun-port")
	assert.Equal(t, 4, res.code, res.stderr)
	assert.Equal(t, "--nailgun-port", res.stdout)
}

func TestStdinAndTTYEnv(t *testing.T) {
	port := startServer(t)

	res := runNG(t, "piped input", "ng", "--nailgun-port", port, "sh", "-c", "cat; echo; echo $NAILGUN_TTY_0")
	assert.Equal(t, 0, res.code, res.stderr)
	// the server strips protocol markers before running the command
	assert.Equal(t, "piped input\n\n", res.stdout)
}

func TestEnvVarPort(t *testing.T) {
	port := startServer(t)
	t.Setenv("NAILGUN_PORT", port)

	res := runNG(t, "", "ng", "echo", "from env")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "from env\n", res.stdout)
}

func TestAliasInvocation(t *testing.T) {
	port := startServer(t)
	t.Setenv("NAILGUN_PORT", port)

	// invoked through a link named "echo", so even ng's own flags pass through
	res := runNG(t, "", "/usr/local/bin/echo", "--nailgun-port", "x")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "--nailgun-port x\n", res.stdout)
}

func TestConfigFile(t *testing.T) {
	port := startServer(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server: 127.0.0.1\nport: "+port+"\naliases:\n  hello: echo\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"ng", "--nailgun-config", cfgPath, "hello", "there"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "there\n", stdout.String())
}

func TestConnectTimeout(t *testing.T) {
	port := startServer(t)

	res := runNG(t, "", "ng", "--nailgun-port", port, "--nailgun-connect-timeout", "5s", "echo", "in time")
	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "in time\n", res.stdout)
}

func TestConnectFailed(t *testing.T) {
	port, err := inet.GetEphemeralTCPPort()
	require.NoError(t, err)

	res := runNG(t, "", "ng", "--nailgun-port", strconv.Itoa(port), "echo", "hi")
	assert.Equal(t, client.ExitConnectFailed, res.code)
	assert.Contains(t, res.stderr, "unable to connect")
}

func TestBadArguments(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"ng", "--bogus", "echo"}},
		{name: "no command", args: []string{"ng"}},
		{name: "invalid port", args: []string{"ng", "--nailgun-port", "notaport", "echo"}},
		{name: "port out of range", args: []string{"ng", "--nailgun-port", "70000", "echo"}},
		{name: "invalid connect timeout", args: []string{"ng", "--nailgun-connect-timeout", "soon", "echo"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := runNG(t, "", c.args...)
			assert.Equal(t, client.ExitBadArguments, res.code)
		})
	}
}

func TestVersion(t *testing.T) {
	res := runNG(t, "", "ng", "ng-version")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "NailGun client version "+version+"\n", res.stdout)

	res = runNG(t, "", "ng", "--nailgun-version")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, version)
}

func TestWebSocketServerAddr(t *testing.T) {
	res := runNG(t, "", "ng", "--nailgun-server", "ws://127.0.0.1:1/nailgun", "--nailgun-port", "9", "echo")
	// the port flag is ignored for URLs; nothing listens on port 1
	assert.Equal(t, client.ExitConnectFailed, res.code)
}

func TestAliasArgs(t *testing.T) {
	assert.Equal(t, []string{"ng", "-x"}, aliasArgs([]string{"ng", "-x"}))
	assert.Equal(t, []string{"/opt/bin/ng.exe", "-x"}, aliasArgs([]string{"/opt/bin/ng.exe", "-x"}))
	assert.Equal(t, []string{"ng", "--", "fmt", "-l"}, aliasArgs([]string{"./fmt", "-l"}))
	assert.Equal(t, []string{"ng"}, aliasArgs(nil))
}
