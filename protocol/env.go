package protocol

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Names of the environment entries the client adds so the server can adapt to the client's platform.
const (
	FileSeparatorVar = "NAILGUN_FILESEPARATOR"
	PathSeparatorVar = "NAILGUN_PATHSEPARATOR"
	TTYVarPrefix     = "NAILGUN_TTY_"
)

// FileSeparatorEnv returns the environment entry carrying the local file path separator.
func FileSeparatorEnv() string {
	return FileSeparatorVar + "=" + string(os.PathSeparator)
}

// PathSeparatorEnv returns the environment entry carrying the local path list separator.
func PathSeparatorEnv() string {
	return PathSeparatorVar + "=" + string(os.PathListSeparator)
}

// TTYEnv returns the environment entry telling the server whether the client's descriptor fd is a terminal.
func TTYEnv(fd int, isTTY bool) string {
	v := "0"
	if isTTY {
		v = "1"
	}
	return fmt.Sprintf("%s%d=%s", TTYVarPrefix, fd, v)
}

// IsProtocolEnv reports whether an environment entry is one of the markers above rather than a real variable.
func IsProtocolEnv(entry string) bool {
	name, _, _ := strings.Cut(entry, "=")
	return name == FileSeparatorVar || name == PathSeparatorVar || strings.HasPrefix(name, TTYVarPrefix)
}

// FormatExitCode renders an exit code as an Exit chunk payload.
func FormatExitCode(code int) []byte {
	return []byte(strconv.Itoa(code))
}

// ParseExitCode parses an Exit chunk payload. Surrounding whitespace is ignored.
// On error the returned code is 0, which is what a naive decimal parse of garbage yields.
func ParseExitCode(payload []byte) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return 0, fmt.Errorf("malformed exit code %q: %w", payload, err)
	}
	return code, nil
}
