package net

import (
	"fmt"
	"net"
)

// ListenLoopback listens on an ephemeral TCP port on the IPv4 loopback address.
func ListenLoopback() (*net.TCPListener, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("resolving 127.0.0.1:0: %w", err)
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on loopback: %w", err)
	}
	return listener, nil
}

// GetEphemeralTCPPort returns a loopback port that nothing was listening on at the time of the call.
func GetEphemeralTCPPort() (int, error) {
	listener, err := ListenLoopback()
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
