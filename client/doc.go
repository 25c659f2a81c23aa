/*
Package client runs a command hosted by a nailgun server, proxying the local process's stdin, stdout, stderr and exit status.

A session moves through INIT, CONNECTED, HANDSHAKING, STREAMING and TERMINATED, in that order, exactly once:

1. StartSession dials the server. Failures here are ErrSocketFailed or ErrConnectFailed.
2. The handshake is sent: arguments, environment, working directory and finally the command.
3. Two goroutines run against the connection: one reads chunks and writes stdout and stderr locally, the other forwards local stdin.
4. The first of an exit chunk, a read failure or an unexpected chunk terminates the session and closes the connection.
A failed stdin send only stops forwarding, since the exit chunk may already be on its way.

The session never retries or reconnects. Because the protocol has no timeouts, a server that never sends an exit chunk blocks Wait until its context is canceled.

Stdin forwarding may stay blocked reading local stdin after the session is over, since a read from a file or terminal can't be interrupted. It performs no further sends once the session has terminated.
*/
package client
