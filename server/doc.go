/*
Package server is a reference nailgun server that runs each requested command as a local process with os/exec.

Processes are scoped to the connection: if the client goes away before the process exits, the process is killed.
Output is not buffered, so a client that stops reading eventually stalls the process.

Connections arrive either as plain TCP (Serve) or as WebSocket upgrades on GET /nailgun (Handler), in which case the
chunk stream is carried in binary messages. The server does not sandbox or authenticate anything; run it only where
every client is trusted.
*/
package server
