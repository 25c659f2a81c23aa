/*
Package protocol implements the nailgun wire format: a single byte stream carrying typed, length-prefixed chunks.

Every chunk is a 5-byte header followed by a payload:

	[4-byte big-endian payload length][1-byte chunk type][payload]

A session proceeds as follows:

1. The client connects to the server.
2. The client sends one Argument chunk per argument, two Environment chunks carrying its path separators, one Environment chunk per variable, and one Directory chunk.
3. The client sends exactly one Command chunk. Argument, Environment and Directory chunks are only meaningful before it.
4. The client streams Stdin chunks and finally a single StdinEOF chunk, while the server streams Stdout and Stderr chunks.
5. The server sends an Exit chunk whose payload is the decimal exit code, and the session is over.

Nothing in the protocol bounds how long a session may take; there are no timeouts or keepalives.
*/
package protocol
