/*
Package client provides a Go client library for talking to a keyring-store
engine process over its framed stdio protocol.

# Architecture

	┌──────────────────── HOST PROCESS ──────────────────────────┐
	│                                                              │
	│  import "github.com/eshe-huli/keyring-store/pkg/client"     │
	│                                                              │
	│  cmd := exec.Command("keyring-store")                       │
	│  stdin, _ := cmd.StdinPipe()                                 │
	│  stdout, _ := cmd.StdoutPipe()                                │
	│  cli := client.New(stdout, stdin)                             │
	│  cli.PutBlob([]byte("hello"))                                 │
	│                                                              │
	└──────────────────┬───────────────────────────────────────┘
	                   │ length-prefixed msgpack frames
	┌──────────────────▼──── keyring-store engine ───────────────┐
	│  internal/dispatch.Dispatcher.Run                           │
	└─────────────────────────────────────────────────────────────┘

Client does not spawn the engine process itself; callers own the
exec.Cmd and hand New its Stdout/Stdin pipes (or any io.Reader/io.Writer
pair — a TCP connection works just as well for testing against a engine
bound to a socket instead of stdio).

# Sync

Sync implements the anti-entropy exchange between two Clients, each
fronting its own engine. It is the one call site that exercises
internal/merkle's set-diff (DiffRoots) outside of tests; the combined root
(ComputeRoot) is exposed separately through MerkleRoot. The
engine's GetRoots/GetChanges handlers never build a tree themselves,
since a single engine instance has no notion of a peer to diff against.

# Correlation

Every call picks its own ref_id and blocks until the matching response
frame arrives. The protocol allows only one request in flight per
connection, so Client serializes calls internally; a host that wants
concurrency should open multiple engine connections (or multiple
sub-processes) rather than share one Client across goroutines expecting
overlap.
*/
package client
