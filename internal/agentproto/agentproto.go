// Package agentproto defines the single-verb wire protocol spoken between
// the unlock agent (internal/keeperd) and its clients (internal/secrets).
// It is deliberately tiny: one request line, one response body, so this
// package stays a handful of constants, not a codec.
package agentproto

// GetRequest is the only request line clients ever send.
const GetRequest = "GET\n"

// GetVerb is GetRequest without its trailing newline, for servers comparing
// the trimmed line they read off the wire.
const GetVerb = "GET"
