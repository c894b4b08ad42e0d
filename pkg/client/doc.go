// Package client implements the channel client: the per-channel state
// machine and the Client that owns all machines, dispatches inbound wire
// messages, and drives the remote funder/watcher.
//
// The client is single-threaded and cooperative. Every operation is a
// synchronous step that consumes one input (a host call, an inbound peer
// payload, or a remote-service event) and returns an Output: host events plus
// outbound payloads for the peer connection and the remote-service
// connection. The client never blocks and never retries; deadlines are the
// host's concern and are reported back via Timeout/TimeoutProposal.
//
// On hosted targets multiple machines may be advanced from different
// threads as long as the host serializes calls into one Client; machines
// never share mutable state.
package client
