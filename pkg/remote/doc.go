// Package remote implements the client side of the trusted funder/watcher
// service protocol: the top-level Message union with its codec, and a
// request/response Client over a single length-prefixed connection.
//
// The service performs every on-chain action on the channel client's behalf:
// depositing funds (Fund), registering disputes and watching the chain
// (StartWatching), disputing with the latest state (ForceClose), and
// releasing resources (StopWatching). Responses are correlated to requests
// by FIFO order over the connection; asynchronous watch events and dispute
// notifications are surfaced as Events.
//
// The Client is step-style like the rest of the module: request methods
// return the outbound frame payload and HandleInbound consumes one inbound
// payload, so any host transport works.
package remote
