// Package errs defines the typed error kinds returned by the channel client
// and the wire-level error envelope exchanged with peers and the remote
// service.
//
// Every fallible operation in the client returns an *Error carrying a Kind.
// Kinds are matched with errors.Is:
//
//	if errors.Is(err, errs.OutdatedVersion) {
//		// peer proposed a stale update; safe to ignore
//	}
//
// The wire representation (MsgError) groups errors into four categories with
// a stable numeric code taxonomy shared with the remote funder/watcher
// service. Build outbound envelopes with NewMsgError; wrap inbound ones into
// a RemoteError *Error with MsgError.AsError.
package errs
