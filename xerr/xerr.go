// Package xerr defines the error taxonomy shared by transport, channel,
// bootstrap and asyncx. Transport, channel and serializer failures are
// reported as the sentinels below; bootstrap wraps some of them with
// github.com/pkg/errors so that %+v formatting yields a stack trace during
// debugging. Context cancellation errors are returned as they are, and a few
// errors fall outside this taxonomy (the serializer's unsupported-type error,
// WaitAll's nonzero-exit report).
package xerr

import "errors"

var (
	// Io reports a transport syscall failure not covered by a more specific kind.
	Io = errors.New("xproc: i/o error")

	// Closed reports use of an endpoint that was already closed or moved away,
	// or a send to a peer endpoint that has been destroyed.
	Closed = errors.New("xproc: endpoint closed")

	// EndOfStream reports recv after orderly peer closure.
	EndOfStream = errors.New("xproc: end of stream")

	// Truncated reports that an incoming message would not fit the receive buffer.
	Truncated = errors.New("xproc: message truncated")

	// TooLarge reports that an outgoing message exceeds the transport's cap.
	TooLarge = errors.New("xproc: message too large")

	// Malformed reports a serializer invariant violation: bad discriminant,
	// length overflow, short read, or leftover bytes after the outermost value.
	Malformed = errors.New("xproc: malformed frame")

	// HandleCount reports that a frame carried fewer handles than its schema demands.
	HandleCount = errors.New("xproc: handle count mismatch")

	// PeerGone reports unexpected peer process death.
	PeerGone = errors.New("xproc: peer gone")

	// NoExecutable reports that the current executable image could not be located for re-exec.
	NoExecutable = errors.New("xproc: no executable image")

	// SpawnFailed reports that the OS rejected process creation.
	SpawnFailed = errors.New("xproc: spawn failed")

	// ResourceExhausted reports that a send's handle count exceeds the platform ceiling.
	ResourceExhausted = errors.New("xproc: resource exhausted")
)
