//go:build linux

package transport

import (
	"sync"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/xproc/internal/wire"
	"code.hybscloud.com/xproc/xerr"
	"code.hybscloud.com/xproc/xprocmetrics"
)

// seqpacketEndpoint is the Linux realization of Endpoint: an AF_UNIX
// SOCK_SEQPACKET socket. Seqpacket already preserves message boundaries, so
// no length header is needed around each Sendmsg/Recvmsg pair. Each datagram
// does carry one leading marker byte ahead of the payload: the kernel reports
// end of stream as a zero-length read, so an empty payload is never sent as a
// zero-length datagram.
type seqpacketEndpoint struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

// NewPair returns both ends of a freshly created socket pair: one goes to
// bootstrap.Spawn's child, the other stays with the caller.
func NewPair() (a, b Endpoint, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, xerr.SpawnFailed
	}
	return &seqpacketEndpoint{fd: fds[0]}, &seqpacketEndpoint{fd: fds[1]}, nil
}

// NewEndpoint wraps an already-open socket file descriptor, the form a
// child receives its bootstrap handle and channel handles in.
func NewEndpoint(fd int) Endpoint {
	return &seqpacketEndpoint{fd: fd}
}

func (e *seqpacketEndpoint) Fd() int { return e.fd }

func (e *seqpacketEndpoint) SetNonblock(nonblocking bool) error {
	if err := unix.SetNonblock(e.fd, nonblocking); err != nil {
		return xerr.Io
	}
	return nil
}

func (e *seqpacketEndpoint) MaxPayload() int { return defaultMaxPayload }

func (e *seqpacketEndpoint) Send(payload []byte, handles []wire.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return xerr.Closed
	}
	if len(payload) > e.MaxPayload() {
		return xerr.TooLarge
	}
	if err := checkHandleCount(handles); err != nil {
		return err
	}
	oob := rightsFor(handles)
	msg := make([]byte, 1, len(payload)+1)
	msg = append(msg, payload...)
	if err := unix.Sendmsg(e.fd, msg, oob, nil, 0); err != nil {
		return mapSendErr(err)
	}
	xprocmetrics.ObserveSend(len(payload), len(handles))
	return nil
}

func (e *seqpacketEndpoint) Recv() ([]byte, []wire.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil, xerr.Closed
	}
	buf := make([]byte, e.MaxPayload()+1)
	oob := make([]byte, unix.CmsgSpace(maxHandlesPerMessage*4))
	n, oobn, recvflags, _, err := unix.Recvmsg(e.fd, buf, oob, 0)
	if err != nil {
		return nil, nil, mapRecvErr(err)
	}
	if recvflags&unix.MSG_TRUNC != 0 {
		return nil, nil, xerr.Truncated
	}
	if n == 0 {
		return nil, nil, xerr.EndOfStream
	}
	handles, err := parseRights(oob[:oobn])
	if err != nil {
		return nil, nil, err
	}
	out := make([]byte, n-1)
	copy(out, buf[1:n])
	xprocmetrics.ObserveRecv(len(out), len(handles))
	return out, handles, nil
}

func (e *seqpacketEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return unix.Close(e.fd)
}
