// Package transport implements the handle-carrying datagram substrate
// channels and the bootstrap protocol sit on: every Send delivers its
// payload and the OS handles riding with it to the peer's next Recv as one
// unit, regardless of what kind of socket backs the connection.
//
// Two realizations exist behind the Endpoint interface. seqpacket_linux.go
// uses AF_UNIX SOCK_SEQPACKET, which already preserves message boundaries.
// pipe_other.go falls back to AF_UNIX SOCK_STREAM plus a length header
// adapted from internal/framing, since a byte stream has none.
package transport

import (
	"golang.org/x/sys/unix"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/xproc/internal/wire"
	"code.hybscloud.com/xproc/xerr"
)

// defaultMaxPayload bounds a single message's payload bytes: Send rejects a
// larger payload with xerr.TooLarge and Recv accepts nothing larger.
// MaxPayload reports it per Endpoint so callers can size buffers.
const defaultMaxPayload = 1 << 20

// maxHandlesPerMessage bounds how many ancillary-data file descriptors one
// Recv will parse out of a single control message.
const maxHandlesPerMessage = 32

// Endpoint is one end of a handle-carrying connection between two
// processes, or two goroutines within one process before any exec happens.
type Endpoint interface {
	// Send delivers payload and handles to the peer's next Recv as one
	// message. Ownership of the file descriptors underlying handles passes
	// to the kernel; callers must not reuse them afterward.
	Send(payload []byte, handles []wire.Handle) error
	// Recv blocks until the next message arrives, or until the endpoint
	// closes or the peer disappears.
	Recv() (payload []byte, handles []wire.Handle, err error)
	// Close releases the underlying socket. Safe to call more than once.
	Close() error
	// MaxPayload reports the largest payload Send will accept.
	MaxPayload() int
	// Fd returns the underlying socket file descriptor, for inheriting
	// across exec (bootstrap) or registering with a poll set (asyncx).
	Fd() int
	// SetNonblock switches the underlying socket between blocking and
	// non-blocking mode. In non-blocking mode, Send and Recv return
	// iox.ErrWouldBlock instead of blocking when no progress is possible —
	// the suspension point asyncx's reactor polls on.
	SetNonblock(nonblocking bool) error
}

// FileHandle is a transmittable wrapper around a single OS file descriptor:
// no payload bytes of its own, just one wire.Handle leaf. This is the type
// the demo's writeFile entry point takes as an argument.
type FileHandle struct {
	h wire.Handle
}

// NewFileHandle wraps an already-open file descriptor for transmission.
func NewFileHandle(fd int) FileHandle { return FileHandle{h: wire.Handle(fd)} }

// Fd returns the wrapped file descriptor.
func (f FileHandle) Fd() int { return int(f.h) }

func (f FileHandle) MarshalWire(w *wire.Writer) error {
	w.PutHandle(f.h)
	return nil
}

func (f *FileHandle) UnmarshalWire(c *wire.Cursor) error {
	h, err := c.GetHandle()
	if err != nil {
		return err
	}
	f.h = h
	return nil
}

// checkHandleCount rejects a Send whose handle list would not fit in one
// ancillary-data message, before either backend ever reaches its syscall.
func checkHandleCount(handles []wire.Handle) error {
	if len(handles) > maxHandlesPerMessage {
		return xerr.ResourceExhausted
	}
	return nil
}

// rightsFor builds the SCM_RIGHTS ancillary-data blob for handles, or nil if
// there are none to send.
func rightsFor(handles []wire.Handle) []byte {
	if len(handles) == 0 {
		return nil
	}
	fds := make([]int, len(handles))
	for i, h := range handles {
		fds[i] = int(h)
	}
	return unix.UnixRights(fds...)
}

// parseRights extracts the file descriptors carried in a received
// SCM_RIGHTS ancillary-data blob, in order.
func parseRights(oob []byte) ([]wire.Handle, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	cms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, xerr.Malformed
	}
	var handles []wire.Handle
	for _, cm := range cms {
		fds, err := unix.ParseUnixRights(&cm)
		if err != nil {
			return nil, xerr.Malformed
		}
		for _, fd := range fds {
			handles = append(handles, wire.Handle(fd))
		}
	}
	return handles, nil
}

func mapSendErr(err error) error {
	switch err {
	case unix.EAGAIN:
		return iox.ErrWouldBlock
	case unix.EPIPE:
		return xerr.Closed
	case unix.ECONNRESET:
		return xerr.PeerGone
	default:
		return xerr.Io
	}
}

func mapRecvErr(err error) error {
	switch err {
	case unix.EAGAIN:
		return iox.ErrWouldBlock
	case unix.ECONNRESET:
		return xerr.PeerGone
	default:
		return xerr.Io
	}
}
