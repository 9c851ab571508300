//go:build !linux

package transport

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/xproc/internal/bo"
	"code.hybscloud.com/xproc/internal/framing"
	"code.hybscloud.com/xproc/internal/wire"
	"code.hybscloud.com/xproc/xerr"
	"code.hybscloud.com/xproc/xprocmetrics"
)

// streamEndpoint is the non-Linux realization of Endpoint: AF_UNIX
// SOCK_STREAM has no message boundaries, so each Send prefixes its payload
// with internal/framing's variable-width length header, and the handles ride
// the Sendmsg call that carries
// the header and payload bytes together.
type streamEndpoint struct {
	mu     sync.Mutex
	fd     int
	closed bool
	order  binary.ByteOrder
}

// NewPair returns both ends of a freshly created socket pair.
func NewPair() (a, b Endpoint, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, xerr.SpawnFailed
	}
	return newStreamEndpoint(fds[0]), newStreamEndpoint(fds[1]), nil
}

// NewEndpoint wraps an already-open socket file descriptor.
func NewEndpoint(fd int) Endpoint { return newStreamEndpoint(fd) }

func newStreamEndpoint(fd int) *streamEndpoint {
	return &streamEndpoint{fd: fd, order: bo.Native()}
}

func (e *streamEndpoint) Fd() int         { return e.fd }
func (e *streamEndpoint) MaxPayload() int { return defaultMaxPayload }

func (e *streamEndpoint) SetNonblock(nonblocking bool) error {
	if err := unix.SetNonblock(e.fd, nonblocking); err != nil {
		return xerr.Io
	}
	return nil
}

func (e *streamEndpoint) Send(payload []byte, handles []wire.Handle) error {
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
	hdr, err := framing.EncodeHeader(int64(len(payload)), e.order)
	if err != nil {
		return xerr.TooLarge
	}
	msg := make([]byte, 0, len(hdr)+len(payload))
	msg = append(msg, hdr...)
	msg = append(msg, payload...)

	oob := rightsFor(handles)
	if err := unix.Sendmsg(e.fd, msg, oob, nil, 0); err != nil {
		return mapSendErr(err)
	}
	xprocmetrics.ObserveSend(len(payload), len(handles))
	return nil
}

// Recv reads the length header one byte at a time (DecodeHeader reports
// whether the accumulated bytes already form a complete header) so that any
// ancillary data, which the kernel attaches to the recvmsg call receiving
// the first byte of a given sendmsg, is not missed by over-reading past the
// header into the next message's bytes.
func (e *streamEndpoint) Recv() ([]byte, []wire.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil, xerr.Closed
	}

	var hdrBuf []byte
	var handles []wire.Handle
	for {
		b := make([]byte, 1)
		oob := make([]byte, unix.CmsgSpace(maxHandlesPerMessage*4))
		n, oobn, _, _, err := unix.Recvmsg(e.fd, b, oob, 0)
		if err != nil {
			return nil, nil, mapRecvErr(err)
		}
		if n == 0 {
			return nil, nil, xerr.EndOfStream
		}
		if oobn > 0 {
			hs, err := parseRights(oob[:oobn])
			if err != nil {
				return nil, nil, err
			}
			handles = append(handles, hs...)
		}
		hdrBuf = append(hdrBuf, b[0])
		hdrLen, payloadLen, ok, err := framing.DecodeHeader(hdrBuf, e.order)
		if err != nil {
			return nil, nil, xerr.Malformed
		}
		if ok {
			_ = hdrLen
			return e.recvPayload(payloadLen, handles)
		}
		if len(hdrBuf) > 9 {
			return nil, nil, xerr.Malformed
		}
	}
}

func (e *streamEndpoint) recvPayload(payloadLen int64, handles []wire.Handle) ([]byte, []wire.Handle, error) {
	if payloadLen > int64(e.MaxPayload()) {
		return nil, nil, xerr.TooLarge
	}
	payload := make([]byte, payloadLen)
	off := int64(0)
	for off < payloadLen {
		oob := make([]byte, unix.CmsgSpace(maxHandlesPerMessage*4))
		n, oobn, _, _, err := unix.Recvmsg(e.fd, payload[off:], oob, 0)
		if err != nil {
			return nil, nil, mapRecvErr(err)
		}
		if n == 0 {
			return nil, nil, xerr.Truncated
		}
		if oobn > 0 {
			hs, err := parseRights(oob[:oobn])
			if err != nil {
				return nil, nil, err
			}
			handles = append(handles, hs...)
		}
		off += int64(n)
	}
	xprocmetrics.ObserveRecv(len(payload), len(handles))
	return payload, handles, nil
}

func (e *streamEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return unix.Close(e.fd)
}
