// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package framing provides the length-prefix header codec the stream-socket
// transport backend (transport/pipe_other.go) uses to recover discrete
// messages out of a byte stream. The seqpacket backend needs none of this —
// the kernel already hands back exactly one message per receive — so this
// package exposes only the header codec, not a full io.Reader/io.Writer
// framing layer: a frame's OS handles ride as ancillary data on the same
// Sendmsg/Recvmsg call that carries the header and payload bytes, a
// pairing no io.Reader/io.Writer abstraction can express, so the transport
// backend drives the header codec directly against its own socket reads.
//
// Wire format: a 1-byte header followed by optional extended length bytes.
// Let L be payload length in bytes:
//   - 0 <= L <= 253: header[0] = L (no extended length)
//   - 254 <= L <= 65535: header[0] = 0xFE; next 2 bytes encode L (configured byte order)
//   - 65536 <= L <= 2^56-1: header[0] = 0xFF; next 7 bytes encode lower 56 bits of L
//     in the configured byte order
//
// Maximum supported payload is 2^56-1; larger values produce ErrTooLong.
package framer

import "encoding/binary"

const (
	frameHeaderLen          = 1
	framePayloadMaxLen8Bits = 1<<8 - 3
	framePayloadMaxLen16    = 1<<16 - 1
	framePayloadMaxLen56    = 1<<56 - 1
)

// EncodeHeader returns the wire header bytes for a payload of length l under
// the given byte order, for backends (transport/pipe_other.go) that need to
// prepend a header to a buffer handed to Sendmsg alongside ancillary data.
func EncodeHeader(l int64, order binary.ByteOrder) ([]byte, error) {
	if l < 0 || l > framePayloadMaxLen56 {
		return nil, ErrTooLong
	}
	switch {
	case l <= framePayloadMaxLen8Bits:
		return []byte{byte(l)}, nil
	case l <= framePayloadMaxLen16:
		h := make([]byte, 3)
		h[0] = framePayloadMaxLen8Bits + 1
		order.PutUint16(h[1:3], uint16(l))
		return h, nil
	default:
		h := make([]byte, 8)
		if order == binary.LittleEndian {
			order.PutUint64(h, uint64(l)<<8)
		} else {
			order.PutUint64(h, uint64(l)&framePayloadMaxLen56)
		}
		h[0] = framePayloadMaxLen8Bits + 2
		return h[:8], nil
	}
}

// DecodeHeader parses the leading header bytes of buf and reports the header
// length and payload length. ok is false if buf does not yet contain a
// complete header (caller should read more bytes and retry).
func DecodeHeader(buf []byte, order binary.ByteOrder) (hdrLen int, payloadLen int64, ok bool, err error) {
	if len(buf) < frameHeaderLen {
		return 0, 0, false, nil
	}
	switch buf[0] {
	case framePayloadMaxLen8Bits + 1:
		if len(buf) < frameHeaderLen+2 {
			return 0, 0, false, nil
		}
		return frameHeaderLen + 2, int64(order.Uint16(buf[frameHeaderLen : frameHeaderLen+2])), true, nil
	case framePayloadMaxLen8Bits + 2:
		if len(buf) < 8 {
			return 0, 0, false, nil
		}
		u64 := order.Uint64(buf[:8])
		if order == binary.LittleEndian {
			return 8, int64(u64 >> 8), true, nil
		}
		return 8, int64(u64 & framePayloadMaxLen56), true, nil
	default:
		return frameHeaderLen, int64(buf[0]), true, nil
	}
}
