// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framer_test

import (
	"encoding/binary"
	"testing"

	fr "code.hybscloud.com/xproc/internal/framing"
)

func TestEncodeDecodeHeader_RoundTrip(t *testing.T) {
	t.Parallel()
	lengths := []int64{0, 1, 253, 254, 65535, 65536, 1 << 20}
	for _, l := range lengths {
		h, err := fr.EncodeHeader(l, binary.LittleEndian)
		if err != nil {
			t.Fatalf("encode(%d): %v", l, err)
		}
		hdrLen, got, ok, err := fr.DecodeHeader(h, binary.LittleEndian)
		if err != nil {
			t.Fatalf("decode(%d): %v", l, err)
		}
		if !ok {
			t.Fatalf("decode(%d): incomplete header", l)
		}
		if hdrLen != len(h) {
			t.Fatalf("decode(%d): hdrLen=%d want=%d", l, hdrLen, len(h))
		}
		if got != l {
			t.Fatalf("decode(%d): got=%d", l, got)
		}
	}
}

func TestDecodeHeader_ShortBuffer(t *testing.T) {
	t.Parallel()
	h, _ := fr.EncodeHeader(70000, binary.LittleEndian)
	_, _, ok, err := fr.DecodeHeader(h[:3], binary.LittleEndian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected incomplete header for truncated buffer")
	}
}

func TestEncodeHeader_TooLongRejected(t *testing.T) {
	t.Parallel()
	if _, err := fr.EncodeHeader(1<<57, binary.BigEndian); err != fr.ErrTooLong {
		t.Fatalf("err=%v want ErrTooLong", err)
	}
	if _, err := fr.EncodeHeader(-1, binary.BigEndian); err != fr.ErrTooLong {
		t.Fatalf("err=%v want ErrTooLong", err)
	}
}

func TestDecodeHeader_BigAndLittleEndianDiffer(t *testing.T) {
	t.Parallel()
	h, err := fr.EncodeHeader(300, binary.BigEndian)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, got, ok, err := fr.DecodeHeader(h, binary.BigEndian); err != nil || !ok || got != 300 {
		t.Fatalf("decode(BigEndian)=%d,%v,%v want 300,true,nil", got, ok, err)
	}
	if _, got, ok, err := fr.DecodeHeader(h, binary.LittleEndian); err != nil || !ok || got == 300 {
		t.Fatalf("decode(LittleEndian) unexpectedly matched BigEndian encoding: %d,%v,%v", got, ok, err)
	}
}
