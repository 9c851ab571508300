package wire

import (
	"math"

	"code.hybscloud.com/xproc/xerr"
)

// Cursor reads primitive values from a Frame at a given position, consuming
// bytes and handles in order. A frame that underflows or has leftover bytes
// once the outermost value has been read reports xerr.Malformed.
type Cursor struct {
	fr      *Frame
	off     int // payload read offset
	handOff int // handle read offset
}

// NewCursor returns a Cursor reading fr from the start.
func NewCursor(fr *Frame) *Cursor { return &Cursor{fr: fr} }

// Done reports whether every payload byte and handle has been consumed.
func (c *Cursor) Done() bool {
	return c.off == len(c.fr.Payload) && c.handOff == len(c.fr.Handles)
}

func (c *Cursor) take(n int) ([]byte, error) {
	if c.off+n > len(c.fr.Payload) {
		return nil, xerr.Malformed
	}
	b := c.fr.Payload[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *Cursor) GetUint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) GetInt8() (int8, error) {
	v, err := c.GetUint8()
	return int8(v), err
}

func (c *Cursor) GetBool() (bool, error) {
	v, err := c.GetUint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, xerr.Malformed
	}
	return v == 1, nil
}

func (c *Cursor) GetUint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return WireOrder().Uint16(b), nil
}

func (c *Cursor) GetInt16() (int16, error) {
	v, err := c.GetUint16()
	return int16(v), err
}

func (c *Cursor) GetUint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return WireOrder().Uint32(b), nil
}

func (c *Cursor) GetInt32() (int32, error) {
	v, err := c.GetUint32()
	return int32(v), err
}

func (c *Cursor) GetUint64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return WireOrder().Uint64(b), nil
}

func (c *Cursor) GetInt64() (int64, error) {
	v, err := c.GetUint64()
	return int64(v), err
}

func (c *Cursor) GetFloat32() (float32, error) {
	v, err := c.GetUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (c *Cursor) GetFloat64() (float64, error) {
	v, err := c.GetUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// GetBytes reads a platform-word length prefix followed by that many bytes.
func (c *Cursor) GetBytes() ([]byte, error) {
	n, err := c.GetUint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(c.fr.Payload)-c.off) {
		return nil, xerr.Malformed
	}
	return c.take(int(n))
}

func (c *Cursor) GetString() (string, error) {
	b, err := c.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetDiscriminant reads a sum-type tag using the same width rule as
// Writer.PutDiscriminant.
func (c *Cursor) GetDiscriminant(numVariants int) (uint32, error) {
	switch {
	case numVariants <= 1<<8:
		v, err := c.GetUint8()
		return uint32(v), err
	case numVariants <= 1<<16:
		v, err := c.GetUint16()
		return uint32(v), err
	default:
		return c.GetUint32()
	}
}

// GetHandle consumes the one-byte placeholder and the next handle in order.
func (c *Cursor) GetHandle() (Handle, error) {
	if _, err := c.GetUint8(); err != nil {
		return 0, err
	}
	if c.handOff >= len(c.fr.Handles) {
		return 0, xerr.HandleCount
	}
	h := c.fr.Handles[c.handOff]
	c.handOff++
	return h, nil
}

// Frame returns the Frame being read.
func (c *Cursor) Frame() *Frame { return c.fr }
