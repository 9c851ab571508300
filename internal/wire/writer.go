package wire

import "math"

// Writer appends primitive values to a Frame's payload and handle list.
type Writer struct {
	fr *Frame
}

// NewWriter returns a Writer appending to fr.
func NewWriter(fr *Frame) *Writer { return &Writer{fr: fr} }

func (w *Writer) grow(n int) []byte {
	off := len(w.fr.Payload)
	w.fr.Payload = append(w.fr.Payload, make([]byte, n)...)
	return w.fr.Payload[off : off+n]
}

func (w *Writer) PutUint8(v uint8)  { w.fr.Payload = append(w.fr.Payload, v) }
func (w *Writer) PutInt8(v int8)    { w.PutUint8(uint8(v)) }
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

func (w *Writer) PutUint16(v uint16) { WireOrder().PutUint16(w.grow(2), v) }
func (w *Writer) PutInt16(v int16)   { w.PutUint16(uint16(v)) }

func (w *Writer) PutUint32(v uint32) { WireOrder().PutUint32(w.grow(4), v) }
func (w *Writer) PutInt32(v int32)   { w.PutUint32(uint32(v)) }

func (w *Writer) PutUint64(v uint64) { WireOrder().PutUint64(w.grow(8), v) }
func (w *Writer) PutInt64(v int64)   { w.PutUint64(uint64(v)) }

func (w *Writer) PutFloat32(v float32) { w.PutUint32(math.Float32bits(v)) }
func (w *Writer) PutFloat64(v float64) { w.PutUint64(math.Float64bits(v)) }

// PutBytes writes a platform-word (uint64) length prefix followed by data.
func (w *Writer) PutBytes(data []byte) {
	w.PutUint64(uint64(len(data)))
	w.fr.Payload = append(w.fr.Payload, data...)
}

func (w *Writer) PutString(s string) { w.PutBytes([]byte(s)) }

// PutDiscriminant writes a sum-type tag using the smallest unsigned width
// that admits numVariants distinct values.
func (w *Writer) PutDiscriminant(tag uint32, numVariants int) {
	switch {
	case numVariants <= 1<<8:
		w.PutUint8(uint8(tag))
	case numVariants <= 1<<16:
		w.PutUint16(uint16(tag))
	default:
		w.PutUint32(tag)
	}
}

// PutHandle appends a one-byte placeholder to the payload (patched, if ever
// needed, by a transport backend that must embed handle numbers inline) and
// moves h onto the frame's handle list in order.
func (w *Writer) PutHandle(h Handle) {
	w.PutUint8(0)
	w.fr.Handles = append(w.fr.Handles, h)
}

// Frame returns the Frame being written to.
func (w *Writer) Frame() *Frame { return w.fr }
