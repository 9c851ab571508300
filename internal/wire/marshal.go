package wire

import "code.hybscloud.com/xproc/xerr"

// Marshaler is implemented by transmittable types that hand-write their own
// wire form (channel endpoints and OS-handle wrapper types — the leaves
// spec §4.3 describes as themselves transmittable).
type Marshaler interface {
	MarshalWire(w *Writer) error
}

// Unmarshaler is the decode-side counterpart of Marshaler. It is implemented
// on a pointer receiver so Unmarshal can reconstruct into a zero value.
type Unmarshaler interface {
	UnmarshalWire(c *Cursor) error
}

// Marshal serializes v into a fresh Frame. v may implement Marshaler; every
// other transmittable aggregate (struct, slice, array, pointer, plain
// scalar) is handled by the cached-reflection fallback in reflect.go.
func Marshal(v any) (*Frame, error) {
	fr := &Frame{}
	w := NewWriter(fr)
	if err := MarshalValue(w, v); err != nil {
		return nil, err
	}
	return fr, nil
}

// MarshalValue writes v's wire form using w.
func MarshalValue(w *Writer, v any) error {
	if m, ok := v.(Marshaler); ok {
		return m.MarshalWire(w)
	}
	return marshalReflect(w, v)
}

// Unmarshal reconstructs a value of the type pointed to by ptr from fr. ptr
// must be a non-nil pointer. On return, the entire frame must have been
// consumed (rule: "leftover bytes after the outermost value" is Malformed).
func Unmarshal(fr *Frame, ptr any) error {
	c := NewCursor(fr)
	if err := UnmarshalValue(c, ptr); err != nil {
		return err
	}
	if !c.Done() {
		return xerr.Malformed
	}
	return nil
}

// UnmarshalValue reconstructs into ptr (a pointer) from c.
func UnmarshalValue(c *Cursor, ptr any) error {
	if u, ok := ptr.(Unmarshaler); ok {
		return u.UnmarshalWire(c)
	}
	return unmarshalReflect(c, ptr)
}
