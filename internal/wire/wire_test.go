package wire_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/xproc/internal/wire"
	"code.hybscloud.com/xproc/xerr"
)

type point struct {
	X int32
	Y int32
}

type nested struct {
	Name   string
	Points []point
	Tag    *int32
}

func roundTrip(t *testing.T, v, out any) {
	t.Helper()
	fr, err := wire.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wire.Unmarshal(fr, out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestRoundTrip_Scalars(t *testing.T) {
	t.Parallel()
	var got struct {
		B  bool
		I8 int8
		U8 uint8
		I  int32
		U  uint64
		F  float64
		S  string
	}
	want := got
	want.B, want.I8, want.U8, want.I, want.U, want.F, want.S =
		true, -5, 200, -70000, 1 << 40, 3.25, "hello, xproc"

	roundTrip(t, want, &got)
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestRoundTrip_NestedAggregate(t *testing.T) {
	t.Parallel()
	tag := int32(7)
	want := nested{
		Name:   "route",
		Points: []point{{1, 2}, {3, 4}, {5, 6}},
		Tag:    &tag,
	}
	var got nested
	roundTrip(t, want, &got)

	if got.Name != want.Name {
		t.Fatalf("name = %q want %q", got.Name, want.Name)
	}
	if len(got.Points) != len(want.Points) {
		t.Fatalf("points len = %d want %d", len(got.Points), len(want.Points))
	}
	for i := range want.Points {
		if got.Points[i] != want.Points[i] {
			t.Fatalf("points[%d] = %+v want %+v", i, got.Points[i], want.Points[i])
		}
	}
	if got.Tag == nil || *got.Tag != *want.Tag {
		t.Fatalf("tag = %v want %v", got.Tag, *want.Tag)
	}
}

func TestRoundTrip_NilPointerAndEmptySlice(t *testing.T) {
	t.Parallel()
	want := nested{Name: "", Points: nil, Tag: nil}
	var got nested
	roundTrip(t, want, &got)
	if got.Tag != nil {
		t.Fatalf("tag = %v want nil", got.Tag)
	}
	if len(got.Points) != 0 {
		t.Fatalf("points = %v want empty", got.Points)
	}
}

func TestRoundTrip_FixedArray(t *testing.T) {
	t.Parallel()
	type grid struct {
		Cells [3]int32
	}
	want := grid{Cells: [3]int32{9, 8, 7}}
	var got grid
	roundTrip(t, want, &got)
	if got.Cells != want.Cells {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

// fakeHandle implements Marshaler/Unmarshaler the way a channel endpoint or
// transport handle wrapper does: it owns a single wire.Handle leaf.
type fakeHandle struct {
	h wire.Handle
}

func (f fakeHandle) MarshalWire(w *wire.Writer) error {
	w.PutHandle(f.h)
	return nil
}

func (f *fakeHandle) UnmarshalWire(c *wire.Cursor) error {
	h, err := c.GetHandle()
	if err != nil {
		return err
	}
	f.h = h
	return nil
}

func TestRoundTrip_HandleLeaf(t *testing.T) {
	t.Parallel()
	type withHandle struct {
		Label string
		H     fakeHandle
	}
	want := withHandle{Label: "fd", H: fakeHandle{h: 3}}
	var got withHandle
	roundTrip(t, want, &got)
	if got.Label != want.Label || got.H.h != want.H.h {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

type shapeA struct{ Side int32 }
type shapeB struct{ Radius int32 }

type shape interface{ isShape() }

func (shapeA) isShape() {}
func (shapeB) isShape() {}

func init() {
	wire.RegisterSum[shape](shapeA{}, shapeB{})
}

func TestRoundTrip_SumType(t *testing.T) {
	t.Parallel()
	type holder struct {
		S shape
	}
	want := holder{S: shapeB{Radius: 42}}
	var got holder
	roundTrip(t, want, &got)
	b, ok := got.S.(shapeB)
	if !ok {
		t.Fatalf("got %T want shapeB", got.S)
	}
	if b.Radius != 42 {
		t.Fatalf("radius = %d want 42", b.Radius)
	}
}

func TestUnmarshal_LeftoverBytesIsMalformed(t *testing.T) {
	t.Parallel()
	fr, err := wire.Marshal(int32(7))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	fr.Payload = append(fr.Payload, 0xff)
	var got int32
	if err := wire.Unmarshal(fr, &got); !errors.Is(err, xerr.Malformed) {
		t.Fatalf("err = %v want xerr.Malformed", err)
	}
}

func TestUnmarshal_TruncatedFrameIsMalformed(t *testing.T) {
	t.Parallel()
	fr, err := wire.Marshal(int64(1 << 40))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	fr.Payload = fr.Payload[:len(fr.Payload)-1]
	var got int64
	if err := wire.Unmarshal(fr, &got); !errors.Is(err, xerr.Malformed) {
		t.Fatalf("err = %v want xerr.Malformed", err)
	}
}

func TestUnmarshal_BoolOutOfRangeIsMalformed(t *testing.T) {
	t.Parallel()
	fr := &wire.Frame{Payload: []byte{2}}
	var got bool
	if err := wire.Unmarshal(fr, &got); !errors.Is(err, xerr.Malformed) {
		t.Fatalf("err = %v want xerr.Malformed", err)
	}
}

func TestUnmarshal_MissingHandleIsHandleCount(t *testing.T) {
	t.Parallel()
	var want fakeHandle
	want.h = 1
	fr, err := wire.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	fr.Handles = nil
	var got fakeHandle
	if err := wire.UnmarshalValue(wire.NewCursor(fr), &got); !errors.Is(err, xerr.HandleCount) {
		t.Fatalf("err = %v want xerr.HandleCount", err)
	}
}

func TestDiscriminant_WidthRule(t *testing.T) {
	t.Parallel()
	fr := &wire.Frame{}
	w := wire.NewWriter(fr)
	w.PutDiscriminant(0, 2)
	if len(fr.Payload) != 1 {
		t.Fatalf("2-variant discriminant used %d bytes, want 1", len(fr.Payload))
	}

	fr2 := &wire.Frame{}
	w2 := wire.NewWriter(fr2)
	w2.PutDiscriminant(0, 1<<9)
	if len(fr2.Payload) != 2 {
		t.Fatalf("512-variant discriminant used %d bytes, want 2", len(fr2.Payload))
	}

	fr3 := &wire.Frame{}
	w3 := wire.NewWriter(fr3)
	w3.PutDiscriminant(0, 1<<17)
	if len(fr3.Payload) != 4 {
		t.Fatalf("131072-variant discriminant used %d bytes, want 4", len(fr3.Payload))
	}
}
