package wire

import (
	"reflect"
	"sync"
)

// sumInfo is the tag<->type mapping for one interface type's registered
// variant set, in declaration order.
type sumInfo struct {
	byType map[reflect.Type]uint32
	byTag  map[uint32]reflect.Type
}

var sumRegistry sync.Map // reflect.Type (interface) -> *sumInfo

// RegisterSum declares the closed set of concrete types that may occupy a
// struct field typed as the interface I. Variants are assigned discriminant
// tags 0..len(variants)-1 in the order given here, the declaration order the
// width rule in Writer.PutDiscriminant measures against. Call it once at
// package init for every interface type that appears as a struct field in a
// transmittable aggregate; a field whose interface type was never
// registered fails to marshal.
//
// Each entry in variants must be a value of a distinct concrete type that
// implements I; the value itself is discarded; only its type is recorded.
func RegisterSum[I any](variants ...any) {
	ifaceType := reflect.TypeOf((*I)(nil)).Elem()
	info := &sumInfo{byType: map[reflect.Type]uint32{}, byTag: map[uint32]reflect.Type{}}
	for i, v := range variants {
		t := reflect.TypeOf(v)
		tag := uint32(i)
		info.byType[t] = tag
		info.byTag[tag] = t
	}
	sumRegistry.Store(ifaceType, info)
}

func sumInfoFor(ifaceType reflect.Type) (*sumInfo, bool) {
	v, ok := sumRegistry.Load(ifaceType)
	if !ok {
		return nil, false
	}
	return v.(*sumInfo), true
}
