package wire

import (
	"fmt"
	"reflect"
	"sync"

	"code.hybscloud.com/xproc/xerr"
)

// structPlans is the cached, per-type list of a struct's wire-visible
// (exported) field indices, computed once per reflect.Type and reused on
// every subsequent Marshal/Unmarshal of that type.
var structPlans sync.Map // reflect.Type -> []int

func planFor(t reflect.Type) []int {
	if v, ok := structPlans.Load(t); ok {
		return v.([]int)
	}
	var plan []int
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).PkgPath == "" {
			plan = append(plan, i)
		}
	}
	structPlans.Store(t, plan)
	return plan
}

// marshalReflect and unmarshalReflect are the reflection-based fallback the
// design notes sanction in place of a compile-time derive step: they walk
// any struct/slice/array/pointer/scalar whose leaf types are themselves
// transmittable (either via Marshaler/Unmarshaler or another scalar),
// writing struct fields in reflect.Type.Field(i) declaration order per
// spec rule 4.
func marshalReflect(w *Writer, v any) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		w.PutBool(rv.Bool())
	case reflect.Int8:
		w.PutInt8(int8(rv.Int()))
	case reflect.Int16:
		w.PutInt16(int16(rv.Int()))
	case reflect.Int32:
		w.PutInt32(int32(rv.Int()))
	case reflect.Int, reflect.Int64:
		w.PutInt64(rv.Int())
	case reflect.Uint8:
		w.PutUint8(uint8(rv.Uint()))
	case reflect.Uint16:
		w.PutUint16(uint16(rv.Uint()))
	case reflect.Uint32:
		w.PutUint32(uint32(rv.Uint()))
	case reflect.Uint, reflect.Uint64:
		w.PutUint64(rv.Uint())
	case reflect.Float32:
		w.PutFloat32(float32(rv.Float()))
	case reflect.Float64:
		w.PutFloat64(rv.Float())
	case reflect.String:
		w.PutString(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			w.PutUint64(0)
			return nil
		}
		n := rv.Len()
		w.PutUint64(uint64(n))
		for i := 0; i < n; i++ {
			if err := MarshalValue(w, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
	case reflect.Array:
		n := rv.Len()
		for i := 0; i < n; i++ {
			if err := MarshalValue(w, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
	case reflect.Ptr:
		if rv.IsNil() {
			w.PutBool(false)
			return nil
		}
		w.PutBool(true)
		return MarshalValue(w, rv.Elem().Interface())
	case reflect.Struct:
		return marshalStruct(w, rv)
	default:
		return fmt.Errorf("wire: unsupported kind %v for %T", rv.Kind(), v)
	}
	return nil
}

func marshalStruct(w *Writer, rv reflect.Value) error {
	t := rv.Type()
	for _, i := range planFor(t) {
		f := t.Field(i)
		fv := rv.Field(i)
		if f.Type.Kind() == reflect.Interface {
			if err := marshalSumField(w, f.Type, fv); err != nil {
				return err
			}
			continue
		}
		if err := MarshalValue(w, fv.Interface()); err != nil {
			return err
		}
	}
	return nil
}

func marshalSumField(w *Writer, ifaceType reflect.Type, fv reflect.Value) error {
	info, ok := sumInfoFor(ifaceType)
	if !ok {
		return fmt.Errorf("wire: %v has no RegisterSum variants", ifaceType)
	}
	if fv.IsNil() {
		return xerr.Malformed
	}
	concrete := fv.Elem()
	tag, ok := info.byType[concrete.Type()]
	if !ok {
		return fmt.Errorf("wire: %v is not a registered variant of %v", concrete.Type(), ifaceType)
	}
	w.PutDiscriminant(tag, len(info.byTag))
	return MarshalValue(w, concrete.Interface())
}

func unmarshalReflect(c *Cursor, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return xerr.Malformed
	}
	elem := rv.Elem()
	switch elem.Kind() {
	case reflect.Bool:
		v, err := c.GetBool()
		if err != nil {
			return err
		}
		elem.SetBool(v)
	case reflect.Int8:
		v, err := c.GetInt8()
		if err != nil {
			return err
		}
		elem.SetInt(int64(v))
	case reflect.Int16:
		v, err := c.GetInt16()
		if err != nil {
			return err
		}
		elem.SetInt(int64(v))
	case reflect.Int32:
		v, err := c.GetInt32()
		if err != nil {
			return err
		}
		elem.SetInt(int64(v))
	case reflect.Int, reflect.Int64:
		v, err := c.GetInt64()
		if err != nil {
			return err
		}
		elem.SetInt(v)
	case reflect.Uint8:
		v, err := c.GetUint8()
		if err != nil {
			return err
		}
		elem.SetUint(uint64(v))
	case reflect.Uint16:
		v, err := c.GetUint16()
		if err != nil {
			return err
		}
		elem.SetUint(uint64(v))
	case reflect.Uint32:
		v, err := c.GetUint32()
		if err != nil {
			return err
		}
		elem.SetUint(uint64(v))
	case reflect.Uint, reflect.Uint64:
		v, err := c.GetUint64()
		if err != nil {
			return err
		}
		elem.SetUint(v)
	case reflect.Float32:
		v, err := c.GetFloat32()
		if err != nil {
			return err
		}
		elem.SetFloat(float64(v))
	case reflect.Float64:
		v, err := c.GetFloat64()
		if err != nil {
			return err
		}
		elem.SetFloat(v)
	case reflect.String:
		v, err := c.GetString()
		if err != nil {
			return err
		}
		elem.SetString(v)
	case reflect.Slice:
		n, err := c.GetUint64()
		if err != nil {
			return err
		}
		s := reflect.MakeSlice(elem.Type(), 0, 0)
		for i := uint64(0); i < n; i++ {
			ev := reflect.New(elem.Type().Elem())
			if err := UnmarshalValue(c, ev.Interface()); err != nil {
				return err
			}
			s = reflect.Append(s, ev.Elem())
		}
		elem.Set(s)
	case reflect.Array:
		for i := 0; i < elem.Len(); i++ {
			ev := reflect.New(elem.Type().Elem())
			if err := UnmarshalValue(c, ev.Interface()); err != nil {
				return err
			}
			elem.Index(i).Set(ev.Elem())
		}
	case reflect.Ptr:
		has, err := c.GetBool()
		if err != nil {
			return err
		}
		if !has {
			elem.Set(reflect.Zero(elem.Type()))
			return nil
		}
		nv := reflect.New(elem.Type().Elem())
		if err := UnmarshalValue(c, nv.Interface()); err != nil {
			return err
		}
		elem.Set(nv)
	case reflect.Struct:
		return unmarshalStruct(c, elem)
	default:
		return fmt.Errorf("wire: unsupported kind %v", elem.Kind())
	}
	return nil
}

func unmarshalStruct(c *Cursor, elem reflect.Value) error {
	t := elem.Type()
	for _, i := range planFor(t) {
		f := t.Field(i)
		fv := elem.Field(i)
		if f.Type.Kind() == reflect.Interface {
			if err := unmarshalSumField(c, f.Type, fv); err != nil {
				return err
			}
			continue
		}
		nv := reflect.New(f.Type)
		if err := UnmarshalValue(c, nv.Interface()); err != nil {
			return err
		}
		fv.Set(nv.Elem())
	}
	return nil
}

func unmarshalSumField(c *Cursor, ifaceType reflect.Type, fv reflect.Value) error {
	info, ok := sumInfoFor(ifaceType)
	if !ok {
		return fmt.Errorf("wire: %v has no RegisterSum variants", ifaceType)
	}
	tag, err := c.GetDiscriminant(len(info.byTag))
	if err != nil {
		return err
	}
	concreteType, ok := info.byTag[tag]
	if !ok {
		return xerr.Malformed
	}
	nv := reflect.New(concreteType)
	if err := UnmarshalValue(c, nv.Interface()); err != nil {
		return err
	}
	fv.Set(nv.Elem())
	return nil
}
