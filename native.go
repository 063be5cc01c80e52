package xmlrpc

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// FromNative encodes a Go value as a [*Value].
//
// Mapping:
//   - signed and unsigned integers: [Int]
//   - float32, float64: [Double]; NaN and infinities are rejected
//   - string, nil and nil pointers: [String]
//   - bool: [Boolean]
//   - [time.Time]: [DateTime]
//   - []byte: [Base64]
//   - slices and arrays: array, elements encoded recursively
//   - maps with string or integer keys: struct, keys in sorted order
//   - structs: struct of the exported fields, renamed by an `xmlrpc:"name"` tag, skipped with `xmlrpc:"-"`
//   - [*Value] and [Value]: used as is
//
// Any other kind returns an error wrapping [ErrUnsupportedType].
func FromNative(x any) (*Value, error) {
	switch v := x.(type) {
	case nil:
		return NewString(""), nil
	case *Value:
		if v == nil {
			return NewString(""), nil
		}

		return v, nil
	case Value:
		return &v, nil
	case time.Time:
		return NewDateTime(v), nil
	case []byte:
		return NewBase64(v), nil
	}

	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (*Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NewString(""), nil
		}

		return FromNative(rv.Elem().Interface())
	case reflect.Bool:
		return NewBoolean(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &Value{kind: KindScalar, typ: Int, text: strconv.FormatUint(rv.Uint(), 10)}, nil
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); !finite(f) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, f)
		}

		return NewDouble(rv.Float()), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return NewBase64(rv.Bytes()), nil
		}

		elems := make([]*Value, 0, rv.Len())

		for i := range rv.Len() {
			e, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			elems = append(elems, e)
		}

		return NewArray(elems...), nil
	case reflect.Map:
		return fromMap(rv)
	case reflect.Struct:
		return fromStruct(rv)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

func fromMap(rv reflect.Value) (*Value, error) {
	members := make([]Member, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()

		var name string

		switch k.Kind() {
		case reflect.String:
			name = k.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			name = strconv.FormatInt(k.Int(), 10)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			name = strconv.FormatUint(k.Uint(), 10)
		default:
			return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedType, k.Type())
		}

		v, err := FromNative(iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		members = append(members, Member{Name: name, Value: v})
	}

	// Go maps are unordered, sort for stable output
	slices.SortFunc(members, func(a, b Member) int { return strings.Compare(a.Name, b.Name) })

	return NewStruct(members...), nil
}

func fromStruct(rv reflect.Value) (*Value, error) {
	rt := rv.Type()
	members := make([]Member, 0, rt.NumField())

	for i := range rt.NumField() {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}

		name := f.Name

		if tag, ok := f.Tag.Lookup("xmlrpc"); ok {
			tag, _, _ = strings.Cut(tag, ",")

			if tag == "-" {
				continue
			}

			if tag != "" {
				name = tag
			}
		}

		v, err := FromNative(rv.Field(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		members = append(members, Member{Name: name, Value: v})
	}

	return NewStruct(members...), nil
}

// ToNative decodes v into plain Go values:
//   - [String], [DateTime]: string
//   - [Int], [I4]: int64
//   - [Double]: float64
//   - [Boolean]: bool
//   - [Base64]: []byte
//   - arrays: []any
//   - structs: map[string]any
//
// Numeric text that does not parse returns an error wrapping [ErrNonNumericValue].
//
// Whole numbers sent as [Double] come back as float64, so a native round trip
// of an int through a double is not lossless in type.
func ToNative(v *Value) (any, error) {
	switch v.Kind() {
	case KindScalar:
		switch v.ScalarType() {
		case Int:
			i, err := v.Int()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrNonNumericValue, err)
			}

			return i, nil
		case Double:
			f, err := v.Double()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrNonNumericValue, err)
			}

			return f, nil
		case Boolean:
			return v.Bool(), nil
		case Base64:
			return v.Bytes(), nil
		}

		return v.Text(), nil
	case KindArray:
		out := make([]any, 0, len(v.elems))

		for i, e := range v.elems {
			n, err := ToNative(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			out = append(out, n)
		}

		return out, nil
	case KindStruct:
		out := make(map[string]any, len(v.members))

		for _, m := range v.members {
			n, err := ToNative(m.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Name, err)
			}

			out[m.Name] = n
		}

		return out, nil
	}

	return nil, fmt.Errorf("%w: undefined value", ErrInvalidType)
}
