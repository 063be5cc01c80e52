package xmlrpc

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which payload a [Value] carries.
type Kind int

const (
	KindUndefined Kind = iota
	KindScalar
	KindArray
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	}

	return "undef"
}

// ScalarType is the wire type of a scalar [Value]. Its string form is the
// element name used on the wire.
type ScalarType string

const (
	I4       ScalarType = "i4"
	Int      ScalarType = "int"
	Boolean  ScalarType = "boolean"
	Double   ScalarType = "double"
	String   ScalarType = "string"
	DateTime ScalarType = "dateTime.iso8601"
	Base64   ScalarType = "base64"
)

// Valid reports whether t is one of the recognized scalar types.
func (t ScalarType) Valid() bool {
	switch t {
	case I4, Int, Boolean, Double, String, DateTime, Base64:
		return true
	}

	return false
}

// Member is a named entry of a struct [Value].
type Member struct {
	Value *Value
	Name  string
}

// Value is an XML-RPC value: a scalar, an array or a struct.
//
// The zero Value is undefined and may be populated exactly once with
// [Value.SetScalar], [Value.SetArray] or [Value.SetStruct]. After that it is
// treated as immutable and may be shared freely.
//
// Accessors are only defined for the matching kind. Calling, for example,
// [Value.ArrayElement] on a struct panics with an error wrapping [ErrInvalidType].
type Value struct {
	index   map[string]int
	typ     ScalarType
	text    string
	raw     []byte
	elems   []*Value
	members []Member
	kind    Kind
	boolean bool
}

// NewScalar returns a new scalar [Value] of type t holding v.
//
// Accepted inputs per type:
//   - [String]: string
//   - [I4], [Int]: any integer type or its textual form
//   - [Double]: float32, float64, any integer type or textual form
//   - [Boolean]: see [Value.SetScalar] for the normalization rules
//   - [DateTime]: [time.Time] or textual form
//   - [Base64]: []byte or string (raw, not encoded, bytes)
func NewScalar(t ScalarType, v any) (*Value, error) {
	val := new(Value)

	if err := val.SetScalar(t, v); err != nil {
		return nil, err
	}

	return val, nil
}

// NewString returns a [String] scalar.
func NewString(s string) *Value {
	return &Value{kind: KindScalar, typ: String, text: s}
}

// NewInt returns an [Int] scalar.
func NewInt(i int64) *Value {
	return &Value{kind: KindScalar, typ: Int, text: strconv.FormatInt(i, 10)}
}

// NewI4 returns an [I4] scalar.
func NewI4(i int32) *Value {
	return &Value{kind: KindScalar, typ: I4, text: strconv.FormatInt(int64(i), 10)}
}

// NewBoolean returns a [Boolean] scalar.
func NewBoolean(b bool) *Value {
	return &Value{kind: KindScalar, typ: Boolean, boolean: b}
}

// NewDouble returns a [Double] scalar. It panics if f is NaN or infinite,
// which XML-RPC cannot represent; use [NewScalar] to get an error instead.
func NewDouble(f float64) *Value {
	if !finite(f) {
		panic(fmt.Errorf("%w: %v as %s", ErrInvalidType, f, Double))
	}

	return &Value{kind: KindScalar, typ: Double, text: formatDouble(f)}
}

// NewDateTime returns a [DateTime] scalar holding t in local time, see [FormatISO8601].
func NewDateTime(t time.Time) *Value {
	return &Value{kind: KindScalar, typ: DateTime, text: FormatISO8601(t, false)}
}

// NewBase64 returns a [Base64] scalar holding a copy of b.
func NewBase64(b []byte) *Value {
	return &Value{kind: KindScalar, typ: Base64, raw: bytes.Clone(b)}
}

// NewArray returns an array [Value] holding elems in order.
func NewArray(elems ...*Value) *Value {
	val := new(Value)
	_ = val.SetArray(elems)

	return val
}

// NewStruct returns a struct [Value] holding members. A repeated name replaces
// the earlier value but keeps the earlier position.
func NewStruct(members ...Member) *Value {
	val := new(Value)
	_ = val.SetStruct(members)

	return val
}

func (v *Value) initialized() error {
	if v.kind != KindUndefined {
		return fmt.Errorf("%w as a [%s]", ErrAlreadyInitialized, v.kind)
	}

	return nil
}

// SetScalar populates v as a scalar of type t.
//
// Returns [ErrInvalidType] if t is not a scalar type or val cannot represent
// one, and [ErrAlreadyInitialized] if v already carries a payload.
//
// Boolean input is normalized: true, non-zero numbers, and any string other than
// "", "0" or a case-insensitive "false" become true; everything else is false.
func (v *Value) SetScalar(t ScalarType, val any) error {
	if !t.Valid() {
		return fmt.Errorf("%w: not a scalar type (%s)", ErrInvalidType, t)
	}

	if err := v.initialized(); err != nil {
		return err
	}

	var (
		text string
		raw  []byte
		b    bool
		err  error
	)

	switch t {
	case Boolean:
		b, err = truthy(val)
	case Base64:
		raw, err = scalarBytes(val)
	case DateTime:
		if tm, ok := val.(time.Time); ok {
			text = FormatISO8601(tm, false)
		} else {
			text, err = scalarText(t, val)
		}
	default:
		text, err = scalarText(t, val)
	}

	if err != nil {
		return err
	}

	v.kind, v.typ, v.text, v.raw, v.boolean = KindScalar, t, text, raw, b

	return nil
}

// SetArray populates v as an array holding elems in order.
//
// Returns [ErrAlreadyInitialized] if v already carries a payload.
func (v *Value) SetArray(elems []*Value) error {
	if err := v.initialized(); err != nil {
		return err
	}

	v.kind = KindArray
	v.elems = make([]*Value, 0, len(elems))

	for _, e := range elems {
		v.elems = append(v.elems, orEmpty(e))
	}

	return nil
}

// SetStruct populates v as a struct holding members.
// Member order is kept for serialization; lookups are by name.
//
// Returns [ErrAlreadyInitialized] if v already carries a payload.
func (v *Value) SetStruct(members []Member) error {
	if err := v.initialized(); err != nil {
		return err
	}

	v.kind = KindStruct
	v.members = make([]Member, 0, len(members))
	v.index = make(map[string]int, len(members))

	for _, m := range members {
		v.setMember(m.Name, m.Value)
	}

	return nil
}

func (v *Value) setMember(name string, val *Value) {
	val = orEmpty(val)

	if i, ok := v.index[name]; ok {
		v.members[i].Value = val
		return
	}

	v.index[name] = len(v.members)
	v.members = append(v.members, Member{Name: name, Value: val})
}

// nil values inside containers are encoded as empty strings, as the wire has no null.
func orEmpty(v *Value) *Value {
	if v == nil || v.kind == KindUndefined {
		return NewString("")
	}

	return v
}

// Kind returns the payload kind of v.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindUndefined
	}

	return v.kind
}

func (v *Value) mustBe(k Kind) {
	if v.Kind() != k {
		panic(fmt.Errorf("%w: value is a [%s], not a [%s]", ErrInvalidType, v.Kind(), k))
	}
}

// ScalarType returns the scalar type of v. [I4] is reported as [Int].
func (v *Value) ScalarType() ScalarType {
	v.mustBe(KindScalar)

	if v.typ == I4 {
		return Int
	}

	return v.typ
}

// ScalarValue returns the scalar payload: bool for [Boolean], []byte for
// [Base64] and the wire text for every other type.
func (v *Value) ScalarValue() any {
	v.mustBe(KindScalar)

	switch v.typ {
	case Boolean:
		return v.boolean
	case Base64:
		return bytes.Clone(v.raw)
	}

	return v.text
}

// Text returns the wire text of a scalar. Booleans render as "1"/"0" and
// base64 scalars as their raw bytes.
func (v *Value) Text() string {
	v.mustBe(KindScalar)

	switch v.typ {
	case Boolean:
		if v.boolean {
			return "1"
		}

		return "0"
	case Base64:
		return string(v.raw)
	}

	return v.text
}

// Bool returns the payload of a [Boolean] scalar.
func (v *Value) Bool() bool {
	v.mustBe(KindScalar)

	return v.boolean
}

// Bytes returns a copy of the payload of a [Base64] scalar, or the text of any
// other scalar.
func (v *Value) Bytes() []byte {
	v.mustBe(KindScalar)

	if v.typ == Base64 {
		return bytes.Clone(v.raw)
	}

	return []byte(v.Text())
}

// Int parses the scalar text as a base 10 integer. Embedded blanks accepted
// on the wire are ignored.
func (v *Value) Int() (int64, error) {
	v.mustBe(KindScalar)

	if v.typ == Boolean {
		if v.boolean {
			return 1, nil
		}

		return 0, nil
	}

	return strconv.ParseInt(stripBlanks(v.text), 10, 64)
}

// Double parses the scalar text as a float.
func (v *Value) Double() (float64, error) {
	v.mustBe(KindScalar)

	return strconv.ParseFloat(stripBlanks(v.text), 64)
}

// Time parses a [DateTime] scalar in local time, see [ParseISO8601].
func (v *Value) Time() (time.Time, error) {
	v.mustBe(KindScalar)

	return ParseISO8601(v.text, false)
}

// Len returns the number of array elements or struct members.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindArray:
		return len(v.elems)
	case KindStruct:
		return len(v.members)
	}

	panic(fmt.Errorf("%w: value is a [%s], not a container", ErrInvalidType, v.Kind()))
}

// ArrayElement returns the i-th element of an array.
func (v *Value) ArrayElement(i int) *Value {
	v.mustBe(KindArray)

	return v.elems[i]
}

// Elements returns the elements of an array. The slice is a copy.
func (v *Value) Elements() []*Value {
	v.mustBe(KindArray)

	return append([]*Value(nil), v.elems...)
}

// StructMember returns the member called name, and whether it exists.
func (v *Value) StructMember(name string) (*Value, bool) {
	v.mustBe(KindStruct)

	i, ok := v.index[name]
	if !ok {
		return nil, false
	}

	return v.members[i].Value, true
}

// Members returns the struct members in insertion order. The slice is a copy.
func (v *Value) Members() []Member {
	v.mustBe(KindStruct)

	return append([]Member(nil), v.members...)
}

// Equal reports whether v and o are structurally equal: same kind, same scalar
// type ([I4] and [Int] are equal) and payload, same element order for arrays and
// same member set for structs.
func (v *Value) Equal(o *Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}

	switch v.Kind() {
	case KindScalar:
		if v.ScalarType() != o.ScalarType() {
			return false
		}

		switch v.typ {
		case Boolean:
			return v.boolean == o.boolean
		case Base64:
			return bytes.Equal(v.raw, o.raw)
		}

		return v.text == o.text
	case KindArray:
		if len(v.elems) != len(o.elems) {
			return false
		}

		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}

		return true
	case KindStruct:
		if len(v.members) != len(o.members) {
			return false
		}

		for _, m := range v.members {
			om, ok := o.StructMember(m.Name)
			if !ok || !m.Value.Equal(om) {
				return false
			}
		}

		return true
	}

	return true
}

func truthy(val any) (bool, error) {
	switch b := val.(type) {
	case bool:
		return b, nil
	case string:
		switch {
		case strings.EqualFold(b, "true"):
			return true, nil
		case b == "", b == "0", strings.EqualFold(b, "false"):
			return false, nil
		}

		return true, nil
	case nil:
		return false, nil
	}

	if i, ok := asInt64(val); ok {
		return i != 0, nil
	}

	if f, ok := asFloat64(val); ok {
		return f != 0, nil
	}

	return false, fmt.Errorf("%w: cannot use %T as %s", ErrInvalidType, val, Boolean)
}

func scalarBytes(val any) ([]byte, error) {
	switch b := val.(type) {
	case []byte:
		return bytes.Clone(b), nil
	case string:
		return []byte(b), nil
	}

	return nil, fmt.Errorf("%w: cannot use %T as %s", ErrInvalidType, val, Base64)
}

func scalarText(t ScalarType, val any) (string, error) {
	if s, ok := val.(string); ok {
		return s, nil
	}

	if t == String {
		if s, ok := val.(fmt.Stringer); ok {
			return s.String(), nil
		}
	}

	if t == I4 || t == Int || t == Double {
		if i, ok := asInt64(val); ok {
			return strconv.FormatInt(i, 10), nil
		}

		if u, ok := val.(uint64); ok {
			return strconv.FormatUint(u, 10), nil
		}
	}

	if t == Double {
		if f, ok := asFloat64(val); ok {
			if !finite(f) {
				return "", fmt.Errorf("%w: %v as %s", ErrInvalidType, f, Double)
			}

			return formatDouble(f), nil
		}
	}

	return "", fmt.Errorf("%w: cannot use %T as %s", ErrInvalidType, val, t)
}

func asInt64(val any) (int64, bool) {
	switch i := val.(type) {
	case int:
		return int64(i), true
	case int8:
		return int64(i), true
	case int16:
		return int64(i), true
	case int32:
		return int64(i), true
	case int64:
		return i, true
	case uint8:
		return int64(i), true
	case uint16:
		return int64(i), true
	case uint32:
		return int64(i), true
	}

	return 0, false
}

func asFloat64(val any) (float64, bool) {
	switch f := val.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}

	return 0, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// XML-RPC doubles have no exponent notation.
func formatDouble(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func stripBlanks(s string) string {
	return strings.NewReplacer(" ", "", "\t", "").Replace(s)
}
