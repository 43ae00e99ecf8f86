// Package value defines the wire value taxonomy shared between the DB
// Capability and the component: a small closed set of typed values every
// driver's result columns and bound parameters are coerced into before
// crossing the host/component boundary.
package value

import "fmt"

// Kind tags which variant of Value is populated.
type Kind string

const (
	KindNull         Kind = "null"
	KindBoolean      Kind = "boolean"
	KindInt16        Kind = "int16"
	KindInt32        Kind = "int32"
	KindInt64        Kind = "int64"
	KindFloat32      Kind = "float32"
	KindFloat64      Kind = "float64"
	KindText         Kind = "text"
	KindBytes        Kind = "bytes"
	KindDate         Kind = "date"
	KindTime         Kind = "time"
	KindTimestamp    Kind = "timestamp"
	KindTimestampTz  Kind = "timestamp_tz"
	KindUUID         Kind = "uuid"
	KindJSON         Kind = "json"
	KindArray        Kind = "array"
	KindNumeric      Kind = "numeric" // exact-decimal, carried as string
	KindCustom       Kind = "custom"
)

// Value is a tagged union over the wire value taxonomy. Exactly one of the
// typed fields is meaningful, selected by Kind; Array additionally carries
// a slice of element Values.
type Value struct {
	Kind     Kind
	Bool     bool
	Int      int64
	Float    float64
	Text     string // also backs Date/Time/Timestamp/TimestampTz/UUID/JSON/Numeric/Custom
	Bytes    []byte
	Elements []Value
}

// Null is the canonical null value.
func Null() Value { return Value{Kind: KindNull} }

// Boolean wraps a bool.
func Boolean(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// Int32 wraps a 32-bit integer.
func Int32(i int32) Value { return Value{Kind: KindInt32, Int: int64(i)} }

// Int64 wraps a 64-bit integer.
func Int64(i int64) Value { return Value{Kind: KindInt64, Int: i} }

// Float64 wraps a double.
func Float64(f float64) Value { return Value{Kind: KindFloat64, Float: f} }

// Text wraps a UTF-8 string.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Bytes wraps a byte slice.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// Numeric wraps an exact-decimal string, preferred for NUMERIC columns when
// the driver can report one without a lossy float conversion.
func Numeric(s string) Value { return Value{Kind: KindNumeric, Text: s} }

// Array wraps a homogeneous slice of Values.
func Array(elems []Value) Value { return Value{Kind: KindArray, Elements: elems} }

// Custom wraps a value whose SQL type has no direct taxonomy member; its
// text representation is carried verbatim.
func Custom(s string) Value { return Value{Kind: KindCustom, Text: s} }

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "<null>"
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.Bytes))
	case KindArray:
		return fmt.Sprintf("<array len=%d>", len(v.Elements))
	default:
		return v.Text
	}
}
