package shape_test

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/hayride-dev/hayride/shape"
)

// TestCoerceArgRoundTripsNumericTypes checks the property that every
// s32/s64/u32/u64 value printed as a base-10 string and coerced
// back through CoerceArg yields the original value, across a wide range of
// generated inputs rather than a handful of hand-picked cases.
func TestCoerceArgRoundTripsNumericTypes(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("s32 round-trips", prop.ForAll(
		func(n int32) bool {
			got, err := shape.CoerceArg(shape.ParamS32, strconv.FormatInt(int64(n), 10))
			return err == nil && got == n
		},
		gen.Int32(),
	))

	properties.Property("s64 round-trips", prop.ForAll(
		func(n int64) bool {
			got, err := shape.CoerceArg(shape.ParamS64, strconv.FormatInt(n, 10))
			return err == nil && got == n
		},
		gen.Int64(),
	))

	properties.Property("u32 round-trips", prop.ForAll(
		func(n uint32) bool {
			got, err := shape.CoerceArg(shape.ParamU32, strconv.FormatUint(uint64(n), 10))
			return err == nil && got == n
		},
		gen.UInt32(),
	))

	properties.Property("u64 round-trips", prop.ForAll(
		func(n uint64) bool {
			got, err := shape.CoerceArg(shape.ParamU64, strconv.FormatUint(n, 10))
			return err == nil && got == n
		},
		gen.UInt64(),
	))

	properties.Property("bool round-trips", prop.ForAll(
		func(b bool) bool {
			got, err := shape.CoerceArg(shape.ParamBool, strconv.FormatBool(b))
			return err == nil && got == b
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestCoerceArgRejectsNonNumericStrings checks the complementary property:
// a string gopter generates that fails to parse as an integer is always
// rejected rather than silently truncated or zero-valued.
func TestCoerceArgRejectsNonNumericStrings(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("non-numeric strings are rejected as s32", prop.ForAll(
		func(s string) bool {
			if _, err := strconv.ParseInt(s, 10, 32); err == nil {
				return true // skip strings that happen to be valid
			}
			_, err := shape.CoerceArg(shape.ParamS32, s)
			return err != nil
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
