package prefs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindAbsent Kind = iota
	KindNumber
	KindBool
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	default:
		return "absent"
	}
}

// Value is a preference value classified at the store boundary.
//
// The underlying store is not schema-typed: the same logical value may have
// been written as a native double, a float, an integer, the raw IEEE-754 bit
// pattern of a double, or a decorated string. FromRaw classifies the raw value
// once; the accessors then apply the documented decode policy and never fail.
type Value struct {
	kind Kind
	num  float64
	b    bool
	text string
}

// Absent is the zero Value.
var Absent = Value{}

// Number wraps a native number.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// Bool wraps a native boolean.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Text wraps a string.
func Text(v string) Value { return Value{kind: KindText, text: v} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value is missing.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// bitPatternThreshold separates plain integers from reinterpreted doubles.
// Every integer up to 2^53 is exactly representable as a double, while the
// bit pattern of any double with magnitude above ~1e-300 is far above it.
const bitPatternThreshold = 1 << 53

// FromRaw classifies an untyped store value.
func FromRaw(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Absent
	case Value:
		return x
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return fromInt(int64(x))
	case int8:
		return Number(float64(x))
	case int16:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return fromInt(x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return Number(float64(x))
	case uint16:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return fromUint(x)
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case fmt.Stringer:
		return Text(x.String())
	default:
		return Text(fmt.Sprint(x))
	}
}

func fromInt(v int64) Value {
	if v > bitPatternThreshold || v < -bitPatternThreshold {
		return Number(math.Float64frombits(uint64(v)))
	}
	return Number(float64(v))
}

func fromUint(v uint64) Value {
	if v > bitPatternThreshold {
		return Number(math.Float64frombits(v))
	}
	return Number(float64(v))
}

var numericToken = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Number returns the numeric reading of v, or false when none exists.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) {
			return 0, false
		}
		return v.num, true
	case KindText:
		return decodeText(v.text)
	default:
		return 0, false
	}
}

// decodeText applies the string strategies in order: last numeric token,
// whole-string float, whole-string integer bit pattern.
func decodeText(s string) (float64, bool) {
	if matches := numericToken.FindAllString(s, -1); len(matches) > 0 {
		token := matches[len(matches)-1]
		if !strings.Contains(token, ".") {
			if n, err := strconv.ParseInt(token, 10, 64); err == nil {
				return fromInt(n).num, true
			}
		}
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return f, true
		}
	}

	trimmed := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) {
		return f, true
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return math.Float64frombits(uint64(n)), true
	}
	return 0, false
}

// Bool returns the boolean reading of v, or def when none exists.
func (v Value) Bool(def bool) bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindText:
		switch strings.ToLower(strings.TrimSpace(v.text)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return def
}

// String returns the textual reading of v, or def when absent or empty.
func (v Value) String(def string) string {
	switch v.kind {
	case KindText:
		if v.text == "" {
			return def
		}
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return def
}

// Raw returns a native Go value suitable for storing v.
func (v Value) Raw() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindText:
		return v.text
	}
	return nil
}

// DecodeNumber classifies raw and reads it as a number.
func DecodeNumber(raw any) (float64, bool) {
	return FromRaw(raw).Number()
}

// DecodeBool classifies raw and reads it as a boolean.
func DecodeBool(raw any, def bool) bool {
	return FromRaw(raw).Bool(def)
}
