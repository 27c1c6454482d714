package blockstats

import (
	"encoding/json"
	"strconv"
)

// notApplicableText is how a missing value reads in text output.
const notApplicableText = "n/a"

// Value is a statistic that is either a number or explicitly not applicable.
// The zero Value is not applicable.
type Value struct {
	v  float64
	ok bool
}

// Of returns an applicable value.
func Of(v float64) Value {
	return Value{v: v, ok: true}
}

// NotApplicable returns the marker for a statistic whose preconditions are unmet.
func NotApplicable() Value {
	return Value{}
}

// Float returns the number and whether the value is applicable.
func (v Value) Float() (float64, bool) {
	return v.v, v.ok
}

// Applicable reports whether v holds a number.
func (v Value) Applicable() bool {
	return v.ok
}

// Or returns the number, or fallback when not applicable.
func (v Value) Or(fallback float64) float64 {
	if !v.ok {
		return fallback
	}

	return v.v
}

// String formats the number in its shortest exact form, or "n/a".
func (v Value) String() string {
	if !v.ok {
		return notApplicableText
	}

	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// MarshalJSON encodes a not applicable value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}

	return json.Marshal(v.v)
}

// UnmarshalJSON decodes null as not applicable.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = NotApplicable()

		return nil
	}

	var f float64

	err := json.Unmarshal(data, &f)
	if err != nil {
		return err
	}

	*v = Of(f)

	return nil
}

// MarshalYAML encodes a not applicable value as null.
func (v Value) MarshalYAML() (any, error) {
	if !v.ok {
		return nil, nil //nolint:nilnil // a nil node is how yaml.v3 spells null.
	}

	return v.v, nil
}
