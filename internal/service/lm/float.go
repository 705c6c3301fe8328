package lm

import (
	"math"
	"strconv"
)

// Float is a float64 whose infinities and NaN survive JSON encoding as strings
type Float float64

// MarshalJSON encodes finite values as numbers and the rest as "+Inf", "-Inf" or "NaN"
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return []byte(strconv.Quote(strconv.FormatFloat(v, 'g', -1, 64))), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON
func (f *Float) UnmarshalJSON(data []byte) error {
	text := string(data)
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}
