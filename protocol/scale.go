package protocol

import (
	"fmt"
	"math"
)

const (
	unsignedScale = 0xFFFF // [0, 1] onto uint16
	signedScale   = 0x7FFF // [-1, 1] onto int16
)

// OutOfRangeError reports a command value outside its normalized domain.
// Values are never clamped.
type OutOfRangeError struct {
	Field    string
	Value    float64
	Min, Max float64
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("protocol: %s %v outside [%v, %v]", e.Field, e.Value, e.Min, e.Max)
}

func checkUnsigned(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return OutOfRangeError{Field: field, Value: v, Min: 0, Max: 1}
	}
	return nil
}

func checkSigned(field string, v float64) error {
	if math.IsNaN(v) || v < -1 || v > 1 {
		return OutOfRangeError{Field: field, Value: v, Min: -1, Max: 1}
	}
	return nil
}

func scaleUnsigned(v float64) uint16 {
	return uint16(math.Round(v * unsignedScale))
}

func unscaleUnsigned(raw uint16) float64 {
	return float64(raw) / unsignedScale
}

func scaleSigned(v float64) int16 {
	return int16(math.Round(v * signedScale))
}

func unscaleSigned(raw int16) float64 {
	return float64(raw) / signedScale
}
