package layout

import (
	"strconv"
	"strings"
)

// This file defines unit conversions between style sheet lengths and pixels.
// Cards are rendered at 1 px per mm, so mm and px are interchangeable.

// Unit represents the original unit of a length value as specified in a style sheet.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers, treated as pixels
	UnitPX               // pixels
	UnitMM               // millimeters (1:1 with pixels)
	UnitPT               // points
)

// Conversion constants between pt and mm.
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPX:
		return "px"
	case UnitMM:
		return "mm"
	case UnitPT:
		return "pt"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// String formats the length with its original unit, e.g. "12pt".
func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'g', -1, 64) + UnitToString(l.Unit)
}

// Pixels converts the length to pixels.
func (l Length) Pixels() float64 {
	if l.Unit == UnitPT {
		return l.Value * PtToMm
	}
	return l.Value
}

// ParseLength parses a style sheet length such as "50", "50px" or "12pt".
func ParseLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	unit := UnitNone
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPX}, {"mm", UnitMM}, {"pt", UnitPT}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			v = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return Length{}, err
	}
	return Length{Value: f, Unit: unit}, nil
}

// PxToPt converts a pixel font size into the point size expected by font engines
// that work in millimeters.
func PxToPt(px float64) float64 { return px * MmToPt }
