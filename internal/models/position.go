package models

import (
	"fmt"
	"strconv"
	"strings"
)

type AxisMode int

const (
	AxisAbsolute AxisMode = iota // pixel offset from the top/left edge
	AxisCenter                   // centered on the axis
	AxisFarEdge                  // right or bottom aligned with EdgeMargin
)

// Legacy integer encoding of the axis modes, used by stored documents.
const (
	legacyCenter  = -1
	legacyFarEdge = -2
)

type Axis struct {
	Mode   AxisMode
	Offset int // only meaningful for AxisAbsolute
}

func Absolute(offset int) Axis {
	if offset < 0 {
		offset = 0
	}
	return Axis{Mode: AxisAbsolute, Offset: offset}
}

func Center() Axis  { return Axis{Mode: AxisCenter} }
func FarEdge() Axis { return Axis{Mode: AxisFarEdge} }

// AxisFromLegacy decodes the stored integer form. Negative values other than
// the two alignment codes decode as absolute 0.
func AxisFromLegacy(v int) Axis {
	switch v {
	case legacyCenter:
		return Center()
	case legacyFarEdge:
		return FarEdge()
	}
	return Absolute(v)
}

// Legacy encodes the axis in the stored integer form.
func (a Axis) Legacy() int {
	switch a.Mode {
	case AxisCenter:
		return legacyCenter
	case AxisFarEdge:
		return legacyFarEdge
	}
	return a.Offset
}

// Resolve returns the pixel coordinate on an axis of length size for text of
// extent span.
func (a Axis) Resolve(size, span int) int {
	switch a.Mode {
	case AxisCenter:
		return floorDiv(size-span, 2)
	case AxisFarEdge:
		return size - span - EdgeMargin
	}
	return a.Offset
}

func (a Axis) String() string {
	switch a.Mode {
	case AxisCenter:
		return "center"
	case AxisFarEdge:
		return "far-edge"
	}
	return fmt.Sprintf("%d", a.Offset)
}

// ParseAxis reads the form produced by Axis.String.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "center":
		return Center(), nil
	case "far-edge":
		return FarEdge(), nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return Axis{}, fmt.Errorf("invalid axis %q", s)
	}
	return Absolute(n), nil
}

type Position struct {
	X, Y Axis
}

func AbsolutePosition(x, y int) Position {
	return Position{X: Absolute(x), Y: Absolute(y)}
}

func (p Position) String() string {
	return fmt.Sprintf("(%s, %s)", p.X, p.Y)
}

// Preset names for the nine-point placement grid.
const (
	PresetTopLeft     = "top-left"
	PresetTop         = "top"
	PresetTopRight    = "top-right"
	PresetLeft        = "left"
	PresetCenter      = "center"
	PresetRight       = "right"
	PresetBottomLeft  = "bottom-left"
	PresetBottom      = "bottom"
	PresetBottomRight = "bottom-right"
)

const presetInset = 10

var presets = map[string]Position{
	PresetTopLeft:     {X: Absolute(presetInset), Y: Absolute(presetInset)},
	PresetTop:         {X: Center(), Y: Absolute(presetInset)},
	PresetTopRight:    {X: FarEdge(), Y: Absolute(presetInset)},
	PresetLeft:        {X: Absolute(presetInset), Y: Center()},
	PresetCenter:      {X: Center(), Y: Center()},
	PresetRight:       {X: FarEdge(), Y: Center()},
	PresetBottomLeft:  {X: Absolute(presetInset), Y: FarEdge()},
	PresetBottom:      {X: Center(), Y: FarEdge()},
	PresetBottomRight: {X: FarEdge(), Y: FarEdge()},
}

func PresetPosition(name string) (Position, bool) {
	p, ok := presets[name]
	return p, ok
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
