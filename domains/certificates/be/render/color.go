package render

import (
	"image/color"
	"strconv"
	"strings"
)

var black = color.NRGBA{A: 0xff}

// parseColor reads "#RRGGBB" (or "#RGB"). Anything else draws black.
func parseColor(s string) color.NRGBA {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return black
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return black
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
