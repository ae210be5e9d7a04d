package tags

import (
	"fmt"
	"strconv"
	"strings"
)

// maxChannel is the largest value of a 16-bit colour channel.
const maxChannel = 65535

// Color is an RGB colour with 16 bits per channel.
type Color struct {
	R, G, B uint16
}

// String returns the #rrrrggggbbbb form stored in data files.
func (c Color) String() string {
	return fmt.Sprintf("#%04x%04x%04x", c.R, c.G, c.B)
}

// Hex returns the 8-bit-per-channel #rrggbb form used for rendering.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R>>8, c.G>>8, c.B>>8)
}

// ParseColor accepts #rgb, #rrggbb and #rrrrggggbbbb.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	var width int
	switch len(hex) {
	case 3:
		width = 1
	case 6:
		width = 2
	case 12:
		width = 4
	default:
		return Color{}, fmt.Errorf("invalid color %q", s)
	}

	var ch [3]uint16
	for i := range ch {
		v, err := strconv.ParseUint(hex[i*width:(i+1)*width], 16, 16)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		// Scale to 16 bits so #f00, #ff0000 and #ffff00000000 agree.
		switch width {
		case 1:
			v *= 0x1111
		case 2:
			v *= 0x101
		}
		ch[i] = uint16(v)
	}
	return Color{R: ch[0], G: ch[1], B: ch[2]}, nil
}
