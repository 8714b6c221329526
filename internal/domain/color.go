package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// hslRe matches the strings produced by hslString, e.g. "hsl(87, 100%, 50%)".
var hslRe = regexp.MustCompile(`^hsl\((\d{1,3}), (\d{1,3})%, (\d{1,3})%\)$`)

// hueFor returns the integer hue for a normalized intensity in [0, 1]. The
// fractional part is truncated so neighbouring table entries share a hue.
func hueFor(normalized, hueRange float64) int {
	return int(math.Floor((1 - normalized) * hueRange))
}

func hslString(hue int) string {
	return fmt.Sprintf("hsl(%d, 100%%, 50%%)", hue)
}

// HueOf extracts the hue from an HSL string produced by the mapper.
func HueOf(c string) (int, bool) {
	m := hslRe.FindStringSubmatch(c)
	if m == nil {
		return 0, false
	}
	hue, err := strconv.Atoi(m[1])
	if err != nil || hue > 360 {
		return 0, false
	}
	return hue, true
}

// IsValidColor reports whether c is an HSL string in the mapper's format or a
// #RRGGBB hex color.
func IsValidColor(c string) bool {
	if m := hslRe.FindStringSubmatch(c); m != nil {
		hue, _ := strconv.Atoi(m[1])
		sat, _ := strconv.Atoi(m[2])
		light, _ := strconv.Atoi(m[3])
		return hue <= 360 && sat <= 100 && light <= 100
	}
	_, err := colorful.Hex(c)
	return err == nil
}

// ToHex converts a color string accepted by IsValidColor into #rrggbb form.
func ToHex(c string) (string, error) {
	if m := hslRe.FindStringSubmatch(c); m != nil {
		hue, _ := strconv.Atoi(m[1])
		sat, _ := strconv.Atoi(m[2])
		light, _ := strconv.Atoi(m[3])
		return colorful.Hsl(float64(hue), float64(sat)/100, float64(light)/100).Clamped().Hex(), nil
	}
	parsed, err := colorful.Hex(c)
	if err != nil {
		return "", fmt.Errorf("parse color %q: %w", c, err)
	}
	return parsed.Hex(), nil
}

// mustParseHex panics on malformed literals in the static color tables.
func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("mustParseHex: " + err.Error())
	}
	return c
}
