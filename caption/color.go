package caption

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gogpu/gg"
	"golang.org/x/image/colornames"
)

var errBadColor = errors.New("unrecognized color")

// ParseColor parses a CSS-compatible colour string.
//
// Accepted forms: "#rgb", "#rgba", "#rrggbb", "#rrggbbaa", "rgb(r, g, b)",
// "rgba(r, g, b, a)", "transparent" and the CSS named colours. Matching is
// case-insensitive and surrounding whitespace is ignored.
func ParseColor(s string) (gg.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return gg.RGBA{}, errBadColor
	case s == "transparent":
		return gg.Transparent, nil
	case strings.HasPrefix(s, "#"):
		return parseHexColor(s[1:])
	case strings.HasPrefix(s, "rgba(") || strings.HasPrefix(s, "rgb("):
		return parseFunctional(s)
	}
	if c, ok := colornames.Map[s]; ok {
		return gg.FromColor(c), nil
	}
	return gg.RGBA{}, errBadColor
}

// MustParseColor is like ParseColor but panics on malformed input.
// Intended for package-level colour tables.
func MustParseColor(s string) gg.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		panic("caption: invalid color " + strconv.Quote(s))
	}
	return c
}

func parseHexColor(h string) (gg.RGBA, error) {
	switch len(h) {
	case 3, 4, 6, 8:
	default:
		return gg.RGBA{}, errBadColor
	}
	for _, r := range h {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return gg.RGBA{}, errBadColor
		}
	}
	return gg.Hex(h), nil
}

func parseFunctional(s string) (gg.RGBA, error) {
	open := strings.IndexByte(s, '(')
	if !strings.HasSuffix(s, ")") {
		return gg.RGBA{}, errBadColor
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return gg.RGBA{}, errBadColor
	}
	var ch [3]float64
	for i := 0; i < 3; i++ {
		v, err := parseChannel(strings.TrimSpace(parts[i]))
		if err != nil {
			return gg.RGBA{}, err
		}
		ch[i] = v
	}
	alpha := 1.0
	if len(parts) == 4 {
		p := strings.TrimSpace(parts[3])
		pct := strings.HasSuffix(p, "%")
		v, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return gg.RGBA{}, errBadColor
		}
		if pct {
			v /= 100
		}
		alpha = clamp01(v)
	}
	return gg.RGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil
}

func parseChannel(p string) (float64, error) {
	if strings.HasSuffix(p, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return 0, errBadColor
		}
		return clamp01(v / 100), nil
	}
	v, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return 0, errBadColor
	}
	return clamp01(v / 255), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
