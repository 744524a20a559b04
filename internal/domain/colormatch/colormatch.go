// Package colormatch implements hex-color parsing, Euclidean RGB distance
// for drift detection, and the palette/grayscale/dominant-component
// classifier fallback chain used by Filament Accounting.
package colormatch

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DriftThreshold is the Euclidean RGB distance above which a reported hex
// is considered to have drifted from a spool's library hex.
const DriftThreshold = 60.0

// RGB is a parsed 24-bit color.
type RGB struct {
	R, G, B uint8
}

// ParseHex parses a "#RRGGBB" or "RRGGBB" string into an RGB value.
func ParseHex(hex string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("colormatch: invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("colormatch: invalid hex color %q: %w", hex, err)
	}
	return RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// Hex re-serializes an RGB value as "#RRGGBB", lowercase. Round-tripping
// ParseHex then Hex preserves the color.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Distance computes the Euclidean distance between two colors in RGB space.
func Distance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// HasDrifted reports whether reported has drifted from library beyond
// DriftThreshold.
func HasDrifted(reported, library RGB) bool {
	return Distance(reported, library) > DriftThreshold
}

// paletteEntry is one predefined named color used by the palette
// classifier, the first fallback tier after library/catalog matching.
type paletteEntry struct {
	name string
	rgb  RGB
}

var palette = []paletteEntry{
	{"Black", RGB{0, 0, 0}},
	{"White", RGB{255, 255, 255}},
	{"Red", RGB{255, 0, 0}},
	{"Green", RGB{0, 128, 0}},
	{"Blue", RGB{0, 0, 255}},
	{"Yellow", RGB{255, 255, 0}},
	{"Orange", RGB{255, 165, 0}},
	{"Purple", RGB{128, 0, 128}},
	{"Pink", RGB{255, 192, 203}},
	{"Brown", RGB{139, 69, 19}},
	{"Gray", RGB{128, 128, 128}},
	{"Cyan", RGB{0, 255, 255}},
	{"Magenta", RGB{255, 0, 255}},
	{"Silver", RGB{192, 192, 192}},
	{"Gold", RGB{255, 215, 0}},
}

// IsGrayscale reports whether a color's channels are close enough together
// that it reads as a shade of gray rather than a hue.
func IsGrayscale(c RGB) bool {
	maxC := max3(c.R, c.G, c.B)
	minC := min3(c.R, c.G, c.B)
	return int(maxC)-int(minC) <= 12
}

// DominantComponent names the single RGB channel with the greatest value,
// the last-resort classifier tier.
func DominantComponent(c RGB) string {
	if c.R >= c.G && c.R >= c.B {
		return "Red"
	}
	if c.G >= c.R && c.G >= c.B {
		return "Green"
	}
	return "Blue"
}

// ClassifyName runs the palette → grayscale → dominant-component fallback
// chain to derive a best-effort color name for a raw hex
// when no library or catalog match exists.
func ClassifyName(c RGB) string {
	best := ""
	bestDist := math.MaxFloat64
	for _, p := range palette {
		d := Distance(c, p.rgb)
		if d < bestDist {
			bestDist = d
			best = p.name
		}
	}
	if bestDist <= DriftThreshold {
		return best
	}
	if IsGrayscale(c) {
		lum := (int(c.R) + int(c.G) + int(c.B)) / 3
		switch {
		case lum < 64:
			return "Black"
		case lum > 192:
			return "White"
		default:
			return "Gray"
		}
	}
	return DominantComponent(c)
}

func max3(a, b, c uint8) uint8 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c uint8) uint8 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// CatalogMatch is one candidate returned by a CatalogProvider.
type CatalogMatch struct {
	Brand       string
	ProductName string
	Material    string
	ColorHex    string
}

// CatalogProvider looks up an external filament catalog by material+hex.
// NoopCatalogProvider is the default wiring when no external catalog is
// configured.
type CatalogProvider interface {
	Lookup(ctx context.Context, material, hex string) (*CatalogMatch, error)
}

// NoopCatalogProvider always reports no match, letting step 5 fallback run.
type NoopCatalogProvider struct{}

func (NoopCatalogProvider) Lookup(ctx context.Context, material, hex string) (*CatalogMatch, error) {
	return nil, nil
}
