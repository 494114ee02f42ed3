package compositor

import (
	"fmt"
	"image"
	"sort"
)

// matrix is a 3x4 affine color transform on normalized RGB. Column 3 is the
// offset. Alpha is never touched.
type matrix [3][4]float64

var identity = matrix{
	{1, 0, 0, 0},
	{0, 1, 0, 0},
	{0, 0, 1, 0},
}

// then returns the transform that applies m first and n second.
func (m matrix) then(n matrix) matrix {
	var out matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			v := n[r][0]*m[0][c] + n[r][1]*m[1][c] + n[r][2]*m[2][c]
			if c == 3 {
				v += n[r][3]
			}
			out[r][c] = v
		}
	}
	return out
}

func grayscale(amount float64) matrix {
	a := 1 - clamp01(amount)
	return matrix{
		{0.2126 + 0.7874*a, 0.7152 - 0.7152*a, 0.0722 - 0.0722*a, 0},
		{0.2126 - 0.2126*a, 0.7152 + 0.2848*a, 0.0722 - 0.0722*a, 0},
		{0.2126 - 0.2126*a, 0.7152 - 0.7152*a, 0.0722 + 0.9278*a, 0},
	}
}

func sepia(amount float64) matrix {
	a := 1 - clamp01(amount)
	return matrix{
		{0.393 + 0.607*a, 0.769 - 0.769*a, 0.189 - 0.189*a, 0},
		{0.349 - 0.349*a, 0.686 + 0.314*a, 0.168 - 0.168*a, 0},
		{0.272 - 0.272*a, 0.534 - 0.534*a, 0.131 + 0.869*a, 0},
	}
}

func saturate(s float64) matrix {
	return matrix{
		{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s, 0},
		{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s, 0},
		{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s, 0},
	}
}

func contrast(c float64) matrix {
	off := 0.5 - 0.5*c
	return matrix{
		{c, 0, 0, off},
		{0, c, 0, off},
		{0, 0, c, off},
	}
}

func brightness(b float64) matrix {
	return matrix{
		{b, 0, 0, 0},
		{0, b, 0, 0},
		{0, 0, b, 0},
	}
}

func chain(steps ...matrix) matrix {
	out := identity
	for _, s := range steps {
		out = out.then(s)
	}
	return out
}

// Filter is a named color preset from the fixed catalog.
type Filter struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// CSS is the equivalent CSS filter string for the kiosk preview.
	CSS string `json:"css"`

	m     matrix
	fixed [3][4]int32
}

const fixedShift = 12

func newFilter(id, label, css string, m matrix) Filter {
	f := Filter{ID: id, Label: label, CSS: css, m: m}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			f.fixed[r][c] = int32(round(m[r][c] * (1 << fixedShift)))
		}
		// offsets are in 0..1, scaled to 8-bit channel space
		f.fixed[r][3] = int32(round(m[r][3] * 255 * (1 << fixedShift)))
	}
	return f
}

const Natural = "natural"

var catalog = map[string]Filter{}

var catalogOrder = []string{Natural, "bw", "sepia", "vivid", "vintage", "noir", "dramatic", "bright", "soft"}

func init() {
	for _, f := range []Filter{
		newFilter(Natural, "Natural", "none", identity),
		newFilter("bw", "B&W", "grayscale(100%)", grayscale(1)),
		newFilter("sepia", "Sepia", "sepia(80%)", sepia(0.8)),
		newFilter("vivid", "Vivid", "contrast(1.1) saturate(1.2)", chain(contrast(1.1), saturate(1.2))),
		newFilter("vintage", "Vintage", "sepia(0.4) contrast(1.2) brightness(0.9)", chain(sepia(0.4), contrast(1.2), brightness(0.9))),
		newFilter("noir", "Noir", "grayscale(100%) contrast(1.5) brightness(0.9)", chain(grayscale(1), contrast(1.5), brightness(0.9))),
		newFilter("dramatic", "Dramatic", "grayscale(0.5) contrast(1.5) brightness(0.9)", chain(grayscale(0.5), contrast(1.5), brightness(0.9))),
		newFilter("bright", "Bright", "brightness(1.15) contrast(1.05)", chain(brightness(1.15), contrast(1.05))),
		newFilter("soft", "Soft", "brightness(1.05) contrast(0.9) saturate(0.9)", chain(brightness(1.05), contrast(0.9), saturate(0.9))),
	} {
		catalog[f.ID] = f
	}
}

// Lookup returns a catalog filter. An empty id is Natural.
func Lookup(id string) (Filter, error) {
	if id == "" {
		id = Natural
	}
	f, ok := catalog[id]
	if !ok {
		known := make([]string, 0, len(catalog))
		for k := range catalog {
			known = append(known, k)
		}
		sort.Strings(known)
		return Filter{}, fmt.Errorf("unknown filter %q (known: %v)", id, known)
	}
	return f, nil
}

// Catalog lists filters in display order.
func Catalog() []Filter {
	out := make([]Filter, 0, len(catalogOrder))
	for _, id := range catalogOrder {
		out = append(out, catalog[id])
	}
	return out
}

func (f Filter) IsIdentity() bool {
	return f.ID == "" || f.ID == Natural
}

// Apply transforms img in place. The arithmetic is integer fixed point so
// the same input always yields the same bytes.
func (f Filter) Apply(img *image.RGBA) {
	if f.IsIdentity() {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			r, g, bl := int32(row[i]), int32(row[i+1]), int32(row[i+2])
			row[i] = f.channel(0, r, g, bl)
			row[i+1] = f.channel(1, r, g, bl)
			row[i+2] = f.channel(2, r, g, bl)
		}
	}
}

func (f Filter) channel(c int, r, g, b int32) uint8 {
	m := f.fixed[c]
	v := (m[0]*r + m[1]*g + m[2]*b + m[3] + 1<<(fixedShift-1)) >> fixedShift
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
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

func round(v float64) float64 {
	if v < 0 {
		return -round(-v)
	}
	return float64(int64(v + 0.5))
}
