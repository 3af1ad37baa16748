package index

import "github.com/croplens/croplens/internal/domain/scene"

// Sentinel-2 band names.
const (
	B01 = "B01" // aerosol / coastal
	B02 = "B02" // blue
	B03 = "B03" // green
	B04 = "B04" // red
	B05 = "B05" // red edge 1
	B06 = "B06" // red edge 2
	B07 = "B07" // red edge 3
	B08 = "B08" // NIR
	B8A = "B8A" // narrow NIR
	B11 = "B11" // SWIR1
	B12 = "B12" // SWIR2
)

// Band fallbacks: prefer wide NIR, then narrow; prefer the first red edge band.
var (
	reqNIR      = Requirement{B08, B8A}
	reqRedEdge  = Requirement{B05, B06, B07}
	nirBands    = []string{B08, B8A}
	redEdgeBand = []string{B05, B06, B07}
)

func nir(b Bands) scene.Grid {
	g, _ := b.Get(nirBands...)
	return g
}

func redEdge(b Bands) scene.Grid {
	g, _ := b.Get(redEdgeBand...)
	return g
}

// normalizedDiff computes (a - b) / (a + b) with safe division.
func normalizedDiff(a, b scene.Grid) scene.Grid {
	return a.Sub(b).SafeDiv(a.Add(b))
}

// DefaultIndices is the feature set computed when the caller does not ask for
// a specific list.
var DefaultIndices = []string{
	"NDVI", "EVI", "SAVI", "NDWI", "NDMI", "GCI", "NDRE", "RECI", "NBR", "NBR2",
}

// builtins returns the full builtin index catalog.
func builtins() map[string]Definition {
	return map[string]Definition{
		// Vegetation indices.
		"NDVI": {
			Requires: []Requirement{reqNIR, {B04}},
			Compute: func(b Bands) scene.Grid {
				return normalizedDiff(nir(b), b[B04])
			},
		},
		// Huete 2002, 3-band EVI.
		"EVI": {
			Requires: []Requirement{reqNIR, {B04}, {B02}},
			Compute: func(b Bands) scene.Grid {
				n, red, blue := nir(b), b[B04], b[B02]
				num := n.Sub(red).Scale(2.5)
				den := n.Add(red.Scale(6.0)).Sub(blue.Scale(7.5)).Shift(1.0)
				return num.SafeDiv(den)
			},
		},
		// Jiang 2008, 2-band EVI.
		"EVI2": {
			Requires: []Requirement{reqNIR, {B04}},
			Compute: func(b Bands) scene.Grid {
				n, red := nir(b), b[B04]
				num := n.Sub(red).Scale(2.5)
				den := n.Add(red.Scale(2.4)).Shift(1.0)
				return num.SafeDiv(den)
			},
		},
		// L = 0.5.
		"SAVI": {
			Requires: []Requirement{reqNIR, {B04}},
			Compute: func(b Bands) scene.Grid {
				n, red := nir(b), b[B04]
				const l = 0.5
				num := n.Sub(red).Scale(1.0 + l)
				den := n.Add(red).Shift(l)
				return num.SafeDiv(den)
			},
		},
		// Qi 1994.
		"MSAVI": {
			Requires: []Requirement{reqNIR, {B04}},
			Compute: func(b Bands) scene.Grid {
				n, red := nir(b), b[B04]
				t := n.Scale(2.0).Shift(1.0)
				inner := t.Mul(t).Sub(n.Sub(red).Scale(8.0))
				return t.Sub(inner.Sqrt()).Scale(0.5)
			},
		},
		// Rondeaux 1996, L = 0.16.
		"OSAVI": {
			Requires: []Requirement{reqNIR, {B04}},
			Compute: func(b Bands) scene.Grid {
				n, red := nir(b), b[B04]
				return n.Sub(red).SafeDiv(n.Add(red).Shift(0.16))
			},
		},
		"GNDVI": {
			Requires: []Requirement{reqNIR, {B03}},
			Compute: func(b Bands) scene.Grid {
				return normalizedDiff(nir(b), b[B03])
			},
		},
		"VARI": {
			Requires: []Requirement{{B03}, {B04}, {B02}},
			Compute: func(b Bands) scene.Grid {
				green, red, blue := b[B03], b[B04], b[B02]
				return green.Sub(red).SafeDiv(green.Add(red).Sub(blue))
			},
		},
		"GCI": {
			Requires: []Requirement{reqNIR, {B03}},
			Compute: func(b Bands) scene.Grid {
				return nir(b).SafeDiv(b[B03]).Shift(-1.0)
			},
		},
		"NDRE": {
			Requires: []Requirement{reqNIR, reqRedEdge},
			Compute: func(b Bands) scene.Grid {
				return normalizedDiff(nir(b), redEdge(b))
			},
		},
		"RECI": {
			Requires: []Requirement{reqNIR, reqRedEdge},
			Compute: func(b Bands) scene.Grid {
				return nir(b).SafeDiv(redEdge(b)).Shift(-1.0)
			},
		},
		"ARVI": {
			Requires: []Requirement{reqNIR, {B04}, {B02}},
			Compute: func(b Bands) scene.Grid {
				n := nir(b)
				rb := b[B04].Scale(2.0).Sub(b[B02])
				return n.Sub(rb).SafeDiv(n.Add(rb))
			},
		},
		// Daughtry 2000.
		"MCARI": {
			Requires: []Requirement{reqRedEdge, {B04}, {B03}},
			Compute:  computeMCARI,
		},
		// Haboudane 2004: MCARI scaled by OSAVI.
		"MCARI2": {
			Requires: []Requirement{reqNIR, reqRedEdge, {B04}, {B03}},
			Compute: func(b Bands) scene.Grid {
				n, red := nir(b), b[B04]
				osavi := n.Sub(red).SafeDiv(n.Add(red).Shift(0.16))
				return computeMCARI(b).Mul(osavi.SafeDiv(osavi.Shift(0.08)))
			},
		},

		// Water, moisture, and burn indices.
		"NDWI": { // McFeeters
			Requires: []Requirement{reqNIR, {B03}},
			Compute: func(b Bands) scene.Grid {
				return normalizedDiff(b[B03], nir(b))
			},
		},
		"MNDWI": { // Xu
			Requires: []Requirement{{B03}, {B11}},
			Compute: func(b Bands) scene.Grid {
				return normalizedDiff(b[B03], b[B11])
			},
		},
		"NDMI": { // NDWI-Gao
			Requires: []Requirement{reqNIR, {B11}},
			Compute: func(b Bands) scene.Grid {
				return normalizedDiff(nir(b), b[B11])
			},
		},
		"NBR": {
			Requires: []Requirement{reqNIR, {B12}},
			Compute: func(b Bands) scene.Grid {
				return normalizedDiff(nir(b), b[B12])
			},
		},
		"NBR2": {
			Requires: []Requirement{{B11}, {B12}},
			Compute: func(b Bands) scene.Grid {
				return normalizedDiff(b[B11], b[B12])
			},
		},
	}
}

func computeMCARI(b Bands) scene.Grid {
	re, red, green := redEdge(b), b[B04], b[B03]
	num := re.Sub(red).Sub(re.Sub(green).Scale(0.2))
	return num.Mul(re.SafeDiv(red))
}
