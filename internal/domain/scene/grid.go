package scene

import "math"

// Grid is a rectangular raster of float64 samples, row-major. NaN marks an
// undefined cell (no data, no overlap, or an invalid computation).
type Grid [][]float64

// NewGrid allocates a rows x cols grid filled with NaN.
func NewGrid(rows, cols int) Grid {
	g := make(Grid, rows)
	for i := range g {
		g[i] = make([]float64, cols)
		for j := range g[i] {
			g[i][j] = math.NaN()
		}
	}
	return g
}

// Uniform allocates a rows x cols grid filled with v.
func Uniform(rows, cols int, v float64) Grid {
	g := make(Grid, rows)
	for i := range g {
		g[i] = make([]float64, cols)
		for j := range g[i] {
			g[i][j] = v
		}
	}
	return g
}

// Rows returns the number of rows.
func (g Grid) Rows() int { return len(g) }

// Cols returns the number of columns of the first row, 0 for an empty grid.
func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}

// Finite returns all finite cell values flattened into a slice.
func (g Grid) Finite() []float64 {
	var out []float64
	for _, row := range g {
		for _, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				out = append(out, v)
			}
		}
	}
	return out
}

// apply returns a new grid with f applied to every cell.
func (g Grid) apply(f func(float64) float64) Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = f(v)
		}
	}
	return out
}

// zip combines two grids elementwise over their common extent. Cells outside
// the common extent are dropped rather than panicking on shape mismatch.
func (g Grid) zip(o Grid, f func(a, b float64) float64) Grid {
	rows := min(len(g), len(o))
	out := make(Grid, rows)
	for i := 0; i < rows; i++ {
		cols := min(len(g[i]), len(o[i]))
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			out[i][j] = f(g[i][j], o[i][j])
		}
	}
	return out
}

// Add returns g + o elementwise.
func (g Grid) Add(o Grid) Grid {
	return g.zip(o, func(a, b float64) float64 { return a + b })
}

// Sub returns g - o elementwise.
func (g Grid) Sub(o Grid) Grid {
	return g.zip(o, func(a, b float64) float64 { return a - b })
}

// Mul returns g * o elementwise.
func (g Grid) Mul(o Grid) Grid {
	return g.zip(o, func(a, b float64) float64 { return a * b })
}

// SafeDiv returns g / o elementwise, yielding NaN wherever the denominator is
// zero, either operand is not finite, or the quotient itself is not finite.
// Division never panics and never produces Inf.
func (g Grid) SafeDiv(o Grid) Grid {
	return g.zip(o, safeDivide)
}

// Scale returns g * k elementwise.
func (g Grid) Scale(k float64) Grid {
	return g.apply(func(v float64) float64 { return v * k })
}

// Shift returns g + k elementwise.
func (g Grid) Shift(k float64) Grid {
	return g.apply(func(v float64) float64 { return v + k })
}

// Sqrt returns the elementwise square root; negative cells become NaN.
func (g Grid) Sqrt() Grid {
	return g.apply(math.Sqrt)
}

func safeDivide(num, den float64) float64 {
	if den == 0 || math.IsNaN(num) || math.IsInf(num, 0) || math.IsNaN(den) || math.IsInf(den, 0) {
		return math.NaN()
	}
	q := num / den
	if math.IsInf(q, 0) {
		return math.NaN()
	}
	return q
}
