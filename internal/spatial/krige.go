package spatial

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/airsentry/airsentry/internal/station"
)

// Grid interpolation errors.
var (
	ErrTooFewStations           = errors.New("need at least 3 stations for grid interpolation")
	ErrZeroVariance             = errors.New("station values have zero variance, covariance would be degenerate")
	ErrInterpolationUnavailable = errors.New("grid interpolation unavailable")
)

// Point is a geographic coordinate, used for boundary polygons.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is the lat/lon bounding box of an interpolation request.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// Grid is an interpolated AQI surface over a regular lon/lat grid.
// Values[y][x] corresponds to (Lats[y], Lons[x]); cells outside the boundary
// polygon are NaN.
type Grid struct {
	Bounds Bounds
	Lats   []float64
	Lons   []float64
	Values [][]float64
}

// GridInterpolator estimates an AQI surface from irregular station readings.
// Implementations must reject degenerate inputs with a descriptive error and
// must never be required for the primary aggregate path.
type GridInterpolator interface {
	InterpolateGrid(ctx context.Context, readings []station.Reading, bounds Bounds, nx, ny int, boundary []Point) (*Grid, error)
}

// Unavailable is the stub selected when grid interpolation is disabled. It
// keeps callers free of nil checks and inline capability tests.
type Unavailable struct{}

// InterpolateGrid always reports the capability as unavailable.
func (Unavailable) InterpolateGrid(context.Context, []station.Reading, Bounds, int, int, []Point) (*Grid, error) {
	return nil, ErrInterpolationUnavailable
}

// Kriging performs ordinary kriging with an exponential variogram fitted
// from the sample variance and extent of the input readings.
type Kriging struct {
	// NuggetFraction stabilizes the kriging matrix for near-duplicate
	// stations; expressed as a fraction of the sample variance. Default 0.05.
	NuggetFraction float64
}

// NewKriging creates a Kriging interpolator with default parameters.
func NewKriging() *Kriging {
	return &Kriging{NuggetFraction: 0.05}
}

// InterpolateGrid builds an nx-by-ny surface over bounds. It requires at
// least 3 readings with non-zero value variance, and checks the context
// between grid rows so a caller-imposed deadline can abandon the work.
func (k *Kriging) InterpolateGrid(ctx context.Context, readings []station.Reading, bounds Bounds, nx, ny int, boundary []Point) (*Grid, error) {
	if len(readings) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewStations, len(readings))
	}
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("grid must be at least 2x2, got %dx%d", nx, ny)
	}
	if bounds.MaxLat <= bounds.MinLat || bounds.MaxLon <= bounds.MinLon {
		return nil, fmt.Errorf("degenerate bounds %+v", bounds)
	}

	variance := sampleVariance(readings)
	if variance <= 0 {
		return nil, ErrZeroVariance
	}

	vg := k.fitVariogram(readings, variance)

	n := len(readings)
	// Ordinary kriging system: semivariances between stations plus the
	// Lagrange row/column enforcing unit weight sum.
	a := mat.NewDense(n+1, n+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := HaversineKM(readings[i].Lat, readings[i].Lon, readings[j].Lat, readings[j].Lon)
			a.Set(i, j, vg.at(d))
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
	}
	a.Set(n, n, 0)

	var lu mat.LU
	lu.Factorize(a)

	grid := &Grid{
		Bounds: bounds,
		Lats:   linspace(bounds.MinLat, bounds.MaxLat, ny),
		Lons:   linspace(bounds.MinLon, bounds.MaxLon, nx),
		Values: make([][]float64, ny),
	}

	rhs := mat.NewVecDense(n+1, nil)
	weights := mat.NewVecDense(n+1, nil)

	for yi, lat := range grid.Lats {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("grid interpolation canceled: %w", err)
		}
		row := make([]float64, nx)
		for xi, lon := range grid.Lons {
			if len(boundary) >= 3 && !pointInPolygon(lat, lon, boundary) {
				row[xi] = math.NaN()
				continue
			}

			for i := 0; i < n; i++ {
				d := HaversineKM(lat, lon, readings[i].Lat, readings[i].Lon)
				rhs.SetVec(i, vg.at(d))
			}
			rhs.SetVec(n, 1)

			if err := lu.SolveVecTo(weights, false, rhs); err != nil {
				return nil, fmt.Errorf("solve kriging system: %w", err)
			}

			var estimate float64
			for i := 0; i < n; i++ {
				estimate += weights.AtVec(i) * readings[i].AQI
			}
			if estimate < 0 {
				estimate = 0
			}
			row[xi] = estimate
		}
		grid.Values[yi] = row
	}

	return grid, nil
}

// variogram is an exponential semivariogram model.
type variogram struct {
	nugget  float64
	sill    float64
	rangeKM float64
}

func (v variogram) at(distKM float64) float64 {
	if distKM <= 0 {
		return 0
	}
	return v.nugget + (v.sill-v.nugget)*(1-math.Exp(-3*distKM/v.rangeKM))
}

// fitVariogram derives model parameters from the data: the sill from the
// sample variance, the range from half the maximum pairwise distance.
func (k *Kriging) fitVariogram(readings []station.Reading, variance float64) variogram {
	var maxDist float64
	for i := range readings {
		for j := i + 1; j < len(readings); j++ {
			d := HaversineKM(readings[i].Lat, readings[i].Lon, readings[j].Lat, readings[j].Lon)
			if d > maxDist {
				maxDist = d
			}
		}
	}

	rangeKM := maxDist / 2
	if rangeKM < 1 {
		rangeKM = 1
	}

	fraction := k.NuggetFraction
	if fraction <= 0 {
		fraction = 0.05
	}

	return variogram{
		nugget:  fraction * variance,
		sill:    variance,
		rangeKM: rangeKM,
	}
}

func sampleVariance(readings []station.Reading) float64 {
	var mean float64
	for _, r := range readings {
		mean += r.AQI
	}
	mean /= float64(len(readings))

	var sum float64
	for _, r := range readings {
		d := r.AQI - mean
		sum += d * d
	}
	return sum / float64(len(readings))
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// pointInPolygon reports whether (lat, lon) is inside the polygon by ray
// casting on the lon axis.
func pointInPolygon(lat, lon float64, polygon []Point) bool {
	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		pi, pj := polygon[i], polygon[j]
		if (pi.Lat > lat) != (pj.Lat > lat) &&
			lon < (pj.Lon-pi.Lon)*(lat-pi.Lat)/(pj.Lat-pi.Lat)+pi.Lon {
			inside = !inside
		}
		j = i
	}
	return inside
}
