package aqi

import (
	"errors"
	"math"
)

// ErrConcentrationRange is returned for PM2.5 inputs the breakpoint table
// cannot represent (negative or non-finite).
var ErrConcentrationRange = errors.New("pm2.5 concentration out of breakpoint range")

// breakpoint is one segment of the US EPA PM2.5 breakpoint table.
type breakpoint struct {
	cLow, cHigh float64 // µg/m³
	iLow, iHigh float64 // AQI
}

var pm25Breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// PM25ToAQI converts a PM2.5 concentration in µg/m³ to an approximate AQI
// using linear interpolation over the EPA breakpoint table.
//
// Out-of-table policy: concentrations above 500.4 saturate to AQI 500;
// negative or non-finite input returns ErrConcentrationRange. Segments are
// matched by ascending upper bound, so values falling into the table's
// 0.1 µg/m³ gaps interpolate against the next segment and the rounded result
// stays monotonically non-decreasing.
func PM25ToAQI(c float64) (float64, error) {
	if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
		return 0, ErrConcentrationRange
	}
	for _, bp := range pm25Breakpoints {
		if c <= bp.cHigh {
			v := (bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)*(c-bp.cLow) + bp.iLow
			return math.Round(v), nil
		}
	}
	// Beyond the top of the table, hold at the scale maximum.
	return 500, nil
}
