package deco

// Physical constants used by the model. Depths are meters of sea water,
// pressures are bar, times are minutes.
const (
	// SurfacePressure is atmospheric pressure at sea level.
	SurfacePressure = 1.01325

	// WaterVaporPressure is the alveolar water vapor pressure subtracted
	// from ambient pressure when computing inspired gas pressure.
	WaterVaporPressure = 0.0627

	// N2Fraction is the nitrogen fraction of air.
	N2Fraction = 0.79

	// MetersToBar converts depth in meters to hydrostatic pressure in bar.
	MetersToBar = 0.1

	// MaxNDL caps the no-decompression limit reported for tissues that
	// impose no practical limit.
	MaxNDL = 999

	// AscentRate is the planned ascent rate used for time-to-surface.
	AscentRate = 10.0 // m/min

	// maxStopMinutes bounds the per-stop convergence loop. A safety valve,
	// not a proven bound.
	maxStopMinutes = 120
)

// Compartment is one of the 16 modeled tissue classes. HalfTime, A and B are
// fixed ZHL-16C coefficients; PressureN2 is the only mutable field.
type Compartment struct {
	HalfTime   float64 `json:"halfTime"` // nitrogen half-time, minutes
	A          float64 `json:"a"`
	B          float64 `json:"b"`
	PressureN2 float64 `json:"pN2"` // inert gas partial pressure, bar
}

// zhl16c holds the Bühlmann ZHL-16C nitrogen coefficients, ordered by
// ascending half-time.
var zhl16c = [16]Compartment{
	{HalfTime: 4.0, A: 1.2599, B: 0.5050},
	{HalfTime: 8.0, A: 1.0000, B: 0.6514},
	{HalfTime: 12.5, A: 0.8618, B: 0.7222},
	{HalfTime: 18.5, A: 0.7562, B: 0.7825},
	{HalfTime: 27.0, A: 0.6200, B: 0.8126},
	{HalfTime: 38.3, A: 0.5043, B: 0.8434},
	{HalfTime: 54.3, A: 0.4410, B: 0.8693},
	{HalfTime: 77.0, A: 0.4000, B: 0.8910},
	{HalfTime: 109.0, A: 0.3750, B: 0.9092},
	{HalfTime: 146.0, A: 0.3500, B: 0.9222},
	{HalfTime: 187.0, A: 0.3295, B: 0.9319},
	{HalfTime: 239.0, A: 0.3065, B: 0.9403},
	{HalfTime: 305.0, A: 0.2835, B: 0.9477},
	{HalfTime: 390.0, A: 0.2610, B: 0.9544},
	{HalfTime: 498.0, A: 0.2480, B: 0.9602},
	{HalfTime: 635.0, A: 0.2327, B: 0.9653},
}

// SurfaceSaturationN2 is the nitrogen partial pressure of a tissue fully
// equilibrated at the surface breathing air.
func SurfaceSaturationN2() float64 {
	return (SurfacePressure - WaterVaporPressure) * N2Fraction
}

// AmbientPressure returns the total pressure at the given depth.
func AmbientPressure(depth float64) float64 {
	return SurfacePressure + depth*MetersToBar
}

// InspiredN2 returns the inspired nitrogen partial pressure at the given
// depth, accounting for water vapor in the lungs.
func InspiredN2(depth float64) float64 {
	return (AmbientPressure(depth) - WaterVaporPressure) * N2Fraction
}

// MValue returns the maximum tolerable inert gas pressure for the
// compartment at the given depth.
func (c Compartment) MValue(depth float64) float64 {
	return c.A + AmbientPressure(depth)/c.B
}
