// Package deco implements the Bühlmann ZHL-16C decompression model with
// gradient factor conservatism. The model owns 16 tissue compartments and
// answers ceiling, no-decompression-limit, mandatory-stop and time-to-surface
// queries from their current loading. All operations are total functions:
// numeric edge cases degrade to safe defaults instead of failing.
package deco

import "math"

const ln2 = math.Ln2

// Stop is one mandatory decompression stop.
type Stop struct {
	Depth   float64 `json:"depth"`   // meters
	Minutes int     `json:"minutes"` // required duration
}

// Snapshot is the externally visible decompression state at an instant.
type Snapshot struct {
	TissuePressures []float64 `json:"tissuePressures"` // bar, per compartment
	Ceiling         float64   `json:"ceiling"`         // meters, 0 when no deco required
	NDL             int       `json:"ndl"`             // minutes, -1 when deco is mandatory
	Stops           []Stop    `json:"stops"`
	TTS             int       `json:"tts"` // minutes to surface including stops
	GFLow           float64   `json:"gfLow"`
	GFHigh          float64   `json:"gfHigh"`
}

// Model holds the tissue compartment state for one diver.
type Model struct {
	gfLow        float64
	gfHigh       float64
	compartments [16]Compartment
}

// Default gradient factors.
const (
	DefaultGFLow  = 0.30
	DefaultGFHigh = 0.85
)

// New creates a model with all compartments saturated at surface pressure.
// Gradient factors outside (0,1] fall back to the defaults.
func New(gfLow, gfHigh float64) *Model {
	if gfLow <= 0 || gfLow > 1 {
		gfLow = DefaultGFLow
	}
	if gfHigh <= 0 || gfHigh > 1 {
		gfHigh = DefaultGFHigh
	}
	m := &Model{gfLow: gfLow, gfHigh: gfHigh}
	m.Reset()
	return m
}

// Reset returns every compartment to surface saturation.
func (m *Model) Reset() {
	m.compartments = zhl16c
	sat := SurfaceSaturationN2()
	for i := range m.compartments {
		m.compartments[i].PressureN2 = sat
	}
}

// Compartments returns a copy of the current tissue state.
func (m *Model) Compartments() [16]Compartment {
	return m.compartments
}

// GradientFactors returns the configured low and high gradient factors.
func (m *Model) GradientFactors() (low, high float64) {
	return m.gfLow, m.gfHigh
}

// Update advances tissue loading by the given number of minutes at a constant
// depth using the Schreiner equation. Callers must pass the actual depth for
// the interval, not a display-rounded one, so rounding error does not
// compound across updates.
func (m *Model) Update(depth, minutes float64) {
	if minutes <= 0 {
		return
	}
	inspired := InspiredN2(depth)
	for i := range m.compartments {
		c := &m.compartments[i]
		c.PressureN2 += (inspired - c.PressureN2) * (1 - math.Exp(-ln2/c.HalfTime*minutes))
	}
}

// adjustedMValue returns the gradient-factor scaled M-value for the
// compartment at a candidate depth. The effective gradient factor is
// interpolated between gfHigh at the first stop depth and gfLow at the
// surface; with no first stop the gfHigh bound applies everywhere.
func (m *Model) adjustedMValue(c Compartment, depth, firstStopDepth float64) float64 {
	gf := m.gfHigh
	if firstStopDepth > 0 {
		frac := depth / firstStopDepth
		if frac > 1 {
			frac = 1
		}
		gf = m.gfLow + (m.gfHigh-m.gfLow)*frac
	}
	ambient := AmbientPressure(depth)
	return ambient + gf*(c.MValue(depth)-ambient)
}

// Ceiling returns the minimum safe ascent depth in whole meters. Zero means
// no decompression obligation.
func (m *Model) Ceiling() float64 {
	maxDepth := 0.0
	for _, c := range m.compartments {
		// Invert M = a + ambient/b for the depth where the tissue sits
		// exactly at its tolerated limit.
		depth := (c.B*(c.PressureN2-c.A) - SurfacePressure) / MetersToBar
		depth /= m.gfLow
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	if maxDepth <= 0 {
		return 0
	}
	return math.Ceil(maxDepth)
}

// NDL returns the remaining no-decompression time in whole minutes at the
// given depth. At or above the surface the limit is unbounded. Results are
// capped at MaxNDL.
func (m *Model) NDL(depth float64) int {
	if depth <= 0 {
		return MaxNDL
	}
	inspired := InspiredN2(depth)
	surfaceAmbient := AmbientPressure(0)
	limit := math.MaxFloat64
	for _, c := range m.compartments {
		// Surface M-value scaled by gfHigh: ascent is limited by what the
		// tissue may carry when it reaches the surface.
		mAdj := surfaceAmbient + m.gfHigh*(c.MValue(0)-surfaceAmbient)
		if c.PressureN2 >= mAdj {
			return 0
		}
		if inspired <= mAdj {
			// Loading at this depth never reaches the limit.
			continue
		}
		// Inverse Schreiner: minutes until PressureN2 reaches mAdj.
		t := -c.HalfTime / ln2 * math.Log((inspired-mAdj)/(inspired-c.PressureN2))
		if t < limit {
			limit = t
		}
	}
	if limit >= MaxNDL {
		return MaxNDL
	}
	return int(math.Floor(limit))
}

// exceedsAt reports whether any compartment's loading exceeds its
// gradient-adjusted M-value at the candidate depth.
func (m *Model) exceedsAt(depth, firstStopDepth float64) bool {
	for _, c := range m.compartments {
		if c.PressureN2 > m.adjustedMValue(c, depth, firstStopDepth) {
			return true
		}
	}
	return false
}

// clone copies the model so stop planning can simulate loading without
// touching the live tissue state.
func (m *Model) clone() *Model {
	cp := *m
	return &cp
}

// Stops computes the mandatory decompression schedule: stops at 3 m
// increments from the first stop down to 3 m, each held until every
// compartment tolerates ascending to the next stop. Per-stop simulation is
// bounded by maxStopMinutes; on hitting the bound the accumulated duration
// is reported as-is.
func (m *Model) Stops() []Stop {
	ceiling := m.Ceiling()
	if ceiling <= 0 {
		return nil
	}
	firstStop := math.Ceil(ceiling/3) * 3

	sim := m.clone()
	var stops []Stop
	for stopDepth := firstStop; stopDepth >= 3; stopDepth -= 3 {
		nextDepth := stopDepth - 3
		minutes := 0
		for sim.exceedsAt(nextDepth, firstStop) && minutes < maxStopMinutes {
			sim.Update(stopDepth, 1)
			minutes++
		}
		if minutes > 0 {
			stops = append(stops, Stop{Depth: stopDepth, Minutes: minutes})
		}
	}
	return stops
}

// TimeToSurface returns the total minutes needed to reach the surface from
// the given depth: ascent to the ceiling, all mandatory stops, then ascent
// from the last stop (or the ceiling, if none) to the surface, all at the
// planned ascent rate. Rounded up to whole minutes.
func (m *Model) TimeToSurface(depth float64) int {
	if depth <= 0 {
		return 0
	}
	ceiling := m.Ceiling()
	stops := m.Stops()

	total := 0.0
	if depth > ceiling {
		total += (depth - ceiling) / AscentRate
	}
	lastDepth := ceiling
	for _, s := range stops {
		total += float64(s.Minutes)
		lastDepth = s.Depth
	}
	total += lastDepth / AscentRate
	return int(math.Ceil(total))
}

// Saturations returns each compartment's loading as a percentage of its
// gradient-adjusted surface M-value, clamped to [0,100].
func (m *Model) Saturations() []float64 {
	surfaceAmbient := AmbientPressure(0)
	out := make([]float64, len(m.compartments))
	for i, c := range m.compartments {
		mAdj := surfaceAmbient + m.gfHigh*(c.MValue(0)-surfaceAmbient)
		pct := 0.0
		if mAdj > 0 {
			pct = c.PressureN2 / mAdj * 100
		}
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		out[i] = pct
	}
	return out
}

// Snapshot assembles the full decompression state at the given depth.
// NDL is reported as -1 once decompression is mandatory.
func (m *Model) Snapshot(depth float64) Snapshot {
	ceiling := m.Ceiling()

	pressures := make([]float64, len(m.compartments))
	for i, c := range m.compartments {
		pressures[i] = c.PressureN2
	}

	ndl := -1
	var stops []Stop
	if ceiling <= 0 {
		ndl = m.NDL(depth)
	} else {
		stops = m.Stops()
	}

	return Snapshot{
		TissuePressures: pressures,
		Ceiling:         ceiling,
		NDL:             ndl,
		Stops:           stops,
		TTS:             m.TimeToSurface(depth),
		GFLow:           m.gfLow,
		GFHigh:          m.gfHigh,
	}
}
