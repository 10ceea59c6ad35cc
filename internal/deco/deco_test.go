package deco

import (
	"math"
	"testing"
)

func TestNewStartsAtSurfaceSaturation(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)

	want := SurfaceSaturationN2()
	for i, c := range m.Compartments() {
		if math.Abs(c.PressureN2-want) > 1e-12 {
			t.Errorf("compartment %d: pN2 = %v, want %v", i, c.PressureN2, want)
		}
	}
}

func TestNewFallsBackToDefaultGradientFactors(t *testing.T) {
	m := New(0, 1.5)
	low, high := m.GradientFactors()
	if low != DefaultGFLow || high != DefaultGFHigh {
		t.Errorf("GradientFactors() = %v, %v, want defaults %v, %v", low, high, DefaultGFLow, DefaultGFHigh)
	}
}

func TestUpdateMonotonicApproach(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	const depth = 30.0
	inspired := InspiredN2(depth)

	prev := m.Compartments()
	for step := 0; step < 60; step++ {
		m.Update(depth, 1)
		cur := m.Compartments()
		for i := range cur {
			if cur[i].PressureN2 < prev[i].PressureN2 {
				t.Fatalf("compartment %d decreased while on-gassing: %v -> %v", i, prev[i].PressureN2, cur[i].PressureN2)
			}
			if cur[i].PressureN2 > inspired+1e-9 {
				t.Fatalf("compartment %d overshot inspired pressure: %v > %v", i, cur[i].PressureN2, inspired)
			}
		}
		prev = cur
	}
}

func TestUpdateSurfaceEquilibriumIdempotent(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	before := m.Compartments()

	m.Update(0, 120)

	for i, c := range m.Compartments() {
		if math.Abs(c.PressureN2-before[i].PressureN2) > 1e-9 {
			t.Errorf("compartment %d changed at surface equilibrium: %v -> %v", i, before[i].PressureN2, c.PressureN2)
		}
	}
}

func TestCeilingNonNegative(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	if c := m.Ceiling(); c != 0 {
		t.Errorf("fresh model Ceiling() = %v, want 0", c)
	}

	// A short shallow dive must stay within no-deco limits.
	m.Update(15, 10)
	if c := m.Ceiling(); c < 0 {
		t.Errorf("Ceiling() = %v, want >= 0", c)
	}
	if c := m.Ceiling(); c == 0 {
		if ndl := m.NDL(15); ndl <= 0 {
			t.Errorf("no ceiling but NDL(15) = %d, want > 0", ndl)
		}
	}
}

func TestNDLDecreasesWithDepth(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	m.Update(20, 5)

	prev := m.NDL(12)
	for _, depth := range []float64{18, 24, 30, 36, 42} {
		cur := m.NDL(depth)
		if cur > prev {
			t.Errorf("NDL(%v) = %d exceeds NDL at shallower depth %d", depth, cur, prev)
		}
		prev = cur
	}
}

func TestNDLUnboundedAtSurface(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	if ndl := m.NDL(0); ndl != MaxNDL {
		t.Errorf("NDL(0) = %d, want %d", ndl, MaxNDL)
	}
	if ndl := m.NDL(-2); ndl != MaxNDL {
		t.Errorf("NDL(-2) = %d, want %d", ndl, MaxNDL)
	}
}

func TestNDLCapped(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	if ndl := m.NDL(1); ndl != MaxNDL {
		t.Errorf("NDL(1) = %d, want cap %d", ndl, MaxNDL)
	}
}

func TestDecoScenarioDeepLongDive(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	m.Update(40, 40)

	ceiling := m.Ceiling()
	if ceiling <= 0 {
		t.Fatalf("Ceiling() = %v after 40min at 40m, want > 0", ceiling)
	}

	snap := m.Snapshot(40)
	if snap.NDL != -1 {
		t.Errorf("Snapshot NDL = %d, want -1 for mandatory deco", snap.NDL)
	}
	if len(snap.Stops) == 0 {
		t.Fatal("expected a non-empty stop schedule")
	}
	for i, s := range snap.Stops {
		if math.Mod(s.Depth, 3) != 0 {
			t.Errorf("stop %d depth %v is not a multiple of 3", i, s.Depth)
		}
		if s.Minutes <= 0 {
			t.Errorf("stop %d has non-positive duration %d", i, s.Minutes)
		}
		if i > 0 && s.Depth >= snap.Stops[i-1].Depth {
			t.Errorf("stops not strictly descending: %v then %v", snap.Stops[i-1].Depth, s.Depth)
		}
	}
	if last := snap.Stops[len(snap.Stops)-1]; last.Depth < 3 {
		t.Errorf("shallowest stop %v is above 3m", last.Depth)
	}
	if snap.TTS <= 0 {
		t.Errorf("TTS = %d, want > 0", snap.TTS)
	}
}

func TestStopsDoNotMutateLiveState(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	m.Update(40, 40)

	before := m.Compartments()
	m.Stops()
	after := m.Compartments()

	for i := range before {
		if before[i].PressureN2 != after[i].PressureN2 {
			t.Fatalf("compartment %d mutated by Stops(): %v -> %v", i, before[i].PressureN2, after[i].PressureN2)
		}
	}
}

func TestTimeToSurfaceNoDeco(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	m.Update(18, 10)

	// No obligation: TTS is just the direct ascent, rounded up.
	want := int(math.Ceil(18 / AscentRate))
	if tts := m.TimeToSurface(18); tts != want {
		t.Errorf("TimeToSurface(18) = %d, want %d", tts, want)
	}
	if tts := m.TimeToSurface(0); tts != 0 {
		t.Errorf("TimeToSurface(0) = %d, want 0", tts)
	}
}

func TestSaturationsClamped(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	m.Update(40, 200)

	for i, pct := range m.Saturations() {
		if pct < 0 || pct > 100 {
			t.Errorf("compartment %d saturation %v outside [0,100]", i, pct)
		}
	}
}

func TestResetRestoresSurfaceState(t *testing.T) {
	m := New(DefaultGFLow, DefaultGFHigh)
	m.Update(30, 60)
	m.Reset()

	want := SurfaceSaturationN2()
	for i, c := range m.Compartments() {
		if math.Abs(c.PressureN2-want) > 1e-12 {
			t.Errorf("compartment %d: pN2 = %v after Reset, want %v", i, c.PressureN2, want)
		}
	}
	if c := m.Ceiling(); c != 0 {
		t.Errorf("Ceiling() = %v after Reset, want 0", c)
	}
}
