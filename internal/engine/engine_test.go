package engine

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/kisscool-fr/simdive/internal/profile"
)

func newTestEngine() *Engine {
	return New(Options{})
}

func squareProfile() *profile.Profile {
	return &profile.Profile{
		ID:                  "square-20m",
		Name:                "Square 20m",
		InitialTankPressure: 200,
		TankVolume:          12,
		SACRate:             20,
		Waypoints: []profile.Waypoint{
			{Time: 0, Depth: 0},
			{Time: 2, Depth: 20},
			{Time: 30, Depth: 20},
			{Time: 35, Depth: 5},
			{Time: 38, Depth: 0},
		},
	}
}

func TestControlsBeforeLoadAreNoOps(t *testing.T) {
	e := newTestEngine()

	e.Play()
	e.Pause()
	e.Stop()
	e.StepForward()
	e.StepBackward()
	e.SeekTo(10)

	if s := e.State(); s != nil {
		t.Errorf("State() before load = %+v, want nil", s)
	}
	if sat := e.TissueSaturations(); sat != nil {
		t.Errorf("TissueSaturations() before load = %v, want nil", sat)
	}
	if pb := e.Playback(); pb.State != Stopped {
		t.Errorf("Playback().State = %q, want stopped", pb.State)
	}
}

func TestLoadProfilePublishesInitialSnapshot(t *testing.T) {
	e := newTestEngine()
	e.LoadProfile(squareProfile())

	s := e.State()
	if s == nil {
		t.Fatal("State() is nil after LoadProfile")
	}
	if s.Time != 0 || s.Depth != 0 {
		t.Errorf("initial snapshot time=%v depth=%v, want 0/0", s.Time, s.Depth)
	}
	if len(s.Deco.TissuePressures) != 16 {
		t.Errorf("tissue pressures = %d entries, want 16", len(s.Deco.TissuePressures))
	}
	if pb := e.Playback(); pb.TotalTime != 38 {
		t.Errorf("TotalTime = %v, want 38", pb.TotalTime)
	}
	if sat := e.TissueSaturations(); len(sat) != 16 {
		t.Errorf("TissueSaturations() = %d entries, want 16", len(sat))
	}
}

func TestSquareProfileAtBottom(t *testing.T) {
	e := newTestEngine()
	e.LoadProfile(squareProfile())

	e.SeekTo(30)

	s := e.State()
	if s == nil {
		t.Fatal("State() is nil")
	}
	if s.Depth != 20 {
		t.Errorf("Depth = %v, want 20", s.Depth)
	}
	if s.MaxDepth != 20 {
		t.Errorf("MaxDepth = %v, want 20", s.MaxDepth)
	}
	if s.Deco.Ceiling != 0 {
		t.Errorf("Ceiling = %v, want 0 for this exposure", s.Deco.Ceiling)
	}
	if s.Deco.NDL < 0 {
		t.Errorf("NDL = %d, want no-deco state", s.Deco.NDL)
	}
	if p := s.Air.TankPressure; p <= 0 || p >= 200 {
		t.Errorf("TankPressure = %v, want in (0, 200)", p)
	}
}

func TestAscentViolationBoundary(t *testing.T) {
	tests := []struct {
		name       string
		finalDepth float64
		wantRate   float64
		violation  bool
	}{
		{"11 m/min ascending violates", 9, -11, true},
		{"9 m/min ascending allowed", 11, -9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Options{StepSize: 60})
			e.LoadProfile(&profile.Profile{
				ID:                  "ascent",
				InitialTankPressure: 200,
				TankVolume:          12,
				SACRate:             20,
				Waypoints: []profile.Waypoint{
					{Time: 0, Depth: 20},
					{Time: 1, Depth: tt.finalDepth},
					{Time: 2, Depth: tt.finalDepth},
				},
			})

			e.StepForward() // one full minute

			s := e.State()
			if s.Ascent.Rate != tt.wantRate {
				t.Errorf("Ascent.Rate = %v, want %v", s.Ascent.Rate, tt.wantRate)
			}
			if s.Ascent.Violation != tt.violation {
				t.Errorf("Ascent.Violation = %v, want %v", s.Ascent.Violation, tt.violation)
			}
			if tt.violation != containsWarning(s.Warnings, WarningAscentRate) {
				t.Errorf("Warnings = %v, ascent warning presence should be %v", s.Warnings, tt.violation)
			}
		})
	}
}

func containsWarning(warnings []string, w string) bool {
	for _, got := range warnings {
		if got == w {
			return true
		}
	}
	return false
}

func TestSafetyStopRequirement(t *testing.T) {
	shallow := &profile.Profile{
		ID: "shallow", InitialTankPressure: 200, TankVolume: 12, SACRate: 20,
		Waypoints: []profile.Waypoint{{Time: 0, Depth: 0}, {Time: 2, Depth: 9}, {Time: 10, Depth: 9}, {Time: 12, Depth: 0}},
	}
	deep := &profile.Profile{
		ID: "deep", InitialTankPressure: 200, TankVolume: 12, SACRate: 20,
		Waypoints: []profile.Waypoint{{Time: 0, Depth: 0}, {Time: 2, Depth: 10}, {Time: 10, Depth: 10}, {Time: 12, Depth: 0}},
	}

	e := newTestEngine()
	e.LoadProfile(shallow)
	e.SeekTo(10)
	if s := e.State(); s.SafetyStop.Required {
		t.Error("9 m max depth must not require a safety stop")
	}

	e.LoadProfile(deep)
	e.SeekTo(10)
	if s := e.State(); !s.SafetyStop.Required {
		t.Error("10 m max depth must require a safety stop")
	}
}

func TestSafetyStopCountdown(t *testing.T) {
	// Down to 15 m, then hold 5 m for four minutes: the three-minute stop
	// must count down to zero and complete.
	p := &profile.Profile{
		ID: "stop", InitialTankPressure: 200, TankVolume: 12, SACRate: 20,
		Waypoints: []profile.Waypoint{
			{Time: 0, Depth: 0},
			{Time: 2, Depth: 15},
			{Time: 10, Depth: 15},
			{Time: 11, Depth: 5},
			{Time: 15, Depth: 5},
			{Time: 16, Depth: 0},
		},
	}

	e := newTestEngine()
	e.LoadProfile(p)

	e.SeekTo(12)
	s := e.State()
	if !s.SafetyStop.Active {
		t.Fatalf("safety stop not active at 5 m: %+v", s.SafetyStop)
	}
	if s.SafetyStop.Remaining >= SafetyStopSeconds {
		t.Errorf("Remaining = %v, want counting down from %v", s.SafetyStop.Remaining, SafetyStopSeconds)
	}

	e.SeekTo(15)
	s = e.State()
	if !s.SafetyStop.Completed {
		t.Errorf("safety stop not completed after holding the band: %+v", s.SafetyStop)
	}
	if s.SafetyStop.Required || s.SafetyStop.Active {
		t.Errorf("completed stop should clear required/active: %+v", s.SafetyStop)
	}
}

func TestEventIdempotency(t *testing.T) {
	p := squareProfile()
	p.Events = []profile.Event{{Time: 10, Type: profile.EventAirSharingStart}}

	e := New(Options{StepSize: 1})
	e.LoadProfile(p)

	e.SeekTo(10)
	s := e.State()
	if s.Air.CurrentRate != 40 {
		t.Fatalf("CurrentRate after airSharingStart = %v, want 40 (2x baseline)", s.Air.CurrentRate)
	}

	// Repeated advances inside the matching window must not reapply.
	for i := 0; i < 5; i++ {
		e.StepForward()
	}
	if s := e.State(); s.Air.CurrentRate != 40 {
		t.Errorf("CurrentRate after re-crossing window = %v, want still 40", s.Air.CurrentRate)
	}
}

func TestEventMessageSurfacesAsWarning(t *testing.T) {
	p := squareProfile()
	p.Events = []profile.Event{{
		Time:    10,
		Type:    profile.EventBreathingRateIncrease,
		Message: "Strong current",
	}}

	e := newTestEngine()
	e.LoadProfile(p)
	e.SeekTo(10)

	if s := e.State(); !containsWarning(s.Warnings, "Strong current") {
		t.Errorf("Warnings = %v, want event message included", s.Warnings)
	}
}

func TestSeekDeterminism(t *testing.T) {
	p := squareProfile()
	p.Events = []profile.Event{{Time: 8, Type: profile.EventBreathingRateIncrease, Multiplier: 2}}

	e := newTestEngine()
	e.LoadProfile(p)

	e.SeekTo(17.3)
	first := e.State()
	e.SeekTo(17.3)
	second := e.State()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("seek replay not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestStepBackwardReplays(t *testing.T) {
	e := New(Options{StepSize: 60})
	e.LoadProfile(squareProfile())

	e.SeekTo(10)
	e.StepBackward()

	pb := e.Playback()
	if math.Abs(pb.CurrentTime-9) > 1e-9 {
		t.Errorf("CurrentTime after step back = %v, want 9", pb.CurrentTime)
	}

	// Replay must land on the profile state for that time, not on some
	// rewound approximation.
	s := e.State()
	if math.Abs(s.Depth-20) > 1e-9 {
		t.Errorf("Depth after step back = %v, want 20", s.Depth)
	}
	if s.Air.TankPressure >= 200 {
		t.Errorf("TankPressure = %v, want consumption replayed up to t=9", s.Air.TankPressure)
	}
}

func TestStopResetsToTimeZero(t *testing.T) {
	e := newTestEngine()
	e.LoadProfile(squareProfile())
	e.SeekTo(20)

	e.Stop()

	pb := e.Playback()
	if pb.State != Stopped || pb.CurrentTime != 0 {
		t.Errorf("after Stop: state=%q time=%v, want stopped/0", pb.State, pb.CurrentTime)
	}
	s := e.State()
	if s.Air.TankPressure != 200 {
		t.Errorf("TankPressure after Stop = %v, want full 200", s.Air.TankPressure)
	}
	if s.MaxDepth != 0 {
		t.Errorf("MaxDepth after Stop = %v, want 0", s.MaxDepth)
	}
}

func TestSetSpeedValidation(t *testing.T) {
	e := newTestEngine()
	e.SetSpeed(5)
	if pb := e.Playback(); pb.Speed != 5 {
		t.Errorf("Speed = %v, want 5", pb.Speed)
	}
	e.SetSpeed(3) // not in the allowed set
	if pb := e.Playback(); pb.Speed != 5 {
		t.Errorf("Speed after invalid SetSpeed = %v, want unchanged 5", pb.Speed)
	}
}

func TestPlaybackAutoPausesAtEnd(t *testing.T) {
	p := &profile.Profile{
		ID: "short", InitialTankPressure: 200, TankVolume: 12, SACRate: 20,
		Waypoints: []profile.Waypoint{{Time: 0, Depth: 0}, {Time: 0.05, Depth: 3}},
	}

	e := New(Options{Speed: 10, TickInterval: 5 * time.Millisecond})
	e.LoadProfile(p)
	e.Play()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pb := e.Playback(); pb.State == Paused {
			if pb.CurrentTime != pb.TotalTime {
				t.Errorf("paused at %v, want totalTime %v", pb.CurrentTime, pb.TotalTime)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("playback did not auto-pause at end of dive")
}

func TestSeekDuringPlaybackCancelsPendingAdvance(t *testing.T) {
	e := New(Options{Speed: 10, TickInterval: 300 * time.Millisecond})
	e.LoadProfile(squareProfile())

	e.Play()
	time.Sleep(250 * time.Millisecond)
	e.SeekTo(5)

	// The pre-seek goroutine is still mid-sleep here. Give it time to wake
	// and observe its cancellation while the post-seek loop has not ticked.
	time.Sleep(120 * time.Millisecond)
	e.Pause()

	if pb := e.Playback(); pb.CurrentTime != 5 {
		t.Errorf("CurrentTime = %v, want exactly 5: a cancelled playback goroutine advanced the clock", pb.CurrentTime)
	}
}

func TestPauseStopsAdvancing(t *testing.T) {
	e := New(Options{TickInterval: 5 * time.Millisecond})
	e.LoadProfile(squareProfile())

	e.Play()
	time.Sleep(30 * time.Millisecond)
	e.Pause()

	at := e.Playback().CurrentTime
	time.Sleep(30 * time.Millisecond)
	if after := e.Playback().CurrentTime; after != at {
		t.Errorf("time advanced while paused: %v -> %v", at, after)
	}
	if pb := e.Playback(); pb.State != Paused {
		t.Errorf("state = %q, want paused", pb.State)
	}
}

func TestOnSnapshotListener(t *testing.T) {
	e := newTestEngine()

	var count int
	var last DiveState
	e.OnSnapshot(func(s DiveState) {
		count++
		last = s
	})

	e.LoadProfile(squareProfile())
	if count == 0 {
		t.Fatal("listener not called for initial snapshot")
	}

	e.StepForward()
	if last.Time == 0 {
		t.Errorf("listener did not observe the advance: last.Time = %v", last.Time)
	}
}
