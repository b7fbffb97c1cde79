package geo

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDistanceBetweenCities(t *testing.T) {
	// Jakarta to Bandung is ~115-120 km
	d := Distance(Fix{Lat: -6.2, Lng: 106.816}, Fix{Lat: -6.9175, Lng: 107.6191}) / 1000
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	a := Fix{Lat: 46.5763, Lng: 7.9904}
	b := Fix{Lat: 46.5583, Lng: 7.8352}

	if Distance(a, a) != 0 {
		t.Fatalf("expected zero for identical points")
	}
	if math.Abs(Distance(a, b)-Distance(b, a)) > 1e-9 {
		t.Fatalf("distance not symmetric")
	}
	// one degree of latitude is ~111.19 km on a 6371 km sphere
	d := Distance(Fix{Lat: 0, Lng: 0}, Fix{Lat: 1, Lng: 0})
	if math.Abs(d-111194.9) > 1 {
		t.Fatalf("unexpected one degree distance: %v", d)
	}
}

func TestTotalDistance(t *testing.T) {
	if TotalDistance(nil) != 0 {
		t.Fatalf("expected zero for no fixes")
	}
	if TotalDistance([]Fix{{Lat: 1, Lng: 1}}) != 0 {
		t.Fatalf("expected zero for one fix")
	}

	fixes := []Fix{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}, {Lat: 0.001, Lng: 0.001}}
	want := Distance(fixes[0], fixes[1]) + Distance(fixes[1], fixes[2])
	if got := TotalDistance(fixes); math.Abs(got-want) > 1e-9 {
		t.Fatalf("total distance %v, want %v", got, want)
	}
}

func TestElevationGainLoss(t *testing.T) {
	fixes := []Fix{
		{AltitudeM: Float(100)},
		{AltitudeM: Float(120)},
		{},
		{AltitudeM: Float(90)},
		{AltitudeM: Float(95)},
	}
	// the missing altitude breaks the 120 -> 90 step on both sides
	if g := ElevationGain(fixes); g != 25 {
		t.Fatalf("gain %v, want 25", g)
	}
	if l := ElevationLoss(fixes); l != 0 {
		t.Fatalf("loss %v, want 0", l)
	}

	down := []Fix{{AltitudeM: Float(300)}, {AltitudeM: Float(250)}, {AltitudeM: Float(260)}}
	if l := ElevationLoss(down); l != 50 {
		t.Fatalf("loss %v, want 50", l)
	}
}

func TestAverageSpeedGuards(t *testing.T) {
	for _, d := range []float64{0, 1, 1e9} {
		if AverageSpeed(d, 0) != 0 {
			t.Fatalf("expected zero speed for zero duration")
		}
		if AverageSpeed(d, -5) != 0 {
			t.Fatalf("expected zero speed for negative duration")
		}
	}
	if AverageSpeed(100, 50) != 2 {
		t.Fatalf("unexpected average speed")
	}
}

func TestValidateFix(t *testing.T) {
	ok := Fix{Lat: 45, Lng: -120, Timestamp: time.Now()}
	if err := ValidateFix(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []Fix{{Lat: 91}, {Lat: -91}, {Lng: 181}, {Lat: math.NaN()}, {Lng: math.Inf(1)}}
	for _, f := range bad {
		if err := ValidateFix(f); !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("expected invalid coordinate for %+v, got %v", f, err)
		}
	}
}

func TestDistanceToPath(t *testing.T) {
	if !math.IsInf(DistanceToPath(Fix{}, nil), 1) {
		t.Fatalf("expected +Inf for empty path")
	}
	path := []Fix{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.01}}
	d := DistanceToPath(Fix{Lat: 0, Lng: 0.0101}, path)
	if d > 20 {
		t.Fatalf("expected nearby vertex, got %v", d)
	}
}
