package proj

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestZone(t *testing.T) {
	for _, tc := range []struct {
		long float64
		zone int
	}{
		{-180, 1},
		{-177.1, 1},
		{-174, 2},
		{0, 31},
		{3, 31},
		{7.5, 32},
		{126.978, 52},
		{179.9, 60},
		{180, 60},
	} {
		if z := Zone(tc.long); z != tc.zone {
			t.Errorf("Zone(%v) = %d, want %d", tc.long, z, tc.zone)
		}
	}
}

func TestReprojectCentralMeridian(t *testing.T) {
	x, y, zone, err := Reproject(0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if zone != 31 {
		t.Fatal(zone)
	}
	if math.Abs(x-500000) > 1e-6 || math.Abs(y) > 1e-6 {
		t.Fatalf("%v %v", x, y)
	}
}

func TestReprojectKnownPoint(t *testing.T) {
	x, y, zone, err := Reproject(51.2, 7.5)
	if err != nil {
		t.Fatal(err)
	}
	if zone != 32 {
		t.Fatal(zone)
	}
	if math.Abs(x-395201.31) > 0.5 || math.Abs(y-5673135.24) > 0.5 {
		t.Fatalf("%v %v", x, y)
	}
}

func TestReprojectDeterministic(t *testing.T) {
	x1, y1, z1, err := Reproject(37.5665, 126.978)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		x2, y2, z2, err := Reproject(37.5665, 126.978)
		if err != nil {
			t.Fatal(err)
		}
		if x1 != x2 || y1 != y2 || z1 != z2 {
			t.Fatalf("not deterministic: %v %v %v != %v %v %v", x1, y1, z1, x2, y2, z2)
		}
	}
}

func TestReprojectSymmetry(t *testing.T) {
	cm := CentralMeridian(52)
	xw, yw, err := ToUTM(37.5, cm-1.5, 52, true)
	if err != nil {
		t.Fatal(err)
	}
	xe, ye, err := ToUTM(37.5, cm+1.5, 52, true)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs((xw-500000)+(xe-500000)) > 1e-6 || math.Abs(yw-ye) > 1e-6 {
		t.Fatalf("%v %v / %v %v", xw, yw, xe, ye)
	}
}

func TestReprojectSouth(t *testing.T) {
	_, yn, err := ToUTM(33.9, 151.2, 56, true)
	if err != nil {
		t.Fatal(err)
	}
	_, ys, zone, err := Reproject(-33.9, 151.2)
	if err != nil {
		t.Fatal(err)
	}
	if zone != 56 {
		t.Fatal(zone)
	}
	if math.Abs(ys-(10000000-yn)) > 1e-6 {
		t.Fatalf("%v %v", ys, yn)
	}
}

func TestReprojectInvalid(t *testing.T) {
	for _, tc := range [][2]float64{
		{90.1, 0},
		{-91, 0},
		{0, 180.5},
		{0, -181},
		{math.NaN(), 0},
	} {
		_, _, _, err := Reproject(tc[0], tc[1])
		if err == nil {
			t.Errorf("expected error for %v", tc)
			continue
		}
		if _, ok := err.(*ProjectionError); !ok {
			t.Errorf("expected ProjectionError, got %T", err)
		}
	}

	if _, _, err := ToUTM(10, 10, 61, true); err == nil {
		t.Error("expected error for zone 61")
	}
	if _, _, err := ToUTM(10, 10, 0, true); err == nil {
		t.Error("expected error for zone 0")
	}
}

func TestZoneForRing(t *testing.T) {
	// straddles the border between zone 31 and 32 at 6 degrees,
	// most of the area is in zone 32
	ring := orb.Ring{{5.9, 50}, {7, 50}, {7, 50.1}, {5.9, 50.1}, {5.9, 50}}
	zone, north, err := ZoneForRing(ring)
	if err != nil {
		t.Fatal(err)
	}
	if zone != 32 || !north {
		t.Fatal(zone, north)
	}

	ring = orb.Ring{{151.2, -33.9}, {151.3, -33.9}, {151.3, -33.8}, {151.2, -33.9}}
	zone, north, err = ZoneForRing(ring)
	if err != nil {
		t.Fatal(err)
	}
	if zone != 56 || north {
		t.Fatal(zone, north)
	}

	if _, _, err := ZoneForRing(orb.Ring{}); err == nil {
		t.Fatal("expected error for empty ring")
	}
}
