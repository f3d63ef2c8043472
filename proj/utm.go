// Package proj converts WGS84 coordinates to the Universal Transverse
// Mercator system.
package proj

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// WGS84 ellipsoid
const (
	semiMajor    = 6378137.0
	flattening   = 1 / 298.257223563
	k0           = 0.9996
	falseEast    = 500000.0
	falseNorth   = 10000000.0
	zoneWidth    = 6.0
	firstZone    = 1
	lastZone     = 60
	metersPerDeg = 111111.0
)

var (
	e2  = flattening * (2 - flattening)
	e4  = e2 * e2
	e6  = e4 * e2
	ep2 = e2 / (1 - e2)
)

// MetersPerDegree approximates the length of one degree at the equator.
// Used to scale heights when geometries stay in geographic units.
const MetersPerDegree = metersPerDeg

// ProjectionError is returned for coordinates or zones outside the valid
// range.
type ProjectionError struct {
	Lat, Long float64
	Zone      int
	Reason    string
}

func (e *ProjectionError) Error() string {
	if e.Zone != 0 {
		return fmt.Sprintf("invalid projection for (lat %v, lon %v) in zone %d: %s", e.Lat, e.Long, e.Zone, e.Reason)
	}
	return fmt.Sprintf("invalid projection for (lat %v, lon %v): %s", e.Lat, e.Long, e.Reason)
}

// Zone returns the UTM zone number for long.
func Zone(long float64) int {
	zone := int(math.Floor((long+180)/zoneWidth)) + 1
	if zone > lastZone {
		// long == 180
		zone = lastZone
	}
	return zone
}

// CentralMeridian returns the longitude of the central meridian of zone.
func CentralMeridian(zone int) float64 {
	return float64(zone-1)*zoneWidth - 180 + zoneWidth/2
}

func checkLatLong(lat, long float64) error {
	if math.IsNaN(lat) || math.IsNaN(long) {
		return &ProjectionError{Lat: lat, Long: long, Reason: "NaN coordinate"}
	}
	if lat < -90 || lat > 90 {
		return &ProjectionError{Lat: lat, Long: long, Reason: "latitude out of range"}
	}
	if long < -180 || long > 180 {
		return &ProjectionError{Lat: lat, Long: long, Reason: "longitude out of range"}
	}
	return nil
}

// Reproject converts lat/long to UTM in the zone of long. Hemisphere is
// north for lat >= 0.
func Reproject(lat, long float64) (easting, northing float64, zone int, err error) {
	if err := checkLatLong(lat, long); err != nil {
		return 0, 0, 0, err
	}
	zone = Zone(long)
	easting, northing, err = ToUTM(lat, long, zone, lat >= 0)
	return easting, northing, zone, err
}

// ToUTM converts lat/long to easting/northing in the given zone and
// hemisphere. Coordinates outside of the zone are projected as well; the
// error of the projection grows with the distance to the central meridian.
func ToUTM(lat, long float64, zone int, north bool) (easting, northing float64, err error) {
	if err := checkLatLong(lat, long); err != nil {
		return 0, 0, err
	}
	if zone < firstZone || zone > lastZone {
		return 0, 0, &ProjectionError{Lat: lat, Long: long, Zone: zone, Reason: "zone out of range"}
	}

	phi := lat * math.Pi / 180
	dLambda := (long - CentralMeridian(zone)) * math.Pi / 180
	// keep the difference within [-pi, pi] for zones near the antimeridian
	if dLambda > math.Pi {
		dLambda -= 2 * math.Pi
	} else if dLambda < -math.Pi {
		dLambda += 2 * math.Pi
	}

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := semiMajor / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * dLambda

	m := semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	easting = k0*n*(a+(1-t+c)*a3/6+(5-18*t+t*t+72*c-58*ep2)*a5/120) + falseEast
	northing = k0 * (m + n*tanPhi*(a2/2+(5-t+9*c+4*c*c)*a4/24+(61-58*t+t*t+600*c-330*ep2)*a6/720))
	if !north {
		northing += falseNorth
	}
	return easting, northing, nil
}

// ZoneForRing returns the zone and hemisphere of the centroid of ring.
// All vertices of one polygon are projected into this zone so that the
// polygon keeps its shape near zone borders.
func ZoneForRing(ring orb.Ring) (zone int, north bool, err error) {
	if len(ring) == 0 {
		return 0, false, &ProjectionError{Reason: "empty ring"}
	}
	center, area := planar.CentroidArea(ring)
	if area == 0 {
		center = ring.Bound().Center()
	}
	if err := checkLatLong(center.Lat(), center.Lon()); err != nil {
		return 0, false, err
	}
	return Zone(center.Lon()), center.Lat() >= 0, nil
}
