// Package geo converts dive-site coordinates for storage.
//
// Sites are stored as EPSG:3857 points, including when the source data is
// plain WGS84 latitude/longitude, because SQLite has no spatial awareness and
// point data must survive string round-trips during migrations.
package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Coords3857From4326 creates a site point from a WGS84 longitude and latitude.
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	var x, y float64
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(longitude, latitude, 0)
	point, err = geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
			Z:  0,
		},
	)
	return point, err
}

// SiteFromString parses a "lat,lon" string (WGS84 decimal degrees) into an
// EPSG:3857 point.
func SiteFromString(coords string) (geom.Point, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	return Coords3857From4326(lon, lat)
}
