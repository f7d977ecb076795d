// Package geo provides great-circle distance over donor and hospital
// coordinates.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/bloodlink/internal/donor/domain"
)

// ErrInvalidCoordinate indicates a latitude or longitude outside the
// valid range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const earthRadiusKm = 6371.0

// Validate checks that p is a well-formed coordinate pair.
func Validate(p domain.GeoPoint) error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of [-90, 90]", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of [-180, 180]", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// DistanceKm returns the haversine distance between a and b on a mean
// Earth radius of 6371 km.
func DistanceKm(a, b domain.GeoPoint) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dlat := toRadians(b.Lat - a.Lat)
	dlng := toRadians(b.Lng - a.Lng)

	sinDlat := math.Sin(dlat / 2)
	sinDlng := math.Sin(dlng / 2)
	h := sinDlat*sinDlat + math.Cos(lat1)*math.Cos(lat2)*sinDlng*sinDlng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c, nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
