// Package geo は位置の距離計算とジオフェンス判定を扱う。
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters は球体近似の地球平均半径
const EarthRadiusMeters = 6371000.0

var ErrInvalidCoordinate = errors.New("invalid coordinate")

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate: 有限値かつ緯度[-90,90]・経度[-180,180]
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) ||
		math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return ErrInvalidCoordinate
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return ErrInvalidCoordinate
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

// Fence は中心と半径(m)を持つ円形領域
type Fence interface {
	Center() Coordinate
	Radius() float64
}

// Distance returns the haversine great-circle distance in meters.
// Inputs are not range-checked.
func Distance(a, b Coordinate) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	φ1, φ2 := rad(a.Latitude), rad(b.Latitude)
	Δφ := rad(b.Latitude - a.Latitude)
	Δλ := rad(b.Longitude - a.Longitude)
	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	// 丸め誤差で 1 をわずかに超えると asin が NaN になる
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// IsWithin: 境界上（距離 == 半径）も内側とみなす
func IsWithin(p Coordinate, f Fence) bool {
	return Distance(p, f.Center()) <= f.Radius()
}

// Circle は Fence の最小実装
type Circle struct {
	At           Coordinate
	RadiusMeters float64
}

func (c Circle) Center() Coordinate { return c.At }
func (c Circle) Radius() float64    { return c.RadiusMeters }
